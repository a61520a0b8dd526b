package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zen-systems/reviewroute/pkg/review"
)

// Static is the minimal always-available backend at the bottom of the
// default cascade. It never calls out anywhere; it produces a well-formed
// result that defers the decision to a human.
type Static struct{}

// NewStatic creates the static backend.
func NewStatic() *Static {
	return &Static{}
}

// Name returns the backend identifier.
func (b *Static) Name() string {
	return "static"
}

// Capabilities returns the capabilities this backend declares.
func (b *Static) Capabilities() []string {
	return []string{"review"}
}

// Invoke returns a deterministic DecisionNeeded result.
func (b *Static) Invoke(_ context.Context, req review.Request, _ review.PassBudget) (string, error) {
	out := map[string]any{
		"verdict": string(review.VerdictDecisionNeeded),
		"analysis": fmt.Sprintf(
			"No model backend was available for this request. The change touches %d file(s) and %d line(s); a human reviewer must make the call.",
			req.Stats.FilesChanged, req.Stats.LinesChanged,
		),
		"complexity": map[string]any{
			"estimated_scope": "moderate",
		},
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
