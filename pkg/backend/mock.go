package backend

import (
	"context"
	"fmt"

	"github.com/zen-systems/reviewroute/pkg/review"
)

// Mock returns scripted outputs for tests. Each Invoke consumes the next
// scripted step; when the script runs out the last step repeats.
type Mock struct {
	BackendName string
	Caps        []string
	Script      []MockStep

	Invocations int
	LastBudget  review.PassBudget
	LastRequest review.Request
}

// MockStep is one scripted invocation outcome.
type MockStep struct {
	Output string
	Err    error
	// Block makes the step wait for context cancellation, simulating a
	// backend that exceeds its deadline.
	Block bool
}

// NewMock creates a mock backend named name that always returns output.
func NewMock(name, output string) *Mock {
	return &Mock{
		BackendName: name,
		Caps:        []string{"review"},
		Script:      []MockStep{{Output: output}},
	}
}

// Name returns the backend identifier.
func (m *Mock) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}

// Capabilities returns the declared capabilities.
func (m *Mock) Capabilities() []string {
	return m.Caps
}

// Invoke replays the next scripted step.
func (m *Mock) Invoke(ctx context.Context, req review.Request, budget review.PassBudget) (string, error) {
	step := MockStep{Err: fmt.Errorf("mock backend %s has no script", m.Name())}
	if len(m.Script) > 0 {
		idx := m.Invocations
		if idx >= len(m.Script) {
			idx = len(m.Script) - 1
		}
		step = m.Script[idx]
	}
	m.Invocations++
	m.LastBudget = budget
	m.LastRequest = req

	if step.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if step.Err != nil {
		return "", step.Err
	}
	return step.Output, nil
}

// ValidMockOutput builds an output that satisfies the review contract.
func ValidMockOutput(verdict review.Verdict, scope string, riskAreas ...string) string {
	out := fmt.Sprintf(`{"verdict": %q, "analysis": "Mock analysis body long enough to satisfy the contract's minimum length requirement."`, verdict)
	if scope != "" || len(riskAreas) > 0 {
		out += fmt.Sprintf(`, "complexity": {"estimated_scope": %q, "risk_areas": [`, scope)
		for i, area := range riskAreas {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprintf("%q", area)
		}
		out += "]}"
	}
	return out + "}"
}
