package engine

import "time"

// Phase is the engine's position in the route-resolution state machine.
// Every terminal state is reached only through an explicit transition.
type Phase int

const (
	Pending Phase = iota
	RouteAttempted
	Resolved
	Exhausted
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case RouteAttempted:
		return "route_attempted"
	case Resolved:
		return "resolved"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Attempt records one backend invocation, success or failure, with enough
// detail to reconstruct the decision trail without re-running the request.
type Attempt struct {
	Route      int           `json:"route"`
	Backend    string        `json:"backend"`
	Attempt    int           `json:"attempt"`
	Conditions []string      `json:"conditions,omitempty"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`

	DurationMillis int64 `json:"duration_ms"`
}

// Attempt outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomeBackendError     = "backend_error"
	OutcomeTimeout          = "timeout"
	OutcomeContractRejected = "contract_rejected"
)
