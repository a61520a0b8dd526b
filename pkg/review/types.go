package review

// Verdict is the top-level outcome a backend reports for a change.
type Verdict string

const (
	VerdictApproved        Verdict = "Approved"
	VerdictChangesRequired Verdict = "ChangesRequired"
	VerdictDecisionNeeded  Verdict = "DecisionNeeded"
	VerdictSkipped         Verdict = "Skipped"
)

// Known reports whether the verdict is one of the four accepted values.
func (v Verdict) Known() bool {
	switch v {
	case VerdictApproved, VerdictChangesRequired, VerdictDecisionNeeded, VerdictSkipped:
		return true
	}
	return false
}

// Finding is a single reviewer observation tied to a location in the change.
type Finding struct {
	Severity string `json:"severity"`
	Path     string `json:"path,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

// ComplexitySignal is the self-reported complexity measurement a backend
// may attach to its output, used to reconcile the pre-pass classification.
type ComplexitySignal struct {
	RiskAreas      []string `json:"risk_areas,omitempty"`
	EstimatedScope string   `json:"estimated_scope,omitempty"`
}

// DiffStats captures objective size signals for a change.
type DiffStats struct {
	FilesChanged int
	LinesChanged int
	Paths        []string
}

// PassBudget is the token allowance granted to one analysis pass.
type PassBudget struct {
	InputTokenLimit  int
	OutputTokenLimit int
}

// Request describes one review request. A Request is immutable once handed
// to the engine; the orchestrator copies it per pass.
type Request struct {
	ID    string
	Title string
	Diff  string
	Stats DiffStats
	CI    bool

	// Pass and Focus are set by the orchestrator for each analysis pass.
	Pass  int
	Focus string
}

// Result is a backend output that passed the review contract.
type Result struct {
	Verdict  Verdict           `json:"verdict"`
	Analysis string            `json:"analysis"`
	Findings []Finding         `json:"findings,omitempty"`
	Signal   *ComplexitySignal `json:"complexity,omitempty"`

	// Provenance, filled in by the engine.
	Backend string `json:"backend,omitempty"`
	Route   int    `json:"route"`

	Raw string `json:"-"`
}
