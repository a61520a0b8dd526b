package tokens

import "github.com/zen-systems/reviewroute/pkg/review"

// Usage is the normalized token accounting for one pass. Counts are
// estimates when the provider does not report exact numbers.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the combined token count.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Exceeds reports whether either side of the usage went over its budget.
func (u Usage) Exceeds(budget review.PassBudget) bool {
	return u.InputTokens > budget.InputTokenLimit || u.OutputTokens > budget.OutputTokenLimit
}

// Measure estimates the usage of one exchange.
func (e *Estimator) Measure(input, output string) Usage {
	return Usage{
		InputTokens:  e.Estimate(input),
		OutputTokens: e.Estimate(output),
	}
}
