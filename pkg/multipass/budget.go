package multipass

import (
	"github.com/zen-systems/reviewroute/pkg/complexity"
	"github.com/zen-systems/reviewroute/pkg/review"
)

// Budgets holds the token allowances used to size passes.
type Budgets struct {
	Standard review.PassBudget
	Enlarged review.PassBudget
}

// DefaultBudgets returns the standard and enlarged pass budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		Standard: review.PassBudget{InputTokenLimit: 12000, OutputTokenLimit: 4000},
		Enlarged: review.PassBudget{InputTokenLimit: 24000, OutputTokenLimit: 8000},
	}
}

// For returns the budget for a pass. The first pass always runs at the
// standard budget; later passes widen when the change reconciled High.
func (b Budgets) For(level complexity.Level, pass int) review.PassBudget {
	if pass > 1 && level == complexity.High {
		return b.Enlarged
	}
	return b.Standard
}
