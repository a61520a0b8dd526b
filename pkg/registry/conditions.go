package registry

import (
	"github.com/zen-systems/reviewroute/pkg/complexity"
	"github.com/zen-systems/reviewroute/pkg/review"
)

// condFunc adapts a plain predicate into a Condition.
type condFunc struct {
	name string
	fn   func(req review.Request) bool
}

func (c condFunc) Name() string                     { return c.name }
func (c condFunc) Evaluate(req review.Request) bool { return c.fn(req) }

// ConditionFunc wraps a predicate as a named Condition.
func ConditionFunc(name string, fn func(req review.Request) bool) Condition {
	return condFunc{name: name, fn: fn}
}

func builtinConditions() []Condition {
	th := complexity.DefaultThresholds()
	return []Condition{
		ConditionFunc("always", func(review.Request) bool {
			return true
		}),
		ConditionFunc("ci", func(req review.Request) bool {
			return req.CI
		}),
		ConditionFunc("large_diff", func(req review.Request) bool {
			return req.Stats.FilesChanged > th.HighFiles || req.Stats.LinesChanged > th.HighLines
		}),
		ConditionFunc("small_diff", func(req review.Request) bool {
			return req.Stats.FilesChanged <= th.MediumFiles && req.Stats.LinesChanged <= th.MediumLines
		}),
		ConditionFunc("sensitive_paths", func(req review.Request) bool {
			_, hit := complexity.SensitivePath(req.Stats.Paths)
			return hit
		}),
	}
}
