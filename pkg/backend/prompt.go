package backend

import (
	"fmt"
	"strings"

	"github.com/zen-systems/reviewroute/pkg/review"
	"github.com/zen-systems/reviewroute/pkg/tokens"
)

// BuildPrompt renders the review prompt for one pass, truncating the diff
// so the whole prompt fits the pass's input budget.
func BuildPrompt(req review.Request, budget review.PassBudget, est *tokens.Estimator) string {
	var sb strings.Builder
	sb.WriteString("You are an automated code reviewer.\n")
	sb.WriteString("Return ONLY a JSON object with fields:\n")
	sb.WriteString(`  "verdict": one of "Approved", "ChangesRequired", "DecisionNeeded", "Skipped"` + "\n")
	sb.WriteString(`  "analysis": your detailed review (plain text)` + "\n")
	sb.WriteString(`  "findings": optional list of {"severity","path","line","message"}` + "\n")
	sb.WriteString(`  "complexity": {"risk_areas": [...], "estimated_scope": "small"|"moderate"|"large"}` + "\n\n")

	if req.Focus != "" {
		sb.WriteString(fmt.Sprintf("This is pass %d; focus on: %s.\n\n", req.Pass, req.Focus))
	}
	if req.Title != "" {
		sb.WriteString("Change: " + req.Title + "\n\n")
	}

	header := sb.String()
	diff := truncateToBudget(req.Diff, budget.InputTokenLimit-est.Estimate(header), est)
	sb.WriteString("Diff:\n")
	sb.WriteString(diff)
	sb.WriteString("\n")
	return sb.String()
}

// truncateToBudget trims text until its estimated token count fits limit.
func truncateToBudget(text string, limit int, est *tokens.Estimator) string {
	if limit <= 0 {
		return ""
	}
	if est.Estimate(text) <= limit {
		return text
	}

	const marker = "\n[diff truncated to fit token budget]\n"
	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if est.Estimate(text[:mid]) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return text[:lo] + marker
}
