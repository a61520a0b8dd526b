package complexity

import (
	"strings"

	"github.com/zen-systems/reviewroute/pkg/review"
)

// SignalThresholds control how a model-reported signal maps to a level.
type SignalThresholds struct {
	// HighRiskAreas is the risk-area count at which the signal reads High.
	HighRiskAreas int
}

// DefaultSignalThresholds returns the standard signal mapping.
func DefaultSignalThresholds() SignalThresholds {
	return SignalThresholds{HighRiskAreas: 3}
}

// SignalLevel maps a model-reported complexity signal to a level. A missing
// or unreadable signal reads Medium: under-reviewing is the unsafe failure
// direction, so absence never reads Low.
func SignalLevel(signal *review.ComplexitySignal) Level {
	return SignalLevelWith(signal, DefaultSignalThresholds())
}

// SignalLevelWith is SignalLevel with explicit thresholds.
func SignalLevelWith(signal *review.ComplexitySignal, th SignalThresholds) Level {
	if signal == nil {
		return Medium
	}

	scope, scopeKnown := scopeLevel(signal.EstimatedScope)
	risk, riskKnown := riskLevel(len(signal.RiskAreas), th)

	if !scopeKnown && !riskKnown {
		return Medium
	}
	if !scopeKnown {
		return risk
	}
	if !riskKnown {
		return scope
	}
	return maxLevel(scope, risk)
}

func scopeLevel(scope string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "small":
		return Low, true
	case "moderate":
		return Medium, true
	case "large":
		return High, true
	}
	return Medium, false
}

func riskLevel(count int, th SignalThresholds) (Level, bool) {
	switch {
	case count >= th.HighRiskAreas:
		return High, true
	case count >= 1:
		return Medium, true
	}
	return Low, false
}

// Reconcile combines the deterministic level with the model-reported one.
// A single pass is only accepted when both independent measurements agree
// the change is simple; either measurement alone can force High.
func Reconcile(deterministic, reported Level) Level {
	if deterministic == Low && reported == Low {
		return Low
	}
	if deterministic == High || reported == High {
		return High
	}
	return Medium
}
