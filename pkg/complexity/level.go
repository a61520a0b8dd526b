// Package complexity classifies changes into coarse levels and reconciles
// the deterministic classification with a model-reported signal.
package complexity

// Level is an ordered complexity ranking for a change.
type Level int

const (
	Low Level = iota
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return "unknown"
}

func maxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}
