// Package tokens estimates token counts for sizing pass budgets. The
// estimator is tiered: an exact tokenizer when one is available, then a
// word-count approximation, then a character-count approximation.
package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	encodingName  = "cl100k_base"
	tokensPerWord = 1.33
	charsPerToken = 4
)

// Estimator estimates token counts for arbitrary text.
type Estimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewEstimator returns an estimator. The exact tokenizer is initialized
// lazily on first use; if it cannot be loaded the estimator silently uses
// the approximation tiers.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate returns the estimated token count for text. Each tier is used
// only when the preceding tier is unavailable or returns zero.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	if n := e.exact(text); n > 0 {
		return n
	}
	if n := wordEstimate(text); n > 0 {
		return n
	}
	return charEstimate(text)
}

func (e *Estimator) exact(text string) int {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			return
		}
		e.enc = enc
	})
	if e.enc == nil {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

func wordEstimate(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(float64(words)*tokensPerWord) + 1
}

func charEstimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}
