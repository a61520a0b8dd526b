package review

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// MinAnalysisLength is the minimum accepted analysis body size in bytes.
// Anything shorter is indistinguishable from a truncated or empty response.
const MinAnalysisLength = 50

// ContractError reports why a backend output was rejected.
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("review contract violated: %s", e.Reason)
}

func rejected(format string, args ...any) error {
	return &ContractError{Reason: fmt.Sprintf(format, args...)}
}

// ValidateOutput checks a raw backend output against the review contract and
// returns the parsed result. Every backend's output goes through this gate;
// a rejection here is handled exactly like a backend execution failure.
func ValidateOutput(raw string) (*Result, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, rejected("empty output")
	}
	if !gjson.Valid(body) {
		return nil, rejected("output is not well-formed JSON")
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return nil, rejected("output is not a JSON object")
	}

	verdictField := root.Get("verdict")
	if !verdictField.Exists() {
		return nil, rejected("missing verdict field")
	}
	if verdictField.Type != gjson.String {
		return nil, rejected("verdict is not a string")
	}
	verdict := Verdict(verdictField.String())
	if !verdict.Known() {
		return nil, rejected("unknown verdict %q", verdictField.String())
	}

	analysisField := root.Get("analysis")
	if !analysisField.Exists() || analysisField.Type != gjson.String {
		return nil, rejected("missing analysis body")
	}
	analysis := analysisField.String()
	if len(analysis) < MinAnalysisLength {
		return nil, rejected("analysis body too short (%d bytes, minimum %d)", len(analysis), MinAnalysisLength)
	}

	findings, err := parseFindings(root.Get("findings"))
	if err != nil {
		return nil, err
	}

	return &Result{
		Verdict:  verdict,
		Analysis: analysis,
		Findings: findings,
		Signal:   parseSignal(root.Get("complexity")),
		Raw:      raw,
	}, nil
}

func parseFindings(field gjson.Result) ([]Finding, error) {
	if !field.Exists() {
		return nil, nil
	}
	if !field.IsArray() {
		return nil, rejected("findings must be a list, got %s", field.Type)
	}

	var findings []Finding
	var elemErr error
	field.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			elemErr = rejected("findings entries must be objects, got %s", value.Type)
			return false
		}
		findings = append(findings, Finding{
			Severity: value.Get("severity").String(),
			Path:     value.Get("path").String(),
			Line:     int(value.Get("line").Int()),
			Message:  value.Get("message").String(),
		})
		return true
	})
	if elemErr != nil {
		return nil, elemErr
	}
	return findings, nil
}

// parseSignal extracts the optional model-reported complexity signal. The
// signal is advisory: a malformed one is dropped here and handled by the
// reclassifier's missing-signal default, never rejected.
func parseSignal(field gjson.Result) *ComplexitySignal {
	if !field.Exists() || !field.IsObject() {
		return nil
	}
	signal := &ComplexitySignal{
		EstimatedScope: field.Get("estimated_scope").String(),
	}
	areas := field.Get("risk_areas")
	if areas.IsArray() {
		areas.ForEach(func(_, value gjson.Result) bool {
			if value.Type == gjson.String {
				signal.RiskAreas = append(signal.RiskAreas, value.String())
			}
			return true
		})
	}
	if signal.EstimatedScope == "" && len(signal.RiskAreas) == 0 {
		return nil
	}
	return signal
}

// stripFences removes a surrounding markdown code fence, which some models
// insist on wrapping JSON in.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
