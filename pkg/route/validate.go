package route

import (
	"fmt"
	"strings"

	"github.com/zen-systems/reviewroute/pkg/registry"
)

// ValidationError reports every violation found in a table, collected
// rather than failing on the first.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("route table invalid: %s", strings.Join(e.Reasons, "; "))
}

// SchemaVersionError reports a declared schema version newer than this
// build understands. It is never coerced into a supported version.
type SchemaVersionError struct {
	Declared  int
	Supported int
}

func (e *SchemaVersionError) Error() string {
	return fmt.Sprintf("route schema version %d not supported (max %d); upgrade required", e.Declared, e.Supported)
}

// Validate checks a table against the registry. For custom tables every
// backend and condition identifier must resolve; the shipped default table
// tolerates unresolved identifiers, which the engine treats as
// non-matching with a warning. All violations are collected.
func Validate(t *Table, reg *registry.Registry) error {
	var reasons []string

	for i, r := range t.routes {
		if t.IsCustom() && !reg.HasBackend(r.backend) {
			reasons = append(reasons, fmt.Sprintf("route %d: unknown backend %q", i, r.backend))
		}
		for _, cond := range r.conditions {
			trimmed := strings.TrimSpace(cond)
			if trimmed == "" {
				reasons = append(reasons, fmt.Sprintf("route %d: empty condition token", i))
				continue
			}
			if t.IsCustom() && !reg.HasCondition(trimmed) {
				reasons = append(reasons, fmt.Sprintf("route %d: unknown condition %q", i, trimmed))
			}
		}
		switch r.failMode {
		case FailModeFallthrough, FailModeHardFail:
		default:
			reasons = append(reasons, fmt.Sprintf("route %d: unknown fail mode %q", i, r.failMode))
		}
	}

	if len(t.routes) == 0 {
		reasons = append(reasons, "table has no routes")
	}
	if len(t.routes) > MaxRoutes {
		reasons = append(reasons, fmt.Sprintf("table has %d routes, maximum is %d", len(t.routes), MaxRoutes))
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}
