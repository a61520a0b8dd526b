// Package route defines the declarative route table: an ordered, immutable
// sequence of backend-selection rules built once per request, validated,
// and then treated as read-only.
package route

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// FailMode decides whether a failed route is recoverable.
type FailMode string

const (
	// FailModeFallthrough continues to the next route on failure.
	FailModeFallthrough FailMode = "fallthrough"
	// FailModeHardFail aborts the entire request on failure.
	FailModeHardFail FailMode = "hard_fail"
)

// ParseFailMode parses a declared fail mode. An empty declaration defaults
// to fallthrough; both the snake_case and camelCase spellings are accepted;
// anything else outside the enum is rejected.
func ParseFailMode(s string) (FailMode, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "":
		return FailModeFallthrough, nil
	case string(FailModeFallthrough):
		return FailModeFallthrough, nil
	case string(FailModeHardFail), "hardfail":
		return FailModeHardFail, nil
	}
	return "", fmt.Errorf("unknown fail mode %q", s)
}

// Bounds for declared numeric fields and table size.
const (
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 600
	MinRetries        = 0
	MaxRetries        = 5
	MaxRoutes         = 10

	// MaxSchemaVersion is the highest route file schema this build
	// understands. v1 tables predate the capability field and parse
	// identically.
	MaxSchemaVersion = 2
)

// Route is one candidate backend-selection rule. Routes are immutable;
// NewRoute is the only constructor path and clamps numeric fields to their
// documented bounds.
type Route struct {
	backend            string
	conditions         []string
	requiredCapability string
	failMode           FailMode
	timeout            time.Duration
	retries            int
}

// NewRoute builds a Route, clamping timeoutSeconds to [1,600] and retries
// to [0,5].
func NewRoute(backend string, conditions []string, capability string, failMode FailMode, timeoutSeconds, retries int) Route {
	return Route{
		backend:            backend,
		conditions:         append([]string(nil), conditions...),
		requiredCapability: capability,
		failMode:           failMode,
		timeout:            time.Duration(clamp(timeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)) * time.Second,
		retries:            clamp(retries, MinRetries, MaxRetries),
	}
}

// Backend returns the backend identifier.
func (r Route) Backend() string { return r.backend }

// Conditions returns a copy of the AND-combined condition identifiers.
// Empty means the route always matches.
func (r Route) Conditions() []string { return append([]string(nil), r.conditions...) }

// RequiredCapability returns the capability the backend must declare, or
// empty if none is required.
func (r Route) RequiredCapability() string { return r.requiredCapability }

// FailMode returns the route's failure policy.
func (r Route) FailMode() FailMode { return r.failMode }

// Timeout returns the effective per-attempt deadline.
func (r Route) Timeout() time.Duration { return r.timeout }

// Retries returns the effective retry count.
func (r Route) Retries() int { return r.retries }

// Table is an ordered, immutable route table plus its provenance.
type Table struct {
	routes        []Route
	schemaVersion int
	source        string // "default", "custom", or "legacy"
}

// NewTable builds a table from routes. Construction is idempotent: callers
// rebuild a fresh table per request rather than mutating a prior one.
func NewTable(routes []Route, schemaVersion int, source string) *Table {
	return &Table{
		routes:        append([]Route(nil), routes...),
		schemaVersion: schemaVersion,
		source:        source,
	}
}

// Routes returns a copy of the ordered routes.
func (t *Table) Routes() []Route { return append([]Route(nil), t.routes...) }

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.routes) }

// SchemaVersion returns the declared schema version.
func (t *Table) SchemaVersion() int { return t.schemaVersion }

// Source reports where the table came from: "default", "custom", or
// "legacy".
func (t *Table) Source() string { return t.source }

// IsCustom reports whether the table was built from user declarations.
// Unknown identifiers are fail-closed for custom tables and warn-and-skip
// for the shipped defaults.
func (t *Table) IsCustom() bool { return t.source == "custom" }

// Hash returns a short content hash of the table for audit logging.
func (t *Table) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "v%d/%s\n", t.schemaVersion, t.source)
	for _, r := range t.routes {
		fmt.Fprintf(h, "%s|%s|%s|%s|%d|%d\n",
			r.backend,
			strings.Join(r.conditions, ","),
			r.requiredCapability,
			r.failMode,
			int(r.timeout/time.Second),
			r.retries,
		)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
