package route

import (
	"fmt"
	"log"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/reviewroute/pkg/config"
	"github.com/zen-systems/reviewroute/pkg/registry"
)

// Execution mode override values.
const (
	ModeAuto      = "auto"
	ModePrimary   = "primary"
	ModeSecondary = "secondary"
)

// Loader builds a validated route table per request. Loading always starts
// from scratch: a prior table is never reused or extended.
type Loader struct {
	registry *registry.Registry
	decode   config.DecodeFunc
	logger   func(format string, args ...any)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDecoder replaces the route file decoder. Passing nil models the
// parsing toolchain being unavailable.
func WithDecoder(decode config.DecodeFunc) LoaderOption {
	return func(l *Loader) {
		l.decode = decode
	}
}

// WithLogger sets the loader's log sink.
func WithLogger(logger func(format string, args ...any)) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader bound to a registry.
func NewLoader(reg *registry.Registry, opts ...LoaderOption) *Loader {
	l := &Loader{
		registry: reg,
		decode:   func(data []byte, out any) error { return yaml.Unmarshal(data, out) },
		logger:   log.Printf,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadOptions describe one request's routing inputs.
type LoadOptions struct {
	// CustomPath names a route declaration file. Empty selects the
	// built-in default cascade.
	CustomPath string
	// Custom supplies already-parsed declarations directly, taking
	// precedence over CustomPath.
	Custom *config.RouteFile
	// Mode is the execution mode override: auto, primary, or secondary.
	// Ignored (and logged as ignored) when custom routes are supplied.
	Mode string
	// CI marks a continuous-integration context. Custom routes are
	// refused in CI unless AllowCustomInCI is set.
	CI              bool
	AllowCustomInCI bool
	// Disabled is the kill switch: bypass declarative routing entirely
	// and select the legacy strategy.
	Disabled bool
}

// Load builds and validates a fresh table. Custom declarations fail
// closed on any configuration problem; the default cascade fails open
// only where no custom routes were requested.
func (l *Loader) Load(opts LoadOptions) (*Table, error) {
	if opts.Disabled {
		table := LegacyTable()
		l.logger("[route] kill switch active; using legacy selection (hash=%s)", table.Hash())
		return table, nil
	}

	custom := opts.Custom
	customRequested := custom != nil || opts.CustomPath != ""

	if customRequested && opts.CI && !opts.AllowCustomInCI {
		return nil, fmt.Errorf("custom routes are disabled in CI; set %s=1 to allow them", config.EnvAllowCustomRoutes)
	}

	if custom == nil && opts.CustomPath != "" {
		loaded, err := config.LoadRouteFile(opts.CustomPath, l.decode)
		if err != nil {
			// Custom routes were explicitly requested: every failure
			// here is fail-closed, including missing tooling.
			return nil, err
		}
		custom = loaded
	}

	if custom == nil {
		if l.decode == nil {
			l.logger("[route] route file decoder unavailable; falling back to default cascade")
		}
		table := l.defaultTableFor(opts.Mode)
		if err := Validate(table, l.registry); err != nil {
			return nil, err
		}
		l.logger("[route] loaded %s table: %d routes (hash=%s)", table.Source(), table.Len(), table.Hash())
		return table, nil
	}

	if len(custom.Routes) == 0 && custom.Mode != "" {
		// A mode-only route file selects among the shipped defaults. An
		// explicit external override still wins, matching env-over-file
		// precedence everywhere else.
		mode := custom.Mode
		if opts.Mode != "" && opts.Mode != ModeAuto {
			mode = opts.Mode
		}
		table := l.defaultTableFor(mode)
		if err := Validate(table, l.registry); err != nil {
			return nil, err
		}
		l.logger("[route] route file declares mode %q only; loaded %s table: %d routes (hash=%s)",
			custom.Mode, table.Source(), table.Len(), table.Hash())
		return table, nil
	}

	if opts.Mode != "" && opts.Mode != ModeAuto {
		l.logger("[route] execution mode override %q ignored: explicit custom routes take precedence", opts.Mode)
	}
	if custom.Mode != "" {
		l.logger("[route] route file mode %q ignored: explicit routes take precedence", custom.Mode)
	}

	table, err := l.buildCustom(custom)
	if err != nil {
		return nil, err
	}
	if err := Validate(table, l.registry); err != nil {
		return nil, err
	}
	l.logger("[route] loaded custom table: %d routes, schema v%d (hash=%s)", table.Len(), table.SchemaVersion(), table.Hash())
	return table, nil
}

func (l *Loader) defaultTableFor(mode string) *Table {
	table := DefaultTable()
	switch mode {
	case "", ModeAuto:
		return table
	case ModePrimary:
		return NewTable(selectBackend(table, PrimaryBackend), table.SchemaVersion(), table.Source())
	case ModeSecondary:
		return NewTable(selectBackend(table, SecondaryBackend), table.SchemaVersion(), table.Source())
	default:
		l.logger("[route] unknown execution mode %q; using auto", mode)
		return table
	}
}

func selectBackend(table *Table, backend string) []Route {
	var routes []Route
	for _, r := range table.Routes() {
		if r.Backend() == backend {
			routes = append(routes, r)
		}
	}
	return routes
}

// buildCustom parses declarations into routes. Numeric fields are clamped
// to their documented bounds; enum and identifier violations are
// collected so a bad file reports every problem at once.
func (l *Loader) buildCustom(rf *config.RouteFile) (*Table, error) {
	if rf.SchemaVersion > MaxSchemaVersion {
		return nil, &SchemaVersionError{Declared: rf.SchemaVersion, Supported: MaxSchemaVersion}
	}

	var reasons []string
	routes := make([]Route, 0, len(rf.Routes))
	for i, decl := range rf.Routes {
		if strings.TrimSpace(decl.Backend) == "" {
			reasons = append(reasons, fmt.Sprintf("route %d: missing backend", i))
			continue
		}
		failMode, err := ParseFailMode(decl.FailMode)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("route %d: %v", i, err))
			continue
		}
		conditions, err := splitConditions(decl.When)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("route %d: %v", i, err))
			continue
		}
		routes = append(routes, NewRoute(
			strings.TrimSpace(decl.Backend),
			conditions,
			strings.TrimSpace(decl.Capability),
			failMode,
			decl.Timeout,
			decl.Retries,
		))
	}

	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}
	return NewTable(routes, rf.SchemaVersion, "custom"), nil
}

// splitConditions parses the comma-separated when clause. Names are
// trimmed; an empty token between commas is a configuration error, never
// silently skipped.
func splitConditions(when string) ([]string, error) {
	when = strings.TrimSpace(when)
	if when == "" {
		return nil, nil
	}
	parts := strings.Split(when, ",")
	conditions := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, fmt.Errorf("empty condition token in %q", when)
		}
		conditions = append(conditions, name)
	}
	return conditions, nil
}
