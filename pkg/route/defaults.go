package route

// Backend identifiers used by the shipped tables.
const (
	PrimaryBackend   = "anthropic"
	SecondaryBackend = "openai"
	FallbackBackend  = "static"
)

// DefaultTable returns the built-in cascade: the richest backend first,
// then a mid-tier backend, then a minimal backend that is always
// available. Defaults must never brick the system, so unknown identifiers
// here are warn-and-skip rather than fatal.
func DefaultTable() *Table {
	routes := []Route{
		NewRoute(PrimaryBackend, nil, "long_context", FailModeFallthrough, 300, 1),
		NewRoute(SecondaryBackend, nil, "", FailModeFallthrough, 300, 1),
		NewRoute(FallbackBackend, nil, "", FailModeFallthrough, 30, 0),
	}
	return NewTable(routes, MaxSchemaVersion, "default")
}

// LegacyTable returns the pre-router selection strategy: the primary
// backend only, no cascade. Selected by the kill switch for emergency
// rollback.
func LegacyTable() *Table {
	routes := []Route{
		NewRoute(PrimaryBackend, nil, "", FailModeHardFail, 300, 2),
	}
	return NewTable(routes, MaxSchemaVersion, "legacy")
}
