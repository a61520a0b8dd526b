package config

import (
	"errors"
	"fmt"
	"os"
)

// ErrToolingUnavailable signals that the decoder needed to read custom
// route declarations is missing. Callers fail closed when custom routes
// were requested and fall open to defaults otherwise; that direction must
// never invert.
var ErrToolingUnavailable = errors.New("route configuration tooling unavailable")

// RouteFile is the external route declaration surface, as parsed from
// ~/.reviewroute/routes.yaml or a file passed on the command line.
type RouteFile struct {
	SchemaVersion int         `yaml:"schema_version"`
	Mode          string      `yaml:"mode,omitempty"`
	Routes        []RouteDecl `yaml:"routes"`
}

// RouteDecl is one declared route. Numeric fields are clamped, not
// rejected, during loading; identifier fields are validated against the
// registry.
type RouteDecl struct {
	Backend    string `yaml:"backend"`
	When       string `yaml:"when,omitempty"`
	Capability string `yaml:"capability,omitempty"`
	FailMode   string `yaml:"fail_mode,omitempty"`
	Timeout    int    `yaml:"timeout,omitempty"`
	Retries    int    `yaml:"retries,omitempty"`
}

// DecodeFunc unmarshals raw route configuration bytes. It is a seam so the
// loader can represent "parsing toolchain unavailable" and tests can
// exercise both failure directions.
type DecodeFunc func(data []byte, out any) error

// LoadRouteFile reads route declarations from a YAML file using decode.
// A nil decode reports ErrToolingUnavailable.
func LoadRouteFile(path string, decode DecodeFunc) (*RouteFile, error) {
	if decode == nil {
		return nil, ErrToolingUnavailable
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file %s: %w", path, err)
	}

	var rf RouteFile
	if err := decode(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse route file %s: %w", path, err)
	}
	return &rf, nil
}
