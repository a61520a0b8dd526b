package main

import (
	"testing"

	"github.com/zen-systems/reviewroute/pkg/config"
	"github.com/zen-systems/reviewroute/pkg/route"
)

func TestInspectionRegistryCoversShippedBackends(t *testing.T) {
	reg, err := buildRegistry(&config.Config{}, true)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}

	for _, name := range []string{"anthropic", "openai", "google", "static", "mock"} {
		if !reg.HasBackend(name) {
			t.Errorf("inspection registry missing backend %q", name)
		}
	}
	if !reg.BackendSupports("anthropic", "long_context") {
		t.Error("anthropic stand-in must declare long_context for the default cascade")
	}
}

func TestValidateAcceptsTableNamingAnyShippedBackend(t *testing.T) {
	reg, err := buildRegistry(&config.Config{}, true)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}

	loader := route.NewLoader(reg, route.WithLogger(func(string, ...any) {}))
	rf := &config.RouteFile{
		SchemaVersion: 2,
		Routes: []config.RouteDecl{
			{Backend: "openai", Timeout: 60},
			{Backend: "google", Timeout: 60},
			{Backend: "static"},
		},
	}
	if _, err := loader.Load(route.LoadOptions{Custom: rf}); err != nil {
		t.Errorf("valid custom table rejected: %v", err)
	}
}
