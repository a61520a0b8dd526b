// Package registry maps condition and backend identifiers to their
// implementations. Routes refer to entries here by name only; resolution
// has an explicit not-found case so unknown identifiers surface at
// validation time instead of at dispatch.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/zen-systems/reviewroute/pkg/review"
)

// Condition is a named predicate evaluated against a review request.
type Condition interface {
	Name() string
	Evaluate(req review.Request) bool
}

// Backend executes one review attempt and returns the raw model output.
// The output is untrusted until it passes the review contract.
type Backend interface {
	Name() string
	Capabilities() []string
	Invoke(ctx context.Context, req review.Request, budget review.PassBudget) (string, error)
}

// Registry holds the known conditions and backends for one process.
type Registry struct {
	conditions map[string]Condition
	backends   map[string]Backend
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conditions: make(map[string]Condition),
		backends:   make(map[string]Backend),
	}
}

// NewWithBuiltins creates a registry pre-populated with the built-in
// conditions. Backends are registered by the caller since their
// availability depends on configured credentials.
func NewWithBuiltins() *Registry {
	r := New()
	for _, c := range builtinConditions() {
		r.RegisterCondition(c)
	}
	return r
}

// RegisterCondition adds or replaces a condition under its name.
func (r *Registry) RegisterCondition(c Condition) {
	r.conditions[c.Name()] = c
}

// RegisterBackend adds or replaces a backend under its name.
func (r *Registry) RegisterBackend(b Backend) {
	r.backends[b.Name()] = b
}

// Condition resolves a condition by name.
func (r *Registry) Condition(name string) (Condition, error) {
	c, ok := r.conditions[name]
	if !ok {
		return nil, fmt.Errorf("condition not found: %s", name)
	}
	return c, nil
}

// Backend resolves a backend by name.
func (r *Registry) Backend(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend not found: %s", name)
	}
	return b, nil
}

// HasCondition reports whether a condition name is registered.
func (r *Registry) HasCondition(name string) bool {
	_, ok := r.conditions[name]
	return ok
}

// HasBackend reports whether a backend name is registered.
func (r *Registry) HasBackend(name string) bool {
	_, ok := r.backends[name]
	return ok
}

// BackendSupports reports whether the named backend declares a capability.
func (r *Registry) BackendSupports(name, capability string) bool {
	b, ok := r.backends[name]
	if !ok {
		return false
	}
	for _, c := range b.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}

// ConditionNames returns the registered condition names, sorted.
func (r *Registry) ConditionNames() []string {
	names := make([]string, 0, len(r.conditions))
	for name := range r.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackendNames returns the registered backend names, sorted.
func (r *Registry) BackendNames() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
