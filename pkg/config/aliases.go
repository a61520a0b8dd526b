package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxAliasDepth bounds chained alias resolution.
const maxAliasDepth = 10

// ModelAliases manages model alias resolution. Aliases may chain
// (alias -> alias -> model); cycles are a configuration error.
type ModelAliases struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}
	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	return &aliases, nil
}

// LoadAliasesWithFallback loads aliases from path, returning the defaults
// when the file does not exist.
func LoadAliasesWithFallback(path string) (*ModelAliases, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadAliases(path)
	}
	return DefaultAliases(), nil
}

// Resolve returns the canonical model name for an alias, following chained
// aliases. A name that is not an alias resolves to itself.
func (a *ModelAliases) Resolve(modelOrAlias string) (string, error) {
	if a == nil || a.Aliases == nil {
		return modelOrAlias, nil
	}

	current := modelOrAlias
	visited := make(map[string]bool)

	for i := 0; i < maxAliasDepth; i++ {
		if visited[current] {
			return "", fmt.Errorf("circular alias reference: %s", chainString(visited, current))
		}
		visited[current] = true

		target, ok := a.Aliases[current]
		if !ok {
			return current, nil
		}
		current = target
	}

	return "", fmt.Errorf("alias resolution exceeded max depth (%d): %s", maxAliasDepth, modelOrAlias)
}

// IsAlias returns true if the given string is a known alias.
func (a *ModelAliases) IsAlias(name string) bool {
	if a == nil || a.Aliases == nil {
		return false
	}
	_, ok := a.Aliases[name]
	return ok
}

func chainString(visited map[string]bool, last string) string {
	names := make([]string, 0, len(visited)+1)
	for name := range visited {
		names = append(names, name)
	}
	names = append(names, last)
	return strings.Join(names, " -> ")
}

// DefaultAliases returns the default model aliases configuration.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			"reviewer": "claude-sonnet-4-20250514",
			"deep":     "claude-opus-4-20250514",
			"second":   "gpt-5.2-thinking",
			"fast":     "gpt-5.2-instant",
			"research": "gemini-2.0-pro",
		},
	}
}
