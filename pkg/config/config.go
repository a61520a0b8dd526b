package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the per-request application configuration. It is built once
// per invocation and passed explicitly; nothing here is global state.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	ConfigDir       string

	// CI reports whether we are running inside a continuous-integration
	// context. Custom routes are fail-closed in CI unless explicitly
	// allowed.
	CI                bool
	AllowCustomRoutes bool
	RouterDisabled    bool
	ExecutionMode     string
	Models            *ModelAliases
}

// FileConfig represents the structure of ~/.reviewroute/config.yaml.
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
	Mode    string        `yaml:"mode,omitempty"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// Environment flags. REVIEWROUTE_DISABLE is the emergency kill switch: it
// bypasses declarative routing entirely in favor of the legacy single
// backend selection. REVIEWROUTE_ALLOW_CUSTOM_ROUTES is the explicit opt-in
// required before custom routes are honored in CI.
const (
	EnvDisable           = "REVIEWROUTE_DISABLE"
	EnvAllowCustomRoutes = "REVIEWROUTE_ALLOW_CUSTOM_ROUTES"
	EnvExecutionMode     = "REVIEWROUTE_MODE"
)

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey:   getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:      getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:      getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		ConfigDir:         configDir,
		CI:                envBool("CI"),
		AllowCustomRoutes: envBool(EnvAllowCustomRoutes),
		RouterDisabled:    envBool(EnvDisable),
		ExecutionMode:     getEnvOrDefault(EnvExecutionMode, fileConfig.Mode),
	}
	if cfg.ExecutionMode == "" {
		cfg.ExecutionMode = "auto"
	}

	cfg.Models, err = LoadAliasesWithFallback(filepath.Join(configDir, "models.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load model aliases: %w", err)
	}

	return cfg, nil
}

// HasBackendKey returns true if the API key for the given backend is
// configured.
func (c *Config) HasBackendKey(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func envBool(envVar string) bool {
	switch os.Getenv(envVar) {
	case "", "0", "false", "no":
		return false
	}
	return true
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".reviewroute")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
