// Package config loads the qa-reviewd configuration from a YAML file
// with environment-variable expansion and env overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pablodma/homeAssistant-asistant/internal/github"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration for the QA review service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	GitHub    GitHubConfig    `yaml:"github"`
	Review    ReviewConfig    `yaml:"review"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	HTTPPort       int           `yaml:"http_port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	EnableAuth     bool          `yaml:"enable_auth"`
	APIKeys        []string      `yaml:"api_keys,omitempty"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AnthropicConfig configures the text-generation capability.
type AnthropicConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// GitHubConfig configures the versioned prompt store.
type GitHubConfig struct {
	Repo       string `yaml:"repo"`   // owner/name
	Branch     string `yaml:"branch"` // target branch for prompt commits
	Token      string `yaml:"token"`
	PromptsDir string `yaml:"prompts_dir"` // path inside the repo
	LocalDir   string `yaml:"local_dir"`   // read-only fallback for the analysis template
}

// ReviewConfig holds the gating knobs of the review pipeline.
type ReviewConfig struct {
	MaxImprovements int           `yaml:"max_improvements"` // per-cycle cap on applied prompt edits
	CooldownHours   int           `yaml:"cooldown_hours"`   // min hours between revisions per (tenant, agent)
	MinIssues       int           `yaml:"min_issues"`       // min issue count before an agent is patched
	CycleTimeout    time.Duration `yaml:"cycle_timeout"`
	KnownAgents     []string      `yaml:"known_agents"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    8080,
			ReadTimeout: 30 * time.Second,
			// The synchronous trigger holds the response open for a
			// whole cycle, so the write timeout must exceed the cycle
			// timeout.
			WriteTimeout:   35 * time.Minute,
			IdleTimeout:    120 * time.Second,
			EnableAuth:     true,
			AllowedOrigins: []string{"*"},
		},
		Anthropic: AnthropicConfig{
			Model: "claude-opus-4-20250514",
		},
		GitHub: GitHubConfig{
			Repo:       "pablodma/homeAssistant-asistant",
			Branch:     "main",
			PromptsDir: "docs/prompts",
			LocalDir:   "./docs/prompts",
		},
		Review: ReviewConfig{
			MaxImprovements: 3,
			CooldownHours:   24,
			MinIssues:       2,
			CycleTimeout:    30 * time.Minute,
			// The agent set follows the prompt documents the store knows
			// about, so a new agent only has to be registered once.
			KnownAgents: github.KnownAgents(),
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "otel-collector:4317",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the
// defaults. Environment variables (e.g. ${ANTHROPIC_API_KEY}) are
// expanded before parsing.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override the secrets
// and connection strings without touching the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Anthropic.APIKey = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
}

// Validate checks the parts of the configuration that have no workable
// default.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (or set DATABASE_URL)")
	}
	if c.GitHub.Repo == "" {
		return fmt.Errorf("github.repo is required")
	}
	if c.Review.MaxImprovements < 1 {
		return fmt.Errorf("review.max_improvements must be >= 1")
	}
	if c.Review.MinIssues < 1 {
		return fmt.Errorf("review.min_issues must be >= 1")
	}
	return nil
}

// Cooldown returns the cooldown window as a duration.
func (c *ReviewConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour
}
