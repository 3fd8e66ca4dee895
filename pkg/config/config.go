// Package config loads the application configuration from YAML with
// environment-variable fallbacks for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/studytree-dev/studytree/internal/assess"
	"github.com/studytree-dev/studytree/internal/pipeline"
	"github.com/studytree-dev/studytree/pkg/session"
)

// Config represents the application configuration.
type Config struct {
	// Pipeline holds the generation backend settings.
	Pipeline pipeline.Config `yaml:"pipeline"`

	// Assess selects and configures the analyzer/evaluator backend.
	Assess AssessConfig `yaml:"assess"`

	// Session holds the session storage settings.
	Session session.Config `yaml:"session"`

	// Observability holds the metrics/health server settings.
	Observability ObservabilityConfig `yaml:"observability"`
}

// AssessConfig selects the assessment backend.
type AssessConfig struct {
	// Provider is "http" for the plain contract backend or "openai"
	// for model-backed assessment. Default: "http".
	Provider string `yaml:"provider"`

	HTTP   assess.HTTPConfig   `yaml:"http,omitempty"`
	OpenAI assess.OpenAIConfig `yaml:"openai,omitempty"`
}

// ObservabilityConfig holds the metrics/health server settings.
type ObservabilityConfig struct {
	// Enabled turns the metrics/health HTTP server on.
	Enabled bool `yaml:"enabled"`
	// Port for the metrics/health server. Default: 9090.
	Port int `yaml:"port"`
}

// Load reads configuration from a YAML file, applies defaults, and
// pulls secrets from the environment when the file omits them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Session.Store == "" {
		c.Session = session.DefaultConfig()
	}
	if c.Assess.Provider == "" {
		c.Assess.Provider = "http"
	}
	if c.Assess.OpenAI.APIKey == "" {
		c.Assess.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Pipeline.BaseURL == "" {
		c.Pipeline.BaseURL = os.Getenv("STUDYTREE_PIPELINE_URL")
	}
	if c.Assess.HTTP.BaseURL == "" {
		c.Assess.HTTP.BaseURL = os.Getenv("STUDYTREE_ASSESS_URL")
	}
	if c.Observability.Port == 0 {
		c.Observability.Port = 9090
	}
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration can actually drive a session.
func (c *Config) Validate() error {
	if c.Pipeline.BaseURL == "" {
		return fmt.Errorf("pipeline.base_url is required")
	}
	switch c.Assess.Provider {
	case "http":
		if c.Assess.HTTP.BaseURL == "" {
			return fmt.Errorf("assess.http.base_url is required for the http provider")
		}
	case "openai":
		if c.Assess.OpenAI.APIKey == "" {
			return fmt.Errorf("assess.openai.api_key (or OPENAI_API_KEY) is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown assess provider %q", c.Assess.Provider)
	}
	return nil
}
