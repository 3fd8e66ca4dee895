package session

import (
	"fmt"
)

// Config holds session storage configuration from YAML.
type Config struct {
	// Store specifies the storage backend type.
	// Options: "file", "redis"
	// Default: "file"
	Store string `yaml:"store"`

	// Slot is the storage slot name. One slot holds one session at a
	// time; starting a new topic overwrites it.
	// Default: "current"
	Slot string `yaml:"slot"`

	// BaseDir is the base directory for file-based storage.
	// Default: ~/.studytree/sessions
	BaseDir string `yaml:"base_dir"`

	// Redis holds the redis store settings, used when Store is "redis".
	Redis RedisConfig `yaml:"redis,omitempty"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Store: "file",
		Slot:  "current",
	}
}

// Open creates the store named by the configuration.
func Open(cfg Config) (Store, error) {
	switch cfg.Store {
	case "", "file":
		return NewFileStore(cfg.BaseDir)
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}
