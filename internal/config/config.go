package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	Agent   AgentConfig
	Store   StoreConfig
	Catalog CatalogConfig

	// KickoffDelay is the settle time before the kickoff dispatch.
	// Default: 500ms.
	KickoffDelay time.Duration

	// PollWarmUp, PollInterval, PollMaxAttempts tune the recovery loop.
	PollWarmUp      time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int

	// DBPath is the local journal location. Empty means the default
	// XDG path.
	DBPath string

	// Debug enables debug-level logging.
	Debug bool
}

// AgentConfig holds run service settings.
type AgentConfig struct {
	BaseURL    string
	APIKey     string
	MinVersion string // minimum supported service version, e.g. "v1.0.0"
	Timeout    time.Duration
}

// StoreConfig holds persistence store settings.
type StoreConfig struct {
	Endpoint     string
	ProjectID    string
	APIKey       string
	DatabaseID   string
	CollectionID string
}

// CatalogConfig holds content catalog settings.
type CatalogConfig struct {
	BaseURL string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Timeout: 30 * time.Second,
		},
		KickoffDelay:    500 * time.Millisecond,
		PollWarmUp:      2 * time.Second,
		PollInterval:    3 * time.Second,
		PollMaxAttempts: 12,
	}
}

// LoadEnvFile loads variables from a .env file if it exists. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// FromEnv builds a Config from TUTORLOOP_* environment variables,
// falling back to defaults for unset values.
func FromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("TUTORLOOP_AGENT_URL"); v != "" {
		cfg.Agent.BaseURL = v
	}
	if v := os.Getenv("TUTORLOOP_AGENT_API_KEY"); v != "" {
		cfg.Agent.APIKey = v
	}
	if v := os.Getenv("TUTORLOOP_AGENT_MIN_VERSION"); v != "" {
		cfg.Agent.MinVersion = v
	}
	if d := durationEnv("TUTORLOOP_AGENT_TIMEOUT"); d > 0 {
		cfg.Agent.Timeout = d
	}

	if v := os.Getenv("TUTORLOOP_STORE_ENDPOINT"); v != "" {
		cfg.Store.Endpoint = v
	}
	if v := os.Getenv("TUTORLOOP_STORE_PROJECT"); v != "" {
		cfg.Store.ProjectID = v
	}
	if v := os.Getenv("TUTORLOOP_STORE_API_KEY"); v != "" {
		cfg.Store.APIKey = v
	}
	if v := os.Getenv("TUTORLOOP_STORE_DATABASE"); v != "" {
		cfg.Store.DatabaseID = v
	}
	if v := os.Getenv("TUTORLOOP_STORE_COLLECTION"); v != "" {
		cfg.Store.CollectionID = v
	}

	if v := os.Getenv("TUTORLOOP_CATALOG_URL"); v != "" {
		cfg.Catalog.BaseURL = v
	}

	if d := durationEnv("TUTORLOOP_KICKOFF_DELAY"); d > 0 {
		cfg.KickoffDelay = d
	}
	if d := durationEnv("TUTORLOOP_POLL_WARMUP"); d > 0 {
		cfg.PollWarmUp = d
	}
	if d := durationEnv("TUTORLOOP_POLL_INTERVAL"); d > 0 {
		cfg.PollInterval = d
	}
	if n := intEnv("TUTORLOOP_POLL_MAX_ATTEMPTS"); n > 0 {
		cfg.PollMaxAttempts = n
	}

	if v := os.Getenv("TUTORLOOP_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TUTORLOOP_DEBUG"); v == "1" || v == "true" {
		cfg.Debug = true
	}

	return cfg
}

// Validate checks that the required collaborator endpoints are set.
func (c Config) Validate() error {
	if c.Agent.BaseURL == "" {
		return fmt.Errorf("TUTORLOOP_AGENT_URL is required")
	}
	if c.Store.Endpoint != "" {
		if c.Store.DatabaseID == "" || c.Store.CollectionID == "" {
			return fmt.Errorf("TUTORLOOP_STORE_DATABASE and TUTORLOOP_STORE_COLLECTION are required when the store endpoint is set")
		}
	}
	return nil
}

func durationEnv(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func intEnv(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
