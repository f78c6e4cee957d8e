// Package config builds the explicit configuration value the runner and
// orchestrator receive. Sources, in increasing precedence: built-in
// defaults, an optional YAML file, environment variables (optionally
// loaded from a .env file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SSLLabsConfig configures the TLS scan orchestrator and its API client.
type SSLLabsConfig struct {
	// APIBaseURL is the assessment API base endpoint.
	APIBaseURL string `yaml:"api_base_url"`

	// Parallelism caps concurrently open scan jobs.
	Parallelism int `yaml:"parallelism"`

	// ForceNew submits fresh scans instead of cached assessments.
	ForceNew bool `yaml:"force_new"`

	// Skip disables TLS scanning entirely.
	Skip bool `yaml:"skip"`

	// CachePath is the local sqlite grade cache; empty disables it.
	CachePath string `yaml:"cache_path"`

	// CacheTTL bounds the age of cached grades.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// MaxPollAttempts bounds polling per job; 0 polls until terminal.
	MaxPollAttempts int `yaml:"max_poll_attempts"`
}

// Config is the full configuration for a validation run.
type Config struct {
	// AuthnRequestPath is the captured authentication request file.
	AuthnRequestPath string `yaml:"authn_request"`

	// MetadataPath is the SP metadata file.
	MetadataPath string `yaml:"metadata"`

	// DataDir receives reports and extracted certificates.
	DataDir string `yaml:"data_dir"`

	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`

	// MetricsEnabled selects the Prometheus metrics recorder instead of
	// the noop one.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// VerifierCommand is the external signature/schema verifier; empty
	// selects the in-process verifier.
	VerifierCommand string   `yaml:"verifier_command"`
	VerifierArgs    []string `yaml:"verifier_args"`

	SSLLabs SSLLabsConfig `yaml:"ssllabs"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		DataDir: "./data",
		SSLLabs: SSLLabsConfig{
			Parallelism: 10,
			CacheTTL:    24 * time.Hour,
		},
	}
}

// LoadDotenv loads a .env file into the process environment if it
// exists. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadFile merges a YAML config file over cfg. A missing path leaves cfg
// unchanged.
func LoadFile(path string, cfg Config) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// FromEnv overlays the environment variable surface over cfg:
// AUTHN_REQUEST, SP_METADATA, DATA_DIR, DEBUG, METRICS_ENABLED,
// SSLLABS_FORCE_NEW, SSLLABS_SKIP, SSLLABS_API, SSLLABS_PARALLELISM,
// SSLLABS_CACHE.
func FromEnv(cfg Config) Config {
	if v := os.Getenv("AUTHN_REQUEST"); v != "" {
		cfg.AuthnRequestPath = v
	}
	if v := os.Getenv("SP_METADATA"); v != "" {
		cfg.MetadataPath = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DEBUG"); v != "" {
		cfg.Debug = truthy(v)
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = truthy(v)
	}
	if v := os.Getenv("SSLLABS_FORCE_NEW"); v != "" {
		cfg.SSLLabs.ForceNew = truthy(v)
	}
	if v := os.Getenv("SSLLABS_SKIP"); v != "" {
		cfg.SSLLabs.Skip = truthy(v)
	}
	if v := os.Getenv("SSLLABS_API"); v != "" {
		cfg.SSLLabs.APIBaseURL = v
	}
	if v := os.Getenv("SSLLABS_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SSLLabs.Parallelism = n
		}
	}
	if v := os.Getenv("SSLLABS_CACHE"); v != "" {
		cfg.SSLLabs.CachePath = v
	}
	return cfg
}

// truthy interprets the original suite's integer-style flags: "1" and
// "true" (any case) enable, everything else disables.
func truthy(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	n, err := strconv.Atoi(v)
	return err == nil && n != 0
}
