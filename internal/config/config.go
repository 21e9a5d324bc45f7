// Package config loads client configuration from thoughtnet.json with
// environment-variable overrides for deploy-time settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "thoughtnet.json"

	// DefaultRequestTimeout bounds each backend request.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultRetryAttempts caps realtime reconnect attempts.
	DefaultRetryAttempts = 3

	// DefaultMaxUploadBytes caps media uploads (10 MiB).
	DefaultMaxUploadBytes = 10 << 20
)

// Config is the complete thoughtnet.json schema.
type Config struct {
	// BackendURL is the managed backend's REST endpoint.
	BackendURL string `json:"backendUrl"`

	// RealtimeURL is the change-feed websocket endpoint. Empty disables
	// realtime; scopes fall back to fetch-only mode.
	RealtimeURL string `json:"realtimeUrl,omitempty"`

	// APIKey is the application's anon key.
	APIKey string `json:"apiKey"`

	// RequestTimeoutSeconds overrides the per-request timeout.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds,omitempty"`

	// RetryAttempts overrides the realtime reconnect cap.
	RetryAttempts int `json:"retryAttempts,omitempty"`

	// Media contains object-storage settings.
	Media MediaConfig `json:"media,omitempty"`

	// configPath stores where the config was loaded from.
	configPath string
}

// MediaConfig contains object-storage settings.
type MediaConfig struct {
	// Bucket is the storage bucket for user media.
	Bucket string `json:"bucket,omitempty"`

	// PublicBase is the public URL prefix for uploaded objects.
	PublicBase string `json:"publicBase,omitempty"`

	// MaxUploadBytes caps a single upload.
	MaxUploadBytes int64 `json:"maxUploadBytes,omitempty"`
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		RequestTimeoutSeconds: int(DefaultRequestTimeout / time.Second),
		RetryAttempts:         DefaultRetryAttempts,
		Media: MediaConfig{
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
	}
}

// Load reads configuration from dir/thoughtnet.json.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path, then applies
// environment overrides and defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Environment-only configuration is fine.
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.configPath = path
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("config: backendUrl is required (file %s or THOUGHTNET_BACKEND_URL)", path)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("config: apiKey is required (file %s or THOUGHTNET_API_KEY)", path)
	}
	return cfg, nil
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Path returns where the config was loaded from, empty for env-only.
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyEnv() {
	if v := os.Getenv("THOUGHTNET_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("THOUGHTNET_REALTIME_URL"); v != "" {
		c.RealtimeURL = v
	}
	if v := os.Getenv("THOUGHTNET_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("THOUGHTNET_MEDIA_BUCKET"); v != "" {
		c.Media.Bucket = v
	}
	if v := os.Getenv("THOUGHTNET_MEDIA_PUBLIC_BASE"); v != "" {
		c.Media.PublicBase = v
	}
}

func (c *Config) applyDefaults() {
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = int(DefaultRequestTimeout / time.Second)
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.Media.MaxUploadBytes <= 0 {
		c.Media.MaxUploadBytes = DefaultMaxUploadBytes
	}
}
