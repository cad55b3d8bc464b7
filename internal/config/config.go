// Package config defines tracker configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load() to layer file/env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"path/filepath"
	"time"
)

// Default tuning constants.
const (
	defaultSnapshotMinInterval = 2500 * time.Millisecond
	defaultClientLogScanBytes  = 1_500_000
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Character is the account character whose inventory is polled.
	Character string `koanf:"character"`

	// League selects the market-feed economy, e.g. "Standard".
	League string `koanf:"league"`

	// APIBaseURL is the inventory API root.
	APIBaseURL string `koanf:"api_base_url"`

	// AuthURL is the OAuth token endpoint.
	AuthURL string `koanf:"auth_url"`

	// ClientID and ClientSecret authenticate against the inventory API.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// PriceFeedURL is the market-price feed root.
	PriceFeedURL string `koanf:"price_feed_url"`

	// SnapshotMinIntervalMS throttles inventory captures.
	SnapshotMinIntervalMS int `koanf:"snapshot_min_interval_ms"`

	// MinDisplayValue hides rows below this value in displays; the
	// valuation itself always keeps zero-value rows.
	MinDisplayValue float64 `koanf:"min_display_value"`

	// ClientLogPath points at the game client log for map metadata.
	ClientLogPath string `koanf:"client_log_path"`

	// ClientLogScanBytes bounds how much of the log tail is scanned.
	ClientLogScanBytes int `koanf:"client_log_scan_bytes"`

	// AutoDetect enables begin-unit auto-detection from the client log.
	AutoDetect bool `koanf:"auto_detect"`

	// DataDir holds the run and session logs.
	DataDir string `koanf:"data_dir"`

	// OverlayAddr is the local overlay server listen address.
	OverlayAddr string `koanf:"overlay_addr"`

	// OverlayEnabled controls whether the overlay server starts at all.
	OverlayEnabled bool `koanf:"overlay_enabled"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		League:                "Standard",
		APIBaseURL:            "https://api.pathofexile.com",
		AuthURL:               "https://www.pathofexile.com/oauth/token",
		PriceFeedURL:          "https://poe.ninja/api/data",
		SnapshotMinIntervalMS: int(defaultSnapshotMinInterval / time.Millisecond),
		MinDisplayValue:       0.01,
		ClientLogScanBytes:    defaultClientLogScanBytes,
		AutoDetect:            false,
		DataDir:               "data",
		OverlayAddr:           "127.0.0.1:9184",
		OverlayEnabled:        true,
	}
}

// SnapshotMinInterval returns the snapshot throttle as a Duration.
func (c *Config) SnapshotMinInterval() time.Duration {
	return time.Duration(c.SnapshotMinIntervalMS) * time.Millisecond
}

// RunLogPath returns the per-run JSONL file location.
func (c *Config) RunLogPath() string {
	return filepath.Join(c.DataDir, "runs.jsonl")
}

// SessionLogPath returns the session lifecycle JSONL file location.
func (c *Config) SessionLogPath() string {
	return filepath.Join(c.DataDir, "sessions.jsonl")
}
