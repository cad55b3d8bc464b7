package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if LOOTLEDGER_CONFIG is set
//  3. env (prefix LOOTLEDGER_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("LOOTLEDGER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: LOOTLEDGER_CHARACTER, LOOTLEDGER_DATA_DIR, ...
	// Keys keep their underscores to match the koanf struct tags.
	envProvider := env.Provider("LOOTLEDGER_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "lootledger_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case strings.TrimSpace(c.Character) == "":
		return fmt.Errorf("%w: character must not be empty", ErrInvalidConfig)
	case c.SnapshotMinIntervalMS < 0:
		return fmt.Errorf("%w: snapshot_min_interval_ms must not be negative", ErrInvalidConfig)
	case c.ClientLogScanBytes <= 0:
		return fmt.Errorf("%w: client_log_scan_bytes must be positive", ErrInvalidConfig)
	case c.OverlayEnabled && strings.TrimSpace(c.OverlayAddr) == "":
		return fmt.Errorf("%w: overlay_addr must not be empty", ErrInvalidConfig)
	}
	return nil
}
