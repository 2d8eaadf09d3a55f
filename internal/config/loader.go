package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load reads configuration with the following precedence (highest first):
//
//  1. Environment variables (CONDUCTORD_SERVER_PORT, CONDUCTORD_AGENTS_FILE, ...)
//  2. YAML config file (configPath; skipped when empty or absent)
//  3. Defaults
//
// Environment variables are prefixed with CONDUCTORD_ and use underscore
// separators: CONDUCTORD_SERVER_PORT -> server.port,
// CONDUCTORD_NOTIFY_NATS_URL -> notify.nats_url.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
		} else {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("CONDUCTORD_", ".", func(s string) string {
		// CONDUCTORD_SERVER_PORT -> server.port
		// CONDUCTORD_AGENTS_WATCH_DEBOUNCE -> agents.watch_debounce
		// Split on the first underscore only: the section never contains
		// one, field names may.
		trimmed := strings.ToLower(strings.TrimPrefix(s, "CONDUCTORD_"))
		section, field, found := strings.Cut(trimmed, "_")
		if !found {
			return trimmed
		}
		return section + "." + field
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9270
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Agents.File == "" {
		cfg.Agents.File = "agents.txt"
	}
	if cfg.Agents.WatchDebounce == 0 {
		cfg.Agents.WatchDebounce = 200 * time.Millisecond
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Notify.SubjectPrefix == "" {
		cfg.Notify.SubjectPrefix = "conductord.context"
	}
}
