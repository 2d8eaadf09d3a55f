// Package config provides configuration loading for conductord.
package config

import (
	"fmt"
	"time"
)

// Config is the full conductord configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Agents   AgentsConfig   `koanf:"agents"`
	Logging  LoggingConfig  `koanf:"logging"`
	Notify   NotifyConfig   `koanf:"notify"`
	Workflow WorkflowConfig `koanf:"workflow"`
}

// ServerConfig configures the HTTP command surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AgentsConfig configures the agent-definition source.
type AgentsConfig struct {
	// File is the sectioned agent-definition text file.
	File string `koanf:"file"`

	// Watch enables filesystem-watch-driven registry refreshes.
	Watch bool `koanf:"watch"`

	// WatchDebounce coalesces bursts of file events into one refresh.
	WatchDebounce time.Duration `koanf:"watch_debounce"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NotifyConfig configures the optional NATS context-change notifier.
type NotifyConfig struct {
	// NATSURL enables publishing when non-empty.
	NATSURL string `koanf:"nats_url"`

	// SubjectPrefix prefixes the per-key publish subject.
	SubjectPrefix string `koanf:"subject_prefix"`
}

// WorkflowConfig configures workflow execution.
type WorkflowConfig struct {
	// StepTimeout bounds each agent task. Zero disables the bound.
	StepTimeout time.Duration `koanf:"step_timeout"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Agents.File == "" {
		return fmt.Errorf("agents.file is required")
	}
	if c.Agents.Watch && c.Agents.WatchDebounce <= 0 {
		return fmt.Errorf("agents.watch_debounce must be > 0 when watching")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Notify.NATSURL != "" && c.Notify.SubjectPrefix == "" {
		return fmt.Errorf("notify.subject_prefix is required when notify.nats_url is set")
	}
	if c.Workflow.StepTimeout < 0 {
		return fmt.Errorf("workflow.step_timeout must be >= 0")
	}
	return nil
}
