// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig
	Terminal TerminalConfig
	Journal  JournalConfig
	Cast     CastConfig
	Logging  LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"8090"`
}

// TerminalConfig holds the terminal session configuration.
type TerminalConfig struct {
	// Command is the shell invocation spawned on the PTY.
	Command string `envconfig:"TERMINAL_COMMAND" default:"/bin/bash"`

	Rows uint16 `envconfig:"TERMINAL_ROWS" default:"24"`
	Cols uint16 `envconfig:"TERMINAL_COLS" default:"80"`

	// Scrollback is the ring buffer capacity in bytes.
	Scrollback int `envconfig:"TERMINAL_SCROLLBACK" default:"4096"`
}

// JournalConfig holds the lifecycle journal configuration.
// An empty path disables the journal.
type JournalConfig struct {
	Path string `envconfig:"JOURNAL_PATH" default:"data/terminal.db"`
}

// CastConfig holds the session recording configuration.
// An empty directory disables recording.
type CastConfig struct {
	Dir string `envconfig:"CAST_DIR" default:"data/casts"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Addr returns the listen address of the HTTP server.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}
