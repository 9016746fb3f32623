package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds diagnostics settings read from the environment.
type Env struct {
	Debug   bool   `env:"FLASHREAD_DEBUG"`
	LogFile string `env:"FLASHREAD_LOG_FILE"`
	DBPath  string `env:"FLASHREAD_DB"`
}

// LoadEnv parses Env from the process environment.
func LoadEnv() (Env, error) {
	cfg, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// LogPath returns the configured log file or the default one.
func (e Env) LogPath() string {
	if e.LogFile != "" {
		return e.LogFile
	}
	return DefaultLogPath()
}

// DatabasePath returns the configured database or the default one.
func (e Env) DatabasePath() string {
	if e.DBPath != "" {
		return e.DBPath
	}
	return DefaultDBPath()
}
