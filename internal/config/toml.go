// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Reader ReaderConfig `toml:"reader"`
	Pacing PacingConfig `toml:"pacing"`
}

// ReaderConfig maps playback-related settings.
type ReaderConfig struct {
	WPM        *int  `toml:"wpm"`
	Smart      *bool `toml:"smart"`
	TickMs     *int  `toml:"tick-ms"`
	AutosaveMs *int  `toml:"autosave-ms"`
	Watch      *bool `toml:"watch"`
}

// PacingConfig maps smart reading tuning.
type PacingConfig struct {
	BaseWordLength  *int     `toml:"base-word-length"`
	SpeedUpMax      *float64 `toml:"speed-up-max"`
	SlowDownMax     *float64 `toml:"slow-down-max"`
	ShortRef        *int     `toml:"short-ref"`
	LongRef         *int     `toml:"long-ref"`
	MinDelayMs      *int     `toml:"min-delay-ms"`
	FallbackDelayMs *int     `toml:"fallback-delay-ms"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
