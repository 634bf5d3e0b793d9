// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Recorder RecorderConfig `toml:"recorder"`
}

// RecorderConfig maps recording settings. Nil fields were not set in the file.
type RecorderConfig struct {
	Library     *string  `toml:"library"`
	BufferSize  *int     `toml:"buffer-size"`
	Exclude     []string `toml:"exclude"`
	Strip       *bool    `toml:"strip"`
	Interval    *string  `toml:"interval"`
	StartKey    *string  `toml:"start-key"`
	StopKey     *string  `toml:"stop-key"`
	KeycodeMode *string  `toml:"keycode-mode"`
	OutputDir   *string  `toml:"output-dir"`
	Prefix      *string  `toml:"prefix"`
	CheckDevice *bool    `toml:"check-device"`
	LogLevel    *string  `toml:"log-level"`
	NoIndex     *bool    `toml:"no-index"`
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
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
