// Package config handles maputil configuration loading and management.
package config

import (
	"github.com/Faultbox/marc/pkg/backup"
	"github.com/Faultbox/marc/pkg/tilemap"
)

// Config holds all tool settings.
type Config struct {
	Backup  backup.Config `yaml:"backup"`
	Editor  EditorConfig  `yaml:"editor"`
	Logging LoggingConfig `yaml:"logging"`
}

// EditorConfig holds the map size rules of the editor and the size of new maps.
type EditorConfig struct {
	Bounds tilemap.Profile `yaml:"bounds"`
	Width  int             `yaml:"width"`
	Height int             `yaml:"height"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backup: backup.DefaultConfig(),
		Editor: EditorConfig{
			Bounds: tilemap.EditorProfile,
			Width:  40,
			Height: 16,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}
