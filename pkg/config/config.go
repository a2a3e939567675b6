// Package config loads idbctl's process configuration from a YAML file,
// the one file format already in the dependency stack (gopkg.in/yaml.v3).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/idbstore/pkg/log"
)

// Config is the top-level shape of an idbctl config file.
type Config struct {
	StoragePath string `yaml:"storage_path"`
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration idbctl runs with when no file is
// given on the command line.
func Default() Config {
	return Config{
		StoragePath: "./data",
		LogLevel:    "info",
		LogJSON:     false,
		MetricsAddr: ":9090",
	}
}

// Load reads and parses a YAML config file, filling in Default's values
// for any field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.StoragePath == "" {
		return Config{}, fmt.Errorf("config: storage_path must not be empty")
	}
	return cfg, nil
}

// LogConfig adapts this package's config into pkg/log's Init input.
func (c Config) LogConfig() log.Config {
	level := log.InfoLevel
	switch c.LogLevel {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	}
	return log.Config{Level: level, JSONOutput: c.LogJSON}
}
