// Package config loads ambient CLI configuration: default cache path,
// worker pool size, log level. Values are layered from a config file,
// CBGM_* environment variables, and flags.
package config

import "github.com/spf13/viper"

// Config holds the ambient runtime configuration shared by every CLI tool.
type Config struct {
	CachePath  string `mapstructure:"cache_path"`
	MaxWorkers int    `mapstructure:"max_workers"`
	LogLevel   string `mapstructure:"log_level"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by the config file or environment. Command-line flags are
// applied on top of the result by the cmd package, not here.
func Load() Config {
	viper.SetDefault("cache_path", "cbgm.db")
	viper.SetDefault("max_workers", 1)
	viper.SetDefault("log_level", "info")

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
