package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoadDefaults(t *testing.T) {
	resetViper()

	cfg := Load()

	if cfg.CachePath != "cbgm.db" {
		t.Errorf("CachePath = %q, want %q", cfg.CachePath, "cbgm.db")
	}
	if cfg.MaxWorkers != 1 {
		t.Errorf("MaxWorkers = %d, want 1", cfg.MaxWorkers)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{"cache_path", "CBGM_CACHE_PATH", "/tmp/custom.db", func(c Config) any { return c.CachePath }, "/tmp/custom.db"},
		{"max_workers", "CBGM_MAX_WORKERS", "8", func(c Config) any { return c.MaxWorkers }, 8},
		{"log_level", "CBGM_LOG_LEVEL", "debug", func(c Config) any { return c.LogLevel }, "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()
			viper.SetEnvPrefix("CBGM")
			viper.AutomaticEnv()

			os.Setenv(tt.envKey, tt.envVal)
			defer os.Unsetenv(tt.envKey)

			cfg := Load()
			got := tt.field(cfg)
			if got != tt.want {
				t.Errorf("%s: got %v (%T), want %v (%T)", tt.name, got, got, tt.want, tt.want)
			}
		})
	}
}
