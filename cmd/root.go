package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/cbgm/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "cbgm",
	Short: "Coherence-Based Genealogical Method engine",
	Long:  "cbgm computes genealogical relationships between manuscript witnesses, builds per-witness comparison tables, textual-flow graphs, and a global stemma of inferred ancestry.",
}

// Execute runs the root command, exiting per the CLI's exit-code contract: 0 on
// success, 1 on a user/invocation error, and a negative code for an
// internal error the user cannot fix by changing their invocation.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ie *internalError
		if errors.As(err, &ie) {
			os.Exit(-1)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .cbgm.yaml)")
	rootCmd.PersistentFlags().String("cache", "", "path to the cache database (overrides config cache_path)")
	rootCmd.PersistentFlags().Int("workers", 0, "worker pool size (overrides config max_workers)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".cbgm")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("CBGM")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// loadConfig returns the effective ambient config, with --cache/--workers
// flags taking precedence over the layered viper config.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("cache"); v != "" {
		cfg.CachePath = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.MaxWorkers = v
	}
	return cfg
}

func newLogger(cfg config.Config) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{Level: level})
}
