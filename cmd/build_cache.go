package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/cbgm/internal/apparatus"
	"github.com/papapumpkin/cbgm/internal/cache"
	"github.com/papapumpkin/cbgm/internal/genealogy"
	"github.com/papapumpkin/cbgm/internal/pipeline"
)

var buildCacheCmd = &cobra.Command{
	Use:   "build-cache COLLATION",
	Short: "Build the persisted cache from a collation document",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildCache,
}

func init() {
	buildCacheCmd.Flags().String("options", "", "ingestion options TOML document")
	buildCacheCmd.Flags().Bool("watch", false, "rebuild whenever the collation document changes on disk")
	rootCmd.AddCommand(buildCacheCmd)
}

func runBuildCache(cmd *cobra.Command, args []string) error {
	collationPath := args[0]
	cfg := loadConfig(cmd)
	logger := newLogger(cfg)

	optionsPath, _ := cmd.Flags().GetString("options")
	watch, _ := cmd.Flags().GetBool("watch")

	build := func() error {
		return buildCacheOnce(cmd.Context(), collationPath, optionsPath, cfg.CachePath, cfg.MaxWorkers, logger)
	}

	if err := build(); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("build-cache: start watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(collationPath); err != nil {
		return fmt.Errorf("build-cache: watch %q: %w", collationPath, err)
	}

	logger.Info("watching collation document for changes", "path", collationPath)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Info("collation document changed, rebuilding cache", "path", collationPath)
			if err := build(); err != nil {
				logger.Error("rebuild failed", "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "err", err)
		case <-cmd.Context().Done():
			return nil
		}
	}
}

func buildCacheOnce(ctx context.Context, collationPath, optionsPath, cachePath string, workers int, logger *log.Logger) error {
	raw, err := readCollation(collationPath)
	if err != nil {
		return err
	}

	opts := apparatus.Options{}
	if optionsPath != "" {
		opts, err = apparatus.LoadOptions(optionsPath)
		if err != nil {
			return err
		}
	}

	app, err := apparatus.Build(raw, opts)
	if err != nil {
		return fmt.Errorf("build-cache: %w", err)
	}

	store, err := cache.Open(ctx, cachePath)
	if err != nil {
		return fmt.Errorf("build-cache: %w", err)
	}
	defer store.Close()

	if err := store.WriteApparatus(ctx, app); err != nil {
		return fmt.Errorf("build-cache: %w", err)
	}

	pool := &pipeline.Pool{MaxWorkers: workers}
	witnesses := app.Witnesses()
	results, runErr := pool.Run(ctx, witnesses, func(taskCtx context.Context, id string) (any, error) {
		builder := genealogy.WitnessBuilder{App: app}
		return builder.Build(taskCtx, id)
	})

	for _, id := range witnesses {
		w, ok := results[id].(*genealogy.Witness)
		if !ok {
			continue
		}
		if err := store.WriteComparisons(ctx, w.Comparisons()); err != nil {
			return fmt.Errorf("build-cache: write comparisons for %q: %w", id, err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("build-cache: %w", runErr)
	}

	logger.Info("cache built", "witnesses", len(witnesses), "units", len(app.Units()), "path", cachePath)
	return nil
}

func readCollation(path string) (apparatus.RawCollation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return apparatus.RawCollation{}, fmt.Errorf("build-cache: read %q: %w", path, err)
	}
	var raw apparatus.RawCollation
	if err := json.Unmarshal(data, &raw); err != nil {
		return apparatus.RawCollation{}, fmt.Errorf("build-cache: parse %q: %w", path, err)
	}
	return raw, nil
}
