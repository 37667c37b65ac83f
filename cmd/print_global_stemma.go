package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/cbgm/internal/cache"
	"github.com/papapumpkin/cbgm/internal/genealogy"
	"github.com/papapumpkin/cbgm/internal/globalstemma"
	"github.com/papapumpkin/cbgm/internal/pipeline"
	"github.com/papapumpkin/cbgm/internal/stemmadot"
	"github.com/papapumpkin/cbgm/internal/substemma"
)

var printGlobalStemmaCmd = &cobra.Command{
	Use:   "print-global-stemma",
	Short: "Render DOT of the global stemma",
	Args:  cobra.NoArgs,
	RunE:  runPrintGlobalStemma,
}

func init() {
	printGlobalStemmaCmd.Flags().Bool("weighted", false, "label edges with length and strength")
	printGlobalStemmaCmd.Flags().String("out", "", "write the DOT graph here instead of stdout")
	rootCmd.AddCommand(printGlobalStemmaCmd)
}

func runPrintGlobalStemma(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	weighted, _ := cmd.Flags().GetBool("weighted")
	out, _ := cmd.Flags().GetString("out")
	logger := newLogger(cfg)

	store, err := openCache(cmd, cfg)
	if err != nil {
		return fmt.Errorf("print-global-stemma: %w", err)
	}
	defer store.Close()

	witnessIDs, err := store.Witnesses(cmd.Context())
	if err != nil {
		return fmt.Errorf("print-global-stemma: %w", err)
	}

	pool := &pipeline.Pool{MaxWorkers: cfg.MaxWorkers, Logger: logger}
	witnesses, runErr := pool.Run(cmd.Context(), witnessIDs, func(ctx context.Context, id string) (any, error) {
		return canonicalizeOne(ctx, store, id)
	})

	built := make(map[string]*genealogy.Witness, len(witnessIDs))
	for id, v := range witnesses {
		w, ok := v.(*genealogy.Witness)
		if ok && w != nil {
			built[id] = w
		}
	}

	var pErrs *pipeline.Errors
	if runErr != nil && !errors.As(runErr, &pErrs) {
		return fmt.Errorf("print-global-stemma: %w", runErr)
	}
	if pErrs != nil {
		for id, err := range pErrs.ByWitness {
			if errors.Is(err, substemma.ErrInfeasible) {
				logger.Warn("witness has no feasible substemma; drawn without ancestor edges", "witness", id)
				continue
			}
			return fmt.Errorf("print-global-stemma: %s: %w", id, err)
		}
	}

	stemma := globalstemma.Build(witnessIDs, built)

	var strategy stemmadot.RenderStrategy = stemmadot.PlainStrategy{}
	if weighted {
		strategy = stemmadot.WeightedStrategy{}
	}
	dot := strategy.Render(stemma)

	if out == "" {
		fmt.Fprint(os.Stdout, dot)
		return nil
	}
	if err := os.WriteFile(out, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("print-global-stemma: write %q: %w", out, err)
	}
	return nil
}

func canonicalizeOne(ctx context.Context, store cache.Store, id string) (any, error) {
	comparisons, err := store.ComparisonsFor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load comparisons for %q: %w", id, err)
	}
	w := genealogy.FromComparisons(id, comparisons, nil)
	if _, err := globalstemma.Canonicalize(ctx, w, substemma.Options{}); err != nil {
		if errors.Is(err, substemma.ErrInfeasible) {
			return w, err
		}
		return nil, err
	}
	return w, nil
}
