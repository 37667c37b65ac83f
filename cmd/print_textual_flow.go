package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/cbgm/internal/cache"
	"github.com/papapumpkin/cbgm/internal/flow"
	"github.com/papapumpkin/cbgm/internal/flowdot"
	"github.com/papapumpkin/cbgm/internal/genealogy"
)

var printTextualFlowCmd = &cobra.Command{
	Use:   "print-textual-flow [UNIT...]",
	Short: "Render DOT for one or more units' textual-flow graphs",
	RunE:  runPrintTextualFlow,
}

func init() {
	printTextualFlowCmd.Flags().Int("connectivity", 0, "override each unit's stored connectivity limit")
	printTextualFlowCmd.Flags().String("view", "complete", "view to render: complete, attestation, variant")
	printTextualFlowCmd.Flags().String("reading", "", "reading of interest for the attestation view")
	printTextualFlowCmd.Flags().String("out-dir", "", "write one DOT file per unit here instead of stdout")
	rootCmd.AddCommand(printTextualFlowCmd)
}

func runPrintTextualFlow(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	connectivity, _ := cmd.Flags().GetInt("connectivity")
	view, _ := cmd.Flags().GetString("view")
	reading, _ := cmd.Flags().GetString("reading")
	outDir, _ := cmd.Flags().GetString("out-dir")

	if view == "attestation" && reading == "" {
		return fmt.Errorf("print-textual-flow: --reading is required for the attestation view")
	}

	store, err := openCache(cmd, cfg)
	if err != nil {
		return fmt.Errorf("print-textual-flow: %w", err)
	}
	defer store.Close()

	app, err := store.LoadApparatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("print-textual-flow: %w", err)
	}

	witnesses, err := loadAllWitnesses(cmd.Context(), store, app.Witnesses())
	if err != nil {
		return fmt.Errorf("print-textual-flow: %w", err)
	}

	var strategy flowdot.RenderStrategy
	switch view {
	case "complete":
		strategy = flowdot.CompleteStrategy{}
	case "attestation":
		strategy = flowdot.AttestationStrategy{Reading: reading}
	case "variant":
		strategy = flowdot.VariantPassagesStrategy{}
	default:
		return fmt.Errorf("print-textual-flow: unknown view %q (want complete, attestation, or variant)", view)
	}

	unitIDs := args
	if len(unitIDs) == 0 {
		for _, u := range app.Units() {
			unitIDs = append(unitIDs, u.ID)
		}
	}

	for _, id := range unitIDs {
		u := app.Unit(id)
		if u == nil {
			return fmt.Errorf("print-textual-flow: unknown unit %q", id)
		}
		f := flow.Build(app, *u, witnesses, connectivity)
		dot := strategy.Render(f)
		if outDir == "" {
			fmt.Fprint(os.Stdout, dot)
			continue
		}
		path := filepath.Join(outDir, id+".dot")
		if err := os.WriteFile(path, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("print-textual-flow: write %q: %w", path, err)
		}
	}
	return nil
}

// loadAllWitnesses rebuilds genealogy.Witness profiles for every ID from
// the cache's persisted comparisons, needed by flow.Build to consult
// PotentialAncestorIDs.
func loadAllWitnesses(ctx context.Context, store cache.Store, ids []string) (map[string]*genealogy.Witness, error) {
	out := make(map[string]*genealogy.Witness, len(ids))
	for _, id := range ids {
		comparisons, err := store.ComparisonsFor(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load comparisons for %q: %w", id, err)
		}
		out[id] = genealogy.FromComparisons(id, comparisons, nil)
	}
	return out, nil
}
