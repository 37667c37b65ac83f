package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/cbgm/internal/genealogy"
	"github.com/papapumpkin/cbgm/internal/substemma"
)

var optimizeSubstemmataCmd = &cobra.Command{
	Use:   "optimize-substemmata WITNESS",
	Short: "Run the weighted set-cover substemma optimizer for one witness",
	Args:  cobra.ExactArgs(1),
	RunE:  runOptimizeSubstemmata,
}

func init() {
	optimizeSubstemmataCmd.Flags().Float64("bound", 0, "enumerate all feasible covers with cost <= bound (default: minimum-cost only)")
	optimizeSubstemmataCmd.Flags().StringSlice("exclude", nil, "witness IDs never considered as candidates")
	optimizeSubstemmataCmd.Flags().Float64("min-extant-proportion", 0, "exclude candidates extant at fewer than this proportion of the apparatus's total variation units")
	optimizeSubstemmataCmd.Flags().Duration("time-budget", 0, "abandon the search after this long and report the best solution found so far")
	optimizeSubstemmataCmd.Flags().String("format", "fixed", "output format: fixed, csv, tsv, json")
	rootCmd.AddCommand(optimizeSubstemmataCmd)
}

func runOptimizeSubstemmata(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	witnessID := args[0]
	bound, _ := cmd.Flags().GetFloat64("bound")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	minProp, _ := cmd.Flags().GetFloat64("min-extant-proportion")
	timeBudget, _ := cmd.Flags().GetDuration("time-budget")
	format, _ := cmd.Flags().GetString("format")

	store, err := openCache(cmd, cfg)
	if err != nil {
		return fmt.Errorf("optimize-substemmata: %w", err)
	}
	defer store.Close()

	comparisons, err := store.ComparisonsFor(cmd.Context(), witnessID)
	if err != nil {
		return fmt.Errorf("optimize-substemmata: %w", err)
	}
	if len(comparisons) == 0 {
		return fmt.Errorf("optimize-substemmata: no comparisons found for witness %q", witnessID)
	}
	w := genealogy.FromComparisons(witnessID, comparisons, nil)

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	units, err := store.VariationUnits(cmd.Context())
	if err != nil {
		return fmt.Errorf("optimize-substemmata: %w", err)
	}

	var selfExtant map[string]int
	if minProp > 0 {
		selfExtant = make(map[string]int, len(w.PotentialAncestorIDs))
		for _, id := range w.PotentialAncestorIDs {
			comp, ok, cerr := store.Comparison(cmd.Context(), id, id)
			if cerr != nil {
				return fmt.Errorf("optimize-substemmata: %w", cerr)
			}
			if ok {
				selfExtant[id] = comp.Extant.Count()
			}
		}
	}

	ctx := cmd.Context()
	if timeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeBudget)
		defer cancel()
	}

	result := substemma.Optimize(ctx, w, substemma.Options{
		ExcludedWitnessIDs:  excluded,
		MinExtantProportion: minProp,
		TotalUnitCount:      len(units),
		SelfExtantCounts:    selfExtant,
		Bound:               bound,
	})

	if result.Infeasible {
		var uncovered []string
		for _, idx := range result.UncoveredUnitIndices {
			if idx >= 0 && idx < len(units) {
				uncovered = append(uncovered, units[idx].Label)
			}
		}
		fmt.Fprintf(os.Stderr, "optimize-substemmata: infeasible: no cover explains units %v\n", uncovered)
		return writeTable(os.Stdout, format, []string{"selected_ancestors", "cost"}, nil)
	}

	if result.PossiblySuboptimal {
		fmt.Fprintln(os.Stderr, "optimize-substemmata: time budget exhausted; reporting best solution found so far")
	}

	header := []string{"solution", "selected_ancestors", "cost"}
	var rows [][]string
	for i, sol := range result.Solutions {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			fmt.Sprint(sol.SelectedIDs),
			fmt.Sprintf("%.4f", sol.Cost),
		})
	}
	return writeTable(os.Stdout, format, header, rows)
}
