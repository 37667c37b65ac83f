package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var compareWitnessesCmd = &cobra.Command{
	Use:   "compare-witnesses PRIMARY [SECONDARY...]",
	Short: "Dump one witness's pairwise genealogical comparisons",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompareWitnesses,
}

func init() {
	compareWitnessesCmd.Flags().String("format", "fixed", "output format: fixed, csv, tsv, json")
	rootCmd.AddCommand(compareWitnessesCmd)
}

func runCompareWitnesses(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	format, _ := cmd.Flags().GetString("format")
	primary := args[0]
	secondaries := args[1:]

	store, err := openCache(cmd, cfg)
	if err != nil {
		return fmt.Errorf("compare-witnesses: %w", err)
	}
	defer store.Close()

	comparisons, err := store.ComparisonsFor(cmd.Context(), primary)
	if err != nil {
		return fmt.Errorf("compare-witnesses: %w", err)
	}
	if len(comparisons) == 0 {
		return fmt.Errorf("compare-witnesses: no comparisons found for witness %q", primary)
	}

	if len(secondaries) == 0 {
		for id := range comparisons {
			secondaries = append(secondaries, id)
		}
		sort.Strings(secondaries)
	}

	header := []string{"secondary", "extant", "agreements", "prior", "posterior", "norel", "unclear", "explained", "cost"}
	var rows [][]string
	for _, id := range secondaries {
		c, ok := comparisons[id]
		if !ok {
			return fmt.Errorf("compare-witnesses: no comparison for secondary witness %q", id)
		}
		rows = append(rows, []string{
			id,
			fmt.Sprint(c.Extant.Count()),
			fmt.Sprint(c.Agreements.Count()),
			fmt.Sprint(c.Prior.Count()),
			fmt.Sprint(c.Posterior.Count()),
			fmt.Sprint(c.Norel.Count()),
			fmt.Sprint(c.Unclear.Count()),
			fmt.Sprint(c.Explained.Count()),
			fmt.Sprintf("%.4f", c.Cost),
		})
	}
	return writeTable(os.Stdout, format, header, rows)
}
