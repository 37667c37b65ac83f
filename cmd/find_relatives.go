package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var findRelativesCmd = &cobra.Command{
	Use:   "find-relatives WITNESS UNIT",
	Short: "List witnesses sharing a reading at a given unit",
	Args:  cobra.ExactArgs(2),
	RunE:  runFindRelatives,
}

func init() {
	findRelativesCmd.Flags().StringSlice("reading", nil, "restrict to these reading IDs (default: the given witness's own reading)")
	findRelativesCmd.Flags().String("format", "fixed", "output format: fixed, csv, tsv, json")
	rootCmd.AddCommand(findRelativesCmd)
}

func runFindRelatives(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	readings, _ := cmd.Flags().GetStringSlice("reading")
	format, _ := cmd.Flags().GetString("format")
	witness, unitID := args[0], args[1]

	store, err := openCache(cmd, cfg)
	if err != nil {
		return fmt.Errorf("find-relatives: %w", err)
	}
	defer store.Close()

	app, err := store.LoadApparatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("find-relatives: %w", err)
	}
	if !app.HasWitness(witness) {
		return fmt.Errorf("find-relatives: unknown witness %q", witness)
	}
	if app.Unit(unitID) == nil {
		return fmt.Errorf("find-relatives: unknown unit %q", unitID)
	}

	wanted := make(map[string]bool, len(readings))
	for _, r := range readings {
		wanted[r] = true
	}
	if len(wanted) == 0 {
		r, ok := app.ReadingAt(witness, unitID)
		if !ok {
			return fmt.Errorf("find-relatives: %q is lacunose at %q", witness, unitID)
		}
		wanted[r] = true
	}

	header := []string{"witness", "reading"}
	var rows [][]string
	for _, w := range app.Witnesses() {
		if w == witness {
			continue
		}
		r, ok := app.ReadingAt(w, unitID)
		if !ok || !wanted[r] {
			continue
		}
		rows = append(rows, []string{w, r})
	}
	return writeTable(os.Stdout, format, header, rows)
}
