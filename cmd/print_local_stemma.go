package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/cbgm/internal/stemmadot"
)

var printLocalStemmaCmd = &cobra.Command{
	Use:   "print-local-stemma [UNIT...]",
	Short: "Render DOT for one or more units' local stemmata",
	RunE:  runPrintLocalStemma,
}

func init() {
	printLocalStemmaCmd.Flags().String("out-dir", "", "write one DOT file per unit here instead of stdout")
	rootCmd.AddCommand(printLocalStemmaCmd)
}

func runPrintLocalStemma(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	outDir, _ := cmd.Flags().GetString("out-dir")

	store, err := openCache(cmd, cfg)
	if err != nil {
		return fmt.Errorf("print-local-stemma: %w", err)
	}
	defer store.Close()

	app, err := store.LoadApparatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("print-local-stemma: %w", err)
	}

	unitIDs := args
	if len(unitIDs) == 0 {
		for _, u := range app.Units() {
			unitIDs = append(unitIDs, u.ID)
		}
	}

	strategy := stemmadot.LocalStrategy{}
	for _, id := range unitIDs {
		u := app.Unit(id)
		if u == nil {
			return fmt.Errorf("print-local-stemma: unknown unit %q", id)
		}
		dot := strategy.Render(*u)
		if outDir == "" {
			fmt.Fprint(os.Stdout, dot)
			continue
		}
		path := filepath.Join(outDir, id+".dot")
		if err := os.WriteFile(path, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("print-local-stemma: write %q: %w", path, err)
		}
	}
	return nil
}
