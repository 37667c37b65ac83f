package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/cbgm/internal/bitmap"
)

var enumerateRelationshipsCmd = &cobra.Command{
	Use:   "enumerate-relationships PRIMARY SECONDARY",
	Short: "List units by relationship for a witness pair",
	Args:  cobra.ExactArgs(2),
	RunE:  runEnumerateRelationships,
}

func init() {
	enumerateRelationshipsCmd.Flags().String("relation", "", "restrict to one relation: extant, agreements, prior, posterior, norel, unclear, explained (default: all)")
	enumerateRelationshipsCmd.Flags().String("format", "fixed", "output format: fixed, csv, tsv, json")
	rootCmd.AddCommand(enumerateRelationshipsCmd)
}

func runEnumerateRelationships(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	relation, _ := cmd.Flags().GetString("relation")
	format, _ := cmd.Flags().GetString("format")
	primary, secondary := args[0], args[1]

	store, err := openCache(cmd, cfg)
	if err != nil {
		return fmt.Errorf("enumerate-relationships: %w", err)
	}
	defer store.Close()

	comp, ok, err := store.Comparison(cmd.Context(), primary, secondary)
	if err != nil {
		return fmt.Errorf("enumerate-relationships: %w", err)
	}
	if !ok {
		return fmt.Errorf("enumerate-relationships: no comparison for (%q, %q)", primary, secondary)
	}

	units, err := store.VariationUnits(cmd.Context())
	if err != nil {
		return fmt.Errorf("enumerate-relationships: %w", err)
	}

	relations := map[string]*bitmap.Bitmap{
		"extant":     comp.Extant,
		"agreements": comp.Agreements,
		"prior":      comp.Prior,
		"posterior":  comp.Posterior,
		"norel":      comp.Norel,
		"unclear":    comp.Unclear,
		"explained":  comp.Explained,
	}
	relationOrder := []string{"extant", "agreements", "prior", "posterior", "norel", "unclear", "explained"}
	if relation != "" {
		if _, ok := relations[relation]; !ok {
			return fmt.Errorf("enumerate-relationships: unknown relation %q (want extant, agreements, prior, posterior, norel, unclear, or explained)", relation)
		}
	}

	header := []string{"unit", "label", "relation"}
	var rows [][]string
	for i, u := range units {
		for _, name := range relationOrder {
			if relation != "" && relation != name {
				continue
			}
			if !relations[name].Test(i) {
				continue
			}
			rows = append(rows, []string{u.VariationUnit, u.Label, name})
		}
	}
	return writeTable(os.Stdout, format, header, rows)
}
