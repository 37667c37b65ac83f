package cache

import (
	"context"

	"github.com/papapumpkin/cbgm/internal/apparatus"
	"github.com/papapumpkin/cbgm/internal/genealogy"
)

// Store is the narrow persistence contract the rest of the engine depends
// on, in front of the concrete SQLite implementation.
type Store interface {
	// WriteApparatus persists the witness list, variation units, readings,
	// local-stemma edges, and reading support of app, replacing any
	// previously stored collation.
	WriteApparatus(ctx context.Context, app *apparatus.Apparatus) error

	// LoadApparatus reconstructs an Apparatus from the persisted collation.
	// The reconstructed apparatus carries no further ingestion options
	// (trivial/dropped/threshold were already applied when it was written).
	LoadApparatus(ctx context.Context) (*apparatus.Apparatus, error)

	// WriteComparisons persists one witness's comparisons against every
	// secondary witness, upserting on (primary_wit, secondary_wit).
	WriteComparisons(ctx context.Context, comparisons map[string]genealogy.Comparison) error

	// Witnesses returns the persisted witness list in row_id order.
	Witnesses(ctx context.Context) ([]string, error)

	// VariationUnits returns the persisted unit summaries in row_id order.
	VariationUnits(ctx context.Context) ([]UnitRow, error)

	// Comparison returns the persisted comparison for (primary, secondary),
	// and whether one exists.
	Comparison(ctx context.Context, primary, secondary string) (genealogy.Comparison, bool, error)

	// ComparisonsFor returns every persisted comparison with the given
	// primary witness, keyed by secondary witness ID.
	ComparisonsFor(ctx context.Context, primary string) (map[string]genealogy.Comparison, error)

	Close() error
}

// UnitRow is the persisted summary of one variation unit, without its
// local stemma (callers that need full stemma queries load it through
// LoadApparatus).
type UnitRow struct {
	VariationUnit string
	Label         string
	Connectivity  int
}
