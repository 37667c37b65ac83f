package genealogy

import (
	"context"
	"fmt"

	"github.com/papapumpkin/cbgm/internal/apparatus"
)

// WitnessBuilder builds the full Witness profile (all comparisons plus the
// potential-ancestor ranking) for one primary witness against every other
// witness in an apparatus.
//
// Classic-mode cost semantics need the primary's potential-ancestor
// ranking to resolve unclear units, but that ranking itself depends
// on having built the comparisons first — so in classic mode the builder
// makes two passes: an open-CBGM pass to derive the ranking, then a second
// pass that rebuilds comparisons with classic-mode unclear resolution
// enabled. In default mode a single pass suffices.
type WitnessBuilder struct {
	App       *apparatus.Apparatus
	Predicate PotentialAncestorPredicate // nil means DefaultPotentialAncestorPredicate
}

// Build constructs the Witness profile for primary. ctx is checked for
// cancellation between secondary-witness comparisons, matching the DFS
// node-visit-boundary cancellation contract used elsewhere in the engine.
func (b WitnessBuilder) Build(ctx context.Context, primary string) (*Witness, error) {
	pred := b.Predicate
	if pred == nil {
		pred = DefaultPotentialAncestorPredicate
	}
	if !b.App.HasWitness(primary) {
		return nil, fmt.Errorf("genealogy: unknown primary witness %q", primary)
	}

	comparisons, err := b.buildAll(ctx, primary, nil)
	if err != nil {
		return nil, err
	}

	w := &Witness{ID: primary, comparisons: comparisons}
	w.PotentialAncestorIDs = rankPotentialAncestors(comparisons, pred)

	if b.App.Classic() {
		comparisons, err = b.buildAll(ctx, primary, w.PotentialAncestorIDs)
		if err != nil {
			return nil, err
		}
		w.comparisons = comparisons
		// Re-rank: classic mode only changes explained/cost, which the
		// default predicate and ranking key do not consult, but a custom
		// predicate might; re-ranking keeps the seam honest either way.
		w.PotentialAncestorIDs = rankPotentialAncestors(comparisons, pred)
	}

	return w, nil
}

func (b WitnessBuilder) buildAll(ctx context.Context, primary string, potentialAncestors []string) (map[string]Comparison, error) {
	secondaries := b.App.Witnesses()
	out := make(map[string]Comparison, len(secondaries))
	for _, s := range secondaries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		c, err := Build(b.App, primary, s, b.App.Classic(), potentialAncestors)
		if err != nil {
			return nil, err
		}
		out[s] = c
	}
	return out, nil
}
