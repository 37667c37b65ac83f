// Package globalstemma selects each witness's canonical substemma and
// assembles the resulting directed graph of inferred ancestry across the
// whole tradition.
package globalstemma

import (
	"context"
	"sort"

	"github.com/papapumpkin/cbgm/internal/genealogy"
	"github.com/papapumpkin/cbgm/internal/substemma"
)

// Edge is one (witness, stemmatic ancestor) relationship in the global
// stemma, with the optional length/strength attributes.
type Edge struct {
	Witness  string
	Ancestor string
	Length   float64 // cost contribution of this edge (sum over covered units)
	Strength float64 // agreement proportion between Witness and Ancestor
}

// Stemma is the assembled global stemma: one node per witness, one edge
// per (w, a) pair drawn from w's canonical substemma.
type Stemma struct {
	WitnessIDs []string
	Edges      []Edge
}

// Canonicalize runs substemma.Optimize for w and selects the first
// minimum-cost solution: solutions are already sorted by cost
// then lexicographic ID tuple by the optimizer, so the first entry is, by
// construction, the minimum-cost solution with the lexicographically
// smallest tuple among ties. It sets and returns w.StemmaticAncestorIDs.
// A witness with no potential ancestors (such as the initial text) is a
// root: its canonical substemma is empty and no search is run.
func Canonicalize(ctx context.Context, w *genealogy.Witness, opts substemma.Options) (substemma.Result, error) {
	if len(w.PotentialAncestorIDs) == 0 {
		w.StemmaticAncestorIDs = nil
		return substemma.Result{}, nil
	}
	result := substemma.Optimize(ctx, w, opts)
	if result.Infeasible {
		return result, substemma.ErrInfeasible
	}
	if len(result.Solutions) == 0 {
		w.StemmaticAncestorIDs = nil
		return result, nil
	}
	w.StemmaticAncestorIDs = append([]string(nil), result.Solutions[0].SelectedIDs...)
	return result, nil
}

// Build assembles the global stemma graph from a set of already-canonicalized
// witnesses (StemmaticAncestorIDs populated by Canonicalize). Witnesses are
// emitted in the order given by ids; edges are emitted grouped by witness in
// that same order, then by ancestor ID ascending, for deterministic output.
func Build(ids []string, witnesses map[string]*genealogy.Witness) Stemma {
	s := Stemma{WitnessIDs: append([]string(nil), ids...)}
	for _, wid := range ids {
		w := witnesses[wid]
		if w == nil {
			continue
		}
		ancestors := append([]string(nil), w.StemmaticAncestorIDs...)
		sort.Strings(ancestors)
		for _, a := range ancestors {
			s.Edges = append(s.Edges, buildEdge(w, wid, a))
		}
	}
	return s
}

func buildEdge(w *genealogy.Witness, wid, ancestorID string) Edge {
	e := Edge{Witness: wid, Ancestor: ancestorID}
	comp, ok := w.ComparisonWith(ancestorID)
	if !ok {
		return e
	}
	e.Length = comp.Cost
	if extant := comp.Extant.Count(); extant > 0 {
		e.Strength = float64(comp.Agreements.Count()) / float64(extant)
	}
	return e
}
