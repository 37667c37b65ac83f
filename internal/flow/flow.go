// Package flow builds the textual-flow graph for one variation unit: for
// each extant witness, the single stemmatic ancestor (if any) from which
// its reading most plausibly descends, subject to a connectivity rank
// limit and local-stemma priority.
package flow

import (
	"sort"

	"github.com/papapumpkin/cbgm/internal/apparatus"
	"github.com/papapumpkin/cbgm/internal/genealogy"
)

// Edge is one stemmatic-ancestor selection: Ancestor is the chosen
// stemmatic ancestor of Descendant at the unit, or empty if Descendant is
// drawn as a root (no ancestor selected).
type Edge struct {
	Descendant string
	Ancestor   string // "" if Descendant is a root
	Cost       float64
	TextualLoss bool // true if a prior reading exists but falls outside the connectivity window
}

// Flow is the complete textual-flow graph for one variation unit: one node
// per extant witness (colored by its reading), and the stemmatic-ancestor
// edges among them.
type Flow struct {
	UnitID       string
	Connectivity int // the connectivity limit actually applied (after override)
	ReadingOf    map[string]string // witness -> reading at this unit
	Edges        []Edge            // one per extant witness, in witness-apparatus order
}

// Build constructs the textual flow at unit u for every witness extant
// there, using each witness's ranked potential-ancestor list from
// witnesses. connectivityOverride, if > 0, overrides the unit's stored
// connectivity limit, matching the original tool's ability to override
// connectivity per invocation independently of the stored value.
func Build(app *apparatus.Apparatus, u apparatus.Unit, witnesses map[string]*genealogy.Witness, connectivityOverride int) Flow {
	k := u.Connectivity
	if connectivityOverride > 0 {
		k = connectivityOverride
	}

	f := Flow{
		UnitID:       u.ID,
		Connectivity: k,
		ReadingOf:    make(map[string]string),
	}

	for _, wid := range sortedExtantWitnesses(app, u.ID) {
		rw, ok := app.ReadingAt(wid, u.ID)
		if !ok {
			continue
		}
		f.ReadingOf[wid] = rw

		w := witnesses[wid]
		if w == nil {
			f.Edges = append(f.Edges, Edge{Descendant: wid})
			continue
		}
		f.Edges = append(f.Edges, buildEdge(app, u, w, wid, rw, k))
	}
	return f
}

func sortedExtantWitnesses(app *apparatus.Apparatus, unitID string) []string {
	var out []string
	for _, w := range app.Witnesses() {
		if _, ok := app.ReadingAt(w, unitID); ok {
			out = append(out, w)
		}
	}
	return out
}

// buildEdge selects the stemmatic ancestor for a single witness w at unit u:
// scan w's ranked potential ancestors within the connectivity window for the
// first one whose reading is equal-or-prior to rw, falling back to a root
// (or a textual-loss root, if a would-be ancestor exists only outside the
// window) only once that scan comes up empty.
func buildEdge(app *apparatus.Apparatus, u apparatus.Unit, w *genealogy.Witness, wid, rw string, k int) Edge {
	window := w.PotentialAncestorIDs
	if k > 0 && k < len(window) {
		window = window[:k]
	}

	var best string
	var bestCost float64
	found := false
	for _, cand := range window {
		ra, ok := app.ReadingAt(cand, u.ID)
		if !ok {
			continue
		}
		if !u.Stemma.IsEqualOrPrior(ra, rw) {
			continue
		}
		best = cand
		bestCost = u.Stemma.PathCost(ra, rw)
		found = true
		break // window is already in descending rank order; first hit wins
	}
	if found {
		return Edge{Descendant: wid, Ancestor: best, Cost: bestCost}
	}

	if u.Stemma.IsRoot(rw) {
		return Edge{Descendant: wid}
	}

	// No candidate within the connectivity window explains w's reading.
	// Check whether some candidate beyond the window would have, in which
	// case this is a textual loss rather than a genuine root.
	for _, cand := range w.PotentialAncestorIDs {
		ra, ok := app.ReadingAt(cand, u.ID)
		if !ok {
			continue
		}
		if u.Stemma.IsEqualOrPrior(ra, rw) {
			return Edge{Descendant: wid, TextualLoss: true}
		}
	}
	return Edge{Descendant: wid}
}

// View restricts a complete Flow to one of the three derived views.
type View int

const (
	// Complete is all edges, unrestricted.
	Complete View = iota
	// AttestationOf restricts to witnesses reading a given reading, plus
	// incoming edges from that same set.
	AttestationOf
	// VariantPassages restricts to edges where ancestor and descendant
	// read different readings.
	VariantPassages
)

// Restrict returns the edges of f belonging to the named view. For
// AttestationOf, reading selects the reading of interest.
func (f Flow) Restrict(view View, reading string) []Edge {
	switch view {
	case AttestationOf:
		inSet := make(map[string]bool)
		for wid, r := range f.ReadingOf {
			if r == reading {
				inSet[wid] = true
			}
		}
		var out []Edge
		for _, e := range f.Edges {
			if !inSet[e.Descendant] {
				continue
			}
			if e.Ancestor != "" && !inSet[e.Ancestor] {
				continue
			}
			out = append(out, e)
		}
		return out
	case VariantPassages:
		var out []Edge
		for _, e := range f.Edges {
			if e.Ancestor == "" {
				continue
			}
			if f.ReadingOf[e.Ancestor] != f.ReadingOf[e.Descendant] {
				out = append(out, e)
			}
		}
		return out
	default:
		return append([]Edge(nil), f.Edges...)
	}
}

// Readings returns the distinct readings attested at this unit, sorted.
func (f Flow) Readings() []string {
	set := make(map[string]bool)
	for _, r := range f.ReadingOf {
		set[r] = true
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
