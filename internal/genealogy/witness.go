package genealogy

import "sort"

// PotentialAncestorPredicate decides whether comp(p, s) qualifies s as a
// potential ancestor of p. The default is the
// posterior.Count() > prior.Count() rule; callers may substitute a
// stricter or looser predicate.
type PotentialAncestorPredicate func(comp Comparison) bool

// DefaultPotentialAncestorPredicate is posterior.Count() > prior.Count():
// s's reading is prior to p's at more units than the reverse.
func DefaultPotentialAncestorPredicate(comp Comparison) bool {
	return comp.Posterior.Count() > comp.Prior.Count()
}

// Witness is the in-memory genealogical profile of one witness: its
// comparisons against every other witness in the apparatus, indexed by
// secondary ID, plus its derived potential-ancestor ranking.
//
// Witness is built once by a WitnessBuilder and is logically immutable
// afterward; StemmaticAncestorIDs is the one field populated later, by the
// global stemma computation, since it depends on a later pass.
type Witness struct {
	ID string

	comparisons map[string]Comparison

	// PotentialAncestorIDs is the ordered list of other witnesses ranked by
	// the ranking key, most-plausible-ancestor first.
	PotentialAncestorIDs []string

	// StemmaticAncestorIDs is populated only after the global stemma is
	// computed (internal/globalstemma); nil until then.
	StemmaticAncestorIDs []string
}

// FromComparisons constructs a Witness for id directly from an
// already-computed comparisons map, such as one loaded back from a
// persisted cache, ranking potential ancestors with pred (nil means
// DefaultPotentialAncestorPredicate). Unlike WitnessBuilder.Build, this
// performs no classic-mode second pass; it trusts the comparisons as given.
func FromComparisons(id string, comparisons map[string]Comparison, pred PotentialAncestorPredicate) *Witness {
	if pred == nil {
		pred = DefaultPotentialAncestorPredicate
	}
	return &Witness{
		ID:                   id,
		comparisons:          comparisons,
		PotentialAncestorIDs: rankPotentialAncestors(comparisons, pred),
	}
}

// ComparisonWith returns the comparison of this witness against s, and
// whether one was built.
func (w *Witness) ComparisonWith(s string) (Comparison, bool) {
	c, ok := w.comparisons[s]
	return c, ok
}

// GenealogicalComparisonForWitness is an alias for ComparisonWith kept for
// parity with the call sites that need the comparison of a witness against
// itself (comp(w,w)), matching the accessor shape used throughout the
// optimizer's infeasibility-reporting path.
func (w *Witness) GenealogicalComparisonForWitness(s string) (Comparison, bool) {
	return w.ComparisonWith(s)
}

// Comparisons returns all comparisons for this witness, keyed by secondary
// witness ID. The returned map must not be mutated.
func (w *Witness) Comparisons() map[string]Comparison { return w.comparisons }

// rankKey is the ranking tuple for one candidate ancestor of p.
type rankKey struct {
	id             string
	agreementProp  float64
	agreementCount int
	priorCount     int
}

// less orders rankKeys by descending agreement proportion, then descending
// agreement count, then descending prior count, then ascending (lexical)
// ID for determinism.
func (a rankKey) less(b rankKey) bool {
	if a.agreementProp != b.agreementProp {
		return a.agreementProp > b.agreementProp
	}
	if a.agreementCount != b.agreementCount {
		return a.agreementCount > b.agreementCount
	}
	if a.priorCount != b.priorCount {
		return a.priorCount > b.priorCount
	}
	return a.id < b.id
}

// rankPotentialAncestors computes the potential-ancestor ranking over the candidates that
// satisfy pred, given the primary witness's comparisons map.
func rankPotentialAncestors(comparisons map[string]Comparison, pred PotentialAncestorPredicate) []string {
	var keys []rankKey
	for id, c := range comparisons {
		if !pred(c) {
			continue
		}
		extant := c.Extant.Count()
		agree := c.Agreements.Count()
		var prop float64
		if extant > 0 {
			prop = float64(agree) / float64(extant)
		}
		keys = append(keys, rankKey{
			id:             id,
			agreementProp:  prop,
			agreementCount: agree,
			priorCount:     c.Prior.Count(),
		})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.id
	}
	return out
}
