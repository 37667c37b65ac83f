// Package substemma implements the weighted set-cover branch-and-bound
// search: for a witness w, select a minimum-cost subset of
// potential ancestors whose explained passages cover all of w's extant
// passages.
package substemma

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/papapumpkin/cbgm/internal/bitmap"
	"github.com/papapumpkin/cbgm/internal/genealogy"
)

// ErrInfeasible is returned by Optimize when no subset of the available
// potential ancestors can cover the witness's full extant universe.
var ErrInfeasible = errors.New("substemma: infeasible cover")

// Options configures one optimizer run.
type Options struct {
	// ExcludedWitnessIDs are never considered as candidates, mirroring the
	// original tool's -e flag ("exclude this witness as a potential
	// ancestor of anyone").
	ExcludedWitnessIDs map[string]bool
	// MinExtantProportion excludes any candidate extant at fewer than
	// ceil(MinExtantProportion * TotalUnitCount) variation units overall —
	// an absolute threshold derived from the whole apparatus, independent
	// of which witness is being optimized — mirroring the -p flag. Zero
	// means no filtering. Requires TotalUnitCount and SelfExtantCounts.
	MinExtantProportion float64
	// TotalUnitCount is the apparatus's total variation unit count, used
	// with MinExtantProportion to compute the absolute extant-unit
	// threshold.
	TotalUnitCount int
	// SelfExtantCounts maps each candidate witness ID to the cardinality of
	// its own extant set (its comparison against itself), independent of
	// the witness being optimized.
	SelfExtantCounts map[string]int
	// Bound, if > 0, enumerates all feasible solutions with cost <= Bound
	// rather than only the minimum-cost solutions.
	Bound float64
	// There is no time-budget field: a deadline on Optimize's ctx is
	// checked between candidate expansions; on expiry the search yields the
	// best solution found so far with PossiblySuboptimal set.
}

// Solution is one feasible cover: the selected ancestor IDs (sorted by
// ID), the total cost, and the covered bitmap.
type Solution struct {
	SelectedIDs []string
	Cost        float64
	Covered     *bitmap.Bitmap
}

// Result is the outcome of one Optimize call.
type Result struct {
	// Solutions are emitted in ascending cost order, then by lexicographic
	// comparison of the sorted selected-ID tuples. Empty if infeasible or if
	// Options.Bound is set below the true optimum.
	Solutions []Solution
	// Infeasible is true when no subset of the (filtered) candidate pool
	// covers the witness's extant universe.
	Infeasible bool
	// UncoveredUnitIndices lists the unit indices no candidate can explain,
	// populated only when Infeasible is true.
	UncoveredUnitIndices []int
	// PossiblySuboptimal is true if a context deadline interrupted the
	// search before it could prove optimality; Solutions then holds the
	// best solution found so far.
	PossiblySuboptimal bool
}

type candidate struct {
	id       string
	explains *bitmap.Bitmap
	cost     float64
}

// Optimize runs the branch-and-bound search for witness w, given its
// comparisons (typically w.Comparisons()) and its ranked potential-ancestor
// list (typically w.PotentialAncestorIDs). ctx is checked between candidate
// expansions in the DFS.
func Optimize(ctx context.Context, w *genealogy.Witness, opts Options) Result {
	selfComp, ok := w.GenealogicalComparisonForWitness(w.ID)
	if !ok {
		return Result{Infeasible: true}
	}
	universe := selfComp.Extant

	candidates := buildCandidates(w, universe, opts)

	unionAll := bitmap.New()
	for _, c := range candidates {
		unionAll = unionAll.Or(c.explains)
	}
	uncovered := universe.AndNot(unionAll)
	if !uncovered.IsEmpty() {
		return Result{Infeasible: true, UncoveredUnitIndices: uncovered.ToSlice()}
	}
	if universe.IsEmpty() {
		return Result{Solutions: []Solution{{SelectedIDs: nil, Cost: 0, Covered: bitmap.New()}}}
	}

	search := &search{
		ctx:        ctx,
		candidates: candidates,
		universe:   universe,
		bestCost:   inf,
	}
	if opts.Bound > 0 {
		search.bound = opts.Bound
		search.enumerateAll = true
	}
	search.run()

	sortSolutions(search.solutions)
	return Result{
		Solutions:          search.solutions,
		PossiblySuboptimal: search.interrupted,
	}
}

const inf = 1.0e300

func buildCandidates(w *genealogy.Witness, universe *bitmap.Bitmap, opts Options) []candidate {
	var minExtant int
	if opts.MinExtantProportion > 0 {
		minExtant = int(math.Ceil(opts.MinExtantProportion * float64(opts.TotalUnitCount)))
	}
	out := make([]candidate, 0, len(w.PotentialAncestorIDs))
	for _, id := range w.PotentialAncestorIDs {
		if opts.ExcludedWitnessIDs != nil && opts.ExcludedWitnessIDs[id] {
			continue
		}
		if minExtant > 0 && opts.SelfExtantCounts[id] < minExtant {
			continue
		}
		comp, ok := w.ComparisonWith(id)
		if !ok {
			continue
		}
		explains := comp.Explained.And(universe)
		out = append(out, candidate{id: id, explains: explains, cost: comp.Cost})
	}
	return out
}

// search holds the branch-and-bound DFS state. Candidates are visited in
// rank order (already the order buildCandidates preserves).
type search struct {
	ctx        context.Context
	candidates []candidate
	universe   *bitmap.Bitmap

	bound        float64 // 0 means unbounded (minimize)
	enumerateAll bool

	bestCost    float64
	solutions   []Solution
	interrupted bool
}

func (s *search) run() {
	s.dfs(0, nil, 0, bitmap.New())
}

func (s *search) dfs(idx int, selected []string, cost float64, covered *bitmap.Bitmap) {
	if s.interrupted {
		return
	}
	select {
	case <-s.ctx.Done():
		s.interrupted = true
		return
	default:
	}

	if covered.Count() >= s.universe.Count() && coversUniverse(covered, s.universe) {
		if !s.enumerateAll {
			s.record(selected, cost, covered)
			return // this branch is complete; no candidate set can improve on itself by adding more
		}
		if idx >= len(s.candidates) {
			// Every include/exclude decision is made: record this selection
			// once, at its leaf, not again after each exclude step.
			s.record(selected, cost, covered)
			return
		}
	}

	if idx >= len(s.candidates) {
		return
	}

	limit := s.effectiveLimit()
	if cost+lowerBoundCostToGo(s.candidates[idx:], covered) > limit {
		return
	}

	next := s.candidates[idx]

	// Branch: include next.
	newCovered := covered.Or(next.explains)
	newCost := cost + next.cost
	if newCost <= limit {
		s.dfs(idx+1, append(append([]string(nil), selected...), next.id), newCost, newCovered)
	}

	// Branch: exclude next.
	s.dfs(idx+1, selected, cost, covered)
}

func coversUniverse(covered, universe *bitmap.Bitmap) bool {
	return universe.AndNot(covered).IsEmpty()
}

func (s *search) effectiveLimit() float64 {
	if s.enumerateAll {
		return s.bound
	}
	return s.bestCost
}

// lowerBoundCostToGo greedily sums the cost of remaining candidates that
// add any new coverage, in rank order, giving a cheap-to-compute lower
// bound on the cost still needed to complete a cover from this state.
func lowerBoundCostToGo(remaining []candidate, covered *bitmap.Bitmap) float64 {
	sum := 0.0
	frontier := covered
	for _, c := range remaining {
		addl := c.explains.AndNot(frontier)
		if !addl.IsEmpty() {
			sum += c.cost
			frontier = frontier.Or(c.explains)
		}
	}
	return sum
}

func (s *search) record(selected []string, cost float64, covered *bitmap.Bitmap) {
	if !s.enumerateAll {
		switch {
		case cost < s.bestCost:
			s.bestCost = cost
			s.solutions = []Solution{{SelectedIDs: selected, Cost: cost, Covered: covered.Clone()}}
		case cost == s.bestCost:
			s.solutions = append(s.solutions, Solution{SelectedIDs: selected, Cost: cost, Covered: covered.Clone()})
		}
		return
	}
	if cost <= s.bound {
		s.solutions = append(s.solutions, Solution{SelectedIDs: selected, Cost: cost, Covered: covered.Clone()})
	}
}

func sortSolutions(solutions []Solution) {
	for i := range solutions {
		sort.Strings(solutions[i].SelectedIDs)
	}
	sort.Slice(solutions, func(i, j int) bool {
		a, b := solutions[i], solutions[j]
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return lexLess(a.SelectedIDs, b.SelectedIDs)
	})
}

func lexLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
