// Package stemma models the local stemma of a single variation unit: a
// directed acyclic graph over reading IDs whose edges carry a non-negative
// weight, zero-weight edges denoting equal priority. It computes all-pairs
// shortest-path cost and equal-priority equivalence classes once at build
// time so downstream queries are cheap lookups.
package stemma

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDuplicateVertex is returned when building a stemma whose vertex list
// contains the same reading ID twice.
var ErrDuplicateVertex = errors.New("stemma: duplicate reading")

// ErrUnknownVertex is returned when an edge references a reading ID not in
// the vertex list.
var ErrUnknownVertex = errors.New("stemma: unknown reading")

// ErrNegativeWeight is returned when an edge carries a negative weight.
var ErrNegativeWeight = errors.New("stemma: negative edge weight")

// ErrPositiveCycle is returned when the edge set induces a cycle whose
// total weight is strictly positive. Zero-weight cycles are tolerated; they
// simply enlarge an equal-priority equivalence class.
var ErrPositiveCycle = errors.New("stemma: positive-weight cycle")

// Inf represents "no path" in PathCost.
const Inf = math.MaxFloat64

// Edge is a directed, weighted local-stemma edge from PriorID to
// PosteriorID. Unclear marks an edge whose priority is flagged ambiguous in
// the source collation (parallel readings, conflicting weights); it has no
// effect on cost or reachability, only on IsUnclear.
type Edge struct {
	PriorID     string
	PosteriorID string
	Weight      float64
	Unclear     bool
}

// LocalStemma is the frozen, queryable form of one variation unit's local
// stemma, built once by Build and never mutated afterward.
type LocalStemma struct {
	unitID string
	label  string

	readings []string // insertion order, defines iteration order
	index    map[string]int

	classOf   []int       // reading index -> equivalence class index
	classDist [][]float64 // class x class shortest path cost, Inf if unreachable

	unclearFrom map[string]map[string]bool // priorID -> posteriorID -> true
}

// Build constructs a LocalStemma from an ordered vertex list and an edge
// list. It fails if the vertex list has duplicates, an edge references an
// unknown reading, an edge has negative weight, or the edges induce a cycle
// of strictly positive total weight.
func Build(unitID, label string, readingIDs []string, edges []Edge) (*LocalStemma, error) {
	index := make(map[string]int, len(readingIDs))
	for i, r := range readingIDs {
		if _, dup := index[r]; dup {
			return nil, fmt.Errorf("%w: %q in unit %q", ErrDuplicateVertex, r, unitID)
		}
		index[r] = i
	}
	for _, e := range edges {
		if _, ok := index[e.PriorID]; !ok {
			return nil, fmt.Errorf("%w: %q referenced by edge in unit %q", ErrUnknownVertex, e.PriorID, unitID)
		}
		if _, ok := index[e.PosteriorID]; !ok {
			return nil, fmt.Errorf("%w: %q referenced by edge in unit %q", ErrUnknownVertex, e.PosteriorID, unitID)
		}
		if e.Weight < 0 {
			return nil, fmt.Errorf("%w: %s->%s in unit %q", ErrNegativeWeight, e.PriorID, e.PosteriorID, unitID)
		}
	}

	n := len(readingIDs)
	uf := newUnionFind(n)
	for _, e := range edges {
		if e.Weight == 0 {
			uf.union(index[e.PriorID], index[e.PosteriorID])
		}
	}

	// Renumber representatives to dense class indices in deterministic
	// (lowest-member-index-first) order.
	classOf := make([]int, n)
	classIndex := make(map[int]int)
	var classOrder []int
	for i := 0; i < n; i++ {
		root := uf.find(i)
		ci, ok := classIndex[root]
		if !ok {
			ci = len(classOrder)
			classIndex[root] = ci
			classOrder = append(classOrder, root)
		}
		classOf[i] = ci
	}
	numClasses := len(classOrder)

	dist := make([][]float64, numClasses)
	for i := range dist {
		dist[i] = make([]float64, numClasses)
		for j := range dist[i] {
			if i == j {
				dist[i][j] = 0
			} else {
				dist[i][j] = Inf
			}
		}
	}
	for _, e := range edges {
		if e.Weight == 0 {
			continue // zero-weight edges already folded into the equivalence classes
		}
		ca, cb := classOf[index[e.PriorID]], classOf[index[e.PosteriorID]]
		if e.Weight < dist[ca][cb] {
			dist[ca][cb] = e.Weight
		}
	}

	if err := detectPositiveCycle(dist, numClasses); err != nil {
		return nil, fmt.Errorf("%w: in unit %q", err, unitID)
	}

	floydWarshall(dist, numClasses)

	unclearFrom := make(map[string]map[string]bool)
	for _, e := range edges {
		if !e.Unclear {
			continue
		}
		m, ok := unclearFrom[e.PriorID]
		if !ok {
			m = make(map[string]bool)
			unclearFrom[e.PriorID] = m
		}
		m[e.PosteriorID] = true
	}

	return &LocalStemma{
		unitID:      unitID,
		label:       label,
		readings:    append([]string(nil), readingIDs...),
		index:       index,
		classOf:     classOf,
		classDist:   dist,
		unclearFrom: unclearFrom,
	}, nil
}

// detectPositiveCycle rejects the build if the condensed (per-class) graph
// of positive-weight edges contains a cycle, using Kahn's algorithm in the
// same style as dag.TopologicalSort: if not every class can be ordered, a
// cycle exists, and since same-class edges were already excluded from dist,
// any such cycle is strictly positive weight.
func detectPositiveCycle(dist [][]float64, n int) error {
	inDegree := make([]int, n)
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && dist[i][j] < Inf {
				adj[i] = append(adj[i], j)
				inDegree[j]++
			}
		}
	}
	var queue []int
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[cur] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != n {
		return ErrPositiveCycle
	}
	return nil
}

func floydWarshall(dist [][]float64, n int) {
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if dist[i][k] == Inf {
				continue
			}
			for j := 0; j < n; j++ {
				if dist[k][j] == Inf {
					continue
				}
				if d := dist[i][k] + dist[k][j]; d < dist[i][j] {
					dist[i][j] = d
				}
			}
		}
	}
}

// UnitID returns the variation unit ID this stemma belongs to.
func (s *LocalStemma) UnitID() string { return s.unitID }

// Label returns the human-readable label of the variation unit.
func (s *LocalStemma) Label() string { return s.label }

// Readings returns the reading IDs in insertion order.
func (s *LocalStemma) Readings() []string { return append([]string(nil), s.readings...) }

// HasReading reports whether r is a known reading of this unit.
func (s *LocalStemma) HasReading(r string) bool {
	_, ok := s.index[r]
	return ok
}

// PathCost returns the minimum total edge weight over all directed paths
// from r1 to r2, or Inf if none exists (including when either reading is
// unknown). PathCost(r, r) is always 0.
func (s *LocalStemma) PathCost(r1, r2 string) float64 {
	i1, ok1 := s.index[r1]
	i2, ok2 := s.index[r2]
	if !ok1 || !ok2 {
		return Inf
	}
	return s.classDist[s.classOf[i1]][s.classOf[i2]]
}

// IsEqualOrPrior reports whether PathCost(r1, r2) is finite: r1 == r2,
// r1 and r2 are in the same equal-priority class, or r1 is a (weighted)
// ancestor of r2.
func (s *LocalStemma) IsEqualOrPrior(r1, r2 string) bool {
	return s.PathCost(r1, r2) < Inf
}

// IsEqual reports whether r1 and r2 belong to the same equal-priority
// equivalence class (including r1 == r2).
func (s *LocalStemma) IsEqual(r1, r2 string) bool {
	i1, ok1 := s.index[r1]
	i2, ok2 := s.index[r2]
	if !ok1 || !ok2 {
		return false
	}
	return s.classOf[i1] == s.classOf[i2]
}

// IsUnclear reports whether the edge from r1 to r2 is flagged unclear in
// the source collation.
func (s *LocalStemma) IsUnclear(r1, r2 string) bool {
	m, ok := s.unclearFrom[r1]
	return ok && m[r2]
}

// IsRoot reports whether r has no prior reading: no other reading has a
// finite, strictly positive cost path to r, and r belongs to a class with
// no incoming inter-class edge.
func (s *LocalStemma) IsRoot(r string) bool {
	i, ok := s.index[r]
	if !ok {
		return false
	}
	c := s.classOf[i]
	for other := 0; other < len(s.classDist); other++ {
		if other == c {
			continue
		}
		if s.classDist[other][c] < Inf {
			return false
		}
	}
	return true
}

// EquivalenceClasses returns the equal-priority classes as lists of reading
// IDs, ordered by the lowest reading index in each class, with members in
// reading-insertion order.
func (s *LocalStemma) EquivalenceClasses() [][]string {
	byClass := make(map[int][]string)
	for i, r := range s.readings {
		byClass[s.classOf[i]] = append(byClass[s.classOf[i]], r)
	}
	order := make([]int, 0, len(byClass))
	for c := range byClass {
		order = append(order, c)
	}
	sort.Ints(order)
	out := make([][]string, len(order))
	for i, c := range order {
		out[i] = byClass[c]
	}
	return out
}

// --- internal union-find over dense integer indices ---
//
// Ported from the string-keyed disjoint-set idiom used by the graph
// analysis package this engine descends from: path compression plus union
// by rank, specialized here to dense integer reading indices since a local
// stemma's readings are already index-addressable.

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x])
	}
	return uf.parent[x]
}

func (uf *unionFind) union(x, y int) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
}
