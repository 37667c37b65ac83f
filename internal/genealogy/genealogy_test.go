package genealogy

import (
	"context"
	"testing"

	"github.com/papapumpkin/cbgm/internal/apparatus"
)

// s1Collation is spec scenario S1: two units, readings {a,b} with a->b
// weight 1 at both; W1=(a,a), W2=(b,a), initial text A=(a,a).
func s1Collation() apparatus.RawCollation {
	mkUnit := func(id string, w2Reading string) apparatus.RawUnit {
		return apparatus.RawUnit{
			ID:       id,
			Readings: []apparatus.RawReading{{ID: "a"}, {ID: "b"}},
			Support: map[string]string{
				"A":  "a",
				"W1": "a",
				"W2": w2Reading,
			},
			Edges: []apparatus.RawEdge{{PriorID: "a", PosteriorID: "b", Weight: 1}},
		}
	}
	return apparatus.RawCollation{
		WitnessIDs: []string{"A", "W1", "W2"},
		Units: []apparatus.RawUnit{
			mkUnit("u1", "b"),
			mkUnit("u2", "a"),
		},
	}
}

func TestS1TrivialCover(t *testing.T) {
	t.Parallel()
	app, err := apparatus.Build(s1Collation(), apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}

	comp, err := Build(app, "W2", "A", false, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got, want := comp.Extant.Count(), 2; got != want {
		t.Fatalf("Extant.Count() = %d, want %d", got, want)
	}
	if !comp.Agreements.Test(1) || comp.Agreements.Count() != 1 {
		t.Fatalf("Agreements should be exactly {u2}, got %v", comp.Agreements.ToSlice())
	}
	if !comp.Posterior.Test(0) || comp.Posterior.Count() != 1 {
		t.Fatalf("Posterior should be exactly {u1}, got %v", comp.Posterior.ToSlice())
	}
	if !comp.Prior.IsEmpty() {
		t.Fatalf("Prior should be empty, got %v", comp.Prior.ToSlice())
	}
	if got, want := comp.Explained.Count(), 2; got != want {
		t.Fatalf("Explained.Count() = %d, want %d", got, want)
	}
	if comp.Cost != 1.0 {
		t.Fatalf("Cost = %v, want 1.0", comp.Cost)
	}
}

func TestS1PotentialAncestor(t *testing.T) {
	t.Parallel()
	app, err := apparatus.Build(s1Collation(), apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}
	builder := WitnessBuilder{App: app}
	w, err := builder.Build(context.Background(), "W2")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, want := w.PotentialAncestorIDs, []string{"A"}; len(got) != 1 || got[0] != want[0] {
		t.Fatalf("PotentialAncestorIDs = %v, want %v", got, want)
	}
}

func TestSelfComparison(t *testing.T) {
	t.Parallel()
	app, err := apparatus.Build(s1Collation(), apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}
	comp, err := Build(app, "A", "A", false, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !comp.Extant.Equal(comp.Agreements) || !comp.Agreements.Equal(comp.Explained) {
		t.Fatalf("comp(p,p) must have extant = agreements = explained")
	}
	if comp.Cost != 0 {
		t.Fatalf("comp(p,p).Cost = %v, want 0", comp.Cost)
	}
}

// TestS3EqualPriorityClass is spec scenario S3.
func TestS3EqualPriorityClass(t *testing.T) {
	t.Parallel()
	raw := apparatus.RawCollation{
		WitnessIDs: []string{"W1", "W2"},
		Units: []apparatus.RawUnit{
			{
				ID:       "u",
				Readings: []apparatus.RawReading{{ID: "a"}, {ID: "b"}},
				Support:  map[string]string{"W1": "a", "W2": "b"},
				Edges:    []apparatus.RawEdge{{PriorID: "a", PosteriorID: "b", Weight: 0}},
			},
		},
	}
	app, err := apparatus.Build(raw, apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}
	comp, err := Build(app, "W1", "W2", false, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, want := comp.Agreements.Count(), 1; got != want {
		t.Fatalf("Agreements.Count() = %d, want %d", got, want)
	}
	if comp.Cost != 0 {
		t.Fatalf("Cost = %v, want 0", comp.Cost)
	}
	if !comp.Prior.IsEmpty() || !comp.Posterior.IsEmpty() {
		t.Fatalf("equal-priority pair must not be marked prior/posterior")
	}
}

func TestInvariantsHoldAcrossWitnesses(t *testing.T) {
	t.Parallel()
	app, err := apparatus.Build(s1Collation(), apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}
	witnesses := app.Witnesses()
	for _, p := range witnesses {
		for _, s := range witnesses {
			comp, err := Build(app, p, s, false, nil)
			if err != nil {
				t.Fatalf("Build(%s,%s): %v", p, s, err)
			}
			disjointUnion := comp.Agreements.Or(comp.Prior).Or(comp.Posterior).Or(comp.Norel).Or(comp.Unclear)
			if !disjointUnion.Equal(comp.Extant) {
				t.Fatalf("extant(%s,%s) must equal the disjoint union of its categorical buckets", p, s)
			}
			if comp.Explained.And(comp.Extant).Count() != comp.Explained.Count() {
				t.Fatalf("explained(%s,%s) must be a subset of extant", p, s)
			}
			if comp.Agreements.And(comp.Explained).Count() != comp.Agreements.Count() {
				t.Fatalf("agreements(%s,%s) must be a subset of explained", p, s)
			}
			if comp.Cost < 0 {
				t.Fatalf("cost(%s,%s) must be non-negative", p, s)
			}
		}
	}
}

// TestFromComparisonsMatchesBuilder checks that rebuilding a Witness from
// an already-computed comparisons map (the cache-reload path) ranks
// potential ancestors identically to the builder's from-scratch pass.
func TestFromComparisonsMatchesBuilder(t *testing.T) {
	t.Parallel()
	app, err := apparatus.Build(s1Collation(), apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}
	builder := WitnessBuilder{App: app}
	built, err := builder.Build(context.Background(), "W2")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reloaded := FromComparisons("W2", built.Comparisons(), nil)
	if reloaded.ID != built.ID {
		t.Fatalf("ID = %q, want %q", reloaded.ID, built.ID)
	}
	if len(reloaded.PotentialAncestorIDs) != len(built.PotentialAncestorIDs) {
		t.Fatalf("PotentialAncestorIDs = %v, want %v", reloaded.PotentialAncestorIDs, built.PotentialAncestorIDs)
	}
	for i, id := range built.PotentialAncestorIDs {
		if reloaded.PotentialAncestorIDs[i] != id {
			t.Fatalf("PotentialAncestorIDs[%d] = %q, want %q", i, reloaded.PotentialAncestorIDs[i], id)
		}
	}
}
