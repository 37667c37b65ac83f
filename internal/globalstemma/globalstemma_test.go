package globalstemma

import (
	"context"
	"testing"

	"github.com/papapumpkin/cbgm/internal/apparatus"
	"github.com/papapumpkin/cbgm/internal/genealogy"
	"github.com/papapumpkin/cbgm/internal/substemma"
)

func buildWitnesses(t *testing.T, raw apparatus.RawCollation) (*apparatus.Apparatus, map[string]*genealogy.Witness) {
	t.Helper()
	app, err := apparatus.Build(raw, apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}
	out := make(map[string]*genealogy.Witness)
	for _, wid := range app.Witnesses() {
		builder := genealogy.WitnessBuilder{App: app}
		w, err := builder.Build(context.Background(), wid)
		if err != nil {
			t.Fatalf("WitnessBuilder.Build(%s): %v", wid, err)
		}
		out[wid] = w
	}
	return app, out
}

func s1Collation() apparatus.RawCollation {
	mkUnit := func(id, w2Reading string) apparatus.RawUnit {
		return apparatus.RawUnit{
			ID:       id,
			Readings: []apparatus.RawReading{{ID: "a"}, {ID: "b"}},
			Support:  map[string]string{"A": "a", "W2": w2Reading},
			Edges:    []apparatus.RawEdge{{PriorID: "a", PosteriorID: "b", Weight: 1}},
		}
	}
	return apparatus.RawCollation{
		WitnessIDs: []string{"A", "W2"},
		Units:      []apparatus.RawUnit{mkUnit("u1", "b"), mkUnit("u2", "a")},
	}
}

func TestCanonicalizeSetsStemmaticAncestorIDs(t *testing.T) {
	t.Parallel()
	_, witnesses := buildWitnesses(t, s1Collation())
	w2 := witnesses["W2"]

	result, err := Canonicalize(context.Background(), w2, substemma.Options{})
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if result.Infeasible {
		t.Fatalf("expected feasible result")
	}
	if len(w2.StemmaticAncestorIDs) != 1 || w2.StemmaticAncestorIDs[0] != "A" {
		t.Fatalf("StemmaticAncestorIDs = %v, want [A]", w2.StemmaticAncestorIDs)
	}
}

func TestCanonicalizeInfeasiblePropagatesSentinel(t *testing.T) {
	t.Parallel()
	raw := s1Collation()
	raw.Units = append(raw.Units, apparatus.RawUnit{
		ID:       "u3",
		Readings: []apparatus.RawReading{{ID: "a"}, {ID: "orphan"}},
		Support:  map[string]string{"A": "a", "W2": "orphan"},
	})
	_, witnesses := buildWitnesses(t, raw)
	w2 := witnesses["W2"]

	_, err := Canonicalize(context.Background(), w2, substemma.Options{})
	if err != substemma.ErrInfeasible {
		t.Fatalf("Canonicalize err = %v, want ErrInfeasible", err)
	}
}

func TestBuildAssemblesDeterministicEdges(t *testing.T) {
	t.Parallel()
	app, witnesses := buildWitnesses(t, s1Collation())
	for _, wid := range app.Witnesses() {
		if _, err := Canonicalize(context.Background(), witnesses[wid], substemma.Options{}); err != nil {
			t.Fatalf("Canonicalize(%s): %v", wid, err)
		}
	}

	stemma := Build(app.Witnesses(), witnesses)
	if len(stemma.WitnessIDs) != 2 {
		t.Fatalf("WitnessIDs = %v, want 2 entries", stemma.WitnessIDs)
	}

	var found bool
	for _, e := range stemma.Edges {
		if e.Witness == "W2" && e.Ancestor == "A" {
			found = true
			if e.Length != 1.0 {
				t.Fatalf("edge Length = %v, want 1.0", e.Length)
			}
		}
	}
	if !found {
		t.Fatalf("expected edge W2->A in %v", stemma.Edges)
	}
}
