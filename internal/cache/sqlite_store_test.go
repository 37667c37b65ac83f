package cache

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/cbgm/internal/apparatus"
	"github.com/papapumpkin/cbgm/internal/genealogy"
)

func fixtureCollation() apparatus.RawCollation {
	mk := func(id, label string, support map[string]string) apparatus.RawUnit {
		return apparatus.RawUnit{
			ID:       id,
			Label:    label,
			Readings: []apparatus.RawReading{{ID: "a"}, {ID: "b"}},
			Support:  support,
			Edges:    []apparatus.RawEdge{{PriorID: "a", PosteriorID: "b", Weight: 1}},
		}
	}
	return apparatus.RawCollation{
		WitnessIDs: []string{"A", "W1", "W2", "W3"},
		Units: []apparatus.RawUnit{
			mk("u1", "1:1", map[string]string{"A": "a", "W1": "a", "W2": "b", "W3": "a"}),
			mk("u2", "1:2", map[string]string{"A": "a", "W1": "b", "W2": "a", "W3": "a"}),
			mk("u3", "1:3", map[string]string{"A": "a", "W1": "a", "W2": "a", "W3": "b"}),
		},
	}
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(context.Background(), filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestS6CacheRoundTrip is spec scenario S6: build cache from a 4-witness x
// 3-unit fixture, read back, and assert bit-exact equality on bitmaps and
// |delta cost| < 1e-6.
func TestS6CacheRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openTestStore(t)

	app, err := apparatus.Build(fixtureCollation(), apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}
	if err := store.WriteApparatus(ctx, app); err != nil {
		t.Fatalf("WriteApparatus: %v", err)
	}

	want := make(map[string]genealogy.Comparison)
	for _, s := range app.Witnesses() {
		c, err := genealogy.Build(app, "A", s, false, nil)
		if err != nil {
			t.Fatalf("genealogy.Build: %v", err)
		}
		want[s] = c
	}
	if err := store.WriteComparisons(ctx, want); err != nil {
		t.Fatalf("WriteComparisons: %v", err)
	}

	got, err := store.ComparisonsFor(ctx, "A")
	if err != nil {
		t.Fatalf("ComparisonsFor: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("ComparisonsFor returned %d comparisons, want %d", len(got), len(want))
	}
	for secondary, wantComp := range want {
		gotComp, ok := got[secondary]
		if !ok {
			t.Fatalf("missing comparison for secondary %q", secondary)
		}
		bitmapFields := []struct {
			name      string
			want, got []int
		}{
			{"extant", wantComp.Extant.ToSlice(), gotComp.Extant.ToSlice()},
			{"agreements", wantComp.Agreements.ToSlice(), gotComp.Agreements.ToSlice()},
			{"prior", wantComp.Prior.ToSlice(), gotComp.Prior.ToSlice()},
			{"posterior", wantComp.Posterior.ToSlice(), gotComp.Posterior.ToSlice()},
			{"norel", wantComp.Norel.ToSlice(), gotComp.Norel.ToSlice()},
			{"unclear", wantComp.Unclear.ToSlice(), gotComp.Unclear.ToSlice()},
			{"explained", wantComp.Explained.ToSlice(), gotComp.Explained.ToSlice()},
		}
		for _, f := range bitmapFields {
			if diff := cmp.Diff(f.want, f.got); diff != "" {
				t.Fatalf("secondary %q bitmap %q mismatch (-want +got):\n%s", secondary, f.name, diff)
			}
		}
		if math.Abs(wantComp.Cost-gotComp.Cost) >= 1e-6 {
			t.Fatalf("secondary %q cost = %v, want %v", secondary, gotComp.Cost, wantComp.Cost)
		}
	}
}

func TestLoadApparatusRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openTestStore(t)

	app, err := apparatus.Build(fixtureCollation(), apparatus.Options{})
	if err != nil {
		t.Fatalf("apparatus.Build: %v", err)
	}
	if err := store.WriteApparatus(ctx, app); err != nil {
		t.Fatalf("WriteApparatus: %v", err)
	}

	loaded, err := store.LoadApparatus(ctx)
	if err != nil {
		t.Fatalf("LoadApparatus: %v", err)
	}
	if diff := cmp.Diff(app.Witnesses(), loaded.Witnesses()); diff != "" {
		t.Fatalf("Witnesses() mismatch (-want +got):\n%s", diff)
	}
	for _, u := range app.Units() {
		loadedUnit := loaded.Unit(u.ID)
		if loadedUnit == nil {
			t.Fatalf("unit %q missing after reload", u.ID)
		}
		r, ok := app.ReadingAt("W1", u.ID)
		lr, lok := loaded.ReadingAt("W1", u.ID)
		if ok != lok || r != lr {
			t.Fatalf("unit %q: ReadingAt(W1) = (%q,%v), reload = (%q,%v)", u.ID, r, ok, lr, lok)
		}
	}
}

func TestSchemaVersionMismatchRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.db.ExecContext(ctx, "UPDATE SCHEMA_VERSION SET version = ?", SchemaVersion+1); err != nil {
		t.Fatalf("corrupt schema version: %v", err)
	}
	store.Close()

	_, err = Open(ctx, path)
	if err == nil {
		t.Fatalf("expected schema version mismatch error")
	}
}
