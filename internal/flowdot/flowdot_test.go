package flowdot

import (
	"strings"
	"testing"

	"github.com/papapumpkin/cbgm/internal/flow"
)

func sampleFlow() flow.Flow {
	return flow.Flow{
		UnitID:       "u1",
		Connectivity: 2,
		ReadingOf:    map[string]string{"A": "a", "W1": "b", "W2": "a"},
		Edges: []flow.Edge{
			{Descendant: "A"},
			{Descendant: "W1", Ancestor: "A", Cost: 1},
			{Descendant: "W2", TextualLoss: true},
		},
	}
}

func TestCompleteStrategyRendersAllEdges(t *testing.T) {
	t.Parallel()
	out := CompleteStrategy{}.Render(sampleFlow())
	if !strings.Contains(out, "digraph") {
		t.Fatalf("output missing digraph header: %q", out)
	}
	if !strings.Contains(out, `"A" -> "W1"`) {
		t.Fatalf("expected an edge from A to W1, got %q", out)
	}
	if !strings.Contains(out, "textual loss") {
		t.Fatalf("expected W2's textual-loss edge to be rendered, got %q", out)
	}
}

func TestAttestationStrategyFiltersByReading(t *testing.T) {
	t.Parallel()
	out := AttestationStrategy{Reading: "a"}.Render(sampleFlow())
	if strings.Contains(out, `"W1"`) {
		t.Fatalf("attestation of %q should exclude W1 (reads b): %q", "a", out)
	}
}

func TestVariantPassagesStrategyExcludesSameReadingEdges(t *testing.T) {
	t.Parallel()
	out := VariantPassagesStrategy{}.Render(sampleFlow())
	if !strings.Contains(out, `"A" -> "W1"`) {
		t.Fatalf("A->W1 differs in reading and should appear: %q", out)
	}
}

func TestSanitizeProducesValidDotIdentifierChars(t *testing.T) {
	t.Parallel()
	out := sanitize("complete_flow_u1:2")
	if strings.ContainsAny(out, ":") {
		t.Fatalf("sanitize left invalid characters: %q", out)
	}
}
