// Package flowdot renders a textual-flow graph as DOT text, with a small
// render-strategy interface and strings.Builder accumulation.
package flowdot

import (
	"fmt"
	"strings"

	"github.com/papapumpkin/cbgm/internal/flow"
)

// RenderStrategy renders one of the three derived views of a Flow as
// DOT text.
type RenderStrategy interface {
	Render(f flow.Flow) string
}

// CompleteStrategy renders every stemmatic-ancestor edge in the flow,
// colored by reading.
type CompleteStrategy struct{}

func (CompleteStrategy) Render(f flow.Flow) string {
	return render(f, f.Restrict(flow.Complete, ""), "complete_flow", nil)
}

// AttestationStrategy renders only the subgraph attesting to one reading.
type AttestationStrategy struct {
	Reading string
}

func (s AttestationStrategy) Render(f flow.Flow) string {
	keep := func(wit string) bool { return f.ReadingOf[wit] == s.Reading }
	return render(f, f.Restrict(flow.AttestationOf, s.Reading), "attestation_"+sanitize(s.Reading), keep)
}

// VariantPassagesStrategy renders only edges between witnesses reading
// different readings — the passages where the flow actually changes text.
type VariantPassagesStrategy struct{}

func (VariantPassagesStrategy) Render(f flow.Flow) string {
	return render(f, f.Restrict(flow.VariantPassages, ""), "variant_passages", nil)
}

// render draws the witness nodes accepted by keep (all of them when keep is
// nil) and the given edges.
func render(f flow.Flow, edges []flow.Edge, graphName string, keep func(wit string) bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", sanitize(graphName+"_"+f.UnitID))
	b.WriteString("  rankdir=BT;\n")

	readings := f.Readings()
	colors := colorPalette(readings)
	for wit, reading := range f.ReadingOf {
		if keep != nil && !keep(wit) {
			continue
		}
		fmt.Fprintf(&b, "  %q [label=%q, style=filled, fillcolor=%q];\n", wit, fmt.Sprintf("%s (%s)", wit, reading), colors[reading])
	}

	for _, e := range edges {
		if e.Ancestor == "" {
			if e.TextualLoss {
				// Drawn as a root: its prior reading lies beyond the connectivity window.
				fmt.Fprintf(&b, "  %q [xlabel=%q];\n", e.Descendant, "textual loss")
			}
			continue
		}
		if e.TextualLoss {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed, label=%q];\n", e.Ancestor, e.Descendant, "textual loss")
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.Ancestor, e.Descendant, fmt.Sprintf("%.2f", e.Cost))
	}

	b.WriteString("}\n")
	return b.String()
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// colorPalette assigns a deterministic, distinct DOT color name to each
// reading, cycling through a fixed palette if there are more readings than
// colors.
func colorPalette(readings []string) map[string]string {
	palette := []string{"lightblue", "lightgreen", "lightyellow", "lightpink", "lightgray", "lightsalmon", "lightcyan"}
	out := make(map[string]string, len(readings))
	for i, r := range readings {
		out[r] = palette[i%len(palette)]
	}
	return out
}
