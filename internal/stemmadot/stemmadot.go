// Package stemmadot renders the global stemma and local stemmata as DOT text, with a small
// render-strategy interface and a Render(...) string method per view.
package stemmadot

import (
	"fmt"
	"strings"

	"github.com/papapumpkin/cbgm/internal/apparatus"
	"github.com/papapumpkin/cbgm/internal/globalstemma"
)

// RenderStrategy renders a global stemma as DOT text.
type RenderStrategy interface {
	Render(s globalstemma.Stemma) string
}

// LocalRenderStrategy renders one variation unit's local stemma as
// DOT text.
type LocalRenderStrategy interface {
	Render(u apparatus.Unit) string
}

// LocalStrategy renders one node per reading and one edge per local-stemma
// edge, labeled with its weight; unclear edges are drawn dashed.
type LocalStrategy struct{}

func (LocalStrategy) Render(u apparatus.Unit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph local_stemma_%s {\n", sanitizeUnitID(u.ID))
	b.WriteString("  rankdir=BT;\n")
	for _, r := range u.ReadingIDs {
		fmt.Fprintf(&b, "  %q;\n", r)
	}
	for _, e := range u.Edges {
		if e.Unclear {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed, label=%q];\n", e.PriorID, e.PosteriorID, fmt.Sprintf("%.2f", e.Weight))
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.PriorID, e.PosteriorID, fmt.Sprintf("%.2f", e.Weight))
	}
	b.WriteString("}\n")
	return b.String()
}

func sanitizeUnitID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// PlainStrategy renders nodes and edges with no attributes beyond the
// witness/ancestor relationship itself.
type PlainStrategy struct{}

func (PlainStrategy) Render(s globalstemma.Stemma) string {
	var b strings.Builder
	b.WriteString("digraph global_stemma {\n")
	b.WriteString("  rankdir=BT;\n")
	for _, w := range s.WitnessIDs {
		fmt.Fprintf(&b, "  %q;\n", w)
	}
	for _, e := range s.Edges {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.Ancestor, e.Witness)
	}
	b.WriteString("}\n")
	return b.String()
}

// WeightedStrategy additionally labels each edge with its length and
// strength attributes (the optional edge attributes).
type WeightedStrategy struct{}

func (WeightedStrategy) Render(s globalstemma.Stemma) string {
	var b strings.Builder
	b.WriteString("digraph global_stemma {\n")
	b.WriteString("  rankdir=BT;\n")
	for _, w := range s.WitnessIDs {
		fmt.Fprintf(&b, "  %q;\n", w)
	}
	for _, e := range s.Edges {
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.Ancestor, e.Witness,
			fmt.Sprintf("len=%.2f strength=%.2f", e.Length, e.Strength))
	}
	b.WriteString("}\n")
	return b.String()
}
