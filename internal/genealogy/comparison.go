// Package genealogy builds per-witness genealogical comparisons: for a
// primary witness p and every secondary witness s, seven bitmaps over
// variation-unit indices (extant, agreements, prior, posterior, norel,
// unclear, explained) plus a scalar cost, derived from the apparatus's
// local stemmata. It also ranks each witness's potential ancestors.
package genealogy

import (
	"fmt"

	"github.com/papapumpkin/cbgm/internal/apparatus"
	"github.com/papapumpkin/cbgm/internal/bitmap"
	"github.com/papapumpkin/cbgm/internal/stemma"
)

// Comparison holds the seven bitmaps and scalar cost for one ordered pair
// (Primary, Secondary). All bitmaps are over variation-unit indices as
// defined by the apparatus's frozen unit order.
type Comparison struct {
	Primary   string
	Secondary string

	Extant     *bitmap.Bitmap
	Agreements *bitmap.Bitmap
	Prior      *bitmap.Bitmap
	Posterior  *bitmap.Bitmap
	Norel      *bitmap.Bitmap
	Unclear    *bitmap.Bitmap
	Explained  *bitmap.Bitmap
	Cost       float64
}

// Build computes the comparison of primary against secondary over app's
// variation units, using classic-mode cost semantics when classic is true
// and, in that mode, consulting the primary witness's already-ranked
// potential ancestors (potentialAncestors) to resolve unclear units. Pass
// nil for potentialAncestors when not in classic mode, or when ranking is
// not yet available.
func Build(app *apparatus.Apparatus, primary, secondary string, classic bool, potentialAncestors []string) (Comparison, error) {
	if !app.HasWitness(primary) {
		return Comparison{}, fmt.Errorf("genealogy: unknown primary witness %q", primary)
	}
	if !app.HasWitness(secondary) {
		return Comparison{}, fmt.Errorf("genealogy: unknown secondary witness %q", secondary)
	}

	c := Comparison{
		Primary:    primary,
		Secondary:  secondary,
		Extant:     bitmap.New(),
		Agreements: bitmap.New(),
		Prior:      bitmap.New(),
		Posterior:  bitmap.New(),
		Norel:      bitmap.New(),
		Unclear:    bitmap.New(),
		Explained:  bitmap.New(),
	}

	units := app.Units()
	if primary == secondary {
		for i := range units {
			if _, ok := app.ReadingAtIndex(primary, i); !ok {
				continue
			}
			c.Extant.Set(i)
			c.Agreements.Set(i)
			c.Explained.Set(i)
		}
		return c, nil
	}

	var majorityReading map[int]string
	if classic && len(potentialAncestors) > 0 {
		majorityReading = majorityReadingPerUnit(app, units, potentialAncestors)
	}

	for i, u := range units {
		rp, okP := app.ReadingAtIndex(primary, i)
		rs, okS := app.ReadingAtIndex(secondary, i)
		if !okP || !okS {
			continue
		}
		c.Extant.Set(i)

		switch {
		case rp == rs:
			c.Agreements.Set(i)
			c.Explained.Set(i)
		case u.Stemma.IsEqual(rp, rs):
			c.Agreements.Set(i)
			c.Explained.Set(i)
		case u.Stemma.IsUnclear(rp, rs) || u.Stemma.IsUnclear(rs, rp):
			c.Unclear.Set(i)
			if classic && majorityReading != nil && majorityReading[i] == rp {
				c.Explained.Set(i)
			}
		default:
			costForward := u.Stemma.PathCost(rp, rs)
			costBackward := u.Stemma.PathCost(rs, rp)
			switch {
			case costForward < stemma.Inf:
				c.Prior.Set(i)
			case costBackward < stemma.Inf:
				// p's reading descends from s's: s explains p here.
				c.Posterior.Set(i)
				c.Explained.Set(i)
				c.Cost += costBackward
			default:
				c.Norel.Set(i)
			}
		}
	}
	return c, nil
}

// majorityReadingPerUnit computes, for each unit index, the reading
// attested by a strict majority of the given potential-ancestor IDs
// (ties do not count), for use by classic-mode unclear resolution.
func majorityReadingPerUnit(app *apparatus.Apparatus, units []apparatus.Unit, potentialAncestors []string) map[int]string {
	out := make(map[int]string, len(units))
	half := len(potentialAncestors)
	for i := range units {
		counts := make(map[string]int)
		for _, a := range potentialAncestors {
			r, ok := app.ReadingAtIndex(a, i)
			if !ok {
				continue
			}
			counts[r]++
		}
		var bestReading string
		bestCount := 0
		for r, n := range counts {
			if n > bestCount {
				bestCount = n
				bestReading = r
			}
		}
		if bestCount*2 > half && bestCount > 0 {
			out[i] = bestReading
		}
	}
	return out
}
