// Package apparatus models a normalized collation: an ordered list of
// variation units (whose order defines the bit indices used by every
// bitmap in internal/genealogy), an ordered witness list, and the ingestion
// options that shape how a raw collation document is folded into that
// model. An Apparatus is immutable once built.
package apparatus

import (
	"errors"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/cbgm/internal/collation"
	"github.com/papapumpkin/cbgm/internal/stemma"
)

// ErrDuplicateUnit is returned when ingestion encounters the same variation
// unit ID twice.
var ErrDuplicateUnit = errors.New("apparatus: duplicate variation unit")

// ErrDuplicateWitness names a repeated witness ID. Build does not return
// it: sigla that are equal after suffix stripping collapse into the first
// occurrence.
var ErrDuplicateWitness = errors.New("apparatus: duplicate witness")

// ErrUnknownReading is returned when a support entry names a reading not
// declared for its unit.
var ErrUnknownReading = errors.New("apparatus: unknown reading")

// ErrUnknownReadingType names a reading type outside the trivial/dropped/kept
// classification. Build does not return it: every type that is neither
// trivial nor dropped is kept as a normal reading.
var ErrUnknownReadingType = errors.New("apparatus: unknown reading type")

// Options shapes how RawCollation is folded into an Apparatus. It is a
// static document read once at build-cache time, authored as TOML and
// decoded with LoadOptions rather than layered through viper/env/flags
// like the rest of the ambient config.
type Options struct {
	// TrivialReadingTypes names reading types whose support is merged into
	// the nearest parent reading (treated as agreement with it).
	TrivialReadingTypes []string `toml:"trivial_reading_types"`
	// DroppedReadingTypes names reading types removed entirely: a witness
	// supporting only a dropped reading at a unit becomes lacunose there.
	DroppedReadingTypes []string `toml:"dropped_reading_types"`
	// IgnoredSuffixes lists tokens stripped from witness sigla before
	// matching, so witnesses differing only by suffix collapse to one.
	IgnoredSuffixes []string `toml:"ignored_suffixes"`
	// MergeSplits, if true, merges readings marked as split attestations of
	// the same underlying reading prior to local-stemma construction.
	MergeSplits bool `toml:"merge_splits"`
	// Threshold is the minimum number of units at which a witness must be
	// extant to be retained. Zero means no filtering.
	Threshold int `toml:"threshold"`
	// Classic selects the stricter "classic" definition of explained (see
	// internal/genealogy).
	Classic bool `toml:"classic"`
}

// LoadOptions decodes an ingestion-options TOML document at path into an
// Options value.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("apparatus: read options %q: %w", path, err)
	}
	var opts Options
	if err := toml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("apparatus: parse options %q: %w", path, err)
	}
	return opts, nil
}

// Unit is one variation unit: an ID, a label, the ordered reading IDs
// declared for it, and its built local stemma.
type Unit struct {
	ID           string
	Label        string
	ReadingIDs   []string
	Connectivity int // 0 means unlimited
	Edges        []stemma.Edge // normalized local-stemma edges, as built
	Stemma       *stemma.LocalStemma
}

// Unlimited is the connectivity value meaning "no rank cap".
const Unlimited = 0

// RawReading, RawEdge, RawUnit, and RawCollation alias internal/collation's
// already-parsed-form types: the apparatus consumes that contract directly
// rather than declaring a second, parallel one.
type (
	RawReading   = collation.Reading
	RawEdge      = collation.Edge
	RawUnit      = collation.Unit
	RawCollation = collation.Collation
)

// Apparatus is the frozen, queryable collation model.
type Apparatus struct {
	units       []Unit
	unitIndex   map[string]int
	witnesses   []string
	witIndex    map[string]int
	supportAt   []map[string]string // unit index -> witness ID -> reading ID (post-normalization)
	extantCount map[string]int
	classic     bool
}

// Build ingests a RawCollation under the given options, producing an
// immutable Apparatus. Witness and unit orderings in the result preserve
// RawCollation's orderings except for the threshold-based witness filter,
// which is applied once here.
func Build(raw RawCollation, opts Options) (*Apparatus, error) {
	normalizeID := siglumNormalizer(opts.IgnoredSuffixes)

	witnesses := make([]string, 0, len(raw.WitnessIDs))
	witSeen := make(map[string]bool)
	witRename := make(map[string]string) // raw siglum -> normalized ID
	for _, w := range raw.WitnessIDs {
		norm := normalizeID(w)
		witRename[w] = norm
		if witSeen[norm] {
			continue // suffix collapse: keep first occurrence's position
		}
		witSeen[norm] = true
		witnesses = append(witnesses, norm)
	}

	trivial := toSet(opts.TrivialReadingTypes)
	dropped := toSet(opts.DroppedReadingTypes)

	unitIDSeen := make(map[string]bool)
	units := make([]Unit, 0, len(raw.Units))
	supportAt := make([]map[string]string, 0, len(raw.Units))

	for _, ru := range raw.Units {
		if unitIDSeen[ru.ID] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateUnit, ru.ID)
		}
		unitIDSeen[ru.ID] = true

		keptReadingIDs, mergeTarget, err := classifyReadings(ru.Readings, trivial, dropped, opts.MergeSplits)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", ru.ID, err)
		}

		support := make(map[string]string, len(ru.Support))
		for rawWit, readingID := range ru.Support {
			norm, ok := witRename[rawWit]
			if !ok {
				norm = normalizeID(rawWit)
			}
			if !witSeen[norm] {
				continue // witness was dropped before declaration; skip support
			}
			resolved := readingID
			if target, ok := mergeTarget[resolved]; ok {
				resolved = target
			}
			if dropped[readingTypeOf(ru.Readings, readingID)] {
				continue // dropped entirely: witness becomes lacunose here
			}
			if _, ok := indexOf(keptReadingIDs, resolved); !ok {
				return nil, fmt.Errorf("unit %q: %w: %q", ru.ID, ErrUnknownReading, readingID)
			}
			support[norm] = resolved
		}

		edges := make([]stemma.Edge, 0, len(ru.Edges))
		for _, re := range ru.Edges {
			prior, posterior := re.PriorID, re.PosteriorID
			if target, ok := mergeTarget[prior]; ok {
				prior = target
			}
			if target, ok := mergeTarget[posterior]; ok {
				posterior = target
			}
			if prior == posterior {
				continue // merged into the same reading: no self-edge
			}
			edges = append(edges, stemma.Edge{
				PriorID:     prior,
				PosteriorID: posterior,
				Weight:      re.Weight,
				Unclear:     re.Unclear,
			})
		}

		ls, err := stemma.Build(ru.ID, ru.Label, keptReadingIDs, edges)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", ru.ID, err)
		}

		units = append(units, Unit{
			ID:           ru.ID,
			Label:        ru.Label,
			ReadingIDs:   keptReadingIDs,
			Connectivity: ru.Connectivity,
			Edges:        edges,
			Stemma:       ls,
		})
		supportAt = append(supportAt, support)
	}

	unitIndex := make(map[string]int, len(units))
	for i, u := range units {
		unitIndex[u.ID] = i
	}

	extantCount := make(map[string]int, len(witnesses))
	for _, w := range witnesses {
		for ui := range units {
			if _, ok := supportAt[ui][w]; ok {
				extantCount[w]++
			}
		}
	}

	witIndex := make(map[string]int, len(witnesses))
	for i, w := range witnesses {
		witIndex[w] = i
	}

	a := &Apparatus{
		units:       units,
		unitIndex:   unitIndex,
		witnesses:   witnesses,
		witIndex:    witIndex,
		supportAt:   supportAt,
		extantCount: extantCount,
		classic:     opts.Classic,
	}

	if opts.Threshold > 0 {
		a.applyThreshold(opts.Threshold)
	}
	return a, nil
}

// applyThreshold drops witnesses extant at fewer than n units, mutating the
// receiver's witness list once during construction. Called only from Build,
// before the Apparatus is returned to any caller.
func (a *Apparatus) applyThreshold(n int) {
	kept := a.witnesses[:0:0]
	for _, w := range a.witnesses {
		if a.extantCount[w] >= n {
			kept = append(kept, w)
		}
	}
	a.witnesses = kept
	a.witIndex = make(map[string]int, len(kept))
	for i, w := range kept {
		a.witIndex[w] = i
	}
}

// Units returns the variation units in ingestion order.
func (a *Apparatus) Units() []Unit { return a.units }

// Unit returns the unit with the given ID, or nil if absent.
func (a *Apparatus) Unit(id string) *Unit {
	i, ok := a.unitIndex[id]
	if !ok {
		return nil
	}
	return &a.units[i]
}

// UnitIndex returns the bit index of the unit with the given ID, and
// whether it exists.
func (a *Apparatus) UnitIndex(id string) (int, bool) {
	i, ok := a.unitIndex[id]
	return i, ok
}

// Witnesses returns the witness IDs in frozen order; this order defines the
// bit index used by every bitmap over witnesses elsewhere in the engine
// that needs one (none currently does — bitmaps here are over units).
func (a *Apparatus) Witnesses() []string { return append([]string(nil), a.witnesses...) }

// WitnessIndex returns the index of witness id in the frozen witness list.
func (a *Apparatus) WitnessIndex(id string) (int, bool) {
	i, ok := a.witIndex[id]
	return i, ok
}

// HasWitness reports whether id survived ingestion (and any threshold
// filter).
func (a *Apparatus) HasWitness(id string) bool {
	_, ok := a.witIndex[id]
	return ok
}

// ReadingAt returns the reading ID witness supports at unit, and whether it
// is extant there.
func (a *Apparatus) ReadingAt(witness, unitID string) (string, bool) {
	ui, ok := a.unitIndex[unitID]
	if !ok {
		return "", false
	}
	r, ok := a.supportAt[ui][witness]
	return r, ok
}

// ReadingAtIndex is the index-addressed form of ReadingAt, used by the
// comparison builder's hot loop over unit indices.
func (a *Apparatus) ReadingAtIndex(witness string, unitIdx int) (string, bool) {
	if unitIdx < 0 || unitIdx >= len(a.supportAt) {
		return "", false
	}
	r, ok := a.supportAt[unitIdx][witness]
	return r, ok
}

// ExtantPassagesForWitness returns the number of units at which witness is
// extant.
func (a *Apparatus) ExtantPassagesForWitness(id string) int { return a.extantCount[id] }

// Classic reports whether the apparatus was built with classic-mode cost
// semantics requested.
func (a *Apparatus) Classic() bool { return a.classic }

// --- ingestion helpers ---

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func siglumNormalizer(suffixes []string) func(string) string {
	if len(suffixes) == 0 {
		return func(s string) string { return s }
	}
	return func(s string) string {
		for _, suf := range suffixes {
			s = strings.TrimSuffix(s, suf)
		}
		return s
	}
}

func readingTypeOf(readings []RawReading, id string) string {
	for _, r := range readings {
		if r.ID == id {
			return r.Type
		}
	}
	return ""
}

func indexOf(ids []string, id string) (int, bool) {
	for i, v := range ids {
		if v == id {
			return i, true
		}
	}
	return 0, false
}

// classifyReadings partitions a unit's raw readings into the kept reading
// ID list (trivial and normal readings, in original order with trivial
// readings merged away) and, when MergeSplits or trivial-merge applies, a
// map from a removed reading ID to the reading ID it should be treated as.
func classifyReadings(readings []RawReading, trivial, dropped map[string]bool, mergeSplits bool) ([]string, map[string]string, error) {
	var kept []string
	mergeTarget := make(map[string]string)

	var lastKept string
	for _, r := range readings {
		switch {
		case dropped[r.Type]:
			continue
		case trivial[r.Type]:
			if lastKept == "" {
				// No parent yet to merge into: keep it as its own reading.
				kept = append(kept, r.ID)
				lastKept = r.ID
				continue
			}
			mergeTarget[r.ID] = lastKept
		default:
			kept = append(kept, r.ID)
			lastKept = r.ID
		}
	}

	if mergeSplits {
		kept, mergeTarget = mergeSplitReadings(kept, mergeTarget)
	}
	return kept, mergeTarget, nil
}

// mergeSplitReadings folds split-attestation readings — conventionally
// suffixed with "/1", "/2", ... on a shared base ID — into their base
// reading, which must already be present among kept or introduced as the
// first split encountered.
func mergeSplitReadings(kept []string, mergeTarget map[string]string) ([]string, map[string]string) {
	baseOf := func(id string) (string, bool) {
		i := strings.LastIndex(id, "/")
		if i < 0 {
			return "", false
		}
		return id[:i], true
	}

	baseSeen := make(map[string]bool)
	var out []string
	for _, id := range kept {
		base, isSplit := baseOf(id)
		if !isSplit {
			out = append(out, id)
			baseSeen[id] = true
			continue
		}
		mergeTarget[id] = base
		if !baseSeen[base] {
			out = append(out, base)
			baseSeen[base] = true
		}
	}
	return out, mergeTarget
}
