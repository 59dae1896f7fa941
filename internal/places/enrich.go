package places

import (
	"context"
	"strings"

	"voyago/internal/planner"
)

// Enricher links timeline entries to prefetched places by name matching.
// It is pure and does no I/O.
type Enricher struct{}

// NewEnricher returns the name-matching enricher.
func NewEnricher() *Enricher {
	return &Enricher{}
}

// Enrich attaches a PlaceRef to every timeline entry it can match, graded by
// confidence. Entries that match nothing are left untouched.
func (e *Enricher) Enrich(ctx context.Context, days []planner.ItineraryDay, full []planner.Place) (*planner.EnrichResult, error) {
	out := make([]planner.ItineraryDay, len(days))
	copy(out, days)

	stats := planner.PlaceStats{}
	for di := range out {
		timeline := make([]planner.TimelineEntry, len(out[di].Timeline))
		copy(timeline, out[di].Timeline)
		for ti := range timeline {
			stats.TotalItems++
			if ref := bestMatch(timeline[ti], full); ref != nil {
				timeline[ti].Place = ref
				stats.LinkedItems++
			}
		}
		out[di].Timeline = timeline
	}
	return &planner.EnrichResult{Days: out, Stats: stats}, nil
}

// bestMatch returns the highest-confidence place link for an entry, or nil.
func bestMatch(entry planner.TimelineEntry, full []planner.Place) *planner.PlaceRef {
	var (
		best     *planner.Place
		bestConf planner.PlaceConfidence
	)
	for i := range full {
		conf := matchConfidence(entry, full[i])
		if confRank(conf) > confRank(bestConf) {
			best = &full[i]
			bestConf = conf
		}
	}
	if best == nil || bestConf == planner.ConfidenceNone || bestConf == "" {
		return nil
	}
	return &planner.PlaceRef{
		PlaceID:    best.PlaceID,
		Name:       best.Name,
		Lat:        best.Lat,
		Lng:        best.Lng,
		Confidence: bestConf,
	}
}

// matchConfidence grades how well a place name matches the entry's location
// first and its activity text second.
func matchConfidence(entry planner.TimelineEntry, place planner.Place) planner.PlaceConfidence {
	name := normalize(place.Name)
	if name == "" {
		return planner.ConfidenceNone
	}
	loc := normalize(entry.Location)
	act := normalize(entry.Activity)

	if loc == name {
		return planner.ConfidenceExact
	}
	if loc != "" && (strings.Contains(loc, name) || strings.Contains(name, loc)) {
		return planner.ConfidenceHigh
	}
	if act != "" && strings.Contains(act, name) {
		return planner.ConfidenceHigh
	}
	if overlappingTokens(loc, name) >= 2 || overlappingTokens(act, name) >= 2 {
		return planner.ConfidenceLow
	}
	return planner.ConfidenceNone
}

func confRank(c planner.PlaceConfidence) int {
	switch c {
	case planner.ConfidenceExact:
		return 3
	case planner.ConfidenceHigh:
		return 2
	case planner.ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// normalize lowercases and strips everything but letters, digits and spaces.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '\'':
			b.WriteByte(' ')
		default:
			if r > 127 {
				b.WriteRune(r)
			}
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// overlappingTokens counts shared tokens of length three or more.
func overlappingTokens(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	set := make(map[string]bool)
	for _, tok := range strings.Fields(a) {
		if len(tok) >= 3 {
			set[tok] = true
		}
	}
	n := 0
	for _, tok := range strings.Fields(b) {
		if len(tok) >= 3 && set[tok] {
			n++
			set[tok] = false
		}
	}
	return n
}
