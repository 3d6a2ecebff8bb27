package chart

import (
	"math"
	"sort"

	"github.com/cbegin/bmschart-go/internal/timeline"
)

// Finalize normalizes a freshly materialized model: notes and event lists are
// put in time order, colliding notes are resolved, and the tempo, pause and
// scroll lists are derived from the timeline entries (given in tick order).
// eps is the smallest tempo or scroll difference that counts as a change.
func Finalize(m *Model, entries []timeline.Entry, eps float64) {
	sort.SliceStable(m.Notes, func(i, j int) bool {
		a, b := m.Notes[i], m.Notes[j]
		if a.TimeUs != b.TimeUs {
			return a.TimeUs < b.TimeUs
		}
		return a.Lane < b.Lane
	})
	sort.SliceStable(m.BgEvents, func(i, j int) bool {
		return m.BgEvents[i].TimeUs < m.BgEvents[j].TimeUs
	})
	sort.SliceStable(m.BgaEvents, func(i, j int) bool {
		return m.BgaEvents[i].TimeUs < m.BgaEvents[j].TimeUs
	})
	m.Notes = dedupe(m.Notes)

	m.TempoChanges = m.TempoChanges[:0]
	m.PauseEvents = m.PauseEvents[:0]
	m.ScrollChanges = m.ScrollChanges[:0]
	tempo, scroll := m.InitialTempo, 1.0
	for _, en := range entries {
		t := int64(en.TimeUs)
		if math.Abs(en.Tempo-tempo) > eps {
			m.TempoChanges = append(m.TempoChanges, TempoChange{TimeUs: t, Tempo: en.Tempo})
			tempo = en.Tempo
		}
		if math.Abs(en.Scroll-scroll) > eps {
			m.ScrollChanges = append(m.ScrollChanges, ScrollChange{TimeUs: t, Rate: en.Scroll})
			scroll = en.Scroll
		}
		if en.PauseUs > 0 {
			m.PauseEvents = append(m.PauseEvents, PauseEvent{TimeUs: t, DurationUs: int64(en.PauseUs)})
		}
	}

	m.Timeline = m.Timeline[:0]
	for i, n := range m.Notes {
		if i > 0 && m.Notes[i-1].TimeUs == n.TimeUs {
			continue
		}
		m.Timeline = append(m.Timeline, TimelinePoint{TimeUs: n.TimeUs, Tempo: m.TempoAt(n.TimeUs)})
	}

	m.DurationUs = 0
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		m.DurationUs = int64(last.TimeUs + last.PauseUs)
	}
	for _, n := range m.Notes {
		if end := n.End(); end > m.DurationUs {
			m.DurationUs = end
		}
	}
}

// dedupe keeps one note per (lane, time). Input must be sorted by
// (time, lane). A later note replaces the kept one only with strictly
// higher priority.
func dedupe(notes []Note) []Note {
	out := notes[:0]
	for _, n := range notes {
		if k := len(out) - 1; k >= 0 && out[k].Lane == n.Lane && out[k].TimeUs == n.TimeUs {
			if n.Kind.priority() > out[k].Kind.priority() {
				out[k] = n
			}
			continue
		}
		out = append(out, n)
	}
	return out
}
