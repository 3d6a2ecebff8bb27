package bmschart

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// MIDITicksPerQuarter is the resolution of exported MIDI files.
const MIDITicksPerQuarter = 960

const (
	midiNoteChannel = 0
	midiBgChannel   = 1
	midiLaneBaseKey = 36
	midiBgKey       = 60
)

// tickMap converts chart time to MIDI ticks along the chart's tempo map.
// Pauses are carried at the tempo in effect so wall-clock time is kept.
type tickMap struct {
	times  []int64
	ticks  []float64
	tempos []float64
}

func newTickMap(c *Chart) *tickMap {
	m := &tickMap{times: []int64{0}, ticks: []float64{0}, tempos: []float64{c.InitialTempo}}
	for _, tc := range c.TempoChanges {
		if tc.TimeUs < 0 {
			continue
		}
		last := len(m.times) - 1
		tick := m.ticks[last] + m.span(last, tc.TimeUs)
		if tc.TimeUs == m.times[last] {
			m.tempos[last] = tc.Tempo
			continue
		}
		m.times = append(m.times, tc.TimeUs)
		m.ticks = append(m.ticks, tick)
		m.tempos = append(m.tempos, tc.Tempo)
	}
	return m
}

func (m *tickMap) span(seg int, timeUs int64) float64 {
	return float64(timeUs-m.times[seg]) * m.tempos[seg] / 60e6 * MIDITicksPerQuarter
}

func (m *tickMap) tick(timeUs int64) uint32 {
	if timeUs <= 0 {
		return 0
	}
	seg := sort.Search(len(m.times), func(i int) bool { return m.times[i] > timeUs }) - 1
	return uint32(m.ticks[seg] + m.span(seg, timeUs) + 0.5)
}

type midiEvent struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// addEvents writes events to tr in tick order, note-offs first at a tick.
func addEvents(tr *smf.Track, events []midiEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})
	var last uint32
	for _, ev := range events {
		tr.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
}

// WriteMIDI exports c as a type 1 Standard MIDI File: a conductor track
// with the tempo map, a track of judged notes keyed by lane, and a track of
// background keysounds.
func WriteMIDI(w io.Writer, c *Chart) error {
	tm := newTickMap(c)
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(MIDITicksPerQuarter)

	var conductor smf.Track
	conductor.Add(0, smf.MetaTrackSequenceName(c.Title))
	conductor.Add(0, smf.MetaTempo(tm.tempos[0]))
	var last uint32
	for i := 1; i < len(tm.times); i++ {
		tick := tm.tick(tm.times[i])
		conductor.Add(tick-last, smf.MetaTempo(tm.tempos[i]))
		last = tick
	}
	conductor.Close(0)

	shortNote := uint32(MIDITicksPerQuarter / 8)
	var notes []midiEvent
	for _, n := range c.Notes {
		if !n.Kind.Playable() {
			continue
		}
		key := uint8(midiLaneBaseKey + n.Lane%92)
		on := tm.tick(n.TimeUs)
		off := on + shortNote
		if n.Kind.IsLong() {
			off = tm.tick(n.EndTimeUs)
		}
		notes = append(notes,
			midiEvent{tick: on, msg: midi.NoteOn(midiNoteChannel, key, 100)},
			midiEvent{tick: off, off: true, msg: midi.NoteOff(midiNoteChannel, key)},
		)
	}
	var noteTrack smf.Track
	noteTrack.Add(0, smf.MetaTrackSequenceName("notes"))
	addEvents(&noteTrack, notes)
	noteTrack.Close(0)

	var bg []midiEvent
	for _, e := range c.BgEvents {
		on := tm.tick(e.TimeUs)
		bg = append(bg,
			midiEvent{tick: on, msg: midi.NoteOn(midiBgChannel, midiBgKey, 64)},
			midiEvent{tick: on + shortNote, off: true, msg: midi.NoteOff(midiBgChannel, midiBgKey)},
		)
	}
	var bgTrack smf.Track
	bgTrack.Add(0, smf.MetaTrackSequenceName("background"))
	addEvents(&bgTrack, bg)
	bgTrack.Close(0)

	for _, tr := range []smf.Track{conductor, noteTrack, bgTrack} {
		if err := s.Add(tr); err != nil {
			return errors.Wrap(err, "midi: add track")
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return errors.Wrap(err, "midi: write")
	}
	return nil
}
