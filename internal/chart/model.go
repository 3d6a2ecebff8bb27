// Package chart holds the decoded, time-resolved chart model shared by both
// chart formats, together with the post-processing that normalizes it.
package chart

import "sort"

type Format uint8

const (
	FormatBMS Format = iota
	FormatBMSON
)

func (f Format) String() string {
	if f == FormatBMSON {
		return "bmson"
	}
	return "bms"
}

// JudgeRankSource records which header the judge rank came from, since
// the same number means different windows depending on it.
type JudgeRankSource uint8

const (
	JudgeRankBMS JudgeRankSource = iota
	JudgeRankDefEx
	JudgeRankBMSON
)

type TotalSource uint8

const (
	TotalDefault TotalSource = iota
	TotalHeader
)

// Warnings counts anomalies the decoder absorbed instead of failing.
type Warnings struct {
	UnclosedLongNotes   int
	OrphanReleaseSounds int
	UnknownDirectives   int
	MalformedValues     int
	UndefinedReferences int
	DroppedNotes        int
}

func (w Warnings) Total() int {
	return w.UnclosedLongNotes + w.OrphanReleaseSounds + w.UnknownDirectives +
		w.MalformedValues + w.UndefinedReferences + w.DroppedNotes
}

// Model is a fully decoded chart. Decoders build it and hand it over after
// Finalize; it is not modified afterwards.
type Model struct {
	Format Format
	Path   string

	Title     string
	Subtitle  string
	Artist    string
	SubArtist string
	Genre     string

	InitialTempo    float64
	PlayLevel       int
	Difficulty      int
	Player          int
	JudgeRank       int
	JudgeRankRaw    int
	JudgeRankSource JudgeRankSource
	Total           float64
	TotalSource     TotalSource
	LongNoteMode    LongNoteMode
	Mode            PlayMode

	Banner    string
	StageFile string
	BackBMP   string
	Preview   string

	Notes         []Note
	BgEvents      []BgEvent
	BgaEvents     []BgaEvent
	TempoChanges  []TempoChange
	PauseEvents   []PauseEvent
	ScrollChanges []ScrollChange
	Timeline      []TimelinePoint
	BarLines      []int64

	Sounds map[uint32]string
	Images map[uint32]string

	MD5    string
	SHA256 string

	TotalMeasures int
	DurationUs    int64
	HasRandom     bool
	// RandomSelections lists the branch value chosen for each #RANDOM in
	// order; feeding it back reproduces the same decode.
	RandomSelections []int

	Warnings Warnings
}

// TotalNotes counts the notes a player is judged on.
func (m *Model) TotalNotes() int {
	n := 0
	for i := range m.Notes {
		if m.Notes[i].Kind.Playable() {
			n++
		}
	}
	return n
}

func (m *Model) TotalLongNotes() int {
	n := 0
	for i := range m.Notes {
		if m.Notes[i].Kind.IsLong() {
			n++
		}
	}
	return n
}

// LaneNotes returns the notes on one lane in time order.
func (m *Model) LaneNotes(lane int) []Note {
	var out []Note
	for _, n := range m.Notes {
		if n.Lane == lane {
			out = append(out, n)
		}
	}
	return out
}

func (m *Model) MinTempo() float64 {
	min := m.InitialTempo
	for _, tc := range m.TempoChanges {
		if tc.Tempo < min {
			min = tc.Tempo
		}
	}
	return min
}

func (m *Model) MaxTempo() float64 {
	max := m.InitialTempo
	for _, tc := range m.TempoChanges {
		if tc.Tempo > max {
			max = tc.Tempo
		}
	}
	return max
}

// LaneCount is the number of lanes of the chart's play mode.
func (m *Model) LaneCount() int { return m.Mode.KeyCount() }

// LastEventTimeMs is the time of the last note end, keysound or image
// change, in milliseconds.
func (m *Model) LastEventTimeMs() int64 {
	var last int64
	for _, n := range m.Notes {
		if end := n.End(); end > last {
			last = end
		}
	}
	for _, e := range m.BgEvents {
		if e.TimeUs > last {
			last = e.TimeUs
		}
	}
	for _, e := range m.BgaEvents {
		if e.TimeUs > last {
			last = e.TimeUs
		}
	}
	return last / 1000
}

// TempoAt returns the tempo in effect at timeUs.
func (m *Model) TempoAt(timeUs int64) float64 {
	i := sort.Search(len(m.TempoChanges), func(i int) bool {
		return m.TempoChanges[i].TimeUs > timeUs
	})
	if i == 0 {
		return m.InitialTempo
	}
	return m.TempoChanges[i-1].Tempo
}

// JudgeNote is one judged input: a short note, or one end of a long note.
type JudgeNote struct {
	Lane    int
	Kind    NoteKind
	TimeUs  int64
	SoundID uint32
	IsEnd   bool
	// Pair is the index of the other end of a long note, or -1.
	Pair int
}

// JudgeNotes splits long notes into linked start and end entries, sorted by
// (time, lane) with starts ahead of ends at the same instant.
func (m *Model) JudgeNotes() []JudgeNote {
	type item struct {
		JudgeNote
		src int
	}
	items := make([]item, 0, len(m.Notes))
	for i, n := range m.Notes {
		items = append(items, item{JudgeNote{Lane: n.Lane, Kind: n.Kind, TimeUs: n.TimeUs, SoundID: n.SoundID, Pair: -1}, i})
		if n.Kind.IsLong() {
			items = append(items, item{JudgeNote{Lane: n.Lane, Kind: n.Kind, TimeUs: n.EndTimeUs, SoundID: n.EndSoundID, IsEnd: true, Pair: -1}, i})
		}
	}
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].TimeUs != items[b].TimeUs {
			return items[a].TimeUs < items[b].TimeUs
		}
		if items[a].Lane != items[b].Lane {
			return items[a].Lane < items[b].Lane
		}
		return !items[a].IsEnd && items[b].IsEnd
	})
	out := make([]JudgeNote, len(items))
	start := make(map[int]int)
	for i, it := range items {
		out[i] = it.JudgeNote
		if !it.Kind.IsLong() {
			continue
		}
		if !it.IsEnd {
			start[it.src] = i
			continue
		}
		if s, ok := start[it.src]; ok {
			out[s].Pair = i
			out[i].Pair = s
		}
	}
	return out
}
