package chart

type NoteKind uint8

const (
	Normal NoteKind = iota
	Invisible
	Mine
	LongNote
	ChargeNote
	HellChargeNote
)

func (k NoteKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Invisible:
		return "invisible"
	case Mine:
		return "mine"
	case LongNote:
		return "long"
	case ChargeNote:
		return "charge"
	case HellChargeNote:
		return "hell-charge"
	default:
		return "unknown"
	}
}

// IsLong reports whether the kind needs a held input.
func (k NoteKind) IsLong() bool {
	switch k {
	case LongNote, ChargeNote, HellChargeNote:
		return true
	default:
		return false
	}
}

// Playable reports whether the note counts toward the judged note total.
func (k NoteKind) Playable() bool {
	switch k {
	case Normal, LongNote, ChargeNote, HellChargeNote:
		return true
	default:
		return false
	}
}

// priority orders kinds for same-lane same-time collisions.
func (k NoteKind) priority() int {
	switch k {
	case Normal, Invisible:
		return 2
	case LongNote, ChargeNote, HellChargeNote:
		return 1
	default:
		return 0
	}
}

// LongNoteMode is the chart-wide default for long notes.
type LongNoteMode uint8

const (
	ModeLongNote LongNoteMode = iota
	ModeChargeNote
	ModeHellChargeNote
)

// LongNoteModeFromCode maps the 1..3 codes used by both formats. Anything
// else is a plain long note.
func LongNoteModeFromCode(code int) LongNoteMode {
	switch code {
	case 2:
		return ModeChargeNote
	case 3:
		return ModeHellChargeNote
	default:
		return ModeLongNote
	}
}

func (m LongNoteMode) Kind() NoteKind {
	switch m {
	case ModeChargeNote:
		return ChargeNote
	case ModeHellChargeNote:
		return HellChargeNote
	default:
		return LongNote
	}
}

func (m LongNoteMode) String() string { return m.Kind().String() }

type Note struct {
	Lane      int
	Kind      NoteKind
	TimeUs    int64
	EndTimeUs int64 // long notes only
	SoundID   uint32
	// EndSoundID is the release sound of a long note; it defaults to SoundID.
	EndSoundID uint32
	Damage     float64 // mines only

	MicroStartUs    int64
	MicroDurationUs int64
}

// End returns the time the note stops needing input.
func (n Note) End() int64 {
	if n.Kind.IsLong() {
		return n.EndTimeUs
	}
	return n.TimeUs
}

// BgEvent is an auto-played keysound.
type BgEvent struct {
	TimeUs          int64
	SoundID         uint32
	MicroStartUs    int64
	MicroDurationUs int64
}

type BgaLayer uint8

const (
	LayerBase BgaLayer = iota
	LayerPoor
	LayerOverlay
	LayerOverlay2
)

type BgaEvent struct {
	TimeUs  int64
	ImageID uint32
	Layer   BgaLayer
}

type TempoChange struct {
	TimeUs int64
	Tempo  float64
}

type PauseEvent struct {
	TimeUs     int64
	DurationUs int64
}

type ScrollChange struct {
	TimeUs int64
	Rate   float64
}

// TimelinePoint is one distinct note time with the tempo playing at it.
type TimelinePoint struct {
	TimeUs int64
	Tempo  float64
}
