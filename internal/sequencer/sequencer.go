package sequencer

import "sort"

type VoiceEngine interface {
	NoteOn(note int, velocity int, pan int, program int) int
	NoteOff(id int)
	RenderFrame() (float32, float32)
	SetMasterGain(gain float64)
	// ActiveVoiceCount returns the number of voices still sounding, release
	// tails included. Used to detect when playback has fully ended.
	ActiveVoiceCount() int
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventPlaybackEnded EventKind = iota
	EventTrigger
)

// Trigger schedules one voice at an absolute chart time.
type Trigger struct {
	TimeUs int64
	// DurationUs is how long the voice is held before release. Short
	// triggers are held for the minimum gate instead.
	DurationUs int64
	Note       int
	Velocity   int
	Pan        int
	Program    int
	// Tag is opaque to the sequencer and handed back through OnTrigger.
	Tag int
}

type Options struct {
	OnEvent           func(EventKind)
	OnTrigger         func(Trigger)
	ReleaseTailFrames int // extra frames to render after last voice ends (0 = 0.1s default)
	MinGateFrames     int // shortest hold before release (0 = 10ms default)
	// OffsetUs shifts every trigger later, e.g. for a lead-in.
	OffsetUs int64
}

type noteOff struct {
	frame int64
	voice int
}

type Sequencer struct {
	engine             VoiceEngine
	sampleRate         int
	triggers           []Trigger
	next               int
	noteOffs           []noteOff
	frame              int64
	offsetUs           int64
	minGate            int64
	onEvent            func(EventKind)
	onTrigger          func(Trigger)
	releaseTailFrames  int
	playbackEndedFired bool
}

func New(triggers []Trigger, engine VoiceEngine, sampleRate int) *Sequencer {
	return NewWithOptions(triggers, engine, sampleRate, Options{})
}

// NewWithOptions copies triggers and orders them by time; triggers at the
// same time keep their relative order.
func NewWithOptions(triggers []Trigger, engine VoiceEngine, sampleRate int, opts Options) *Sequencer {
	tailFrames := opts.ReleaseTailFrames
	if tailFrames <= 0 {
		tailFrames = sampleRate / 10
	}
	gate := int64(opts.MinGateFrames)
	if gate <= 0 {
		gate = int64(sampleRate / 100)
	}
	sorted := append([]Trigger(nil), triggers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimeUs < sorted[j].TimeUs })
	return &Sequencer{
		engine:            engine,
		sampleRate:        sampleRate,
		triggers:          sorted,
		offsetUs:          opts.OffsetUs,
		minGate:           gate,
		onEvent:           opts.OnEvent,
		onTrigger:         opts.OnTrigger,
		releaseTailFrames: tailFrames,
	}
}

// FrameAt converts a chart time to an output frame, offset included.
func (s *Sequencer) FrameAt(timeUs int64) int64 {
	return (timeUs + s.offsetUs) * int64(s.sampleRate) / 1_000_000
}

func (s *Sequencer) frames(us int64) int64 {
	return us * int64(s.sampleRate) / 1_000_000
}

// Frame is the number of frames rendered so far.
func (s *Sequencer) Frame() int64 { return s.frame }

// Ended reports whether every trigger has fired and the last voice has died
// away.
func (s *Sequencer) Ended() bool { return s.playbackEndedFired }

// Process renders interleaved stereo frames into dst.
func (s *Sequencer) Process(dst []float32) {
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		s.dispatchFrame()
		l, r := s.engine.RenderFrame()
		dst[f*2] = l
		dst[f*2+1] = r
		s.frame++
		if s.exhausted() && !s.playbackEndedFired && s.engine.ActiveVoiceCount() == 0 {
			if s.releaseTailFrames <= 0 {
				s.playbackEndedFired = true
				if s.onEvent != nil {
					s.onEvent(EventPlaybackEnded)
				}
			} else {
				s.releaseTailFrames--
			}
		}
	}
}

func (s *Sequencer) dispatchFrame() {
	for s.next < len(s.triggers) && s.FrameAt(s.triggers[s.next].TimeUs) <= s.frame {
		tr := s.triggers[s.next]
		s.next++
		voice := s.engine.NoteOn(tr.Note, tr.Velocity, tr.Pan, tr.Program)
		gate := s.frames(tr.DurationUs)
		if gate < s.minGate {
			gate = s.minGate
		}
		s.noteOffs = append(s.noteOffs, noteOff{frame: s.frame + gate, voice: voice})
		if s.onTrigger != nil {
			s.onTrigger(tr)
		}
		if s.onEvent != nil {
			s.onEvent(EventTrigger)
		}
	}
	kept := s.noteOffs[:0]
	for _, off := range s.noteOffs {
		if off.frame <= s.frame {
			s.engine.NoteOff(off.voice)
			continue
		}
		kept = append(kept, off)
	}
	s.noteOffs = kept
}

func (s *Sequencer) exhausted() bool {
	return s.next >= len(s.triggers) && len(s.noteOffs) == 0
}
