package sequencer

import (
	"testing"

	"github.com/cbegin/bmschart-go/internal/chiptune"
)

type countingEngine struct {
	noteOns  []int
	noteOffs []int
	frames   int
	onFrames []int
	nextID   int
	active   int
}

func (e *countingEngine) NoteOn(note int, velocity int, pan int, program int) int {
	e.noteOns = append(e.noteOns, note)
	e.onFrames = append(e.onFrames, e.frames)
	e.active++
	id := e.nextID
	e.nextID++
	return id
}

func (e *countingEngine) NoteOff(id int) {
	e.noteOffs = append(e.noteOffs, id)
	e.active--
}

func (e *countingEngine) RenderFrame() (float32, float32) {
	e.frames++
	return 0, 0
}

func (e *countingEngine) SetMasterGain(gain float64) {}
func (e *countingEngine) ActiveVoiceCount() int      { return e.active }

func TestTriggersFireAtTheirFrame(t *testing.T) {
	engine := &countingEngine{}
	seq := New([]Trigger{
		{TimeUs: 500000, Note: 62},
		{TimeUs: 0, Note: 60},
	}, engine, 1000)
	seq.Process(make([]float32, 1000*2))
	if len(engine.noteOns) != 2 {
		t.Fatalf("expected 2 note-ons, got %d", len(engine.noteOns))
	}
	if engine.noteOns[0] != 60 || engine.noteOns[1] != 62 {
		t.Fatalf("expected time order, got %v", engine.noteOns)
	}
	if engine.onFrames[0] != 0 || engine.onFrames[1] != 500 {
		t.Fatalf("expected frames 0 and 500, got %v", engine.onFrames)
	}
}

func TestOffsetDelaysTriggers(t *testing.T) {
	engine := &countingEngine{}
	seq := NewWithOptions([]Trigger{{TimeUs: 0, Note: 60}}, engine, 1000, Options{OffsetUs: 250000})
	seq.Process(make([]float32, 500*2))
	if len(engine.onFrames) != 1 || engine.onFrames[0] != 250 {
		t.Fatalf("expected trigger at frame 250, got %v", engine.onFrames)
	}
	if got := seq.FrameAt(0); got != 250 {
		t.Fatalf("expected FrameAt(0) = 250, got %d", got)
	}
}

func TestNoteOffAfterDuration(t *testing.T) {
	engine := &countingEngine{}
	seq := NewWithOptions([]Trigger{{TimeUs: 0, DurationUs: 100000, Note: 60}}, engine, 1000, Options{MinGateFrames: 5})
	seq.Process(make([]float32, 99*2))
	if len(engine.noteOffs) != 0 {
		t.Fatalf("expected voice held, got offs %v", engine.noteOffs)
	}
	seq.Process(make([]float32, 2*2))
	if len(engine.noteOffs) != 1 {
		t.Fatalf("expected 1 note-off, got %d", len(engine.noteOffs))
	}
}

func TestMinimumGate(t *testing.T) {
	engine := &countingEngine{}
	seq := NewWithOptions([]Trigger{{TimeUs: 0, Note: 60}}, engine, 1000, Options{MinGateFrames: 20})
	seq.Process(make([]float32, 19*2))
	if len(engine.noteOffs) != 0 {
		t.Fatal("expected voice held for the minimum gate")
	}
	seq.Process(make([]float32, 2*2))
	if len(engine.noteOffs) != 1 {
		t.Fatalf("expected 1 note-off, got %d", len(engine.noteOffs))
	}
}

func TestPlaybackEndedFiresOnce(t *testing.T) {
	engine := &countingEngine{}
	var ended, triggers int
	var tags []int
	seq := NewWithOptions([]Trigger{{TimeUs: 0, Note: 60, Tag: 7}}, engine, 1000, Options{
		ReleaseTailFrames: 10,
		MinGateFrames:     10,
		OnEvent: func(kind EventKind) {
			switch kind {
			case EventPlaybackEnded:
				ended++
			case EventTrigger:
				triggers++
			}
		},
		OnTrigger: func(tr Trigger) { tags = append(tags, tr.Tag) },
	})
	seq.Process(make([]float32, 200*2))
	if ended != 1 || !seq.Ended() {
		t.Fatalf("expected playback ended once, got %d", ended)
	}
	if triggers != 1 || len(tags) != 1 || tags[0] != 7 {
		t.Fatalf("expected trigger with tag 7, got %d %v", triggers, tags)
	}
	seq.Process(make([]float32, 200*2))
	if ended != 1 {
		t.Fatalf("expected no second end event, got %d", ended)
	}
}

func TestChiptuneRendersEnergy(t *testing.T) {
	engine := chiptune.New(48000, chiptune.DefaultParams())
	seq := New([]Trigger{{TimeUs: 0, DurationUs: 100000, Note: 72, Velocity: 100}}, engine, 48000)
	buf := make([]float32, 48000/4*2)
	seq.Process(buf)
	var energy float64
	for _, s := range buf {
		if s < 0 {
			energy -= float64(s)
		} else {
			energy += float64(s)
		}
	}
	if energy == 0 {
		t.Fatalf("expected non-zero audio energy")
	}
}

func TestMultiEngineRoutesByModule(t *testing.T) {
	lanes, bg := &countingEngine{}, &countingEngine{}
	multi := NewMultiEngine(0)
	multi.AddEngine(0, lanes)
	multi.AddEngine(1, bg)

	id := multi.NoteOn(60, 100, 0, 1<<8)
	multi.NoteOn(61, 100, 0, 0)
	multi.NoteOn(62, 100, 0, 5<<8)
	if len(bg.noteOns) != 1 || len(lanes.noteOns) != 2 {
		t.Fatalf("unexpected routing: lanes %v bg %v", lanes.noteOns, bg.noteOns)
	}
	multi.NoteOff(id)
	if len(bg.noteOffs) != 1 || bg.noteOffs[0] != 0 {
		t.Fatalf("expected note-off routed to background engine, got %v", bg.noteOffs)
	}
	if got := multi.ActiveVoiceCount(); got != 2 {
		t.Fatalf("expected 2 active voices, got %d", got)
	}
}

func BenchmarkSequencerProcess(b *testing.B) {
	triggers := make([]Trigger, 0, 64)
	for i := 0; i < 64; i++ {
		triggers = append(triggers, Trigger{TimeUs: int64(i) * 5000, DurationUs: 20000, Note: 60 + i%12, Velocity: 100})
	}
	buf := make([]float32, 2048*2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine := chiptune.New(48000, chiptune.DefaultParams())
		seq := New(triggers, engine, 48000)
		seq.Process(buf)
	}
}
