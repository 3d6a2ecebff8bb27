package bmschart

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	intaudio "github.com/cbegin/bmschart-go/internal/audio"
	"github.com/cbegin/bmschart-go/internal/effects"
	intseq "github.com/cbegin/bmschart-go/internal/sequencer"
)

// PlaybackEvent carries preview events from Watch().
type PlaybackEvent struct {
	Kind   int // EventNote or EventPlaybackEnded
	Lane   int // -1 for background keysounds
	TimeUs int64
}

const (
	EventPlaybackEnded int = iota
	EventNote
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	leadIn     time.Duration
	background bool
	sampleTap  func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{leadIn: 500 * time.Millisecond}
}

// WithLeadIn delays the first note of every chart by d.
func WithLeadIn(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		if d < 0 {
			d = 0
		}
		cfg.leadIn = d
	}
}

// WithBackground also sounds a soft tick for each background keysound.
func WithBackground(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.background = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player previews a decoded chart as a click track on the audio device.
type Player struct {
	mu         sync.Mutex
	sampleRate int
	engine     intseq.VoiceEngine
	audio      *intaudio.Player
	baseGain   float64
	volume     float64
	leadIn     time.Duration
	background bool
	sampleTap  func([]float32)
	done       chan struct{}
	eventCh    chan PlaybackEvent
	eventChMu  sync.Mutex
}

// eventWrapper wraps a sequencer and implements SampleSource + FinishingSource
// to report playback events and signal when playback ends.
type eventWrapper struct {
	seq       *intseq.Sequencer
	master    *effects.Chain
	finished  atomic.Bool
	onEvent   func(intseq.EventKind)
	onTrigger func(intseq.Trigger)
	sampleTap func([]float32)
}

func (w *eventWrapper) Process(dst []float32) {
	w.seq.Process(dst)
	w.master.ProcessBuffer(dst)
	if w.sampleTap != nil {
		w.sampleTap(dst)
	}
}

func (w *eventWrapper) Finished() bool {
	return w.finished.Load()
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	engine, baseGain := newPreviewEngine(sampleRate)
	return &Player{
		sampleRate: sampleRate,
		engine:     engine,
		baseGain:   baseGain,
		volume:     1,
		leadIn:     cfg.leadIn,
		background: cfg.background,
		sampleTap:  cfg.sampleTap,
	}, nil
}

// Play starts previewing c, replacing any chart already playing.
func (p *Player) Play(c *Chart) error {
	if c == nil {
		return errors.New("nil chart")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Recreate the engine on every Play to avoid voice/envelope state
	// leaking between charts.
	engine, baseGain := newPreviewEngine(p.sampleRate)
	engine.SetMasterGain(baseGain * p.volume)

	done := make(chan struct{})
	wrapper := &eventWrapper{
		master:    effects.NewMaster(p.sampleRate),
		sampleTap: p.sampleTap,
	}
	wrapper.onEvent = func(kind intseq.EventKind) {
		if kind != intseq.EventPlaybackEnded {
			return
		}
		wrapper.finished.Store(true)
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Lane: -1})
		p.finish(done)
	}
	wrapper.onTrigger = func(tr intseq.Trigger) {
		p.sendEvent(PlaybackEvent{Kind: EventNote, Lane: tr.Tag, TimeUs: tr.TimeUs})
	}
	wrapper.seq = intseq.NewWithOptions(clickTriggers(c, p.background), engine, p.sampleRate, intseq.Options{
		OnEvent:   wrapper.onEvent,
		OnTrigger: wrapper.onTrigger,
		OffsetUs:  p.leadIn.Microseconds(),
	})

	backend, err := intaudio.NewPlayer(p.sampleRate, wrapper)
	if err != nil {
		return errors.Wrap(err, "start preview")
	}

	if p.audio != nil {
		_ = p.audio.Stop()
	}
	// Release any Wait() on the playback being replaced.
	if p.done != nil {
		close(p.done)
	}
	p.done = done
	p.engine = engine
	p.baseGain = baseGain
	p.audio = backend
	p.audio.Play()
	return nil
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// finish releases Wait for the playback that owns done. A playback that was
// already replaced or stopped has had its channel closed, so it is ignored.
func (p *Player) finish(done chan struct{}) {
	p.mu.Lock()
	if p.done != done {
		p.mu.Unlock()
		return
	}
	p.done = nil
	p.mu.Unlock()
	close(done)
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	done := p.done
	p.done = nil
	p.mu.Unlock()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Lane: -1})
	if done != nil {
		close(done)
	}
	return err
}

// Wait blocks until the current playback ends. It returns immediately if no
// playback is active or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events:
//   - EventNote: a note or background tick was triggered (Lane, TimeUs set)
//   - EventPlaybackEnded: the chart and its release tail finished, or Stop was called
//
// The channel is buffered (cap 64); receive in a goroutine to avoid dropping events.
// Only the most recent Watch() channel receives events; call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 64)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	p.engine.SetMasterGain(p.baseGain * p.volume)
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// PlaybackPosition returns the chart time the listener hears right now, lead-in
// excluded. It is negative during the lead-in and 0 when nothing is playing.
func (p *Player) PlaybackPosition() time.Duration {
	p.mu.Lock()
	a := p.audio
	leadIn := p.leadIn
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	return a.Position() - leadIn
}
