// Package timeline converts musical positions into absolute time.
//
// An Engine owns a sparse cache of entries keyed by tick. Every tempo, pause
// and scroll event gets an entry, computed once from the entry before it and
// never revised afterwards. Any other tick is resolved by projecting forward
// from its nearest predecessor without touching the cache.
package timeline

import (
	"math"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

const usPerMinute = 60_000_000.0

// ErrOutOfOrder is returned when an event is registered at a tick that
// already has a later entry after it.
var ErrOutOfOrder = errors.New("timeline: event behind an existing entry")

// Entry is the cached state at one tick.
type Entry struct {
	Tick    int64
	TimeUs  float64
	Tempo   float64
	PauseUs float64
	Scroll  float64
}

type Engine struct {
	grid  Grid
	cache *btree.BTreeG[*Entry]
}

func byTick(a, b *Entry) bool { return a.Tick < b.Tick }

// New returns an engine seeded with an entry at tick 0.
func New(grid Grid, initialTempo float64) *Engine {
	e := &Engine{
		grid:  grid,
		cache: btree.NewG(16, byTick),
	}
	e.cache.ReplaceOrInsert(&Entry{Tempo: initialTempo, Scroll: 1})
	return e
}

func (e *Engine) Grid() Grid { return e.grid }

func (e *Engine) Len() int { return e.cache.Len() }

// TimeAt returns the time of tick in microseconds. It never inserts.
func (e *Engine) TimeAt(tick int64) float64 {
	if en, ok := e.cache.Get(&Entry{Tick: tick}); ok {
		return en.TimeUs
	}
	return e.project(e.predecessor(tick), tick)
}

// TimeUs is TimeAt truncated to whole microseconds.
func (e *Engine) TimeUs(tick int64) int64 {
	return int64(e.TimeAt(tick))
}

// GetOrCreate returns the entry at tick, inserting it when missing.
func (e *Engine) GetOrCreate(tick int64) Entry {
	return *e.entryAt(tick)
}

// SetTempo changes the tempo from tick onward. Non-positive and non-finite
// tempos are ignored and reported as false.
func (e *Engine) SetTempo(tick int64, tempo float64) (bool, error) {
	if tempo <= 0 || math.IsNaN(tempo) || math.IsInf(tempo, 0) {
		return false, nil
	}
	if err := e.checkOrder(tick); err != nil {
		return false, err
	}
	e.entryAt(tick).Tempo = tempo
	return true, nil
}

// AddPause registers a pause of the given beat length at tick. The pause is
// converted to microseconds at the tempo in effect at tick when it is added.
// Negative pauses are ignored.
func (e *Engine) AddPause(tick int64, beats float64) (bool, error) {
	if beats < 0 || math.IsNaN(beats) || math.IsInf(beats, 0) {
		return false, nil
	}
	if err := e.checkOrder(tick); err != nil {
		return false, err
	}
	en := e.entryAt(tick)
	en.PauseUs += beats * usPerMinute / en.Tempo
	return true, nil
}

func (e *Engine) SetScroll(tick int64, rate float64) error {
	if err := e.checkOrder(tick); err != nil {
		return err
	}
	e.entryAt(tick).Scroll = rate
	return nil
}

// TickAt is the inverse of TimeAt: it finds the latest entry whose time is
// at or before timeUs and projects forward from it. Times falling inside a
// pause map to the paused tick.
func (e *Engine) TickAt(timeUs float64) float64 {
	var at *Entry
	e.cache.Descend(func(en *Entry) bool {
		if en.TimeUs <= timeUs {
			at = en
			return false
		}
		return true
	})
	if at == nil {
		return 0
	}
	rem := timeUs - (at.TimeUs + at.PauseUs)
	if rem <= 0 {
		return float64(at.Tick)
	}
	return e.grid.Advance(at.Tick, rem*at.Tempo/usPerMinute)
}

// Entries returns a copy of the cache in tick order.
func (e *Engine) Entries() []Entry {
	out := make([]Entry, 0, e.cache.Len())
	e.cache.Ascend(func(en *Entry) bool {
		out = append(out, *en)
		return true
	})
	return out
}

// Last returns the entry with the highest tick.
func (e *Engine) Last() Entry {
	en, _ := e.cache.Max()
	return *en
}

func (e *Engine) entryAt(tick int64) *Entry {
	if en, ok := e.cache.Get(&Entry{Tick: tick}); ok {
		return en
	}
	prev := e.predecessor(tick)
	en := &Entry{
		Tick:   tick,
		TimeUs: e.project(prev, tick),
		Tempo:  prev.Tempo,
		Scroll: prev.Scroll,
	}
	e.cache.ReplaceOrInsert(en)
	return en
}

func (e *Engine) checkOrder(tick int64) error {
	last, _ := e.cache.Max()
	if last.Tick > tick {
		return errors.Wrapf(ErrOutOfOrder, "tick %d before %d", tick, last.Tick)
	}
	return nil
}

// predecessor finds the nearest entry at or before tick. Callers have already
// ruled out an exact hit, so the result is strictly before tick. Ticks before
// the seed entry fall back to the seed.
func (e *Engine) predecessor(tick int64) *Entry {
	var found *Entry
	e.cache.DescendLessOrEqual(&Entry{Tick: tick}, func(en *Entry) bool {
		found = en
		return false
	})
	if found == nil {
		found, _ = e.cache.Min()
	}
	return found
}

func (e *Engine) project(prev *Entry, tick int64) float64 {
	beats := e.grid.Beats(prev.Tick, tick)
	if tick < prev.Tick {
		return prev.TimeUs + beats*usPerMinute/prev.Tempo
	}
	return prev.TimeUs + prev.PauseUs + beats*usPerMinute/prev.Tempo
}
