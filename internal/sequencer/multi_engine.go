package sequencer

import (
	"sync"
)

// MultiEngine routes notes to VoiceEngines by module number, taken from
// bits 8-15 of the program. It implements VoiceEngine and mixes the output
// of all engines.
type MultiEngine struct {
	mu         sync.Mutex
	engines    map[int]VoiceEngine
	order      []int
	defaultMod int
}

// NewMultiEngine creates a MultiEngine. Notes for an unregistered module go
// to defaultMod.
func NewMultiEngine(defaultMod int) *MultiEngine {
	return &MultiEngine{
		engines:    make(map[int]VoiceEngine),
		defaultMod: defaultMod,
	}
}

// AddEngine registers an engine for the given module number.
func (m *MultiEngine) AddEngine(module int, engine VoiceEngine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[module]; !ok {
		m.order = append(m.order, module)
	}
	m.engines[module] = engine
}

func (m *MultiEngine) engine(module int) (int, VoiceEngine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.engines[module]; ok {
		return module, e
	}
	if e, ok := m.engines[m.defaultMod]; ok {
		return m.defaultMod, e
	}
	return 0, nil
}

// AllEngines returns the registered engines in registration order.
func (m *MultiEngine) AllEngines() []VoiceEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]VoiceEngine, 0, len(m.order))
	for _, mod := range m.order {
		out = append(out, m.engines[mod])
	}
	return out
}

// encodeVoiceID packs module and local voice ID into a single int.
func encodeVoiceID(module int, localID int) int {
	return (module << 24) | (localID & 0xFFFFFF)
}

func decodeVoiceID(id int) (module int, localID int) {
	return (id >> 24) & 0xFF, id & 0xFFFFFF
}

func (m *MultiEngine) NoteOn(note int, velocity int, pan int, program int) int {
	module, e := m.engine((program >> 8) & 0xFF)
	if e == nil {
		return -1
	}
	localID := e.NoteOn(note, velocity, pan, program)
	return encodeVoiceID(module, localID)
}

func (m *MultiEngine) NoteOff(id int) {
	if id < 0 {
		return
	}
	module, localID := decodeVoiceID(id)
	if _, e := m.engine(module); e != nil {
		e.NoteOff(localID)
	}
}

func (m *MultiEngine) RenderFrame() (float32, float32) {
	var l, r float32
	for _, e := range m.AllEngines() {
		el, er := e.RenderFrame()
		l += el
		r += er
	}
	return l, r
}

func (m *MultiEngine) SetMasterGain(gain float64) {
	for _, e := range m.AllEngines() {
		e.SetMasterGain(gain)
	}
}

func (m *MultiEngine) ActiveVoiceCount() int {
	n := 0
	for _, e := range m.AllEngines() {
		n += e.ActiveVoiceCount()
	}
	return n
}
