package effects

import "math"

// Tone is a two-crossover shelving EQ. Gains of 1 leave the signal
// unchanged.
type Tone struct {
	lowGain  float32
	highGain float32
	lowA     float32
	highA    float32
	lowL     float32
	lowR     float32
	highL    float32
	highR    float32
}

// NewTone splits at lowHz and highHz and scales the outer bands.
func NewTone(sampleRate int, lowGain, highGain, lowHz, highHz float64) *Tone {
	return &Tone{
		lowGain:  float32(lowGain),
		highGain: float32(highGain),
		lowA:     onePole(sampleRate, lowHz),
		highA:    onePole(sampleRate, highHz),
	}
}

func onePole(sampleRate int, hz float64) float32 {
	dt := 1 / float64(sampleRate)
	rc := 1 / (2 * math.Pi * hz)
	return float32(dt / (rc + dt))
}

func (t *Tone) Process(l, r float32) (float32, float32) {
	t.lowL += t.lowA * (l - t.lowL)
	t.lowR += t.lowA * (r - t.lowR)
	t.highL += t.highA * (l - t.highL)
	t.highR += t.highA * (r - t.highR)

	hiL, hiR := l-t.highL, r-t.highR
	midL, midR := l-t.lowL-hiL, r-t.lowR-hiR
	return t.lowL*t.lowGain + midL + hiL*t.highGain,
		t.lowR*t.lowGain + midR + hiR*t.highGain
}

func (t *Tone) Reset() {
	t.lowL, t.lowR = 0, 0
	t.highL, t.highR = 0, 0
}
