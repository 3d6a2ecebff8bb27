package effects

import "math"

// Limiter keeps the stereo peak under a ceiling. Both channels share one
// envelope so the stereo image does not shift while limiting.
type Limiter struct {
	ceiling float32
	attack  float32
	release float32
	env     float32
}

// NewLimiter builds a limiter with a ceiling in dBFS and attack/release
// times in milliseconds.
func NewLimiter(sampleRate int, ceilingDB, attackMs, releaseMs float64) *Limiter {
	return &Limiter{
		ceiling: float32(math.Pow(10, ceilingDB/20)),
		attack:  coefficient(sampleRate, attackMs),
		release: coefficient(sampleRate, releaseMs),
	}
}

func coefficient(sampleRate int, ms float64) float32 {
	if ms <= 0 || sampleRate <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(ms*float64(sampleRate)/1000)))
}

func (lim *Limiter) Process(l, r float32) (float32, float32) {
	peak := abs32(l)
	if a := abs32(r); a > peak {
		peak = a
	}
	if peak > lim.env {
		lim.env += lim.attack * (peak - lim.env)
	} else {
		lim.env += lim.release * (peak - lim.env)
	}
	// The envelope lags the signal; the hard clamp catches what it misses.
	g := float32(1)
	if lim.env > lim.ceiling {
		g = lim.ceiling / lim.env
	}
	return clamp(l*g, lim.ceiling), clamp(r*g, lim.ceiling)
}

func (lim *Limiter) Reset() {
	lim.env = 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, limit float32) float32 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
