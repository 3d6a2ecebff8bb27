package effects

// Stage processes one stereo frame.
type Stage interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain runs stages in order over interleaved stereo buffers.
type Chain struct {
	stages []Stage
}

func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// NewMaster is the output stage used for click-track previews: a gentle
// tilt that keeps clicks audible on small speakers, then a peak limiter.
func NewMaster(sampleRate int) *Chain {
	return NewChain(
		NewTone(sampleRate, 0.9, 1.15, 250, 4000),
		NewLimiter(sampleRate, -1, 1, 60),
	)
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, s := range c.stages {
		l, r = s.Process(l, r)
	}
	return l, r
}

// ProcessBuffer applies the chain in place to interleaved stereo samples.
func (c *Chain) ProcessBuffer(buf []float32) {
	if c == nil || len(c.stages) == 0 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = c.Process(buf[i], buf[i+1])
	}
}

func (c *Chain) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
}

func (c *Chain) Len() int { return len(c.stages) }
