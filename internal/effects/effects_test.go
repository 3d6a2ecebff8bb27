package effects

import (
	"math"
	"testing"
)

func TestLimiterHoldsCeiling(t *testing.T) {
	lim := NewLimiter(48000, -6, 1, 50)
	ceiling := float32(math.Pow(10, -6.0/20))
	for i := 0; i < 4800; i++ {
		l, r := lim.Process(2, -2)
		if l > ceiling+1e-6 || r < -ceiling-1e-6 {
			t.Fatalf("frame %d: expected output within %v, got %v %v", i, ceiling, l, r)
		}
	}
}

func TestLimiterPassesQuietSignal(t *testing.T) {
	lim := NewLimiter(48000, -1, 1, 50)
	l, r := lim.Process(0.1, -0.2)
	if l != 0.1 || r != -0.2 {
		t.Fatalf("expected quiet signal unchanged, got %v %v", l, r)
	}
}

func TestToneUnityGain(t *testing.T) {
	tone := NewTone(48000, 1, 1, 250, 4000)
	for i := 0; i < 1000; i++ {
		in := float32(math.Sin(float64(i) * 0.05))
		l, r := tone.Process(in, in)
		if math.Abs(float64(l-in)) > 1e-5 || math.Abs(float64(r-in)) > 1e-5 {
			t.Fatalf("frame %d: expected %v, got %v %v", i, in, l, r)
		}
	}
}

func TestChainKeepsSilence(t *testing.T) {
	c := NewMaster(8000)
	buf := make([]float32, 64)
	c.ProcessBuffer(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d: expected silence, got %v", i, v)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 master stages, got %d", c.Len())
	}
}

func TestChainOrderAndReset(t *testing.T) {
	c := NewChain(gain(2), NewLimiter(48000, 0, 0, 0))
	l, _ := c.Process(0.75, 0)
	if math.Abs(float64(l)-1) > 1e-6 {
		t.Fatalf("expected gain then limit to give 1, got %v", l)
	}
	c.Reset()
	var nilChain *Chain
	nilChain.ProcessBuffer([]float32{1, 1})
}

type gain float32

func (g gain) Process(l, r float32) (float32, float32) { return l * float32(g), r * float32(g) }
func (g gain) Reset() {}
