package bmschart

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/cbegin/bmschart-go/internal/effects"
	intseq "github.com/cbegin/bmschart-go/internal/sequencer"
)

// renderTailUs is rendered past the chart's duration so release tails are
// not cut off.
const renderTailUs = 500_000

// RenderClickTrack renders the chart's judged notes as clicks and returns
// interleaved stereo samples covering the whole chart.
func RenderClickTrack(c *Chart, sampleRate int) []float32 {
	return renderClickTrack(c, sampleRate, 1, false)
}

// RenderClickTrackWithBackground is RenderClickTrack plus a soft tick for
// every background keysound.
func RenderClickTrackWithBackground(c *Chart, sampleRate int, gain float64) []float32 {
	return renderClickTrack(c, sampleRate, gain, true)
}

func renderClickTrack(c *Chart, sampleRate int, gain float64, background bool) []float32 {
	engine, baseGain := newPreviewEngine(sampleRate)
	engine.SetMasterGain(baseGain * gain)
	seq := intseq.New(clickTriggers(c, background), engine, sampleRate)
	frames := int((c.DurationUs + renderTailUs) * int64(sampleRate) / 1_000_000)
	out := make([]float32, frames*2)
	seq.Process(out)
	effects.NewMaster(sampleRate).ProcessBuffer(out)
	return out
}

type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

const wavFormatFloat = 3

// WriteWAV writes samples as a 32-bit float WAV file.
func WriteWAV(w io.Writer, samples []float32, sampleRate int, channels int) error {
	dataSize := uint32(len(samples) * 4)
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   wavFormatFloat,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * 4),
		BlockAlign:    uint16(channels * 4),
		BitsPerSample: 32,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "write wav header")
	}
	buf := make([]byte, 4*1024)
	for len(samples) > 0 {
		n := len(buf) / 4
		if n > len(samples) {
			n = len(samples)
		}
		for i, s := range samples[:n] {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
		}
		if _, err := w.Write(buf[:n*4]); err != nil {
			return errors.Wrap(err, "write wav data")
		}
		samples = samples[n:]
	}
	return nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	var b bytes.Buffer
	b.Grow(44 + len(samples)*4)
	_ = WriteWAV(&b, samples, sampleRate, channels)
	return b.Bytes()
}
