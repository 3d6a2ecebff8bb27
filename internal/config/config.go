// Package config holds decoder defaults and loads them, along with preview
// settings for the command line tool, from an optional ini file.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Decoder holds the fallback values used when a chart omits or garbles a
// field, plus the numeric tolerances of the timeline.
type Decoder struct {
	DefaultTempo      float64
	DefaultTotal      float64 // tagged charts
	DefaultBMSONTotal float64
	DefaultRank       int // raw #RANK code
	DefaultDefExRank  int
	// TempoEpsilon is the smallest tempo or scroll difference that is
	// reported as a change.
	TempoEpsilon float64
	// ReleaseMatchEpsilon is the tolerance, in measures, when matching a
	// bmson release sound to the long note it ends.
	ReleaseMatchEpsilon float64
	// MaxLineLength caps tagged-format lines; longer lines are skipped.
	MaxLineLength int
}

func Default() Decoder {
	return Decoder{
		DefaultTempo:        130,
		DefaultTotal:        300,
		DefaultBMSONTotal:   100,
		DefaultRank:         2,
		DefaultDefExRank:    100,
		TempoEpsilon:        0.001,
		ReleaseMatchEpsilon: 0.001,
		MaxLineLength:       1 << 20,
	}
}

// Normalized returns d with every unset field replaced by its default. A
// zero Decoder becomes Default(); otherwise DefaultRank is kept as is, since
// 0 is a valid rank code.
func (d Decoder) Normalized() Decoder {
	def := Default()
	if d == (Decoder{}) {
		return def
	}
	if d.DefaultTempo <= 0 {
		d.DefaultTempo = def.DefaultTempo
	}
	if d.DefaultTotal <= 0 {
		d.DefaultTotal = def.DefaultTotal
	}
	if d.DefaultBMSONTotal <= 0 {
		d.DefaultBMSONTotal = def.DefaultBMSONTotal
	}
	if d.DefaultDefExRank <= 0 {
		d.DefaultDefExRank = def.DefaultDefExRank
	}
	if d.TempoEpsilon <= 0 {
		d.TempoEpsilon = def.TempoEpsilon
	}
	if d.ReleaseMatchEpsilon <= 0 {
		d.ReleaseMatchEpsilon = def.ReleaseMatchEpsilon
	}
	if d.MaxLineLength <= 0 {
		d.MaxLineLength = def.MaxLineLength
	}
	return d
}

// Preview configures click-track rendering and the bmsinfo tool.
type Preview struct {
	SampleRate int
	Gain       float64
	LeadInMs   int
	Workers    int
}

func DefaultPreview() Preview {
	return Preview{
		SampleRate: 48000,
		Gain:       0.8,
		LeadInMs:   500,
	}
}

type File struct {
	Decoder Decoder
	Preview Preview
}

// Load reads path. A missing file yields the defaults. Values that do not
// parse keep their defaults.
func Load(path string) (File, error) {
	f := File{Decoder: Default(), Preview: DefaultPreview()}
	if path == "" {
		return f, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveSections:     true,
		InsensitiveKeys:         true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		return f, errors.Wrapf(err, "load config %s", path)
	}
	apply(cfg, &f)
	return f, nil
}

// Parse is Load for in-memory ini text.
func Parse(data []byte) (File, error) {
	f := File{Decoder: Default(), Preview: DefaultPreview()}
	cfg, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveSections:     true,
		InsensitiveKeys:         true,
		SkipUnrecognizableLines: true,
	}, data)
	if err != nil {
		return f, errors.Wrap(err, "parse config")
	}
	apply(cfg, &f)
	return f, nil
}

func apply(cfg *ini.File, f *File) {
	d := cfg.Section("decoder")
	f.Decoder.DefaultTempo = positive(d.Key("default_tempo").MustFloat64(f.Decoder.DefaultTempo), f.Decoder.DefaultTempo)
	f.Decoder.DefaultTotal = d.Key("default_total").MustFloat64(f.Decoder.DefaultTotal)
	f.Decoder.DefaultBMSONTotal = d.Key("default_bmson_total").MustFloat64(f.Decoder.DefaultBMSONTotal)
	f.Decoder.DefaultRank = d.Key("default_rank").MustInt(f.Decoder.DefaultRank)
	f.Decoder.DefaultDefExRank = d.Key("default_defexrank").MustInt(f.Decoder.DefaultDefExRank)
	f.Decoder.TempoEpsilon = d.Key("tempo_epsilon").MustFloat64(f.Decoder.TempoEpsilon)
	f.Decoder.ReleaseMatchEpsilon = d.Key("release_match_epsilon").MustFloat64(f.Decoder.ReleaseMatchEpsilon)
	f.Decoder.MaxLineLength = d.Key("max_line_length").MustInt(f.Decoder.MaxLineLength)

	p := cfg.Section("preview")
	f.Preview.SampleRate = p.Key("sample_rate").MustInt(f.Preview.SampleRate)
	f.Preview.Gain = p.Key("gain").MustFloat64(f.Preview.Gain)
	f.Preview.LeadInMs = p.Key("lead_in_ms").MustInt(f.Preview.LeadInMs)
	f.Preview.Workers = p.Key("workers").MustInt(f.Preview.Workers)
	f.Decoder = f.Decoder.Normalized()
}

func positive(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
