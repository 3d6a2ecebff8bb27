// Package bmschart decodes rhythm-game charts in the tagged text format
// (.bms, .bme, .bml, .pms) and the JSON bmson format into a time-resolved
// model: every note, keysound and tempo event carries an absolute time in
// microseconds.
package bmschart

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/cbegin/bmschart-go/internal/bms"
	"github.com/cbegin/bmschart-go/internal/bmson"
	"github.com/cbegin/bmschart-go/internal/chart"
	"github.com/cbegin/bmschart-go/internal/config"
)

type (
	Chart         = chart.Model
	Note          = chart.Note
	NoteKind      = chart.NoteKind
	BgEvent       = chart.BgEvent
	BgaEvent      = chart.BgaEvent
	TempoChange   = chart.TempoChange
	PauseEvent    = chart.PauseEvent
	ScrollChange  = chart.ScrollChange
	TimelinePoint = chart.TimelinePoint
	JudgeNote     = chart.JudgeNote
	PlayMode      = chart.PlayMode
	LongNoteMode  = chart.LongNoteMode
	Format        = chart.Format
	Warnings      = chart.Warnings
	DecoderConfig = config.Decoder
	SchemaError   = bmson.SchemaError
)

const (
	Normal         = chart.Normal
	Invisible      = chart.Invisible
	Mine           = chart.Mine
	LongNote       = chart.LongNote
	ChargeNote     = chart.ChargeNote
	HellChargeNote = chart.HellChargeNote
)

const (
	Beat5K            = chart.Beat5K
	Beat7K            = chart.Beat7K
	Beat10K           = chart.Beat10K
	Beat14K           = chart.Beat14K
	PopN5K            = chart.PopN5K
	PopN9K            = chart.PopN9K
	Keyboard24K       = chart.Keyboard24K
	Keyboard24KDouble = chart.Keyboard24KDouble
)

const (
	FormatBMS   = chart.FormatBMS
	FormatBMSON = chart.FormatBMSON
)

// ErrUnknownFormat is returned for a file extension no decoder handles.
var ErrUnknownFormat = errors.New("bmschart: unknown chart format")

// DefaultDecoderConfig returns the stock fallbacks and tolerances.
func DefaultDecoderConfig() DecoderConfig { return config.Default() }

type Option func(*decodeConfig)

type decodeConfig struct {
	decoder    config.Decoder
	mode       *chart.PlayMode
	selections []int
	intn       func(int) int
}

// WithPlayMode forces the play mode instead of detecting it.
func WithPlayMode(mode PlayMode) Option {
	return func(cfg *decodeConfig) {
		cfg.mode = &mode
	}
}

// WithRandomSelections replays #RANDOM values in order. Charts with more
// #RANDOM directives than selections draw the rest from the random source.
func WithRandomSelections(values ...int) Option {
	return func(cfg *decodeConfig) {
		cfg.selections = append([]int(nil), values...)
	}
}

// WithRandomSource replaces the generator used for #RANDOM. intn must
// return a value in [0, n).
func WithRandomSource(intn func(n int) int) Option {
	return func(cfg *decodeConfig) {
		cfg.intn = intn
	}
}

func WithConfig(c DecoderConfig) Option {
	return func(cfg *decodeConfig) {
		cfg.decoder = c
	}
}

// FormatOf picks the decoder for path by extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bms", ".bme", ".bml", ".pms":
		return chart.FormatBMS, nil
	case ".bmson":
		return chart.FormatBMSON, nil
	default:
		return 0, errors.Wrapf(ErrUnknownFormat, "%s", path)
	}
}

// DecodeFile reads and decodes the chart at path.
func DecodeFile(path string, opts ...Option) (*Chart, error) {
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read chart %s", path)
	}
	return DecodeBytes(path, raw, opts...)
}

// Decode reads a chart from r. path selects the format and anchors
// resource paths; it is not opened.
func Decode(r io.Reader, path string, opts ...Option) (*Chart, error) {
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read chart %s", path)
	}
	return DecodeBytes(path, raw, opts...)
}

// DecodeBytes decodes raw chart bytes. Tagged charts never fail; anomalies
// are counted in the chart's Warnings. bmson documents fail with a
// *SchemaError when required fields are missing or mistyped.
func DecodeBytes(path string, raw []byte, opts ...Option) (*Chart, error) {
	cfg := decodeConfig{decoder: config.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == chart.FormatBMSON {
		d := bmson.NewDecoder(bmson.Options{Config: cfg.decoder, Mode: cfg.mode})
		c, err := d.Decode(path, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", path)
		}
		return c, nil
	}
	d := bms.NewDecoder(bms.Options{
		Config:     cfg.decoder,
		Selections: cfg.selections,
		Intn:       cfg.intn,
		Mode:       cfg.mode,
		PMS:        strings.EqualFold(filepath.Ext(path), ".pms"),
	})
	return d.Decode(path, raw), nil
}
