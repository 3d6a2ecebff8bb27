package bmschart

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestDecodeFileFixtures(t *testing.T) {
	cases := []struct {
		file   string
		format Format
		mode   PlayMode
		notes  int
		bg     int
	}{
		{file: "basic.bms", format: FormatBMS, mode: Beat5K, notes: 4, bg: 1},
		{file: "basic.bmson", format: FormatBMSON, mode: Beat7K, notes: 4, bg: 1},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			c, err := DecodeFile(filepath.Join("testdata", tc.file))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if c.Format != tc.format || c.Mode != tc.mode {
				t.Fatalf("expected %v/%v, got %v/%v", tc.format, tc.mode, c.Format, c.Mode)
			}
			if c.Title != "Basic" || c.Artist != "Someone" || c.Genre != "Test" {
				t.Fatalf("unexpected metadata %q %q %q", c.Title, c.Artist, c.Genre)
			}
			if c.PlayLevel != 3 || c.Total != 200 {
				t.Fatalf("unexpected level %d total %v", c.PlayLevel, c.Total)
			}
			if len(c.Notes) != tc.notes || len(c.BgEvents) != tc.bg {
				t.Fatalf("expected %d notes %d bg, got %d %d", tc.notes, tc.bg, len(c.Notes), len(c.BgEvents))
			}
			last := c.Notes[len(c.Notes)-1]
			if last.TimeUs != 5000000 || last.Lane != 0 {
				t.Fatalf("expected last note on lane 0 at 5000000, got %+v", last)
			}
			if len(c.TempoChanges) != 1 || c.TempoChanges[0].TimeUs != 4000000 || c.TempoChanges[0].Tempo != 240 {
				t.Fatalf("unexpected tempo changes %+v", c.TempoChanges)
			}
			if c.MD5 == "" || c.SHA256 == "" {
				t.Fatal("expected content hashes")
			}
			for i := 1; i < len(c.Notes); i++ {
				if c.Notes[i].TimeUs < c.Notes[i-1].TimeUs {
					t.Fatalf("notes out of order at %d", i)
				}
			}
		})
	}
}

func TestDecodeUnknownExtension(t *testing.T) {
	_, err := DecodeBytes("song.txt", []byte("#TITLE x"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := DecodeFile(filepath.Join("testdata", "missing.mid")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat before reading, got %v", err)
	}
}

func TestDecodeFileMissing(t *testing.T) {
	_, err := DecodeFile(filepath.Join("testdata", "missing.bms"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestDecodeBytesSchemaError(t *testing.T) {
	_, err := DecodeBytes("x.bmson", []byte(`{"info":{"title":"no tempo"}}`))
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if se.Field != "info.init_bpm" {
		t.Fatalf("expected info.init_bpm, got %q", se.Field)
	}
}

func TestDecodeReader(t *testing.T) {
	c, err := Decode(bytes.NewReader([]byte("#BPM 150\n#00111:01\n")), "x.BME")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.InitialTempo != 150 || len(c.Notes) != 1 {
		t.Fatalf("unexpected chart: tempo %v notes %d", c.InitialTempo, len(c.Notes))
	}
}

func TestRandomSelectionsOption(t *testing.T) {
	path := filepath.Join("testdata", "random.bms")
	for _, sel := range []int{1, 2} {
		c, err := DecodeFile(path, WithRandomSelections(sel))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(c.Notes) != 1 || c.Notes[0].Lane != sel-1 {
			t.Fatalf("selection %d: unexpected notes %+v", sel, c.Notes)
		}
		if len(c.RandomSelections) != 1 || c.RandomSelections[0] != sel {
			t.Fatalf("selection %d: expected it recorded, got %v", sel, c.RandomSelections)
		}
	}
	c, err := DecodeFile(path, WithRandomSource(func(n int) int { return n - 1 }))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.RandomSelections[0] != 2 {
		t.Fatalf("expected source to pick 2, got %v", c.RandomSelections)
	}
}

func TestWithPlayModeAndConfig(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.DefaultTempo = 90
	c, err := DecodeBytes("x.bms", []byte("#00121:01\n"), WithPlayMode(Beat14K), WithConfig(cfg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Mode != Beat14K || c.InitialTempo != 90 {
		t.Fatalf("unexpected mode %v tempo %v", c.Mode, c.InitialTempo)
	}
	if len(c.Notes) != 1 || c.Notes[0].Lane != 8 {
		t.Fatalf("expected 2P note on lane 8, got %+v", c.Notes)
	}
}

func TestPMSExtensionSelectsPopN(t *testing.T) {
	c, err := DecodeBytes("x.pms", []byte("#00111:01\n#00122:01\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Mode != PopN9K {
		t.Fatalf("expected popn-9k, got %v", c.Mode)
	}
}
