package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cbegin/bmschart-go"
)

func TestParseSelections(t *testing.T) {
	got, err := parseSelections(" 2, 1 ")
	if err != nil {
		t.Fatalf("parseSelections: %v", err)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Fatalf("expected [2 1], got %v", got)
	}
	if got, err := parseSelections(""); err != nil || got != nil {
		t.Fatalf("expected nil selections for empty input, got %v (%v)", got, err)
	}
	for _, bad := range []string{"a", "1,,2", "0"} {
		if _, err := parseSelections(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "0s" {
		t.Fatalf("expected 0s, got %q", got)
	}
	got := formatDuration(125*time.Second + 300*time.Millisecond)
	if !strings.Contains(got, "2") || !strings.Contains(got, "5") || strings.Contains(got, "300") {
		t.Fatalf("expected minutes and seconds only, got %q", got)
	}
}

func TestDecodeAllKeepsOrder(t *testing.T) {
	paths := []string{
		filepath.Join("..", "..", "testdata", "basic.bmson"),
		filepath.Join("..", "..", "testdata", "missing.bms"),
		filepath.Join("..", "..", "testdata", "basic.bms"),
	}
	results := decodeAll(paths, 2, nil)
	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for i, r := range results {
		if r.path != paths[i] {
			t.Fatalf("result %d: expected path %s, got %s", i, paths[i], r.path)
		}
	}
	if results[1].err == nil {
		t.Fatalf("expected error for missing chart")
	}
	if results[0].chart.Format != bmschart.FormatBMSON || results[2].chart.Format != bmschart.FormatBMS {
		t.Fatalf("unexpected formats %v, %v", results[0].chart.Format, results[2].chart.Format)
	}
	if results[2].size == 0 {
		t.Fatalf("expected file size for basic.bms")
	}
}

func TestSummaryText(t *testing.T) {
	path := filepath.Join("..", "..", "testdata", "basic.bms")
	r := decodeOne(path, nil)
	if r.err != nil {
		t.Fatalf("decode: %v", r.err)
	}
	s := newSummary(r)
	if s.Notes != 4 {
		t.Fatalf("expected 4 notes, got %d", s.Notes)
	}
	if s.MinBPM == s.MaxBPM {
		t.Fatalf("expected a tempo range, got %v", s.MinBPM)
	}
	text := s.text()
	for _, want := range []string{path, "mode beat-5k", "notes 4", "md5 " + r.chart.MD5} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in summary:\n%s", want, text)
		}
	}
}
