package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/pkg/errors"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}

type summary struct {
	Path       string  `json:"path"`
	Format     string  `json:"format"`
	Size       int64   `json:"size"`
	Title      string  `json:"title"`
	Subtitle   string  `json:"subtitle,omitempty"`
	Artist     string  `json:"artist"`
	Genre      string  `json:"genre,omitempty"`
	Mode       string  `json:"mode"`
	Level      int     `json:"level"`
	Notes      int     `json:"notes"`
	LongNotes  int     `json:"long_notes"`
	InitialBPM float64 `json:"initial_bpm"`
	MinBPM     float64 `json:"min_bpm"`
	MaxBPM     float64 `json:"max_bpm"`
	DurationMs int64   `json:"duration_ms"`
	Total      float64 `json:"total"`
	JudgeRank  int     `json:"judge_rank"`
	MD5        string  `json:"md5"`
	SHA256     string  `json:"sha256"`
	Random     []int   `json:"random,omitempty"`
	Warnings   int     `json:"warnings"`
}

func newSummary(r result) summary {
	c := r.chart
	return summary{
		Path:       r.path,
		Format:     c.Format.String(),
		Size:       r.size,
		Title:      c.Title,
		Subtitle:   c.Subtitle,
		Artist:     c.Artist,
		Genre:      c.Genre,
		Mode:       c.Mode.String(),
		Level:      c.PlayLevel,
		Notes:      c.TotalNotes(),
		LongNotes:  c.TotalLongNotes(),
		InitialBPM: c.InitialTempo,
		MinBPM:     c.MinTempo(),
		MaxBPM:     c.MaxTempo(),
		DurationMs: c.DurationUs / 1000,
		Total:      c.Total,
		JudgeRank:  c.JudgeRank,
		MD5:        c.MD5,
		SHA256:     c.SHA256,
		Random:     c.RandomSelections,
		Warnings:   c.Warnings.Total(),
	}
}

func formatBPM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s summary) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s)\n", s.Path, humanize.Bytes(uint64(s.Size)), s.Format)
	title := s.Title
	if s.Subtitle != "" {
		title += " " + s.Subtitle
	}
	fmt.Fprintf(&b, "  %s / %s", title, s.Artist)
	if s.Genre != "" {
		fmt.Fprintf(&b, " [%s]", s.Genre)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  mode %s  level %d  notes %s (%s long)\n",
		s.Mode, s.Level, humanize.Comma(int64(s.Notes)), humanize.Comma(int64(s.LongNotes)))
	bpm := formatBPM(s.InitialBPM)
	if s.MinBPM != s.MaxBPM {
		bpm += fmt.Sprintf(" (%s-%s)", formatBPM(s.MinBPM), formatBPM(s.MaxBPM))
	}
	fmt.Fprintf(&b, "  bpm %s  length %s  total %s  rank %d\n",
		bpm, formatDuration(time.Duration(s.DurationMs)*time.Millisecond), formatBPM(s.Total), s.JudgeRank)
	if len(s.Random) > 0 {
		vals := make([]string, len(s.Random))
		for i, v := range s.Random {
			vals[i] = strconv.Itoa(v)
		}
		fmt.Fprintf(&b, "  random %s\n", strings.Join(vals, ","))
	}
	if s.Warnings > 0 {
		fmt.Fprintf(&b, "  %d warnings\n", s.Warnings)
	}
	fmt.Fprintf(&b, "  md5 %s\n", s.MD5)
	return b.String()
}

// parseSelections reads a comma-separated list of #RANDOM values.
func parseSelections(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 1 {
			return nil, errors.Errorf("invalid -random value %q (expected positive integers like 1,2)", p)
		}
		out = append(out, v)
	}
	return out, nil
}
