package bms

import (
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/japanese"

	"github.com/cbegin/bmschart-go/internal/chart"
	"github.com/cbegin/bmschart-go/internal/config"
)

func decode(t *testing.T, text string, selections ...int) *chart.Model {
	t.Helper()
	d := NewDecoder(Options{Selections: selections})
	return d.Decode("test.bms", []byte(text))
}

func TestLongNoteAcrossTwoTokens(t *testing.T) {
	m := decode(t, "#BPM 120\n#00151:01020000\n")
	if len(m.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(m.Notes))
	}
	n := m.Notes[0]
	if n.Kind != chart.LongNote {
		t.Fatalf("expected long note, got %s", n.Kind)
	}
	// one measure at 120bpm is 2s; a quarter of it is 500ms
	if n.EndTimeUs-n.TimeUs != 500_000 {
		t.Fatalf("expected 500000us long note, got %d", n.EndTimeUs-n.TimeUs)
	}
	if n.SoundID != 1 || n.EndSoundID != 2 {
		t.Fatalf("expected sounds 1/2, got %d/%d", n.SoundID, n.EndSoundID)
	}
}

func TestExtendedTempoMidMeasure(t *testing.T) {
	m := decode(t, "#BPM 120\n#BPM01 240\n#00108:0001\n#00111:00000001\n#00211:01\n")
	if len(m.TempoChanges) != 1 {
		t.Fatalf("expected 1 tempo change, got %+v", m.TempoChanges)
	}
	tc := m.TempoChanges[0]
	if tc.TimeUs != 1_000_000 || tc.Tempo != 240 {
		t.Fatalf("expected 240bpm at 1s, got %+v", tc)
	}
	if len(m.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(m.Notes))
	}
	if m.Notes[0].TimeUs != 1_250_000 {
		t.Fatalf("expected first note at 1250000, got %d", m.Notes[0].TimeUs)
	}
	if m.Notes[1].TimeUs != 2_500_000 {
		t.Fatalf("expected second note at 2500000, got %d", m.Notes[1].TimeUs)
	}
	if m.Timeline[1].Tempo != 240 {
		t.Fatalf("expected timeline tempo 240, got %v", m.Timeline[1].Tempo)
	}
}

func TestHexTempoChannel(t *testing.T) {
	m := decode(t, "#00103:78\n")
	if len(m.TempoChanges) != 1 || m.TempoChanges[0].Tempo != 120 {
		t.Fatalf("expected hex 78 to be 120bpm, got %+v", m.TempoChanges)
	}
}

func TestStopPausesTimeline(t *testing.T) {
	m := decode(t, "#BPM 120\n#STOP01 96\n#00109:0001\n#00111:00000001\n")
	if len(m.PauseEvents) != 1 {
		t.Fatalf("expected 1 pause, got %+v", m.PauseEvents)
	}
	if pe := m.PauseEvents[0]; pe.TimeUs != 1_000_000 || pe.DurationUs != 1_000_000 {
		t.Fatalf("expected 1s pause at 1s, got %+v", pe)
	}
	if m.Notes[0].TimeUs != 2_500_000 {
		t.Fatalf("expected note at 2500000, got %d", m.Notes[0].TimeUs)
	}
}

func TestStopBeforeCoincidentTempo(t *testing.T) {
	m := decode(t, "#BPM 120\n#BPM01 240\n#STOP01 48\n#00108:0001\n#00109:0001\n#00111:00000001\n")
	if m.PauseEvents[0].DurationUs != 500_000 {
		t.Fatalf("expected pause measured at 120bpm, got %d", m.PauseEvents[0].DurationUs)
	}
	if m.Notes[0].TimeUs != 1_750_000 {
		t.Fatalf("expected note at 1750000, got %d", m.Notes[0].TimeUs)
	}
}

func TestMeasureLength(t *testing.T) {
	m := decode(t, "#BPM 120\n#00002:0.5\n#00011:01\n#00111:01\n")
	if len(m.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(m.Notes))
	}
	if m.Notes[1].TimeUs != 1_000_000 {
		t.Fatalf("expected half measure to last 1s, got %d", m.Notes[1].TimeUs)
	}
	if len(m.BarLines) != 2 || m.BarLines[1] != 1_000_000 {
		t.Fatalf("unexpected bar lines %v", m.BarLines)
	}
	if m.TotalMeasures != 2 {
		t.Fatalf("expected 2 measures, got %d", m.TotalMeasures)
	}
}

func TestMalformedPlayLevelUsesDefault(t *testing.T) {
	m := decode(t, "#PLAYLEVEL twelve\n#TITLE ok\n#00111:01\n")
	if m.PlayLevel != 0 {
		t.Fatalf("expected default play level 0, got %d", m.PlayLevel)
	}
	if m.Title != "ok" {
		t.Fatalf("decode should continue after a bad header, title=%q", m.Title)
	}
	if m.Warnings.MalformedValues == 0 {
		t.Fatalf("expected the bad header counted")
	}
}

func TestHeaders(t *testing.T) {
	m := decode(t, "#TITLE Song\n#SUBTITLE -remix-\n#ARTIST a\n#SUBARTIST b\n#GENRE g\n#BPM 150.5\n#RANK 1\n#TOTAL abc\n#LNTYPE 2\n#PLAYLEVEL 7\n#DIFFICULTY 3\n#PREVIEW pre.ogg\n#FOO bar\n")
	if m.Title != "Song" || m.Subtitle != "-remix-" || m.Artist != "a" || m.SubArtist != "b" || m.Genre != "g" {
		t.Fatalf("unexpected metadata %+v", m)
	}
	if m.InitialTempo != 150.5 {
		t.Fatalf("expected 150.5, got %v", m.InitialTempo)
	}
	if m.JudgeRank != 75 || m.JudgeRankRaw != 1 || m.JudgeRankSource != chart.JudgeRankBMS {
		t.Fatalf("unexpected rank %d/%d/%d", m.JudgeRank, m.JudgeRankRaw, m.JudgeRankSource)
	}
	if m.Total != 300 || m.TotalSource != chart.TotalDefault {
		t.Fatalf("expected default total, got %v", m.Total)
	}
	if m.LongNoteMode != chart.ModeChargeNote {
		t.Fatalf("expected charge note mode, got %s", m.LongNoteMode)
	}
	if m.PlayLevel != 7 || m.Difficulty != 3 || m.Preview != "pre.ogg" {
		t.Fatalf("unexpected level/difficulty/preview")
	}
	if m.Warnings.UnknownDirectives != 1 {
		t.Fatalf("expected 1 unknown directive, got %d", m.Warnings.UnknownDirectives)
	}
}

func TestDefExRank(t *testing.T) {
	m := decode(t, "#RANK 3\n#DEFEXRANK 120\n")
	if m.JudgeRank != 120 || m.JudgeRankSource != chart.JudgeRankDefEx {
		t.Fatalf("expected defexrank 120, got %d (%d)", m.JudgeRank, m.JudgeRankSource)
	}
}

func TestDefaults(t *testing.T) {
	m := decode(t, "")
	if m.InitialTempo != 130 || m.Total != 300 || m.JudgeRank != 50 || m.JudgeRankRaw != 2 {
		t.Fatalf("unexpected defaults tempo=%v total=%v rank=%d/%d", m.InitialTempo, m.Total, m.JudgeRank, m.JudgeRankRaw)
	}
}

const nestedRandom = `#RANDOM 2
#IF 1
#RANDOM 2
#IF 2
#00111:01
#ENDIF
#ENDRANDOM
#ENDIF
#IF 2
#00112:01
#ENDIF
#ENDRANDOM
`

func TestNestedRandomInactiveOuterSkipsInner(t *testing.T) {
	m := decode(t, nestedRandom, 2, 2)
	if len(m.Notes) != 1 || m.Notes[0].Lane != 1 {
		t.Fatalf("expected only the outer #IF 2 note, got %+v", m.Notes)
	}
	if len(m.RandomSelections) != 2 {
		t.Fatalf("expected inner #RANDOM still counted, got %v", m.RandomSelections)
	}
}

func TestNestedRandomActivePath(t *testing.T) {
	m := decode(t, nestedRandom, 1, 2)
	if len(m.Notes) != 1 || m.Notes[0].Lane != 0 {
		t.Fatalf("expected the inner note on lane 0, got %+v", m.Notes)
	}
	m = decode(t, nestedRandom, 1, 1)
	if len(m.Notes) != 0 {
		t.Fatalf("expected no notes, got %+v", m.Notes)
	}
}

func TestElseIfAndElseBranches(t *testing.T) {
	const text = `#RANDOM 3
#IF 1
#00111:01
#ELSEIF 2
#00112:01
#ELSE
#00113:01
#ENDIF
#00114:01
#ENDRANDOM
`
	cases := []struct {
		value int
		lanes []int
	}{
		{1, []int{0, 3}},
		{2, []int{1, 3}},
		{3, []int{2, 3}},
	}
	for _, tc := range cases {
		m := decode(t, text, tc.value)
		if len(m.Notes) != len(tc.lanes) {
			t.Fatalf("value %d: expected %d notes, got %+v", tc.value, len(tc.lanes), m.Notes)
		}
		for i, lane := range tc.lanes {
			if m.Notes[i].Lane != lane {
				t.Fatalf("value %d: expected lane %d at %d, got %d", tc.value, lane, i, m.Notes[i].Lane)
			}
		}
	}
}

func TestRandomUsesSourceAfterSelections(t *testing.T) {
	d := NewDecoder(Options{Intn: func(n int) int { return n - 1 }})
	m := d.Decode("r.bms", []byte("#RANDOM 3\n#IF 3\n#00111:01\n#ENDIF\n#ENDRANDOM\n"))
	if len(m.Notes) != 1 {
		t.Fatalf("expected branch 3 taken, got %d notes", len(m.Notes))
	}
	if !m.HasRandom || m.RandomSelections[0] != 3 {
		t.Fatalf("expected selection 3 recorded, got %v", m.RandomSelections)
	}
}

func TestMalformedRandomBoundFallsBack(t *testing.T) {
	m := decode(t, "#RANDOM x\n#IF 1\n#00111:01\n#ENDIF\n#ENDRANDOM\n")
	if len(m.Notes) != 1 {
		t.Fatalf("expected fallback bound 1 to select branch 1, got %d notes", len(m.Notes))
	}
}

func TestUnclosedLongNoteDropped(t *testing.T) {
	m := decode(t, "#00151:0100\n")
	if len(m.Notes) != 0 {
		t.Fatalf("expected no notes, got %+v", m.Notes)
	}
	if m.Warnings.UnclosedLongNotes != 1 {
		t.Fatalf("expected 1 unclosed long note, got %d", m.Warnings.UnclosedLongNotes)
	}
}

func TestLongNotePairsInTimeOrder(t *testing.T) {
	// measure 1 is declared before measure 0; pairing follows time, not file order
	m := decode(t, "#BPM 120\n#00151:01\n#00051:0002\n#00251:03\n#00351:04\n")
	if len(m.Notes) != 2 {
		t.Fatalf("expected 2 long notes, got %+v", m.Notes)
	}
	if m.Notes[0].TimeUs != 1_000_000 || m.Notes[0].EndTimeUs != 2_000_000 {
		t.Fatalf("unexpected first long note %+v", m.Notes[0])
	}
	if m.Notes[1].TimeUs != 4_000_000 || m.Notes[1].EndTimeUs != 6_000_000 {
		t.Fatalf("unexpected second long note %+v", m.Notes[1])
	}
}

func TestLNObjClosesPreviousNote(t *testing.T) {
	m := decode(t, "#BPM 120\n#LNOBJ ZZ\n#00111:01ZZ\n#00112:ZZ\n")
	if len(m.Notes) != 1 {
		t.Fatalf("expected 1 note, got %+v", m.Notes)
	}
	n := m.Notes[0]
	if n.Kind != chart.LongNote || n.EndTimeUs != 1_000_000 || n.EndSoundID != 36*36-1 {
		t.Fatalf("unexpected note %+v", n)
	}
	if m.Warnings.DroppedNotes != 1 {
		t.Fatalf("expected the orphan marker dropped, got %d", m.Warnings.DroppedNotes)
	}
}

func TestNormalBeatsMineAtSameSpot(t *testing.T) {
	m := decode(t, "#00111:01\n#000D1:05\n")
	if len(m.Notes) != 1 || m.Notes[0].Kind != chart.Normal {
		t.Fatalf("expected normal note to survive, got %+v", m.Notes)
	}
}

func TestMineDamage(t *testing.T) {
	m := decode(t, "#00111:0001\n#000D1:0A\n")
	for _, n := range m.Notes {
		if n.Kind == chart.Mine && n.Damage == 10 {
			return
		}
	}
	t.Fatalf("expected mine with damage 10, got %+v", m.Notes)
}

func TestUnmappedChannelGoesToBackground(t *testing.T) {
	m := decode(t, "#00119:01\n#00117:02\n#00101:03\n")
	if m.Mode != chart.Beat7K {
		t.Fatalf("expected 7k, got %s", m.Mode)
	}
	if len(m.Notes) != 1 || m.Notes[0].Lane != 6 {
		t.Fatalf("expected one note on lane 6, got %+v", m.Notes)
	}
	if len(m.BgEvents) != 2 {
		t.Fatalf("expected 2 background events, got %+v", m.BgEvents)
	}
}

func TestModeDetection(t *testing.T) {
	cases := []struct {
		name string
		text string
		pms  bool
		want chart.PlayMode
	}{
		{"5k", "#00111:01\n#00116:01\n", false, chart.Beat5K},
		{"7k", "#00118:01\n", false, chart.Beat7K},
		{"10k", "#00111:01\n#00121:01\n", false, chart.Beat10K},
		{"14k", "#00118:01\n#00121:01\n", false, chart.Beat14K},
		{"player3", "#PLAYER 3\n#00111:01\n", false, chart.Beat10K},
		{"pms", "#00115:01\n", true, chart.PopN9K},
		{"pms with 2P keys", "#00115:01\n#00122:01\n", true, chart.PopN9K},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewDecoder(Options{PMS: tc.pms}).Decode("x", []byte(tc.text))
			if m.Mode != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, m.Mode)
			}
		})
	}
}

func TestForcedMode(t *testing.T) {
	mode := chart.Beat14K
	m := NewDecoder(Options{Mode: &mode}).Decode("x", []byte("#00121:01\n"))
	if m.Mode != chart.Beat14K || m.Notes[0].Lane != 8 {
		t.Fatalf("expected 14k lane 8, got %s %+v", m.Mode, m.Notes)
	}
}

func TestBGAEvents(t *testing.T) {
	m := decode(t, "#BMP01 a.bmp\n#00004:01\n#00007:0001\n#00006:01\n")
	if len(m.BgaEvents) != 3 {
		t.Fatalf("expected 3 bga events, got %+v", m.BgaEvents)
	}
	if m.BgaEvents[2].Layer != chart.LayerOverlay {
		t.Fatalf("expected overlay last, got %+v", m.BgaEvents[2])
	}
}

func TestResourcePaths(t *testing.T) {
	d := NewDecoder(DefaultOptions())
	m := d.Decode(filepath.Join("charts", "song", "a.bms"), []byte("#WAV01 kick.wav\n#WAV02 sub\\snare.wav\n#WAV03\n"))
	if got, want := m.Sounds[1], filepath.Join("charts", "song", "kick.wav"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got, want := m.Sounds[2], filepath.Join("charts", "song", "sub", "snare.wav"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if _, ok := m.Sounds[3]; ok {
		t.Fatalf("empty definition should be skipped")
	}
}

func TestHashesUseRawBytes(t *testing.T) {
	raw, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("#TITLE 曲名\n#00111:01\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m := NewDecoder(DefaultOptions()).Decode("sjis.bms", raw)
	md5Hex, shaHex := chart.Hashes(raw)
	if m.MD5 != md5Hex || m.SHA256 != shaHex {
		t.Fatalf("hashes not taken over raw bytes")
	}
	if m.Title != "曲名" {
		t.Fatalf("expected decoded title, got %q", m.Title)
	}
}

func TestCommentsAndBlankLines(t *testing.T) {
	m := decode(t, "*---- header\n\n   #TITLE  spaced  \r\n; not a directive\n#00111:01\r\n")
	if m.Title != "spaced" {
		t.Fatalf("expected trimmed title, got %q", m.Title)
	}
	if len(m.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(m.Notes))
	}
}

func TestPartialConfigKeepsDirectives(t *testing.T) {
	d := NewDecoder(Options{Config: config.Decoder{DefaultTempo: 150, DefaultRank: 2}})
	m := d.Decode("x.bms", []byte("#BPM 120\n#00111:01\n"))
	if len(m.Notes) != 1 || m.InitialTempo != 120 {
		t.Fatalf("expected 1 note at 120 BPM, got %d notes at %v", len(m.Notes), m.InitialTempo)
	}
	if m.Warnings.MalformedValues != 0 {
		t.Fatalf("expected no malformed values, got %d", m.Warnings.MalformedValues)
	}
	if m.Notes[0].TimeUs != 2000000 {
		t.Fatalf("expected note at 2000000, got %d", m.Notes[0].TimeUs)
	}
}
