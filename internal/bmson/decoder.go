// Package bmson decodes JSON charts in the bmson layout into the same
// time-resolved model the tagged decoder produces.
package bmson

import (
	"encoding/json"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cbegin/bmschart-go/internal/chart"
	"github.com/cbegin/bmschart-go/internal/config"
	"github.com/cbegin/bmschart-go/internal/textenc"
	"github.com/cbegin/bmschart-go/internal/timeline"
)

type Options struct {
	Config config.Decoder
	// Mode forces a play mode instead of reading info.mode_hint.
	Mode *chart.PlayMode
}

func DefaultOptions() Options {
	return Options{Config: config.Default()}
}

type Decoder struct {
	opts Options
}

func NewDecoder(opts Options) *Decoder {
	opts.Config = opts.Config.Normalized()
	return &Decoder{opts: opts}
}

// lnRange is the span of an already placed long note, in measures.
type lnRange struct {
	start, end float64
}

type builder struct {
	cfg  config.Decoder
	doc  *document
	m    *chart.Model
	tl   *timeline.Engine
	res  float64
	dir  string
	lns  map[int][]lnRange
	keys []int

	// nextID is the next sound id; every channel takes one.
	nextID uint32
}

// Decode decodes a bmson document. Documents that are not JSON, lack
// info.init_bpm, or carry wrongly typed fields fail with a *SchemaError.
func (d *Decoder) Decode(path string, raw []byte) (*chart.Model, error) {
	cfg := d.opts.Config
	data := []byte(textenc.Decode(raw))
	if err := validate(data); err != nil {
		return nil, err
	}
	doc := newDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, schemaErr(err)
	}

	m := &chart.Model{
		Format:          chart.FormatBMSON,
		Path:            path,
		Player:          1,
		JudgeRankSource: chart.JudgeRankBMSON,
		TotalSource:     chart.TotalDefault,
		Sounds:          make(map[uint32]string),
		Images:          make(map[uint32]string),
	}
	m.MD5, m.SHA256 = chart.Hashes(raw)

	b := &builder{
		cfg: cfg,
		doc: doc,
		m:   m,
		dir: filepath.Dir(path),
		lns: make(map[int][]lnRange),
	}
	b.header(gjson.GetBytes(data, "info.total").Exists())
	if d.opts.Mode != nil {
		m.Mode = *d.opts.Mode
	}
	b.keys = m.Mode.KeyAssign()

	ppm := float64(doc.Info.Resolution) * 4
	if doc.Info.Resolution <= 0 {
		ppm = 960
	}
	b.res = ppm / 4
	b.tl = timeline.New(timeline.PulseGrid{PulsesPerMeasure: ppm}, m.InitialTempo)
	b.timing()

	b.barLines()
	b.soundChannels()
	b.keyChannels()
	b.mineChannels()
	b.bga()
	chart.Finalize(m, b.tl.Entries(), cfg.TempoEpsilon)
	return m, nil
}

func (b *builder) header(hasTotal bool) {
	in, m := b.doc.Info, b.m
	m.Title = in.Title
	m.Subtitle = in.Subtitle
	if in.ChartName != "" {
		if m.Subtitle != "" {
			m.Subtitle += " "
		}
		m.Subtitle += "[" + in.ChartName + "]"
	}
	m.Genre = in.Genre
	m.Artist = in.Artist
	m.SubArtist = strings.Join(in.Subartists, ",")
	m.PlayLevel = in.Level

	m.InitialTempo = in.InitBPM
	if in.InitBPM <= 0 || math.IsInf(in.InitBPM, 0) || math.IsNaN(in.InitBPM) {
		m.InitialTempo = b.cfg.DefaultTempo
		m.Warnings.MalformedValues++
	}

	m.JudgeRankRaw = in.JudgeRank
	m.JudgeRank = in.JudgeRank
	if in.JudgeRank < 0 {
		m.JudgeRankRaw, m.JudgeRank = 100, 100
		m.Warnings.MalformedValues++
	}

	m.Total = b.cfg.DefaultBMSONTotal
	if in.Total > 0 {
		m.Total = in.Total
		if hasTotal {
			m.TotalSource = chart.TotalHeader
		}
	} else {
		m.Warnings.MalformedValues++
	}

	if in.LNType >= 1 && in.LNType <= 3 {
		m.LongNoteMode = chart.LongNoteModeFromCode(in.LNType)
	}

	mode, ok := chart.ParseModeHint(in.ModeHint)
	if !ok {
		mode = chart.Beat7K
		m.Warnings.UnknownDirectives++
	}
	m.Mode = mode

	m.Banner = b.resource(in.BannerImage)
	m.BackBMP = b.resource(in.BackImage)
	m.StageFile = b.resource(in.EyecatchImage)
	m.Preview = b.resource(in.PreviewMusic)
}

func (b *builder) resource(name string) string {
	if name == "" {
		return ""
	}
	name = filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if b.dir == "" || b.dir == "." {
		return name
	}
	return filepath.Join(b.dir, name)
}

// timing feeds scroll, pause and tempo events to the timeline in pulse
// order. At one pulse scroll goes first, then the pause, then the tempo
// change, so a pause is measured at the tempo in effect before it.
func (b *builder) timing() {
	doc, w := b.doc, &b.m.Warnings
	scrolls := append([]scrollEvent(nil), doc.ScrollEvents...)
	stops := append([]stopEvent(nil), doc.StopEvents...)
	bpms := append([]bpmEvent(nil), doc.BPMEvents...)
	sort.SliceStable(scrolls, func(i, j int) bool { return scrolls[i].Y < scrolls[j].Y })
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Y < stops[j].Y })
	sort.SliceStable(bpms, func(i, j int) bool { return bpms[i].Y < bpms[j].Y })

	grid := b.tl.Grid()
	si, pi, bi := 0, 0, 0
	for si < len(scrolls) || pi < len(stops) || bi < len(bpms) {
		sy, py, by := int64(math.MaxInt64), int64(math.MaxInt64), int64(math.MaxInt64)
		if si < len(scrolls) {
			sy = scrolls[si].Y
		}
		if pi < len(stops) {
			py = stops[pi].Y
		}
		if bi < len(bpms) {
			by = bpms[bi].Y
		}
		switch {
		case sy <= py && sy <= by:
			if err := b.tl.SetScroll(sy, scrolls[si].rate()); err != nil {
				w.MalformedValues++
			}
			si++
		case py <= by:
			s := stops[pi]
			if ok, err := b.tl.AddPause(py, grid.Beats(0, s.Duration)); err != nil || !ok {
				w.MalformedValues++
			}
			pi++
		default:
			if ok, err := b.tl.SetTempo(by, bpms[bi].BPM); err != nil || !ok {
				w.MalformedValues++
			}
			bi++
		}
	}
}

func (b *builder) barLines() {
	m := b.m
	var maxY int64
	for _, l := range b.doc.Lines {
		m.BarLines = append(m.BarLines, b.tl.TimeUs(l.Y))
		if l.Y > maxY {
			maxY = l.Y
		}
	}
	sort.Slice(m.BarLines, func(i, j int) bool { return m.BarLines[i] < m.BarLines[j] })
	if len(b.doc.Lines) > 0 {
		m.TotalMeasures = len(b.doc.Lines)
		return
	}
	for _, sc := range b.doc.SoundChannels {
		for _, n := range sc.Notes {
			if n.Y+n.L > maxY {
				maxY = n.Y + n.L
			}
		}
	}
	m.TotalMeasures = int(float64(maxY)/(b.res*4)) + 1
}

// lane maps a bmson x to a lane. Anything outside the key table, including
// x = 0, is background.
func (b *builder) lane(x int) int {
	if x > 0 && x <= len(b.keys) {
		return b.keys[x-1]
	}
	return -1
}

// measure converts a pulse position to measures.
func (b *builder) measure(y float64) float64 {
	return y / (b.res * 4)
}

func (b *builder) insideLN(lane int, section float64) bool {
	for _, r := range b.lns[lane] {
		if r.start < section && section <= r.end {
			return true
		}
	}
	return false
}

func (b *builder) soundChannels() {
	m, tl := b.m, b.tl
	id := b.nextID
	for _, sc := range b.doc.SoundChannels {
		m.Sounds[id] = b.resource(sc.Name)
		notes := append([]soundNote(nil), sc.Notes...)
		sort.SliceStable(notes, func(i, j int) bool { return notes[i].Y < notes[j].Y })

		// continued[y] is set when a note at y continues the previous
		// slice of the sound.
		var ys []int64
		continued := make(map[int64]bool)
		for i, n := range notes {
			if i == 0 || n.Y != notes[i-1].Y {
				ys = append(ys, n.Y)
			}
			if n.C {
				continued[n.Y] = true
			}
		}

		var start int64
		k := 0
		for _, n := range notes {
			for ys[k] != n.Y {
				k++
			}
			t := tl.TimeUs(n.Y)
			var dur int64
			if k+1 < len(ys) && continued[ys[k+1]] {
				dur = tl.TimeUs(ys[k+1]) - t
			}
			if !n.C {
				start = 0
			}
			b.soundNote(n, id, t, start, dur)
			start += dur
		}
		id++
	}
	b.nextID = id
}

func (b *builder) soundNote(n soundNote, id uint32, t, start, dur int64) {
	m, tl := b.m, b.tl
	lane := b.lane(n.X)
	section := b.measure(float64(n.Y))
	if lane < 0 {
		m.BgEvents = append(m.BgEvents, chart.BgEvent{TimeUs: t, SoundID: id, MicroStartUs: start, MicroDurationUs: dur})
		return
	}
	if n.Up {
		for i := len(m.Notes) - 1; i >= 0; i-- {
			ln := &m.Notes[i]
			if ln.Lane != lane || !ln.Kind.IsLong() {
				continue
			}
			end := b.measure(tl.TickAt(float64(ln.EndTimeUs)))
			if math.Abs(end-section) < b.cfg.ReleaseMatchEpsilon {
				ln.EndSoundID = id
				return
			}
		}
		m.Warnings.OrphanReleaseSounds++
		return
	}
	if b.insideLN(lane, section) {
		m.BgEvents = append(m.BgEvents, chart.BgEvent{TimeUs: t, SoundID: id, MicroStartUs: start, MicroDurationUs: dur})
		return
	}
	note := chart.Note{
		Lane:            lane,
		Kind:            chart.Normal,
		TimeUs:          t,
		SoundID:         id,
		EndSoundID:      id,
		MicroStartUs:    start,
		MicroDurationUs: dur,
	}
	if n.L > 0 {
		note.Kind = m.LongNoteMode.Kind()
		if n.T >= 1 && n.T <= 3 {
			note.Kind = chart.LongNoteModeFromCode(n.T).Kind()
		}
		note.EndTimeUs = tl.TimeUs(n.Y + n.L)
		b.lns[lane] = append(b.lns[lane], lnRange{start: section, end: b.measure(float64(n.Y + n.L))})
	}
	m.Notes = append(m.Notes, note)
}

// keyChannels places silent invisible notes.
func (b *builder) keyChannels() {
	m := b.m
	for _, kc := range b.doc.KeyChannels {
		id := b.nextID
		b.nextID++
		if kc.Name != "" {
			m.Sounds[id] = b.resource(kc.Name)
		}
		for _, n := range kc.Notes {
			lane := b.lane(n.X)
			if lane < 0 {
				m.Warnings.DroppedNotes++
				continue
			}
			m.Notes = append(m.Notes, chart.Note{
				Lane:       lane,
				Kind:       chart.Invisible,
				TimeUs:     b.tl.TimeUs(n.Y),
				SoundID:    id,
				EndSoundID: id,
			})
		}
	}
}

// mineChannels places mines. A mine inside a long note on its lane is
// skipped.
func (b *builder) mineChannels() {
	m := b.m
	for _, mc := range b.doc.MineChannels {
		id := b.nextID
		b.nextID++
		if mc.Name != "" {
			m.Sounds[id] = b.resource(mc.Name)
		}
		for _, n := range mc.Notes {
			lane := b.lane(n.X)
			if lane < 0 {
				m.Warnings.DroppedNotes++
				continue
			}
			if b.insideLN(lane, b.measure(float64(n.Y))) {
				continue
			}
			m.Notes = append(m.Notes, chart.Note{
				Lane:       lane,
				Kind:       chart.Mine,
				TimeUs:     b.tl.TimeUs(n.Y),
				SoundID:    id,
				EndSoundID: id,
				Damage:     n.Damage,
			})
		}
	}
}

func (b *builder) bga() {
	g := b.doc.BGA
	if g == nil {
		return
	}
	m := b.m
	for _, h := range g.Header {
		m.Images[uint32(h.ID)] = b.resource(h.Name)
	}
	layers := []struct {
		events []bgaNote
		layer  chart.BgaLayer
	}{
		{g.BGAEvents, chart.LayerBase},
		{g.LayerEvents, chart.LayerOverlay},
		{g.PoorEvents, chart.LayerPoor},
	}
	for _, l := range layers {
		for _, e := range l.events {
			if _, ok := m.Images[uint32(e.ID)]; !ok {
				m.Warnings.UndefinedReferences++
			}
			m.BgaEvents = append(m.BgaEvents, chart.BgaEvent{
				TimeUs:  b.tl.TimeUs(e.Y),
				ImageID: uint32(e.ID),
				Layer:   l.layer,
			})
		}
	}
}
