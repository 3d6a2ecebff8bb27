// Package bms decodes the line-oriented tagged chart format (.bms, .bme,
// .bml, .pms) into a time-resolved chart model.
//
// Decoding is best effort: malformed headers fall back to defaults, unknown
// directives and dangling references are skipped, and every such case is
// counted in the model's Warnings. Only the caller's file read can fail.
package bms

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cbegin/bmschart-go/internal/chart"
	"github.com/cbegin/bmschart-go/internal/config"
	"github.com/cbegin/bmschart-go/internal/textenc"
	"github.com/cbegin/bmschart-go/internal/timeline"
)

const (
	chBGM         = 0x01
	chMeasureLen  = 0x02
	chTempo       = 0x03
	chBGABase     = 0x04
	chBGAPoor     = 0x06
	chBGAOverlay  = 0x07
	chTempoExt    = 0x08
	chStop        = 0x09
	chBGAOverlay2 = 0x0A

	// pauseTicksPerBeat is the #STOP unit: 192 per 4/4 measure.
	pauseTicksPerBeat = 48.0
)

type Options struct {
	Config config.Decoder
	// Selections replays #RANDOM values in order; once exhausted, values
	// come from Intn.
	Selections []int
	// Intn returns a value in [0, n). Nil uses math/rand/v2.
	Intn func(n int) int
	// Mode forces a play mode instead of detecting one.
	Mode *chart.PlayMode
	// PMS selects the pop'n default when the mode is detected.
	PMS bool
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

// object is one non-zero token of a channel data line.
type object struct {
	tick    int64
	channel int
	id      int
}

type parser struct {
	cfg     config.Decoder
	m       *chart.Model
	cf      *controlFlow
	dir     string
	objects []object
	lengths map[int]float64
	tempos  map[int]float64
	stops   map[int]float64
	lnObj   int

	maxMeasure int
	max1P      int
	has2P      bool
}

// Decode decodes raw chart bytes. path names the chart file; resource paths
// are resolved against its directory.
func (d *Decoder) Decode(path string, raw []byte) *chart.Model {
	cfg := d.opts.Config
	m := &chart.Model{
		Format:          chart.FormatBMS,
		Path:            path,
		InitialTempo:    cfg.DefaultTempo,
		Player:          1,
		JudgeRankRaw:    cfg.DefaultRank,
		JudgeRank:       rankWindow(cfg.DefaultRank),
		JudgeRankSource: chart.JudgeRankBMS,
		Total:           cfg.DefaultTotal,
		TotalSource:     chart.TotalDefault,
		Sounds:          make(map[uint32]string),
		Images:          make(map[uint32]string),
	}
	m.MD5, m.SHA256 = chart.Hashes(raw)

	p := &parser{
		cfg:     cfg,
		m:       m,
		cf:      newControlFlow(d.opts.Selections, d.opts.Intn),
		dir:     filepath.Dir(path),
		lengths: make(map[int]float64),
		tempos:  make(map[int]float64),
		stops:   make(map[int]float64),
	}
	p.parse(textenc.Decode(raw))
	m.RandomSelections = p.cf.chosen

	switch {
	case d.opts.Mode != nil:
		m.Mode = *d.opts.Mode
	default:
		m.Mode = detectMode(p.max1P, p.has2P, m.Player, d.opts.PMS)
	}

	p.materialize()
	return m
}

// detectMode picks a play mode from the highest 1P key index in use and
// whether the 2P side is used. pop'n charts always use the 9-key layout.
func detectMode(max1P int, has2P bool, player int, pms bool) chart.PlayMode {
	switch {
	case pms:
		return chart.PopN9K
	case has2P || player == 3:
		if max1P > 6 {
			return chart.Beat14K
		}
		return chart.Beat10K
	case max1P > 6:
		return chart.Beat7K
	default:
		return chart.Beat5K
	}
}

func rankWindow(raw int) int {
	switch raw {
	case 0:
		return 100
	case 1:
		return 75
	case 2:
		return 50
	case 3:
		return 25
	default:
		return raw
	}
}

func (p *parser) parse(text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] != '#' {
			continue
		}
		if len(line) > p.cfg.MaxLineLength {
			p.m.Warnings.MalformedValues++
			continue
		}
		body := line[1:]
		key, value := splitDirective(body)
		if p.control(key, value) {
			continue
		}
		if !p.cf.visible() {
			continue
		}
		if measure, ch, data, ok := channelLine(body); ok {
			p.channel(measure, ch, data)
			continue
		}
		p.header(key, value)
	}
}

// control handles the random/branch directives. They are evaluated even
// inside skipped regions so nesting stays balanced.
func (p *parser) control(key, value string) bool {
	switch key {
	case "RANDOM":
		bound, ok := parseInt(value)
		if !ok {
			p.m.Warnings.MalformedValues++
			bound = 1
		}
		p.cf.random(bound)
		p.m.HasRandom = true
	case "SETRANDOM":
		v, ok := parseInt(value)
		if !ok {
			p.m.Warnings.MalformedValues++
			v = 1
		}
		p.cf.setRandom(v)
		p.m.HasRandom = true
	case "IF":
		v, ok := parseInt(value)
		if !ok {
			p.m.Warnings.MalformedValues++
			v = 0
		}
		p.cf.ifEquals(v)
	case "ELSEIF":
		v, ok := parseInt(value)
		if !ok {
			p.m.Warnings.MalformedValues++
			v = 0
		}
		p.cf.elseIf(v)
	case "ELSE":
		p.cf.orElse()
	case "ENDIF":
		p.cf.endIf()
	case "ENDRANDOM":
		p.cf.endRandom()
	default:
		return false
	}
	return true
}

func (p *parser) header(key, value string) {
	m := p.m
	switch key {
	case "PLAYER":
		m.Player = p.intOr(value, 1)
	case "GENRE":
		m.Genre = value
	case "TITLE":
		m.Title = value
	case "SUBTITLE":
		m.Subtitle = value
	case "ARTIST":
		m.Artist = value
	case "SUBARTIST":
		m.SubArtist = value
	case "BPM":
		if v, ok := parseFloat(value); ok && v > 0 && !math.IsInf(v, 0) {
			m.InitialTempo = v
		} else {
			m.Warnings.MalformedValues++
		}
	case "RANK":
		if v, ok := parseInt(value); ok {
			m.JudgeRankRaw = v
			m.JudgeRank = rankWindow(v)
			m.JudgeRankSource = chart.JudgeRankBMS
		} else {
			m.Warnings.MalformedValues++
		}
	case "DEFEXRANK":
		v := p.intOr(value, p.cfg.DefaultDefExRank)
		m.JudgeRankRaw = v
		m.JudgeRank = v
		m.JudgeRankSource = chart.JudgeRankDefEx
	case "TOTAL":
		if v, ok := parseFloat(value); ok && v > 0 {
			m.Total = v
			m.TotalSource = chart.TotalHeader
		} else {
			m.Warnings.MalformedValues++
		}
	case "PLAYLEVEL":
		m.PlayLevel = p.intOr(value, 0)
	case "DIFFICULTY":
		m.Difficulty = p.intOr(value, 0)
	case "LNTYPE", "LNMODE":
		m.LongNoteMode = chart.LongNoteModeFromCode(p.intOr(value, 1))
	case "LNOBJ":
		if id, ok := parseBase36(value); ok {
			p.lnObj = id
		} else {
			m.Warnings.MalformedValues++
		}
	case "BANNER":
		m.Banner = value
	case "STAGEFILE":
		m.StageFile = value
	case "BACKBMP":
		m.BackBMP = value
	case "PREVIEW":
		m.Preview = value
	default:
		p.indexed(key, value)
	}
}

// indexed handles the per-id definitions: WAVxx, BMPxx, BPMxx and STOPxx.
func (p *parser) indexed(key, value string) {
	var prefix string
	for _, pre := range []string{"WAV", "BMP", "BPM", "STOP"} {
		if strings.HasPrefix(key, pre) && len(key) == len(pre)+2 {
			prefix = pre
			break
		}
	}
	if prefix == "" {
		p.m.Warnings.UnknownDirectives++
		return
	}
	id, ok := parseBase36(key[len(prefix):])
	if !ok {
		p.m.Warnings.MalformedValues++
		return
	}
	switch prefix {
	case "WAV":
		if value != "" {
			p.m.Sounds[uint32(id)] = p.resource(value)
		}
	case "BMP":
		if value != "" {
			p.m.Images[uint32(id)] = p.resource(value)
		}
	case "BPM":
		if v, ok := parseFloat(value); ok {
			p.tempos[id] = v
		} else {
			p.m.Warnings.MalformedValues++
		}
	case "STOP":
		if v, ok := parseFloat(value); ok {
			p.stops[id] = v
		} else {
			p.m.Warnings.MalformedValues++
		}
	}
}

func (p *parser) resource(name string) string {
	name = filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if p.dir == "" || p.dir == "." {
		return name
	}
	return filepath.Join(p.dir, name)
}

func (p *parser) channel(measure, ch int, data string) {
	if measure > p.maxMeasure {
		p.maxMeasure = measure
	}
	if ch == chMeasureLen {
		v, ok := parseFloat(data)
		if !ok || v <= 0 || math.IsInf(v, 0) {
			p.m.Warnings.MalformedValues++
			return
		}
		p.lengths[measure] = v
		return
	}
	if idx := ch&0x0F - 1; idx >= 0 && idx < 9 {
		switch ch >> 4 {
		case 0x1, 0x5:
			if idx+1 > p.max1P {
				p.max1P = idx + 1
			}
		case 0x2, 0x6:
			p.has2P = true
		}
	}
	data = strings.ReplaceAll(data, " ", "")
	n := len(data) / 2
	for i := 0; i < n; i++ {
		tok := data[2*i : 2*i+2]
		var id int
		var ok bool
		if ch == chTempo {
			id, ok = parseHex(tok)
		} else {
			id, ok = parseBase36(tok)
		}
		if !ok {
			p.m.Warnings.MalformedValues++
			continue
		}
		if id == 0 {
			continue
		}
		p.objects = append(p.objects, object{
			tick:    timeline.MeasureTick(measure, i, n),
			channel: ch,
			id:      id,
		})
	}
}

// timing order at one tick: pauses before tempo changes.
func timingRank(ch int) int {
	if ch == chStop {
		return 0
	}
	return 1
}

func (p *parser) materialize() {
	m := p.m
	sort.SliceStable(p.objects, func(i, j int) bool {
		return p.objects[i].tick < p.objects[j].tick
	})

	var timing []object
	for _, o := range p.objects {
		switch o.channel {
		case chTempo, chTempoExt, chStop:
			timing = append(timing, o)
		}
	}
	sort.SliceStable(timing, func(i, j int) bool {
		if timing[i].tick != timing[j].tick {
			return timing[i].tick < timing[j].tick
		}
		return timingRank(timing[i].channel) < timingRank(timing[j].channel)
	})

	grid := timeline.NewMeasureGrid(p.lengths)
	tl := timeline.New(grid, m.InitialTempo)
	for _, o := range timing {
		p.applyTiming(tl, o)
	}
	end := int64(p.maxMeasure+1) * timeline.MeasureTicks
	tl.GetOrCreate(end)

	m.TotalMeasures = p.maxMeasure + 1
	m.BarLines = make([]int64, 0, m.TotalMeasures)
	for i := 0; i < m.TotalMeasures; i++ {
		m.BarLines = append(m.BarLines, tl.TimeUs(int64(i)*timeline.MeasureTicks))
	}

	p.notes(tl)
	chart.Finalize(m, tl.Entries(), p.cfg.TempoEpsilon)
}

func (p *parser) applyTiming(tl *timeline.Engine, o object) {
	w := &p.m.Warnings
	var ok bool
	var err error
	switch o.channel {
	case chTempo:
		ok, err = tl.SetTempo(o.tick, float64(o.id))
	case chTempoExt:
		bpm, defined := p.tempos[o.id]
		if !defined {
			w.UndefinedReferences++
			return
		}
		ok, err = tl.SetTempo(o.tick, bpm)
	case chStop:
		ticks, defined := p.stops[o.id]
		if !defined {
			w.UndefinedReferences++
			return
		}
		ok, err = tl.AddPause(o.tick, ticks/pauseTicksPerBeat)
	}
	if err != nil || !ok {
		w.MalformedValues++
	}
}

type lnKey struct {
	group int
	lane  int
}

type pendingLN struct {
	timeUs int64
	id     int
}

func (p *parser) notes(tl *timeline.Engine) {
	m := p.m
	open := make(map[lnKey]pendingLN)
	lastNormal := make(map[int]int)

	for _, o := range p.objects {
		ch := o.channel
		t := tl.TimeUs(o.tick)
		switch ch {
		case chBGM:
			m.BgEvents = append(m.BgEvents, chart.BgEvent{TimeUs: t, SoundID: uint32(o.id)})
			continue
		case chBGABase, chBGAPoor, chBGAOverlay, chBGAOverlay2:
			m.BgaEvents = append(m.BgaEvents, chart.BgaEvent{TimeUs: t, ImageID: uint32(o.id), Layer: bgaLayer(ch)})
			continue
		}

		idx := ch&0x0F - 1
		if idx < 0 || idx >= 9 {
			continue
		}
		family := ch >> 4
		switch family {
		case 0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0xD, 0xE:
		default:
			continue
		}
		lane := m.Mode.ChannelLane(family%2 == 0, idx)
		if lane < 0 {
			if family == 0xD || family == 0xE {
				m.Warnings.DroppedNotes++
			} else {
				m.BgEvents = append(m.BgEvents, chart.BgEvent{TimeUs: t, SoundID: uint32(o.id)})
			}
			continue
		}

		switch family {
		case 0x1, 0x2:
			if p.lnObj != 0 && o.id == p.lnObj {
				p.closeByMarker(lastNormal, lane, t, o.id)
				continue
			}
			m.Notes = append(m.Notes, chart.Note{Lane: lane, Kind: chart.Normal, TimeUs: t, SoundID: uint32(o.id), EndSoundID: uint32(o.id)})
			lastNormal[lane] = len(m.Notes) - 1
		case 0x3, 0x4:
			m.Notes = append(m.Notes, chart.Note{Lane: lane, Kind: chart.Invisible, TimeUs: t, SoundID: uint32(o.id), EndSoundID: uint32(o.id)})
		case 0x5, 0x6:
			key := lnKey{group: ch & 0x0F, lane: lane}
			start, ok := open[key]
			if !ok {
				open[key] = pendingLN{timeUs: t, id: o.id}
				continue
			}
			delete(open, key)
			if t <= start.timeUs {
				m.Warnings.DroppedNotes++
				continue
			}
			m.Notes = append(m.Notes, chart.Note{
				Lane:       lane,
				Kind:       m.LongNoteMode.Kind(),
				TimeUs:     start.timeUs,
				EndTimeUs:  t,
				SoundID:    uint32(start.id),
				EndSoundID: uint32(o.id),
			})
		case 0xD, 0xE:
			m.Notes = append(m.Notes, chart.Note{Lane: lane, Kind: chart.Mine, TimeUs: t, SoundID: uint32(o.id), EndSoundID: uint32(o.id), Damage: float64(o.id)})
		}
	}
	m.Warnings.UnclosedLongNotes += len(open)
}

// closeByMarker turns the last normal note on lane into a long note ending
// at t. A marker with nothing to close is dropped.
func (p *parser) closeByMarker(lastNormal map[int]int, lane int, t int64, id int) {
	m := p.m
	i, ok := lastNormal[lane]
	if !ok || m.Notes[i].TimeUs >= t {
		m.Warnings.DroppedNotes++
		return
	}
	delete(lastNormal, lane)
	n := &m.Notes[i]
	n.Kind = m.LongNoteMode.Kind()
	n.EndTimeUs = t
	n.EndSoundID = uint32(id)
}

func bgaLayer(ch int) chart.BgaLayer {
	switch ch {
	case chBGAPoor:
		return chart.LayerPoor
	case chBGAOverlay:
		return chart.LayerOverlay
	case chBGAOverlay2:
		return chart.LayerOverlay2
	default:
		return chart.LayerBase
	}
}

func (p *parser) intOr(value string, def int) int {
	if v, ok := parseInt(value); ok {
		return v
	}
	p.m.Warnings.MalformedValues++
	return def
}
