package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cbegin/bmschart-go"
	"github.com/cbegin/bmschart-go/internal/config"
)

const (
	windowW    = 1100
	windowH    = 720
	minWindowW = 900
	minWindowH = 600

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
)

var chartExts = map[string]bool{".bms": true, ".bme": true, ".bml": true, ".pms": true, ".bmson": true}

type navEntry struct {
	name  string
	path  string
	isDir bool
}

type game struct {
	cfg    config.File
	player *bmschart.Player
	events <-chan bmschart.PlaybackEvent
	chart  *bmschart.Chart

	volume         float64
	background     bool
	draggingVolume bool

	playing bool
	paused  bool

	status    string
	statusErr bool

	cwd        string
	nav        []navEntry
	navScroll  int
	loadedPath string

	frameTick        int
	lastNavPath      string
	lastNavClickTick int

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(cfg config.File, initialPath string) (*game, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	g := &game{
		cfg:       cfg,
		volume:    cfg.Preview.Gain,
		status:    "Ready",
		cwd:       cwd,
		textCache: make(map[string]*ebiten.Image, 256),
		viewW:     windowW,
		viewH:     windowH,
	}
	if err := g.rebuildPlayer(); err != nil {
		return nil, err
	}
	if initialPath != "" {
		if err := g.loadFile(initialPath); err != nil {
			g.setError(err.Error())
		}
		return g, nil
	}
	if err := g.refreshNav(); err != nil {
		g.setError(err.Error())
	}
	return g, nil
}

func (g *game) Update() error {
	g.frameTick++
	g.pollEvents()
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	g.drawSunkenPanel(screen, l.nav)
	g.drawText(screen, "Charts", l.nav.Min.X+8, l.nav.Min.Y+8)
	g.drawNavigator(screen, l.nav)
	g.drawLanes(screen, l.lanes)
	g.drawSunkenPanel(screen, l.info)
	g.drawInfo(screen, l.info)
	g.drawButton(screen, l.play, g.playButtonLabel())
	g.drawButton(screen, l.bg, g.backgroundLabel())
	g.drawVolumeSlider(screen, l.volume)
	g.drawSunkenPanel(screen, l.status)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, minWindowW)
	g.viewH = max(outsideH, minWindowH)
	return g.viewW, g.viewH
}

func (g *game) Close() { _ = g.player.Stop() }

func (g *game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			if ev.Kind == bmschart.EventPlaybackEnded {
				g.playing = false
				g.paused = false
				if !g.statusErr {
					g.status = "Playback ended"
				}
			}
		default:
			return
		}
	}
}

func (g *game) handleKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.togglePlayPause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) && g.playing {
		_ = g.player.Stop()
		g.setStatus("Stopped")
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.play):
			g.togglePlayPause()
			return
		case pointInRect(mx, my, l.bg):
			g.toggleBackground()
			return
		case pointInRect(mx, my, l.volume):
			g.draggingVolume = true
		case pointInRect(mx, my, l.nav):
			g.clickNavigator(my, l.nav)
			return
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.draggingVolume = false
	}
	if g.draggingVolume {
		g.updateVolumeFromMouse(mx, l.volume)
	}

	_, wy := ebiten.Wheel()
	if wy != 0 && pointInRect(mx, my, l.nav) {
		g.navScroll = max(0, g.navScroll-int(wy*2))
	}
}

type uiLayout struct {
	nav, lanes, info image.Rectangle
	play, bg, volume image.Rectangle
	status           image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w, h := g.viewW, g.viewH
	pad := 20
	rowH := 44
	statusH := 40

	statusTop := h - pad - statusH
	controlsTop := statusTop - 8 - rowH
	contentBottom := controlsTop - 12

	navRect := image.Rect(pad, pad, pad+280, contentBottom)
	lanesX := navRect.Max.X + 12
	lanesRect := image.Rect(lanesX, pad, lanesX+360, contentBottom)
	infoRect := image.Rect(lanesRect.Max.X+12, pad, w-pad, contentBottom)

	return uiLayout{
		nav:    navRect,
		lanes:  lanesRect,
		info:   infoRect,
		play:   image.Rect(pad, controlsTop, pad+130, controlsTop+rowH),
		bg:     image.Rect(pad+142, controlsTop, pad+330, controlsTop+rowH),
		volume: image.Rect(pad+342, controlsTop, min(pad+642, w-pad), controlsTop+rowH),
		status: image.Rect(pad, statusTop, w-pad, statusTop+statusH),
	}
}

func (g *game) drawNavigator(screen *ebiten.Image, rect image.Rectangle) {
	maxChars := max(8, (rect.Dx()-16)/charW)
	g.drawText(screen, shortenMiddle(g.cwd, maxChars), rect.Min.X+8, rect.Min.Y+8+lineH)

	top := rect.Min.Y + 12 + lineH*2
	maxLines := max(1, (rect.Dy()-lineH*2-18)/lineH)
	g.navScroll = min(g.navScroll, max(0, len(g.nav)-maxLines))
	for i := 0; i < maxLines && g.navScroll+i < len(g.nav); i++ {
		e := g.nav[g.navScroll+i]
		y := top + i*lineH
		if samePath(e.path, g.loadedPath) {
			ebitenutil.DrawRect(screen, float64(rect.Min.X+4), float64(y), float64(rect.Dx()-8), float64(lineH), highlightColor)
		}
		name := e.name
		if e.isDir {
			name += "/"
		}
		g.drawText(screen, shortenEnd(name, maxChars), rect.Min.X+8, y)
	}
}

func (g *game) drawLanes(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), laneBgColor)
	drawSunkenBorder(screen, rect)
	if g.chart == nil {
		return
	}
	var nowUs int64
	if g.playing {
		nowUs = g.player.PlaybackPosition().Microseconds()
	}
	geo := newLaneGeometry(rect, g.chart, nowUs)
	lw := geo.laneWidth()
	for lane := 1; lane < geo.lanes; lane++ {
		x := geo.laneX(lane)
		ebitenutil.DrawRect(screen, float64(x), float64(rect.Min.Y), 1, float64(rect.Dy()), laneLineColor)
	}
	for _, t := range visibleBars(g.chart.BarLines, nowUs) {
		ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(geo.y(t)), float64(rect.Dx()), 1, barLineColor)
	}
	for _, n := range visibleNotes(g.chart.Notes, nowUs) {
		if n.Lane < 0 || n.Lane >= geo.lanes {
			continue
		}
		x := float64(geo.laneX(n.Lane) + 2)
		c := geo.noteColor(n.Lane)
		if n.Kind == bmschart.Mine {
			c = mineColor
		}
		y := geo.y(n.TimeUs)
		if n.Kind.IsLong() {
			top := max(rect.Min.Y, geo.y(n.EndTimeUs))
			bottom := min(y, rect.Max.Y)
			body := color.NRGBA{c.R, c.G, c.B, longNoteBodyTint}
			ebitenutil.DrawRect(screen, x+4, float64(top), float64(lw-12), float64(bottom-top), body)
		}
		if y >= rect.Min.Y && y < rect.Max.Y {
			ebitenutil.DrawRect(screen, x, float64(y-6), float64(lw-4), 8, c)
		}
	}
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(geo.judgeY), float64(rect.Dx()), 2, judgeLineColor)
}

func (g *game) drawInfo(screen *ebiten.Image, rect image.Rectangle) {
	if g.chart == nil {
		g.drawText(screen, "Select a chart to preview.", rect.Min.X+8, rect.Min.Y+8)
		return
	}
	c := g.chart
	maxChars := max(8, (rect.Dx()-16)/charW)
	pos := time.Duration(0)
	if g.playing {
		pos = max(0, g.player.PlaybackPosition())
	}
	lines := []string{
		c.Title + " " + c.Subtitle,
		c.Artist,
		c.Genre,
		"",
		fmt.Sprintf("%s  level %d", c.Mode, c.PlayLevel),
		fmt.Sprintf("notes %d  long %d", c.TotalNotes(), c.TotalLongNotes()),
		fmt.Sprintf("bpm %g - %g", c.MinTempo(), c.MaxTempo()),
		fmt.Sprintf("now %g bpm", c.TempoAt(pos.Microseconds())),
		fmt.Sprintf("%s / %s", pos.Truncate(time.Second), (time.Duration(c.DurationUs) * time.Microsecond).Truncate(time.Second)),
	}
	if c.Warnings.Total() > 0 {
		lines = append(lines, fmt.Sprintf("%d warnings", c.Warnings.Total()))
	}
	for i, s := range lines {
		g.drawText(screen, shortenEnd(s, maxChars), rect.Min.X+8, rect.Min.Y+8+i*lineH)
	}
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	msg := "Status: " + g.status
	if g.statusErr {
		msg = "Status: ERROR - " + g.status
	}
	maxChars := max(8, (rect.Dx()-16)/charW)
	g.drawText(screen, shortenEnd(msg, maxChars), rect.Min.X+8, rect.Min.Y+6)
}

func (g *game) clickNavigator(my int, rect image.Rectangle) {
	top := rect.Min.Y + 12 + lineH*2
	row := (my - top) / lineH
	if my < top {
		return
	}
	idx := g.navScroll + row
	if idx < 0 || idx >= len(g.nav) {
		return
	}
	entry := g.nav[idx]
	if entry.isDir {
		g.cwd = entry.path
		g.navScroll = 0
		if err := g.refreshNav(); err != nil {
			g.setError(err.Error())
			return
		}
		g.setStatus("Directory: " + g.cwd)
		return
	}

	doubleClickSame := samePath(entry.path, g.lastNavPath) && (g.frameTick-g.lastNavClickTick) <= 18
	g.lastNavPath = entry.path
	g.lastNavClickTick = g.frameTick

	if err := g.loadFile(entry.path); err != nil {
		g.setError(err.Error())
		return
	}
	if doubleClickSame {
		g.restartPlayback()
		return
	}
	g.setStatus("Loaded " + filepath.Base(entry.path))
}

func (g *game) refreshNav() error {
	items, err := os.ReadDir(g.cwd)
	if err != nil {
		return err
	}
	var dirs, files []navEntry
	if parent := filepath.Dir(g.cwd); parent != g.cwd {
		dirs = append(dirs, navEntry{name: "..", path: parent, isDir: true})
	}
	for _, it := range items {
		name := it.Name()
		full := filepath.Join(g.cwd, name)
		if it.IsDir() {
			dirs = append(dirs, navEntry{name: name, path: full, isDir: true})
			continue
		}
		if chartExts[strings.ToLower(filepath.Ext(name))] {
			files = append(files, navEntry{name: name, path: full})
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].name == ".." {
			return true
		}
		if dirs[j].name == ".." {
			return false
		}
		return strings.ToLower(dirs[i].name) < strings.ToLower(dirs[j].name)
	})
	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i].name) < strings.ToLower(files[j].name)
	})
	g.nav = append(dirs, files...)
	return nil
}

func (g *game) loadFile(path string) error {
	c, err := bmschart.DecodeFile(path, bmschart.WithConfig(g.cfg.Decoder))
	if err != nil {
		return err
	}
	_ = g.player.Stop()
	g.playing = false
	g.paused = false
	g.chart = c
	g.loadedPath = path
	g.cwd = filepath.Dir(path)
	return g.refreshNav()
}

func (g *game) rebuildPlayer() error {
	if g.player != nil {
		_ = g.player.Stop()
	}
	pl, err := bmschart.NewPlayer(g.cfg.Preview.SampleRate,
		bmschart.WithLeadIn(time.Duration(g.cfg.Preview.LeadInMs)*time.Millisecond),
		bmschart.WithBackground(g.background),
	)
	if err != nil {
		return err
	}
	pl.SetMasterVolume(g.volume)
	g.player = pl
	g.events = pl.Watch()
	g.playing = false
	g.paused = false
	return nil
}

func (g *game) toggleBackground() {
	wasPlaying := g.playing
	g.background = !g.background
	if err := g.rebuildPlayer(); err != nil {
		g.setError(err.Error())
		return
	}
	if wasPlaying {
		g.restartPlayback()
		return
	}
	g.setStatus(g.backgroundLabel())
}

func (g *game) togglePlayPause() {
	if !g.playing {
		g.restartPlayback()
		return
	}
	if g.paused {
		g.player.Resume()
		g.paused = false
		g.setStatus("Playing")
		return
	}
	g.player.Pause()
	g.paused = true
	g.setStatus("Paused")
}

func (g *game) restartPlayback() {
	if g.chart == nil {
		g.setError("No chart loaded")
		return
	}
	if err := g.player.Play(g.chart); err != nil {
		g.playing = false
		g.paused = false
		g.setError(err.Error())
		return
	}
	g.playing = true
	g.paused = false
	g.player.SetMasterVolume(g.volume)
	g.setStatus("Playing")
}

func (g *game) updateVolumeFromMouse(mx int, rect image.Rectangle) {
	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	if trackW <= 0 {
		return
	}
	g.volume = clamp(float64(mx-trackX)/float64(trackW), 0, 1)
	g.player.SetMasterVolume(g.volume)
}

func (g *game) playButtonLabel() string {
	if !g.playing {
		return "Play"
	}
	if g.paused {
		return "Resume"
	}
	return "Pause"
}

func (g *game) backgroundLabel() string {
	if g.background {
		return "BG sounds on"
	}
	return "BG sounds off"
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func main() {
	configPath := flag.String("config", "bmsinfo.ini", "ini file with [decoder] and [preview] sections")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	var initialPath string
	if flag.NArg() > 0 {
		initialPath, err = filepath.Abs(flag.Arg(0))
		if err != nil {
			log.Fatalf("resolve %q: %v", flag.Arg(0), err)
		}
	}

	g, err := newGame(cfg, initialPath)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("bmsview")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
