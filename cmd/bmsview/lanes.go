package main

import (
	"image"
	"image/color"
	"sort"

	"github.com/cbegin/bmschart-go"
)

// laneWindowUs is how much upcoming chart time the lane view shows.
const laneWindowUs = 1_500_000

var (
	laneBgColor      = color.RGBA{16, 16, 24, 255}
	laneLineColor    = color.RGBA{48, 48, 64, 255}
	judgeLineColor   = color.RGBA{220, 60, 60, 255}
	barLineColor     = color.RGBA{90, 90, 110, 255}
	whiteKeyColor    = color.RGBA{230, 230, 230, 255}
	blueKeyColor     = color.RGBA{80, 140, 255, 255}
	scratchColor     = color.RGBA{255, 80, 80, 255}
	mineColor        = color.RGBA{180, 40, 40, 255}
	longNoteBodyTint = uint8(140)
)

// laneGeometry maps chart time and lanes into the lane view rectangle.
type laneGeometry struct {
	rect    image.Rectangle
	lanes   int
	judgeY  int
	nowUs   int64
	scratch map[int]bool
}

func newLaneGeometry(rect image.Rectangle, c *bmschart.Chart, nowUs int64) laneGeometry {
	g := laneGeometry{
		rect:    rect,
		lanes:   max(1, c.LaneCount()),
		judgeY:  rect.Max.Y - rect.Dy()/10,
		nowUs:   nowUs,
		scratch: map[int]bool{},
	}
	for _, l := range c.Mode.ScratchLanes() {
		g.scratch[l] = true
	}
	return g
}

func (g laneGeometry) laneWidth() int {
	return max(1, g.rect.Dx()/g.lanes)
}

func (g laneGeometry) laneX(lane int) int {
	return g.rect.Min.X + lane*g.laneWidth()
}

// y returns the screen row of a chart time. Times past the window land above
// the rectangle.
func (g laneGeometry) y(timeUs int64) int {
	span := int64(g.judgeY - g.rect.Min.Y)
	return g.judgeY - int((timeUs-g.nowUs)*span/laneWindowUs)
}

func (g laneGeometry) noteColor(lane int) color.RGBA {
	if g.scratch[lane] {
		return scratchColor
	}
	if lane%2 == 1 {
		return blueKeyColor
	}
	return whiteKeyColor
}

// visibleNotes returns the notes that overlap [nowUs, nowUs+window]. notes
// must be sorted by start time.
func visibleNotes(notes []bmschart.Note, nowUs int64) []bmschart.Note {
	end := sort.Search(len(notes), func(i int) bool {
		return notes[i].TimeUs > nowUs+laneWindowUs
	})
	var out []bmschart.Note
	for _, n := range notes[:end] {
		if n.Kind == bmschart.Invisible || n.End() < nowUs {
			continue
		}
		out = append(out, n)
	}
	return out
}

// visibleBars returns bar line times inside the window.
func visibleBars(bars []int64, nowUs int64) []int64 {
	lo := sort.Search(len(bars), func(i int) bool { return bars[i] >= nowUs })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i] > nowUs+laneWindowUs })
	return bars[lo:hi]
}
