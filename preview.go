package bmschart

import (
	intchip "github.com/cbegin/bmschart-go/internal/chiptune"
	intseq "github.com/cbegin/bmschart-go/internal/sequencer"
)

// Voice modules of the preview mix.
const (
	moduleLanes      = 0
	moduleBackground = 1
)

// backgroundTag marks triggers that come from background keysounds.
const backgroundTag = -1

// newPreviewEngine mixes a lane voice bank with a quieter background bank.
// It returns the engine with its base gain applied.
func newPreviewEngine(sampleRate int) (intseq.VoiceEngine, float64) {
	params := intchip.DefaultParams()
	lanes := intchip.New(sampleRate, params)
	bgParams := intchip.DefaultParams()
	bgParams.Voices = 16
	bgParams.VelocityAmp = 0.4
	bg := intchip.New(sampleRate, bgParams)

	multi := intseq.NewMultiEngine(moduleLanes)
	multi.AddEngine(moduleLanes, lanes)
	multi.AddEngine(moduleBackground, bg)
	multi.SetMasterGain(params.MasterGain)
	return multi, params.MasterGain
}

// clickTriggers turns a chart into voice triggers: one blip per judged note,
// held for the length of long notes, plus a soft tick per background
// keysound when background is set. The trigger tag is the note's lane.
func clickTriggers(c *Chart, background bool) []intseq.Trigger {
	lanes := c.LaneCount()
	scratch := make(map[int]bool)
	for _, l := range c.Mode.ScratchLanes() {
		scratch[l] = true
	}
	out := make([]intseq.Trigger, 0, len(c.Notes)+len(c.BgEvents))
	for _, n := range c.Notes {
		tr := intseq.Trigger{
			TimeUs:   n.TimeUs,
			Note:     72 + n.Lane%24,
			Velocity: 110,
			Pan:      lanePan(n.Lane, lanes),
			Program:  moduleLanes<<8 | intchip.ProgramPulse,
			Tag:      n.Lane,
		}
		switch {
		case n.Kind == Invisible:
			continue
		case n.Kind == Mine:
			tr.Note = 48
			tr.Velocity = 50
			tr.Program = moduleLanes<<8 | intchip.ProgramNoise
		case n.Kind.IsLong():
			tr.DurationUs = n.EndTimeUs - n.TimeUs
			tr.Program = moduleLanes<<8 | intchip.ProgramSquare
		case scratch[n.Lane]:
			tr.Note = 84
			tr.Program = moduleLanes<<8 | intchip.ProgramNoise
		}
		out = append(out, tr)
	}
	if !background {
		return out
	}
	for _, e := range c.BgEvents {
		out = append(out, intseq.Trigger{
			TimeUs:     e.TimeUs,
			DurationUs: e.MicroDurationUs,
			Note:       60,
			Velocity:   70,
			Program:    moduleBackground<<8 | intchip.ProgramTriangle,
			Tag:        backgroundTag,
		})
	}
	return out
}

// lanePan spreads lanes across the stereo field.
func lanePan(lane, lanes int) int {
	if lanes <= 1 {
		return 0
	}
	return -48 + lane*96/(lanes-1)
}
