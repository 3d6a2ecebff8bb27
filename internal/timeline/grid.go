package timeline

// Grid maps integer tick positions onto quarter-note beats. Each chart format
// supplies its own grid; the engine only ever asks for beat distances.
type Grid interface {
	// Beats returns the beat distance from one tick to another. It is
	// negative when to < from.
	Beats(from, to int64) float64
	// Advance returns the (fractional) tick reached by moving the given
	// number of beats forward from a tick.
	Advance(from int64, beats float64) float64
}

// MeasureTicks is the tick length of one measure on a MeasureGrid. It is
// 2^10·3^4·5^3·7^2·11·13, so token positions for every common subdivision
// land on an exact tick.
const MeasureTicks int64 = 72_648_576_000

// MeasureGrid addresses positions as measure index plus fraction of the
// measure. A measure spans 4 × its length multiplier beats.
type MeasureGrid struct {
	lengths map[int]float64
}

func NewMeasureGrid(lengths map[int]float64) *MeasureGrid {
	g := &MeasureGrid{lengths: make(map[int]float64, len(lengths))}
	for m, l := range lengths {
		if l > 0 {
			g.lengths[m] = l
		}
	}
	return g
}

// Length returns the length multiplier of a measure (1 unless overridden).
func (g *MeasureGrid) Length(measure int) float64 {
	if l, ok := g.lengths[measure]; ok {
		return l
	}
	return 1
}

// MeasureTick returns the tick for token index of count within a measure,
// rounded to the nearest tick.
func MeasureTick(measure, index, count int) int64 {
	base := int64(measure) * MeasureTicks
	if count <= 0 {
		return base
	}
	n := int64(count)
	return base + (int64(index)*MeasureTicks+n/2)/n
}

func (g *MeasureGrid) Beats(from, to int64) float64 {
	if to < from {
		return -g.Beats(to, from)
	}
	total := 0.0
	for from < to {
		m := floorDiv(from, MeasureTicks)
		end := (m + 1) * MeasureTicks
		if end > to {
			end = to
		}
		total += 4 * g.Length(int(m)) * float64(end-from) / float64(MeasureTicks)
		from = end
	}
	return total
}

func (g *MeasureGrid) Advance(from int64, beats float64) float64 {
	if beats <= 0 {
		return float64(from)
	}
	pos := from
	for {
		m := floorDiv(pos, MeasureTicks)
		end := (m + 1) * MeasureTicks
		perTick := 4 * g.Length(int(m)) / float64(MeasureTicks)
		left := float64(end-pos) * perTick
		if beats <= left {
			return float64(pos) + beats/perTick
		}
		beats -= left
		pos = end
	}
}

// PulseGrid addresses positions as pulses at a fixed resolution, where one
// measure of 4 beats is PulsesPerMeasure pulses.
type PulseGrid struct {
	PulsesPerMeasure float64
}

func (g PulseGrid) Beats(from, to int64) float64 {
	return 4 * float64(to-from) / g.PulsesPerMeasure
}

func (g PulseGrid) Advance(from int64, beats float64) float64 {
	return float64(from) + beats*g.PulsesPerMeasure/4
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
