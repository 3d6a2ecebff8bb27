package chart

import "strings"

type PlayMode uint8

const (
	Beat5K PlayMode = iota
	Beat7K
	Beat10K
	Beat14K
	PopN5K
	PopN9K
	Keyboard24K
	Keyboard24KDouble
)

var modeHints = map[string]PlayMode{
	"beat-5k":             Beat5K,
	"beat-7k":             Beat7K,
	"beat-10k":            Beat10K,
	"beat-14k":            Beat14K,
	"popn-5k":             PopN5K,
	"popn-9k":             PopN9K,
	"keyboard-24k":        Keyboard24K,
	"keyboard-24k-double": Keyboard24KDouble,
}

// ParseModeHint maps a bmson mode_hint. Unknown hints report false.
func ParseModeHint(hint string) (PlayMode, bool) {
	m, ok := modeHints[strings.ToLower(strings.TrimSpace(hint))]
	return m, ok
}

func (m PlayMode) String() string {
	for hint, mode := range modeHints {
		if mode == m {
			return hint
		}
	}
	return "unknown"
}

// KeyCount is the number of lanes, scratch included.
func (m PlayMode) KeyCount() int {
	switch m {
	case Beat5K:
		return 6
	case Beat7K:
		return 8
	case Beat10K:
		return 12
	case Beat14K:
		return 16
	case PopN5K:
		return 5
	case PopN9K:
		return 9
	case Keyboard24K:
		return 26
	case Keyboard24KDouble:
		return 52
	default:
		return 0
	}
}

func (m PlayMode) Players() int {
	switch m {
	case Beat10K, Beat14K, Keyboard24KDouble:
		return 2
	default:
		return 1
	}
}

// ScratchLanes lists the turntable lanes of the mode.
func (m PlayMode) ScratchLanes() []int {
	switch m {
	case Beat5K:
		return []int{5}
	case Beat7K:
		return []int{7}
	case Beat10K:
		return []int{5, 11}
	case Beat14K:
		return []int{7, 15}
	case Keyboard24K:
		return []int{24, 25}
	case Keyboard24KDouble:
		return []int{24, 25, 50, 51}
	default:
		return nil
	}
}

// Lane tables for tagged charts. Index is channel - 0x11 (1P) or
// channel - 0x21 (2P); -1 means the channel has no lane in the mode.
var (
	assignBeat5   = [9]int{0, 1, 2, 3, 4, 5, -1, -1, -1}
	assignBeat7   = [9]int{0, 1, 2, 3, 4, 7, -1, 5, 6}
	assignPopN    = [9]int{0, 1, 2, 3, 4, -1, -1, -1, -1}
	assignPopN2P  = [9]int{-1, 5, 6, 7, 8, -1, -1, -1, -1}
	assignBeat5P2 = [9]int{6, 7, 8, 9, 10, 11, -1, -1, -1}
	assignBeat7P2 = [9]int{8, 9, 10, 11, 12, 15, -1, 13, 14}
	assignNone    = [9]int{-1, -1, -1, -1, -1, -1, -1, -1, -1}
)

// ChannelLane returns the lane for key index idx (0..8) of the given player
// side, or -1.
func (m PlayMode) ChannelLane(player2 bool, idx int) int {
	if idx < 0 || idx >= 9 {
		return -1
	}
	var table *[9]int
	if !player2 {
		switch m {
		case Beat5K, Beat10K:
			table = &assignBeat5
		case PopN5K, PopN9K:
			table = &assignPopN
		default:
			table = &assignBeat7
		}
	} else {
		switch m {
		case Beat10K:
			table = &assignBeat5P2
		case Beat14K:
			table = &assignBeat7P2
		case PopN9K:
			table = &assignPopN2P
		default:
			table = &assignNone
		}
	}
	return table[idx]
}

// KeyAssign returns the bmson lane table, indexed by x-1.
func (m PlayMode) KeyAssign() []int {
	switch m {
	case Beat5K:
		return []int{0, 1, 2, 3, 4, -1, -1, 5}
	case Beat10K:
		return []int{0, 1, 2, 3, 4, -1, -1, 5, 6, 7, 8, 9, 10, -1, -1, 11}
	default:
		out := make([]int, m.KeyCount())
		for i := range out {
			out[i] = i
		}
		return out
	}
}
