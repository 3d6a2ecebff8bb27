package bms

import (
	"strconv"
	"strings"
)

// splitDirective splits the text after '#' into an upper-cased key and the
// trimmed value that follows the first run of whitespace.
func splitDirective(body string) (key, value string) {
	i := strings.IndexAny(body, " \t")
	if i < 0 {
		return strings.ToUpper(body), ""
	}
	return strings.ToUpper(body[:i]), strings.TrimSpace(body[i+1:])
}

// channelLine matches MMMCC:data. The channel is two hex digits.
func channelLine(body string) (measure, channel int, data string, ok bool) {
	if len(body) < 6 || body[5] != ':' {
		return 0, 0, "", false
	}
	for i := 0; i < 3; i++ {
		if !isDigit(body[i]) {
			return 0, 0, "", false
		}
	}
	measure = int(body[0]-'0')*100 + int(body[1]-'0')*10 + int(body[2]-'0')
	channel, ok = parseHex(body[3:5])
	if !ok {
		return 0, 0, "", false
	}
	return measure, channel, strings.TrimSpace(body[6:]), true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func base36Digit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'A' && b <= 'Z':
		return int(b-'A') + 10, true
	case b >= 'a' && b <= 'z':
		return int(b-'a') + 10, true
	default:
		return 0, false
	}
}

func hexDigit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	default:
		return 0, false
	}
}

// parseBase36 reads a two-character id such as "0Z".
func parseBase36(s string) (int, bool) {
	if len(s) != 2 {
		return 0, false
	}
	hi, ok1 := base36Digit(s[0])
	lo, ok2 := base36Digit(s[1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi*36 + lo, true
}

func parseHex(s string) (int, bool) {
	if len(s) != 2 {
		return 0, false
	}
	hi, ok1 := hexDigit(s[0])
	lo, ok2 := hexDigit(s[1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi*16 + lo, true
}

func parseInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	return v, err == nil
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}
