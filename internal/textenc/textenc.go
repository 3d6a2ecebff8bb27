// Package textenc turns raw chart bytes into Unicode text.
//
// Charts in the wild are mostly Shift_JIS, with a long tail of UTF-8 (with
// and without a byte order mark) and EUC-JP. Decoding never fails: the last
// resort is a lossy Shift_JIS pass.
package textenc

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

type Encoding int

const (
	UTF8BOM Encoding = iota
	UTF8
	ShiftJIS
	EUCJP
	ShiftJISLossy
)

func (e Encoding) String() string {
	switch e {
	case UTF8BOM:
		return "utf-8-bom"
	case UTF8:
		return "utf-8"
	case ShiftJIS:
		return "shift_jis"
	case EUCJP:
		return "euc-jp"
	case ShiftJISLossy:
		return "shift_jis (lossy)"
	default:
		return "unknown"
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns raw as text, trying each candidate encoding in turn.
func Decode(raw []byte) string {
	s, _ := Detect(raw)
	return s
}

// Detect is Decode that also reports which encoding was chosen.
func Detect(raw []byte) (string, Encoding) {
	if bytes.HasPrefix(raw, utf8BOM) {
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(raw)
		if err != nil {
			return strings.ToValidUTF8(string(raw[len(utf8BOM):]), "\uFFFD"), UTF8BOM
		}
		return string(out), UTF8BOM
	}
	if utf8.Valid(raw) {
		return string(raw), UTF8
	}
	if s, ok := strict(japanese.ShiftJIS, raw); ok {
		return s, ShiftJIS
	}
	if s, ok := strict(japanese.EUCJP, raw); ok {
		return s, EUCJP
	}
	out, _ := japanese.ShiftJIS.NewDecoder().Bytes(raw)
	return string(out), ShiftJISLossy
}

// strict decodes raw with enc and rejects the result if any byte sequence
// had to be replaced.
func strict(enc encoding.Encoding, raw []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}
