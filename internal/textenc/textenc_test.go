package textenc

import (
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
)

func TestDetectUTF8BOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("#TITLE テスト")...)
	got, enc := Detect(raw)
	if enc != UTF8BOM {
		t.Fatalf("expected utf-8-bom, got %s", enc)
	}
	if got != "#TITLE テスト" {
		t.Fatalf("expected BOM stripped, got %q", got)
	}
}

func TestDetectPlainUTF8(t *testing.T) {
	got, enc := Detect([]byte("#ARTIST 作曲者"))
	if enc != UTF8 {
		t.Fatalf("expected utf-8, got %s", enc)
	}
	if got != "#ARTIST 作曲者" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestDetectShiftJIS(t *testing.T) {
	raw, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("#TITLE 夜明けの歌"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, enc := Detect(raw)
	if enc != ShiftJIS {
		t.Fatalf("expected shift_jis, got %s", enc)
	}
	if got != "#TITLE 夜明けの歌" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestDetectSkipsShiftJISOnInvalidLead(t *testing.T) {
	// 0xFE never starts a Shift_JIS character.
	raw := []byte{'#', 0xA4, 0xA2, 0xFE, 0xA1}
	_, enc := Detect(raw)
	if enc != EUCJP && enc != ShiftJISLossy {
		t.Fatalf("expected euc-jp or lossy fallback, got %s", enc)
	}
}

func TestDecodeNeverFails(t *testing.T) {
	raw := []byte{0x80, 0xFF, 0xFE, 0x81}
	got := Decode(raw)
	if got == "" {
		t.Fatalf("expected some text from garbage input")
	}
}

// eucOnlyKanji finds a kanji whose EUC-JP trail byte is outside the
// Shift_JIS trail range, so the bytes only decode cleanly as EUC-JP.
func eucOnlyKanji(t *testing.T) (rune, []byte) {
	t.Helper()
	enc := japanese.EUCJP.NewEncoder()
	for r := rune(0x4E00); r <= 0x9FA0; r++ {
		b, err := enc.Bytes([]byte(string(r)))
		if err != nil || len(b) != 2 {
			continue
		}
		if b[0] >= 0xE0 && b[0] <= 0xEF && b[1] >= 0xFD {
			return r, b
		}
	}
	t.Fatal("no EUC-JP-only kanji found")
	return 0, nil
}

func TestDetectEUCJP(t *testing.T) {
	r, b := eucOnlyKanji(t)
	raw := append([]byte("#TITLE "), b...)
	got, enc := Detect(raw)
	if enc != EUCJP {
		t.Fatalf("expected euc-jp, got %s", enc)
	}
	if want := "#TITLE " + string(r); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if strings.ContainsRune(got, '\uFFFD') {
		t.Fatalf("expected no replacement characters, got %q", got)
	}
}
