package chart

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// Hashes returns the MD5 and SHA-256 of the raw chart bytes as lowercase hex.
// Song databases identify charts by these, so they must be taken before any
// text decoding.
func Hashes(raw []byte) (md5Hex, sha256Hex string) {
	m := md5.Sum(raw)
	s := sha256.Sum256(raw)
	return hex.EncodeToString(m[:]), hex.EncodeToString(s[:])
}
