// Package fingerprint computes content digests used for duplicate detection.
//
// Two fingerprinting inputs exist and are NOT cross-comparable: Sum hashes the
// raw document bytes (single-upload dedup), SumFilename hashes the filename
// (batch-save fallback when original bytes are no longer available).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex digest of the raw document bytes. Deterministic and
// collision-resistant; no side effects.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumFilename returns the fallback digest over the filename bytes.
func SumFilename(name string) string {
	return Sum([]byte(name))
}
