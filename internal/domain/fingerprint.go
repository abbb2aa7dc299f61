package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint identifies published content across runs.
type Fingerprint string

// FingerprintOf hashes the normalized body together with the locator.
// Whitespace runs collapse to single spaces first, so re-encodings of
// the same text map to the same fingerprint.
func FingerprintOf(body, locator string) Fingerprint {
	normalized := strings.Join(strings.Fields(body), " ")
	sum := sha256.Sum256([]byte(normalized + locator))
	return Fingerprint(hex.EncodeToString(sum[:]))
}
