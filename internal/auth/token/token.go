// Package token holds helpers for handling raw bearer tokens safely.
package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 12

// Fingerprint returns a short, non-reversible identifier for a token that
// is safe to put in logs.
func Fingerprint(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])[:fingerprintLen]
}
