package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintSeparator = "||"

// Fingerprint derives the deduplication key of an entry from its feed, title and link.
func Fingerprint(feedName, title, link string) string {
	sum := sha256.Sum256([]byte(feedName + fingerprintSeparator + title + fingerprintSeparator + link))
	return hex.EncodeToString(sum[:])
}
