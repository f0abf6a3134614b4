package idem

import (
	"crypto/sha256"
	"encoding/base32"
	"strconv"
)

// KeyLen is the fixed length of a derived key.
const KeyLen = 24

// base32 (no padding) keeps keys alphanumeric and header-safe.
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Key derives the idempotency key for an entry identified by entryID and the
// millisecond timestamp of its first enqueue. The same inputs always yield
// the same key.
func Key(entryID string, createdAtMs int64) string {
	fp := Fingerprint(entryID, createdAtMs)
	sum := sha256.Sum256([]byte(fp))
	return encoding.EncodeToString(sum[:])[:KeyLen]
}

// Fingerprint returns the canonical pre-hash input for a key.
func Fingerprint(entryID string, createdAtMs int64) string {
	return entryID + ":" + strconv.FormatInt(createdAtMs, 10)
}
