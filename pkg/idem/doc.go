// Package idem derives idempotency keys for redemption attempts.
//
// A key is a deterministic, collision-resistant function of an entry's
// identity and its first-enqueue timestamp. Every retry of one logical entry
// therefore carries the same key, and distinct entries practically never
// collide. The server enforces at-most-one persisted redemption per key.
package idem
