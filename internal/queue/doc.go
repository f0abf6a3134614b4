// Package queue implements the durable, idempotent redemption queue.
//
// One queue instance owns one persistence key (queue/{station}) in a durable
// key-value store and drains pending entries through a remote redemption
// client. The design guarantees at-most-one effective execution of each
// redemption despite retries, restarts, and an unreliable network:
//
//   - Enqueue is idempotent per entry id (station:voucherCode); a duplicate
//     enqueue while the entry is pending returns the existing entry.
//   - Every attempt of one entry carries the same idempotency key, derived
//     from (id, createdAt); createdAt never changes after first enqueue.
//   - Flush is single-flight: a boolean in-flight guard ensures at most one
//     processing pass at a time, and entries within a pass run sequentially.
//   - Retryable failures keep the entry with an escalating, finite backoff
//     table (the last delay is reused once attempts exceed the table).
//   - Terminal outcomes (success or retryable=false) invoke their callback
//     exactly once and remove the entry; the queue keeps no history.
//
// # Entry lifecycle
//
//	pending → processing → succeeded (removed)
//	                     → failed    (removed if terminal, retried otherwise)
//
// The persisted blob is rewritten in full after every mutation, so a crash
// mid-flush loses at most the in-flight attempt's result. Entries found in
// the processing state at load time are ones whose attempt was interrupted;
// they are returned to retry eligibility.
//
// Cross-process sharing of one persistence key is not guarded; one queue
// instance owns one station's key at a time.
package queue
