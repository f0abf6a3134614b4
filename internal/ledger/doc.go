// Package ledger implements the server side of the redemption contract.
//
// The ledger is the collaborator that makes client-side idempotency actually
// hold end to end: every persisted redemption row is keyed by the client's
// idempotency key, and a duplicate apply under the same key resolves to a
// read of the existing row, never a second effect.
//
// # Keyspace
//
//	voucher/{code}   - voucher record (amount, currency, station allowlist,
//	                   redeeming key once redeemed)
//	idem/{key}       - redemption row, at most one per idempotency key
//
// Redeem outcomes map onto the wire contract: redeemed, already_redeemed
// (same voucher retried under the same or a different key), not_found,
// invalid_station, and replay (an idempotency key reused for a different
// voucher, which means a client bug or a forged request; never retryable).
package ledger
