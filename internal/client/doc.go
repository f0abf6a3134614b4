// Package client defines the remote redemption contract and its HTTP
// implementation.
//
// The queue owns this contract: Redeem performs one delivery attempt and
// returns a tagged RedeemResult distinguishing terminal success
// (redeemed/already_redeemed), terminal failure (retryable=false), and
// retryable failure. A non-nil error from Redeem means the transport itself
// failed before a classified response was obtained; the queue folds that into
// the retryable path.
//
// Every attempt of one logical entry carries the same Idempotency-Key header,
// which is what lets the server enforce at-most-one effect end to end.
package client
