// Package httpserver exposes the redemption ledger over the JSON wire
// contract.
//
// Endpoints:
//
//	POST /v1/redeem        - apply one redemption; requires Idempotency-Key
//	POST /v1/vouchers      - create a voucher
//	GET  /v1/redemptions   - list persisted rows, optional ?filter= CEL expr
//	GET  /v1/healthz       - liveness (also the connectivity probe target)
package httpserver
