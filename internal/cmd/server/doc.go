// Package serverrun boots the redemption server: it opens the Pebble-backed
// ledger and serves the HTTP API until the context is cancelled.
package serverrun
