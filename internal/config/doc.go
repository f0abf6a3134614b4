// Package config loads redeemq configuration.
//
// Configuration resolves in three layers: built-in defaults, an optional JSON
// file, then REDEEMQ_* environment variables (via envconfig). The same Config
// serves both the client queue (station identity, server URL, backoff table)
// and the reference server (listen address, data directory, fsync policy).
package config
