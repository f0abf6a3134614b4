// Package log provides redeemq's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that routes records through the
// package's formatter/output pipeline, so output stays consistent across the
// codebase while remaining slog-compatible.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("queue"), log.Str("station", "st-001"))
//	l.Info("entry enqueued", log.Str("voucher", code))
//
// Use ApplyConfig to build a logger from a declarative Config (level + text or
// JSON format). RedirectStdLog routes standard library logs (used by Pebble)
// through the facade.
package log
