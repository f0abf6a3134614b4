// Package pebblestore provides a thin wrapper around Pebble with an explicit
// fsync policy, batches, and iterators.
//
// Both sides of redeemq sit on this wrapper: the client queue persists its
// entry blob through it, and the server ledger stores vouchers and redemption
// rows in it. Crash safety after a state transition depends on the configured
// FsyncMode; the queue defaults to FsyncModeAlways.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set([]byte("k"), []byte("v"))
//	v, _ := db.Get([]byte("k"))
package pebblestore
