// Package store implements the collaborator interfaces on BadgerDB:
// identity store, room directory and the durable attendance log.
package store

import "github.com/dgraph-io/badger/v4"

// Open opens the embedded database. An empty path opens an in-memory
// instance (used by tests).
func Open(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	// Badger's own logger is noisy; everything relevant is logged at
	// the repository layer.
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}
