// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package datastore

// Option is configuration option function for the Datastore
type Option func(cfg *config) error

// WithLowMemory memory maps nothing and reads tables and the value
// log through regular file IO.
func WithLowMemory() Option {
	return func(cfg *config) error {
		cfg.lowMemory = true
		return nil
	}
}

// WithNoSync stops badger from syncing every write to disk. A crash may
// lose recently committed batches, which consensus will redeliver.
// Only use this in tests.
func WithNoSync() Option {
	return func(cfg *config) error {
		cfg.noSync = true
		return nil
	}
}

type config struct {
	lowMemory bool
	noSync    bool
}
