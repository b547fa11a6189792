// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package datastore

import (
	"os"

	"github.com/dgraph-io/badger/options"
	badger "github.com/ipfs/go-ds-badger"
	"github.com/project-illium/mintd/repo"
)

var _ repo.Datastore = (*MintDatastore)(nil)

// MintDatastore is the badger backed persistent store. Badger transactions
// give each batch all-or-nothing visibility and readers a consistent
// snapshot.
type MintDatastore struct {
	*badger.Datastore
}

// NewMintDatastore opens (or creates) the database in dataDir.
func NewMintDatastore(dataDir string, opts ...Option) (*MintDatastore, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return nil, err
		}
	}

	badgerOpts := badger.DefaultOptions
	badgerOpts.MaxTableSize = 64 << 20
	badgerOpts.SyncWrites = !cfg.noSync
	if cfg.lowMemory {
		badgerOpts.TableLoadingMode = options.FileIO
		badgerOpts.ValueLogLoadingMode = options.FileIO
	}
	ds, err := badger.NewDatastore(dataDir, &badgerOpts)
	if err != nil {
		return nil, err
	}
	return &MintDatastore{Datastore: ds}, nil
}
