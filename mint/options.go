// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"fmt"

	"github.com/project-illium/mintd/params"
	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/repo/mock"
	"github.com/project-illium/mintd/types"
)

const (
	DefaultMaxNonces     = 100000
	DefaultMaxBackupSize = 128 * 1024
)

// DefaultOptions returns a mint configure option that fills in the
// default settings. You will almost certainly want to override some of
// the defaults, such as params, datastore and combiner.
func DefaultOptions() Option {
	return func(cfg *config) error {
		cfg.params = &params.RegtestParams
		cfg.datastore = mock.NewBTreeDatastore()
		cfg.maxNonces = DefaultMaxNonces
		cfg.maxBackupSize = DefaultMaxBackupSize
		cfg.pruneShares = true
		return nil
	}
}

// Option is configuration option function for the mint
type Option func(cfg *config) error

// Params identifies the federation the mint belongs to.
//
// This option is required.
func Params(params *params.FederationParams) Option {
	return func(cfg *config) error {
		cfg.params = params
		return nil
	}
}

// Datastore is an implementation of the repo.Datastore interface
//
// This option is required.
func Datastore(ds repo.Datastore) Option {
	return func(cfg *config) error {
		cfg.datastore = ds
		return nil
	}
}

// OurPeerID is the index of this node in the federation.
func OurPeerID(id types.PeerID) Option {
	return func(cfg *config) error {
		cfg.ourPeer = id
		return nil
	}
}

// SignatureCombiner combines signature shares into blind signatures.
//
// This option is required unless the mint is read only.
func SignatureCombiner(c Combiner) Option {
	return func(cfg *config) error {
		cfg.combiner = c
		return nil
	}
}

// MaxNonces is the maximum amount of nonce lookups to hold in memory
// for fast access.
func MaxNonces(maxNonces uint) Option {
	return func(cfg *config) error {
		cfg.maxNonces = maxNonces
		return nil
	}
}

// PruneShares deletes the received signature shares of an output once it
// has an outcome.
func PruneShares(prune bool) Option {
	return func(cfg *config) error {
		cfg.pruneShares = prune
		return nil
	}
}

// MaxBackupSize is the largest backup payload accepted, in bytes.
func MaxBackupSize(size int) Option {
	return func(cfg *config) error {
		if size <= 0 {
			return fmt.Errorf("max backup size must be positive")
		}
		cfg.maxBackupSize = size
		return nil
	}
}

// ReadOnly opens the mint for reads only. ApplyBatch returns ErrReadOnly.
func ReadOnly() Option {
	return func(cfg *config) error {
		cfg.readOnly = true
		return nil
	}
}

type config struct {
	params        *params.FederationParams
	datastore     repo.Datastore
	ourPeer       types.PeerID
	combiner      Combiner
	maxNonces     uint
	maxBackupSize int
	pruneShares   bool
	readOnly      bool
}

func (cfg *config) validate() error {
	if cfg == nil {
		return AssertError("NewMint: mint config cannot be nil")
	}
	if cfg.params == nil {
		return AssertError("NewMint: params cannot be nil")
	}
	if err := cfg.params.Validate(); err != nil {
		return AssertError("NewMint: " + err.Error())
	}
	if cfg.datastore == nil {
		return AssertError("NewMint: datastore cannot be nil")
	}
	if cfg.combiner == nil && !cfg.readOnly {
		return AssertError("NewMint: combiner cannot be nil")
	}
	if !cfg.params.IsPeer(cfg.ourPeer) {
		return AssertError(fmt.Sprintf("NewMint: peer id %d is not in the federation", cfg.ourPeer))
	}
	return nil
}
