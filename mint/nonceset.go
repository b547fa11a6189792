// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"fmt"
	"sync"

	"github.com/ipfs/go-datastore"
	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/types"
)

// NonceSet provides cached access to the set of spent note nonces.
type NonceSet struct {
	ds            repo.Datastore
	schema        NonceSchema
	cachedEntries map[types.Nonce]bool
	maxEntries    uint
	mtx           sync.RWMutex
}

// NewNonceSet returns a new NonceSet. maxEntries controls how much
// memory is used for cache purposes.
func NewNonceSet(ds repo.Datastore, maxEntries uint) *NonceSet {
	return &NonceSet{
		ds:            ds,
		cachedEntries: make(map[types.Nonce]bool),
		maxEntries:    maxEntries,
		mtx:           sync.RWMutex{},
	}
}

// IsSpent returns whether the nonce is in the committed nonce set. If the
// entry is cached we'll return from memory, otherwise we have to check the
// disk.
func (ns *NonceSet) IsSpent(nonce types.Nonce) (bool, error) {
	ns.mtx.Lock()
	defer ns.mtx.Unlock()

	spent, ok := ns.cachedEntries[nonce]
	if ok {
		return spent, nil
	}

	spent, err := dsHas(ns.ds, ns.schema, nonce)
	if err != nil {
		return false, err
	}

	if ns.maxEntries <= 0 {
		return spent, nil
	}

	ns.limitCache(1)
	ns.cachedEntries[nonce] = spent
	return spent, nil
}

// RecordSpend marks the nonce spent using the provided database
// transaction. The check is made against the transaction's view so a
// nonce spent earlier in the same batch is caught as well.
//
// The cached entry is dropped rather than updated so that a discarded
// transaction cannot leave a wrong value in the cache.
func (ns *NonceSet) RecordSpend(dbtx datastore.Txn, nonce types.Nonce) error {
	ns.mtx.Lock()
	defer ns.mtx.Unlock()

	delete(ns.cachedEntries, nonce)

	spent, err := dsHas(dbtx, ns.schema, nonce)
	if err != nil {
		return err
	}
	if spent {
		return ruleError(ErrDoubleSpend, fmt.Sprintf("nonce %s already spent", nonce))
	}
	return dsPut(dbtx, ns.schema, nonce, struct{}{})
}

func (ns *NonceSet) limitCache(newEntries int) {
	// If adding this new entry will put us over the max number of allowed
	// entries, then evict an entry. Go's map iteration starts at a random
	// point so this evicts random entries.
	i := 0
	if uint(len(ns.cachedEntries)+newEntries) > ns.maxEntries {
		for nonce := range ns.cachedEntries {
			delete(ns.cachedEntries, nonce)
			i++
			if i >= newEntries {
				break
			}
		}
	}
}
