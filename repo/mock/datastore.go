// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/btree"
	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"github.com/project-illium/mintd/repo"
)

var _ repo.Datastore = (*BTreeDatastore)(nil)

// ErrReadOnly is returned when writing through a read only transaction.
var ErrReadOnly = errors.New("transaction is read only")

// ErrTxnClosed is returned when using a transaction after Commit or Discard.
var ErrTxnClosed = errors.New("transaction already closed")

type entry struct {
	key   string
	value []byte
}

func entryLess(a, b entry) bool {
	return a.key < b.key
}

// BTreeDatastore is an in-memory datastore ordered by key. Transactions
// read from a copy-on-write clone of the tree taken when they were opened,
// so they see a consistent snapshot plus their own writes. Nothing they do
// is visible to anyone else until Commit.
type BTreeDatastore struct {
	mtx  sync.RWMutex
	tree *btree.BTreeG[entry]
}

// NewBTreeDatastore returns an empty in-memory datastore.
func NewBTreeDatastore() *BTreeDatastore {
	return &BTreeDatastore{
		tree: btree.NewG[entry](32, entryLess),
	}
}

func (ds *BTreeDatastore) Put(ctx context.Context, key datastore.Key, value []byte) error {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	treePut(ds.tree, key, value)
	return nil
}

func (ds *BTreeDatastore) Delete(ctx context.Context, key datastore.Key) error {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	ds.tree.Delete(entry{key: key.String()})
	return nil
}

func (ds *BTreeDatastore) Get(ctx context.Context, key datastore.Key) ([]byte, error) {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()
	return treeGet(ds.tree, key)
}

func (ds *BTreeDatastore) Has(ctx context.Context, key datastore.Key) (bool, error) {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()
	return ds.tree.Has(entry{key: key.String()}), nil
}

func (ds *BTreeDatastore) GetSize(ctx context.Context, key datastore.Key) (int, error) {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()
	e, ok := ds.tree.Get(entry{key: key.String()})
	if !ok {
		return -1, datastore.ErrNotFound
	}
	return len(e.value), nil
}

func (ds *BTreeDatastore) Query(ctx context.Context, q query.Query) (query.Results, error) {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()
	return treeQuery(ds.tree, q), nil
}

func (ds *BTreeDatastore) Sync(ctx context.Context, prefix datastore.Key) error {
	return nil
}

func (ds *BTreeDatastore) Close() error {
	return nil
}

// DiskUsage reports the number of key and value bytes held in memory.
func (ds *BTreeDatastore) DiskUsage(ctx context.Context) (uint64, error) {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()
	var size uint64
	ds.tree.Ascend(func(e entry) bool {
		size += uint64(len(e.key) + len(e.value))
		return true
	})
	return size, nil
}

// Batch returns a write transaction. Its writes are applied atomically
// on Commit.
func (ds *BTreeDatastore) Batch(ctx context.Context) (datastore.Batch, error) {
	return ds.newTxn(false), nil
}

func (ds *BTreeDatastore) NewTransaction(ctx context.Context, readOnly bool) (datastore.Txn, error) {
	return ds.newTxn(readOnly), nil
}

func (ds *BTreeDatastore) newTxn(readOnly bool) *txn {
	// Clone marks the shared nodes copy-on-write so it must not race
	// with readers of the committed tree.
	ds.mtx.Lock()
	view := ds.tree.Clone()
	ds.mtx.Unlock()
	return &txn{
		readOnly: readOnly,
		ds:       ds,
		view:     view,
	}
}

type op struct {
	key    datastore.Key
	value  []byte
	delete bool
}

type txn struct {
	readOnly bool
	ds       *BTreeDatastore
	view     *btree.BTreeG[entry]
	ops      []op
	closed   bool
}

func (t *txn) Get(ctx context.Context, key datastore.Key) ([]byte, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	return treeGet(t.view, key)
}

func (t *txn) Has(ctx context.Context, key datastore.Key) (bool, error) {
	if t.closed {
		return false, ErrTxnClosed
	}
	return t.view.Has(entry{key: key.String()}), nil
}

func (t *txn) GetSize(ctx context.Context, key datastore.Key) (int, error) {
	if t.closed {
		return -1, ErrTxnClosed
	}
	e, ok := t.view.Get(entry{key: key.String()})
	if !ok {
		return -1, datastore.ErrNotFound
	}
	return len(e.value), nil
}

func (t *txn) Query(ctx context.Context, q query.Query) (query.Results, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	return treeQuery(t.view, q), nil
}

func (t *txn) Put(ctx context.Context, key datastore.Key, value []byte) error {
	if t.closed {
		return ErrTxnClosed
	}
	if t.readOnly {
		return ErrReadOnly
	}
	treePut(t.view, key, value)
	t.ops = append(t.ops, op{key: key, value: copyBytes(value)})
	return nil
}

func (t *txn) Delete(ctx context.Context, key datastore.Key) error {
	if t.closed {
		return ErrTxnClosed
	}
	if t.readOnly {
		return ErrReadOnly
	}
	t.view.Delete(entry{key: key.String()})
	t.ops = append(t.ops, op{key: key, delete: true})
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true
	if len(t.ops) == 0 {
		return nil
	}
	t.ds.mtx.Lock()
	defer t.ds.mtx.Unlock()
	for _, o := range t.ops {
		if o.delete {
			t.ds.tree.Delete(entry{key: o.key.String()})
		} else {
			treePut(t.ds.tree, o.key, o.value)
		}
	}
	t.ops = nil
	return nil
}

func (t *txn) Discard(ctx context.Context) {
	t.closed = true
	t.ops = nil
}

func treePut(tree *btree.BTreeG[entry], key datastore.Key, value []byte) {
	tree.ReplaceOrInsert(entry{key: key.String(), value: copyBytes(value)})
}

func treeGet(tree *btree.BTreeG[entry], key datastore.Key) ([]byte, error) {
	e, ok := tree.Get(entry{key: key.String()})
	if !ok {
		return nil, datastore.ErrNotFound
	}
	return copyBytes(e.value), nil
}

// treeQuery walks the tree in key order starting at the prefix and hands
// the entries to the naive query engine for filters, limit and offset.
// Prefix matching on whole path segments is done there as well.
func treeQuery(tree *btree.BTreeG[entry], q query.Query) query.Results {
	prefix := datastore.NewKey(q.Prefix).String()
	if prefix == "/" {
		prefix = ""
	}
	var entries []query.Entry
	tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if !strings.HasPrefix(e.key, prefix) {
			return false
		}
		qe := query.Entry{Key: e.key, Size: len(e.value)}
		if !q.KeysOnly {
			qe.Value = copyBytes(e.value)
		}
		entries = append(entries, qe)
		return true
	})
	r := query.ResultsWithEntries(q, entries)
	return query.NaiveQueryApply(q, r)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
