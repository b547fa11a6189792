// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/types"
)

func dsPut[K, V any](w datastore.Write, s KeySchema[K, V], k K, v V) error {
	ser, err := s.EncodeValue(v)
	if err != nil {
		return err
	}
	return w.Put(context.Background(), namespaceKey(s.Tag(), s.EncodeKey(k)), ser)
}

// dsGet returns the value stored at k. found is false if there is none.
func dsGet[K, V any](r datastore.Read, s KeySchema[K, V], k K) (v V, found bool, err error) {
	key := namespaceKey(s.Tag(), s.EncodeKey(k))
	ser, err := r.Get(context.Background(), key)
	if errors.Is(err, datastore.ErrNotFound) {
		return v, false, nil
	} else if err != nil {
		return v, false, err
	}
	v, err = s.DecodeValue(ser)
	if err != nil {
		return v, false, &CorruptionError{Tag: s.Tag(), Key: key.String(), Err: err}
	}
	return v, true, nil
}

func dsHas[K, V any](r datastore.Read, s KeySchema[K, V], k K) (bool, error) {
	return r.Has(context.Background(), namespaceKey(s.Tag(), s.EncodeKey(k)))
}

func dsDelete[K, V any](w datastore.Write, s KeySchema[K, V], k K) error {
	return w.Delete(context.Background(), namespaceKey(s.Tag(), s.EncodeKey(k)))
}

// dsRange returns a cursor over every entry in the namespace whose key
// path starts with prefix, in key order. A nil prefix selects the whole
// namespace.
func dsRange[K, V any](r datastore.Read, s KeySchema[K, V], prefix KeyPath) (*Cursor[K, V], error) {
	c := &Cursor[K, V]{
		r:      r,
		schema: s,
		q: query.Query{
			Prefix: namespaceKey(s.Tag(), prefix).String(),
			Orders: []query.Order{query.OrderByKey{}},
		},
	}
	if err := c.Reset(); err != nil {
		return nil, err
	}
	return c, nil
}

// Cursor iterates over a range of typed entries. Entries are decoded
// lazily as the cursor advances. A key or value that fails to decode
// stops the iteration with a *CorruptionError.
type Cursor[K, V any] struct {
	r       datastore.Read
	schema  KeySchema[K, V]
	q       query.Query
	results query.Results

	key K
	val V
	err error
}

// Next advances the cursor and reports whether an entry is available.
func (c *Cursor[K, V]) Next() bool {
	if c.err != nil || c.results == nil {
		return false
	}
	res, ok := c.results.NextSync()
	if !ok {
		return false
	}
	if res.Error != nil {
		c.err = res.Error
		return false
	}
	path, err := parseNamespaceKey(c.schema.Tag(), res.Key)
	if err != nil {
		c.err = &CorruptionError{Tag: c.schema.Tag(), Key: res.Key, Err: err}
		return false
	}
	k, err := c.schema.DecodeKey(path)
	if err != nil {
		c.err = &CorruptionError{Tag: c.schema.Tag(), Key: res.Key, Err: err}
		return false
	}
	v, err := c.schema.DecodeValue(res.Value)
	if err != nil {
		c.err = &CorruptionError{Tag: c.schema.Tag(), Key: res.Key, Err: err}
		return false
	}
	c.key, c.val = k, v
	return true
}

func (c *Cursor[K, V]) Key() K {
	return c.key
}

func (c *Cursor[K, V]) Value() V {
	return c.val
}

// Err returns the error that stopped the iteration, if any.
func (c *Cursor[K, V]) Err() error {
	return c.err
}

// Reset reruns the query so the next call to Next returns the first
// entry of the range again.
func (c *Cursor[K, V]) Reset() error {
	if c.results != nil {
		if err := c.results.Close(); err != nil {
			return err
		}
	}
	var zeroK K
	var zeroV V
	c.key, c.val, c.err = zeroK, zeroV, nil
	results, err := c.r.Query(context.Background(), c.q)
	if err != nil {
		return err
	}
	c.results = results
	return nil
}

func (c *Cursor[K, V]) Close() error {
	if c.results == nil {
		return nil
	}
	err := c.results.Close()
	c.results = nil
	return err
}

// Entry is a decoded entry of any namespace.
type Entry struct {
	Namespace string      `json:"namespace"`
	Key       interface{} `json:"key"`
	Value     interface{} `json:"value"`
}

// Decoder decodes the raw key path and value of one namespace.
type Decoder func(path KeyPath, value []byte) (Entry, error)

func decoderFor[K, V any](s KeySchema[K, V]) Decoder {
	return func(path KeyPath, value []byte) (Entry, error) {
		k, err := s.DecodeKey(path)
		if err != nil {
			return Entry{}, err
		}
		v, err := s.DecodeValue(value)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Namespace: repo.NamespaceName(s.Tag()), Key: k, Value: v}, nil
	}
}

// Decoders maps each namespace tag to its decoder.
var Decoders = map[byte]Decoder{
	repo.NoteNonceTag:          decoderFor[types.Nonce, struct{}](NonceSchema{}),
	repo.ProposedPartialSigTag: decoderFor[types.OutPoint, SignatureShare](ProposedShareSchema{}),
	repo.ReceivedPartialSigTag: decoderFor[ReceivedShareKey, SignatureShare](ReceivedShareSchema{}),
	repo.OutputOutcomeTag:      decoderFor[types.OutPoint, OutputOutcome](OutcomeSchema{}),
	repo.MintAuditItemTag:      decoderFor[AuditItemKey, types.Amount](AuditItemSchema{}),
	repo.EcashBackupTag:        decoderFor[types.BackupID, BackupSnapshot](BackupSchema{}),
	repo.ConsensusEpochTag:     decoderFor[struct{}, uint64](EpochSchema{}),
}

// DumpNamespace decodes every entry stored under the tag.
func DumpNamespace(r datastore.Read, tag byte) ([]Entry, error) {
	decode, ok := Decoders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown namespace tag 0x%02x", tag)
	}
	results, err := r.Query(context.Background(), query.Query{
		Prefix: namespaceKey(tag, nil).String(),
		Orders: []query.Order{query.OrderByKey{}},
	})
	if err != nil {
		return nil, err
	}
	defer results.Close()

	var entries []Entry
	for {
		res, ok := results.NextSync()
		if !ok {
			break
		}
		if res.Error != nil {
			return nil, res.Error
		}
		path, err := parseNamespaceKey(tag, res.Key)
		if err != nil {
			return nil, &CorruptionError{Tag: tag, Key: res.Key, Err: err}
		}
		entry, err := decode(path, res.Value)
		if err != nil {
			return nil, &CorruptionError{Tag: tag, Key: res.Key, Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
