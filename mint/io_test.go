// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/repo/mock"
	"github.com/project-illium/mintd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceKey(t *testing.T) {
	op := types.NewOutPoint(types.ID{0xab}, 7)
	key := namespaceKey(repo.ReceivedPartialSigTag, ReceivedShareSchema{}.EncodeKey(ReceivedShareKey{OutPoint: op, Peer: 3}))
	assert.Equal(t, "/mint/12/ab"+string(bytes.Repeat([]byte("00"), 31))+"0000000000000007/0003", key.String())

	path, err := parseNamespaceKey(repo.ReceivedPartialSigTag, key.String())
	assert.NoError(t, err)
	k, err := ReceivedShareSchema{}.DecodeKey(path)
	assert.NoError(t, err)
	assert.Equal(t, ReceivedShareKey{OutPoint: op, Peer: 3}, k)

	_, err = parseNamespaceKey(repo.OutputOutcomeTag, key.String())
	assert.Error(t, err)

	assert.Equal(t, "/mint/16", namespaceKey(repo.ConsensusEpochTag, nil).String())
	assert.Equal(t, "/mint/16/00", namespaceKey(repo.ConsensusEpochTag, EpochSchema{}.EncodeKey(struct{}{})).String())
}

func TestDumpEpoch(t *testing.T) {
	ds := mock.NewBTreeDatastore()
	require.NoError(t, dsPut(ds, EpochSchema{}, struct{}{}, 42))

	entries, err := DumpNamespace(ds, repo.ConsensusEpochTag)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ConsensusEpoch", entries[0].Namespace)
	assert.Equal(t, uint64(42), entries[0].Value)
}

func TestRangeOrderAndIsolation(t *testing.T) {
	ds := mock.NewBTreeDatastore()
	ctx := context.Background()
	dbtx, err := ds.NewTransaction(ctx, false)
	require.NoError(t, err)

	var ops []types.OutPoint
	for i := 0; i < 20; i++ {
		op := types.NewOutPoint(randomID(), uint64(i%3)*300)
		ops = append(ops, op)
		require.NoError(t, dsPut(dbtx, ProposedShareSchema{}, op, randomShare(1)))
		require.NoError(t, dsPut(dbtx, OutcomeSchema{}, op, OutputOutcome{Status: StatusFailed}))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, dsPut(dbtx, NonceSchema{}, randomNonce(), struct{}{}))
	}
	require.NoError(t, dbtx.Commit(ctx))

	sort.Slice(ops, func(i, j int) bool {
		return bytes.Compare(ops[i].Bytes(), ops[j].Bytes()) < 0
	})

	cursor, err := dsRange(ds, ProposedShareSchema{}, nil)
	require.NoError(t, err)
	var got []types.OutPoint
	for cursor.Next() {
		got = append(got, cursor.Key())
	}
	assert.NoError(t, cursor.Err())
	assert.Empty(t, deep.Equal(ops, got))

	// Reset starts over.
	require.NoError(t, cursor.Reset())
	require.True(t, cursor.Next())
	assert.Equal(t, ops[0], cursor.Key())
	assert.NoError(t, cursor.Close())

	nonces, err := DumpNamespace(ds, repo.NoteNonceTag)
	assert.NoError(t, err)
	assert.Len(t, nonces, 5)
	for _, e := range nonces {
		assert.Equal(t, "NoteNonce", e.Namespace)
	}
}

func TestReceivedSharePrefix(t *testing.T) {
	ds := mock.NewBTreeDatastore()
	op := types.NewOutPoint(randomID(), 1)
	next := types.NewOutPoint(op.TxID, 2)

	require.NoError(t, dsPut(ds, ReceivedShareSchema{}, ReceivedShareKey{OutPoint: op, Peer: 2}, randomShare(1)))
	require.NoError(t, dsPut(ds, ReceivedShareSchema{}, ReceivedShareKey{OutPoint: op, Peer: 0}, randomShare(1)))
	require.NoError(t, dsPut(ds, ReceivedShareSchema{}, ReceivedShareKey{OutPoint: next, Peer: 1}, randomShare(1)))

	cursor, err := dsRange(ds, ReceivedShareSchema{}, ReceivedShareSchema{}.outPointPrefix(op))
	require.NoError(t, err)
	defer cursor.Close()

	var peers []types.PeerID
	for cursor.Next() {
		assert.Equal(t, op, cursor.Key().OutPoint)
		peers = append(peers, cursor.Key().Peer)
	}
	assert.NoError(t, cursor.Err())
	assert.Equal(t, []types.PeerID{0, 2}, peers)
}

func TestCorruptValues(t *testing.T) {
	ds := mock.NewBTreeDatastore()
	ctx := context.Background()
	op := randomOutPoint()

	// Truncated protobuf.
	require.NoError(t, ds.Put(ctx, namespaceKey(repo.OutputOutcomeTag, OutcomeSchema{}.EncodeKey(op)), []byte{0x0a, 0x05}))
	_, _, err := dsGet(ds, OutcomeSchema{}, op)
	var corruptionErr *CorruptionError
	require.ErrorAs(t, err, &corruptionErr)
	assert.Equal(t, repo.OutputOutcomeTag, corruptionErr.Tag)

	// A key with the wrong segment size.
	require.NoError(t, ds.Put(ctx, namespaceKey(repo.NoteNonceTag, KeyPath{{0x01}}), []byte{}))
	cursor, err := dsRange(ds, NonceSchema{}, nil)
	require.NoError(t, err)
	assert.False(t, cursor.Next())
	assert.ErrorAs(t, cursor.Err(), &corruptionErr)

	_, err = DumpNamespace(ds, repo.NoteNonceTag)
	assert.ErrorAs(t, err, &corruptionErr)

	// A non-terminal outcome is never stored.
	_, err = OutcomeSchema{}.EncodeValue(OutputOutcome{Status: StatusPending})
	assert.Error(t, err)

	_, err = DumpNamespace(ds, 0x42)
	assert.Error(t, err)
}

func TestValueEncodings(t *testing.T) {
	outcome := OutputOutcome{
		Status:    StatusFailed,
		Amount:    1 << 40,
		Signature: []byte{1, 2, 3},
		Reason:    "bad share",
		Culprits:  []types.PeerID{1, 65535},
	}
	ser, err := OutcomeSchema{}.EncodeValue(outcome)
	require.NoError(t, err)
	outcome2, err := OutcomeSchema{}.DecodeValue(ser)
	require.NoError(t, err)
	assert.Empty(t, deep.Equal(outcome, outcome2))

	// Encodings are deterministic.
	ser2, err := OutcomeSchema{}.EncodeValue(outcome2)
	require.NoError(t, err)
	assert.Equal(t, ser, ser2)

	snapshot := BackupSnapshot{Timestamp: time.Unix(1700000000, 123), Data: []byte{}}
	ser, err = BackupSchema{}.EncodeValue(snapshot)
	require.NoError(t, err)
	snapshot2, err := BackupSchema{}.DecodeValue(ser)
	require.NoError(t, err)
	assert.Empty(t, deep.Equal(snapshot, snapshot2))

	_, err = BackupSchema{}.DecodeValue(nil)
	assert.Error(t, err, "timestamp is required")
}

func TestAuditItemKeys(t *testing.T) {
	op := randomOutPoint()
	n := randomNonce()
	for _, k := range []AuditItemKey{IssuanceKey(op), IssuanceTotalKey(), RedemptionKey(n), RedemptionTotalKey()} {
		k2, err := AuditItemSchema{}.DecodeKey(AuditItemSchema{}.EncodeKey(k))
		assert.NoError(t, err)
		assert.Empty(t, deep.Equal(k, k2))
	}

	// Issuance items and the issuance total live under different prefixes.
	ds := mock.NewBTreeDatastore()
	require.NoError(t, dsPut(ds, AuditItemSchema{}, IssuanceKey(op), types.Amount(5)))
	require.NoError(t, dsPut(ds, AuditItemSchema{}, IssuanceTotalKey(), types.Amount(5)))
	cursor, err := dsRange(ds, AuditItemSchema{}, AuditItemSchema{}.kindPrefix(AuditIssuance))
	require.NoError(t, err)
	defer cursor.Close()
	require.True(t, cursor.Next())
	assert.Equal(t, AuditIssuance, cursor.Key().Kind)
	assert.False(t, cursor.Next())
}
