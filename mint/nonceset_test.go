// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"context"
	"testing"

	"github.com/project-illium/mintd/repo/mock"
	"github.com/project-illium/mintd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceSet(t *testing.T) {
	ds := mock.NewBTreeDatastore()
	ns := NewNonceSet(ds, 2)

	nonces := []types.Nonce{randomNonce(), randomNonce(), randomNonce()}

	// Cache the unspent state of every nonce. The cache holds two entries.
	for _, n := range nonces {
		spent, err := ns.IsSpent(n)
		assert.NoError(t, err)
		assert.False(t, spent)
	}
	assert.Len(t, ns.cachedEntries, 2)

	dbtx, err := ds.NewTransaction(context.Background(), false)
	require.NoError(t, err)
	for _, n := range nonces {
		assert.NoError(t, ns.RecordSpend(dbtx, n))
	}

	// A second spend in the same transaction is caught.
	err = ns.RecordSpend(dbtx, nonces[0])
	assert.True(t, ErrorIs(err, ErrDoubleSpend))
	require.NoError(t, dbtx.Commit(context.Background()))

	for _, n := range nonces {
		spent, err := ns.IsSpent(n)
		assert.NoError(t, err)
		assert.True(t, spent)
	}

	// And so is one in a later transaction.
	dbtx, err = ds.NewTransaction(context.Background(), false)
	require.NoError(t, err)
	err = ns.RecordSpend(dbtx, nonces[1])
	assert.True(t, ErrorIs(err, ErrDoubleSpend))
	assert.Contains(t, err.Error(), nonces[1].String())
	dbtx.Discard(context.Background())
}

func TestNonceSetDiscard(t *testing.T) {
	ds := mock.NewBTreeDatastore()
	ns := NewNonceSet(ds, 10)
	n := randomNonce()

	dbtx, err := ds.NewTransaction(context.Background(), false)
	require.NoError(t, err)
	assert.NoError(t, ns.RecordSpend(dbtx, n))
	dbtx.Discard(context.Background())

	spent, err := ns.IsSpent(n)
	assert.NoError(t, err)
	assert.False(t, spent)
}

func TestDoubleSpendAcrossBatches(t *testing.T) {
	m := newTestMint(t, 1, 1)
	n := randomNonce()

	for epoch := uint64(1); epoch <= 3; epoch++ {
		res, err := m.ApplyBatch(&Batch{Epoch: epoch, Items: []Item{RedeemNote{Nonce: n, Amount: 4}}})
		require.NoError(t, err)
		if epoch == 1 {
			assert.Equal(t, ItemAccepted, res.Items[0].Status)
		} else {
			assert.Equal(t, ItemRejected, res.Items[0].Status)
			assert.True(t, ErrorIs(res.Items[0].Err, ErrDoubleSpend))
		}
		spent, err := m.IsSpent(n)
		assert.NoError(t, err)
		assert.True(t, spent)
	}

	// Only the first redemption was accounted for.
	totals, err := m.Totals()
	assert.NoError(t, err)
	assert.Equal(t, types.Amount(4), totals.Redeemed)
}
