// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"path/filepath"
	"testing"

	mintds "github.com/project-illium/mintd/repo/datastore"
	"github.com/project-illium/mintd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRestartAfterCommit applies batches to a badger store, closes it and
// checks the reopened state holds the committed batch in full and nothing
// of the batch that failed to commit.
func TestRestartAfterCommit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	ds, err := mintds.NewMintDatastore(dir, mintds.WithNoSync())
	require.NoError(t, err)

	committed := randomNonce()
	lost := randomNonce()

	m := newTestMint(t, 1, 1, Datastore(ds))
	_, err = m.ApplyBatch(&Batch{Epoch: 1, Items: []Item{RedeemNote{Nonce: committed, Amount: 21}}})
	require.NoError(t, err)

	m2 := newTestMint(t, 1, 1, Datastore(&failingCommitDatastore{Datastore: ds}))
	_, err = m2.ApplyBatch(&Batch{Epoch: 2, Items: []Item{RedeemNote{Nonce: lost, Amount: 4}}})
	assert.ErrorIs(t, err, errCommitFailed)

	require.NoError(t, ds.Close())

	ds, err = mintds.NewMintDatastore(dir)
	require.NoError(t, err)
	defer ds.Close()

	m = newTestMint(t, 1, 1, Datastore(ds))

	spent, err := m.IsSpent(committed)
	assert.NoError(t, err)
	assert.True(t, spent)
	spent, err = m.IsSpent(lost)
	assert.NoError(t, err)
	assert.False(t, spent)

	totals, err := m.Totals()
	assert.NoError(t, err)
	assert.Equal(t, types.Amount(21), totals.Redeemed)

	epoch, _, err := m.LastEpoch()
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), epoch)

	// Consensus redelivers epoch 2 after the restart.
	res, err := m.ApplyBatch(&Batch{Epoch: 2, Items: []Item{RedeemNote{Nonce: lost, Amount: 4}}})
	require.NoError(t, err)
	assert.Equal(t, ItemAccepted, res.Items[0].Status)

	report, err := m.Audit()
	assert.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, types.Amount(25), report.RedemptionSum)
}
