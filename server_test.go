// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"testing"

	"github.com/project-illium/mintd/mint"
	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *repo.Config {
	return &repo.Config{
		DataDir:  filepath.Join(t.TempDir(), "db"),
		LogLevel: "error",
		Federation: repo.FederationOptions{
			Threshold: 1,
			Peers:     1,
		},
		Mint: repo.MintOptions{
			MaxBackupSize: repo.DefaultMaxBackupSize,
			MaxNonces:     repo.DefaultMaxNonces,
		},
	}
}

func TestBuildServer(t *testing.T) {
	cfg := testConfig(t)
	server, err := BuildServer(cfg, mint.HashCombiner{})
	require.NoError(t, err)

	res, err := server.Mint().ApplyBatch(&mint.Batch{Epoch: 1, Items: []mint.Item{
		mint.RedeemNote{Nonce: types.Nonce{0x01}, Amount: 5},
	}})
	require.NoError(t, err)
	assert.Equal(t, mint.ItemAccepted, res.Items[0].Status)
	require.NoError(t, server.Close())

	// The state survives a restart. Without a combiner the mint is read
	// only.
	server, err = BuildServer(cfg, nil)
	require.NoError(t, err)
	defer server.Close()

	spent, err := server.Mint().IsSpent(types.Nonce{0x01})
	assert.NoError(t, err)
	assert.True(t, spent)

	_, err = server.Mint().ApplyBatch(&mint.Batch{Epoch: 2})
	assert.ErrorIs(t, err, mint.ErrReadOnly)
}

func TestBuildServerInMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.InMemory = true
	cfg.Federation = repo.FederationOptions{Threshold: 3, Peers: 2}

	_, err := BuildServer(cfg, mint.HashCombiner{})
	assert.Error(t, err)

	cfg.Federation = repo.FederationOptions{Threshold: 2, Peers: 3, PeerID: 2}
	server, err := BuildServer(cfg, mint.HashCombiner{})
	require.NoError(t, err)
	assert.NoError(t, server.Close())

	cfg.Federation = repo.FederationOptions{Preset: "devnet", PeerID: 1}
	server, err = BuildServer(cfg, mint.HashCombiner{})
	require.NoError(t, err)
	assert.Equal(t, "devnet", server.params.Name)
	assert.NoError(t, server.Close())
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging(t.TempDir(), "debug", true))
	assert.Error(t, setupLogging("", "loud", false))
	assert.NoError(t, setupLogging("", "info", false))
}
