// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/project-illium/mintd/mint"
	"github.com/project-illium/mintd/params"
	mintds "github.com/project-illium/mintd/repo/datastore"
	"github.com/project-illium/mintd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir      string
	outPoint types.OutPoint
	nonce    types.Nonce
	backupID types.BackupID
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	ds, err := mintds.NewMintDatastore(filepath.Join(dir, "db"), mintds.WithNoSync())
	require.NoError(t, err)

	m, err := mint.NewMint(
		mint.Params(&params.RegtestParams),
		mint.Datastore(ds),
		mint.SignatureCombiner(mint.HashCombiner{}),
	)
	require.NoError(t, err)

	f := &fixture{dir: dir}
	_, err = rand.Read(f.outPoint.TxID[:])
	require.NoError(t, err)
	_, err = rand.Read(f.nonce[:])
	require.NoError(t, err)

	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	req, err := mint.NewSignedBackupRequest(priv, time.Unix(1700000000, 0), []byte("backup"))
	require.NoError(t, err)
	f.backupID = req.ID

	_, err = m.ApplyBatch(&mint.Batch{Epoch: 7, Items: []mint.Item{
		mint.SubmitShare{OutPoint: f.outPoint, Peer: 0, Share: mint.SignatureShare{Amount: 100, Share: []byte{0x01}}},
		mint.RedeemNote{Nonce: f.nonce, Amount: 40},
		mint.StoreBackup{Request: req},
	}})
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (*bytes.Buffer, error) {
	out := new(bytes.Buffer)
	opts := options{out: out}
	parser := newParser(&opts)
	_, err := parser.ParseArgs(append([]string{"--datadir", f.dir, "--threshold", "1", "--peers", "1"}, args...))
	return out, err
}

func TestCommands(t *testing.T) {
	f := newFixture(t)

	t.Run("audit", func(t *testing.T) {
		out, err := f.run(t, "audit")
		require.NoError(t, err)
		var report mint.AuditReport
		require.NoError(t, json.Unmarshal(out.Bytes(), &report))
		assert.True(t, report.Consistent)
		assert.True(t, report.Solvent)
		assert.Equal(t, types.Amount(100), report.Totals.Issued)
		assert.Equal(t, types.Amount(40), report.Totals.Redeemed)
	})

	t.Run("lastepoch", func(t *testing.T) {
		out, err := f.run(t, "lastepoch")
		require.NoError(t, err)
		assert.JSONEq(t, `{"epoch": 7, "found": true}`, out.String())
	})

	t.Run("getoutcome", func(t *testing.T) {
		out, err := f.run(t, "getoutcome", "--outpoint", f.outPoint.String())
		require.NoError(t, err)
		var resp struct {
			Status  string `json:"status"`
			Outcome struct {
				Status    string       `json:"status"`
				Amount    types.Amount `json:"amount"`
				Signature []byte       `json:"signature"`
			} `json:"outcome"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		assert.Equal(t, mint.StatusFinalized.String(), resp.Status)
		assert.Equal(t, mint.StatusFinalized.String(), resp.Outcome.Status)
		assert.Equal(t, types.Amount(100), resp.Outcome.Amount)
		assert.NotEmpty(t, resp.Outcome.Signature)
	})

	t.Run("isspent", func(t *testing.T) {
		out, err := f.run(t, "isspent", "--nonce", f.nonce.String())
		require.NoError(t, err)
		assert.JSONEq(t, `{"spent": true}`, out.String())

		out, err = f.run(t, "isspent", "--nonce", types.Nonce{}.String())
		require.NoError(t, err)
		assert.JSONEq(t, `{"spent": false}`, out.String())
	})

	t.Run("getbackup", func(t *testing.T) {
		out, err := f.run(t, "getbackup", "--id", f.backupID.String())
		require.NoError(t, err)
		var snapshot mint.BackupSnapshot
		require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
		assert.Equal(t, []byte("backup"), snapshot.Data)
		assert.True(t, snapshot.Timestamp.Equal(time.Unix(1700000000, 0)))
	})

	t.Run("dump", func(t *testing.T) {
		out, err := f.run(t, "dump", "--namespace", "NoteNonce")
		require.NoError(t, err)
		var entries []map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "NoteNonce", entries[0]["namespace"])

		out, err = f.run(t, "dump", "--namespace", "ProposedPartialSig")
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, out.String())

		_, err = f.run(t, "dump", "--namespace", "Bogus")
		assert.Error(t, err)
	})

	t.Run("federation preset", func(t *testing.T) {
		out := new(bytes.Buffer)
		opts := options{out: out}
		_, err := newParser(&opts).ParseArgs([]string{"--datadir", f.dir, "--federation", "regtest", "lastepoch"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"epoch": 7, "found": true}`, out.String())

		_, err = newParser(&opts).ParseArgs([]string{"--datadir", f.dir, "--federation", "moonnet", "lastepoch"})
		assert.Error(t, err)
	})

	t.Run("short nonce", func(t *testing.T) {
		_, err := f.run(t, "isspent", "--nonce", "ab")
		assert.Error(t, err)
	})

	t.Run("missing datastore", func(t *testing.T) {
		out := new(bytes.Buffer)
		opts := options{out: out}
		_, err := newParser(&opts).ParseArgs([]string{"--datadir", t.TempDir(), "audit"})
		assert.Error(t, err)
	})
}
