// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/ipfs/go-datastore"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/project-illium/mintd/params/hash"
	"github.com/project-illium/mintd/types"
)

var backupSigDomain = []byte("mintd/backup/v1")

var errInvalidBackupSignature = errors.New("invalid backup signature")

// BackupSnapshot is the latest encrypted backup of a user. Data is never
// interpreted by the mint.
type BackupSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

// SignedBackupRequest is a backup snapshot signed by the key the user is
// identified by.
type SignedBackupRequest struct {
	ID        types.BackupID
	Timestamp time.Time
	Payload   []byte
	Signature []byte
}

// NewSignedBackupRequest builds and signs a request with the user's
// ed25519 key.
func NewSignedBackupRequest(priv crypto.PrivKey, timestamp time.Time, payload []byte) (*SignedBackupRequest, error) {
	id, err := types.NewBackupIDFromPubKey(priv.GetPublic())
	if err != nil {
		return nil, err
	}
	req := &SignedBackupRequest{
		ID:        id,
		Timestamp: timestamp,
		Payload:   payload,
	}
	req.Signature, err = priv.Sign(req.SigHash())
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SigHash is the digest the user signs. It commits to the identity, the
// timestamp and the payload.
func (r *SignedBackupRequest) SigHash() []byte {
	ts := make([]byte, 12)
	binary.BigEndian.PutUint64(ts, uint64(r.Timestamp.Unix()))
	binary.BigEndian.PutUint32(ts[8:], uint32(r.Timestamp.Nanosecond()))
	return hash.CatAndHash([][]byte{backupSigDomain, r.ID.Bytes(), ts, r.Payload})
}

// Verify checks the signature against the identity's public key.
func (r *SignedBackupRequest) Verify() error {
	pub, err := r.ID.PubKey()
	if err != nil {
		return err
	}
	valid, err := pub.Verify(r.SigHash(), r.Signature)
	if err != nil {
		return err
	}
	if !valid {
		return errInvalidBackupSignature
	}
	return nil
}

// Snapshot returns the snapshot to store for this request.
func (r *SignedBackupRequest) Snapshot() BackupSnapshot {
	return BackupSnapshot{
		Timestamp: r.Timestamp,
		Data:      r.Payload,
	}
}

// BackupStore keeps the latest backup snapshot of each identity.
type BackupStore struct {
	schema BackupSchema
}

// storeBackup replaces the snapshot stored for id. A snapshot that is not
// newer than the stored one is ignored and stored is false.
func (bs *BackupStore) storeBackup(dbtx datastore.Txn, id types.BackupID, snapshot BackupSnapshot) (stored bool, err error) {
	existing, found, err := dsGet(dbtx, bs.schema, id)
	if err != nil {
		return false, err
	}
	if found && !snapshot.Timestamp.After(existing.Timestamp) {
		return false, nil
	}
	if err := dsPut(dbtx, bs.schema, id, snapshot); err != nil {
		return false, err
	}
	return true, nil
}

func (bs *BackupStore) fetchBackup(r datastore.Read, id types.BackupID) (*BackupSnapshot, error) {
	snapshot, found, err := dsGet(r, bs.schema, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &snapshot, nil
}

// LatestBackup returns the newest snapshot stored for id or nil if there
// is none.
func (m *Mint) LatestBackup(id types.BackupID) (*BackupSnapshot, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return m.backups.fetchBackup(m.ds, id)
}
