// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	pb "github.com/libp2p/go-libp2p/core/crypto/pb"
)

const BackupIDSize = 32

var ErrBackupIDKeyType = errors.New("backup identity must be an ed25519 public key")

// BackupID is the public identity of a user storing backups with the
// mint. It is the raw 32 byte ed25519 public key the user signs backup
// requests with.
type BackupID [BackupIDSize]byte

func (id BackupID) String() string {
	return hex.EncodeToString(id[:])
}

func (id BackupID) Bytes() []byte {
	return id[:]
}

// PubKey returns the ed25519 public key for this identity.
func (id BackupID) PubKey() (crypto.PubKey, error) {
	return crypto.UnmarshalEd25519PublicKey(id[:])
}

func (id BackupID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *BackupID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	i, err := NewBackupIDFromString(s)
	if err != nil {
		return err
	}
	*id = i
	return nil
}

// NewBackupIDFromPubKey returns the identity for an ed25519 public key.
func NewBackupIDFromPubKey(pub crypto.PubKey) (BackupID, error) {
	if pub.Type() != pb.KeyType_Ed25519 {
		return BackupID{}, ErrBackupIDKeyType
	}
	raw, err := pub.Raw()
	if err != nil {
		return BackupID{}, err
	}
	return NewBackupIDFromBytes(raw)
}

func NewBackupIDFromBytes(b []byte) (BackupID, error) {
	var id BackupID
	if len(b) != BackupIDSize {
		return id, fmt.Errorf("backup id must be %d bytes", BackupIDSize)
	}
	copy(id[:], b)
	return id, nil
}

func NewBackupIDFromString(s string) (BackupID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return BackupID{}, err
	}
	return NewBackupIDFromBytes(b)
}
