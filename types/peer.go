// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/binary"
	"errors"
	"strconv"
)

const PeerIDSize = 2

var ErrPeerIDSize = errors.New("serialized peer id must be 2 bytes")

// PeerID is the index of a federation member in the committee. Members
// are numbered 0 through n-1.
type PeerID uint16

func (p PeerID) Bytes() []byte {
	b := make([]byte, PeerIDSize)
	binary.BigEndian.PutUint16(b, uint16(p))
	return b
}

func (p PeerID) String() string {
	return "peer-" + strconv.Itoa(int(p))
}

func NewPeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) != PeerIDSize {
		return 0, ErrPeerIDSize
	}
	return PeerID(binary.BigEndian.Uint16(b)), nil
}
