// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const NonceSize = 32

var ErrNonceStrSize = fmt.Errorf("nonce string must be %v hex characters", NonceSize*2)

// Nonce is the one-time value revealed when a note is redeemed. The
// mint learns nothing else about the note, so the nonce is the only
// thing that can be used to detect a second redemption.
type Nonce [NonceSize]byte

func (n Nonce) String() string {
	return hex.EncodeToString(n[:])
}

func (n Nonce) Bytes() []byte {
	return n[:]
}

func (n Nonce) Clone() Nonce {
	var b [len(n)]byte
	copy(b[:], n[:])
	return b
}

func (n *Nonce) SetBytes(data []byte) {
	copy(n[:], data)
}

func (n Nonce) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

func (n *Nonce) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	i, err := NewNonceFromString(s)
	if err != nil {
		return err
	}
	*n = i
	return nil
}

func NewNonce(b []byte) Nonce {
	var n Nonce
	n.SetBytes(b)
	return n
}

func NewNonceFromString(n string) (Nonce, error) {
	if len(n) != NonceSize*2 {
		return Nonce{}, ErrNonceStrSize
	}
	ret, err := hex.DecodeString(n)
	if err != nil {
		return Nonce{}, err
	}
	var newN Nonce
	newN.SetBytes(ret)
	return newN, nil
}
