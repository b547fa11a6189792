// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// OutPointSize is the size of a serialized OutPoint.
const OutPointSize = len(ID{}) + 8

var ErrOutPointSize = fmt.Errorf("serialized outpoint must be %d bytes", OutPointSize)

// OutPoint identifies one requested note issuance output within a
// transaction.
type OutPoint struct {
	TxID   ID
	OutIdx uint64
}

// NewOutPoint returns an OutPoint for the given transaction and index.
func NewOutPoint(txid ID, index uint64) OutPoint {
	return OutPoint{TxID: txid, OutIdx: index}
}

// Bytes serializes the outpoint as the txid followed by the big endian
// output index. The fixed width keeps the byte order of serialized
// outpoints equal to (txid, index) order.
func (o OutPoint) Bytes() []byte {
	b := make([]byte, OutPointSize)
	copy(b, o.TxID[:])
	binary.BigEndian.PutUint64(b[len(o.TxID):], o.OutIdx)
	return b
}

func (o OutPoint) String() string {
	return o.TxID.String() + ":" + strconv.FormatUint(o.OutIdx, 10)
}

func (o OutPoint) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *OutPoint) UnmarshalText(text []byte) error {
	op, err := NewOutPointFromString(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// NewOutPointFromBytes deserializes an outpoint created with Bytes.
func NewOutPointFromBytes(b []byte) (OutPoint, error) {
	if len(b) != OutPointSize {
		return OutPoint{}, ErrOutPointSize
	}
	return OutPoint{
		TxID:   NewID(b[:len(ID{})]),
		OutIdx: binary.BigEndian.Uint64(b[len(ID{}):]),
	}, nil
}

// NewOutPointFromString parses the txid:index form returned by String.
func NewOutPointFromString(s string) (OutPoint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return OutPoint{}, errors.New("outpoint must be formatted as txid:index")
	}
	if len(parts[0]) != len(ID{})*2 {
		return OutPoint{}, ErrIDStrSize
	}
	txid, err := NewIDFromString(parts[0])
	if err != nil {
		return OutPoint{}, err
	}
	idx, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return OutPoint{}, err
	}
	return OutPoint{TxID: txid, OutIdx: idx}, nil
}
