// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/binary"
	"errors"
	"math"
)

// AmountSize is the size of a serialized Amount.
const AmountSize = 8

// ErrAmountSize is returned when deserializing a byte slice of the wrong length.
var ErrAmountSize = errors.New("serialized amount must be 8 bytes")

// Amount represents the base monetary unit of the mint (millisats).
// Notes of any denomination are accounted for in this unit.
type Amount uint64

// ToBytes returns the byte representation of the amount
func (a Amount) ToBytes() []byte {
	b := make([]byte, AmountSize)
	binary.BigEndian.PutUint64(b, uint64(a))
	return b
}

// Add returns a+b and whether the addition overflowed.
func (a Amount) Add(b Amount) (Amount, bool) {
	if uint64(a) > math.MaxUint64-uint64(b) {
		return 0, false
	}
	return a + b, true
}

// NewAmountFromBytes deserializes an amount created with ToBytes.
func NewAmountFromBytes(b []byte) (Amount, error) {
	if len(b) != AmountSize {
		return 0, ErrAmountSize
	}
	return Amount(binary.BigEndian.Uint64(b)), nil
}
