// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountBytes(t *testing.T) {
	a := Amount(230584300921369395)

	a2, err := NewAmountFromBytes(a.ToBytes())
	assert.NoError(t, err)
	assert.Equal(t, a, a2)

	_, err = NewAmountFromBytes([]byte{0x01})
	assert.ErrorIs(t, err, ErrAmountSize)
}

func TestAmountAdd(t *testing.T) {
	sum, ok := Amount(5).Add(7)
	assert.True(t, ok)
	assert.Equal(t, Amount(12), sum)

	_, ok = Amount(math.MaxUint64).Add(1)
	assert.False(t, ok)

	sum, ok = Amount(math.MaxUint64 - 1).Add(1)
	assert.True(t, ok)
	assert.Equal(t, Amount(math.MaxUint64), sum)
}
