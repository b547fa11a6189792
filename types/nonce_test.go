package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testSerializedNonce = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

func TestNewNonceFromString(t *testing.T) {
	n, err := NewNonceFromString(testSerializedNonce)
	if err != nil {
		t.Error(err)
	}

	if n.String() != testSerializedNonce {
		t.Errorf("Expected %s, got %s", testSerializedNonce, n.String())
	}

	_, err = NewNonceFromString("zz")
	assert.Error(t, err)

	// Short and long strings are rejected rather than padded.
	_, err = NewNonceFromString("ab")
	assert.ErrorIs(t, err, ErrNonceStrSize)
	_, err = NewNonceFromString(testSerializedNonce[:62])
	assert.ErrorIs(t, err, ErrNonceStrSize)
	_, err = NewNonceFromString(testSerializedNonce + "00")
	assert.ErrorIs(t, err, ErrNonceStrSize)
}

func TestNonceJSON(t *testing.T) {
	n, err := NewNonceFromString(testSerializedNonce)
	assert.NoError(t, err)

	ser, err := json.Marshal(n)
	assert.NoError(t, err)

	var n2 Nonce
	err = json.Unmarshal(ser, &n2)
	assert.NoError(t, err)
	assert.Equal(t, n, n2)
}

func TestNonceClone(t *testing.T) {
	n := NewNonce([]byte{0x01, 0x02})
	c := n.Clone()
	c[0] = 0xff
	assert.Equal(t, byte(0x01), n[0])
}
