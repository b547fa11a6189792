// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package hash

import "encoding/binary"

// HashWithIndex prepends the index to data before hashing.
func HashWithIndex(data []byte, index uint64) []byte {
	d := make([]byte, len(data)+8)
	binary.BigEndian.PutUint64(d[:8], index)
	copy(d[8:], data)
	return HashFunc(d)
}

// CatAndHash concatenates all the elements in the slice together
// and then hashes.
func CatAndHash(data [][]byte) []byte {
	combined := make([]byte, 0, HashSize*len(data))
	for _, elem := range data {
		combined = append(combined, elem...)
	}
	return HashFunc(combined)
}
