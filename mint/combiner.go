// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"sort"

	"github.com/project-illium/mintd/params/hash"
	"github.com/project-illium/mintd/types"
)

// Combiner combines threshold many signature shares over an output into
// the blind signature returned to the user. Implementations must be
// deterministic. Shares that fail verification are reported with an
// *InvalidShareError naming the peers that sent them.
type Combiner interface {
	Combine(outPoint types.OutPoint, shares map[types.PeerID]SignatureShare) ([]byte, error)
}

// CombinerFunc adapts a function to the Combiner interface.
type CombinerFunc func(outPoint types.OutPoint, shares map[types.PeerID]SignatureShare) ([]byte, error)

func (f CombinerFunc) Combine(outPoint types.OutPoint, shares map[types.PeerID]SignatureShare) ([]byte, error) {
	return f(outPoint, shares)
}

// HashCombiner commits to the shares in peer order with a hash. It does
// no cryptography and exists for development networks and tests only.
// Empty shares are reported as invalid.
type HashCombiner struct{}

func (HashCombiner) Combine(outPoint types.OutPoint, shares map[types.PeerID]SignatureShare) ([]byte, error) {
	peers := sortedPeers(shares)

	var invalid []types.PeerID
	for _, p := range peers {
		if len(shares[p].Share) == 0 {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidShareError{Peers: invalid, Reason: "empty share"}
	}

	data := make([][]byte, 0, len(peers)+1)
	data = append(data, outPoint.Bytes())
	for _, p := range peers {
		data = append(data, hash.HashWithIndex(shares[p].Share, uint64(p)))
	}
	return hash.CatAndHash(data), nil
}

func sortedPeers(shares map[types.PeerID]SignatureShare) []types.PeerID {
	peers := make([]types.PeerID, 0, len(shares))
	for p := range shares {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}
