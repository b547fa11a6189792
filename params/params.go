// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package params

import (
	"errors"
	"fmt"

	"github.com/project-illium/mintd/types"
)

const (
	networkMainnet = "mainnet"
	networkDevnet  = "devnet"
	networkRegtest = "regtest"
)

// FederationParams describes the committee of peers running the mint.
// The values are an input from the membership layer. Nothing in the
// mint assumes a particular committee size.
type FederationParams struct {
	// Name is a human-readable string to identify the params
	Name string

	// Peers is the number of peers in the federation. Peer IDs are
	// the indexes [0, Peers).
	Peers uint16

	// Threshold is the number of signature shares from distinct peers
	// needed to combine a blind signature for an output.
	Threshold uint16
}

// MainnetParams is a four peer federation tolerating one faulty peer.
var MainnetParams = FederationParams{
	Name:      networkMainnet,
	Peers:     4,
	Threshold: 3,
}

// DevnetParams is a small federation for development networks.
var DevnetParams = FederationParams{
	Name:      networkDevnet,
	Peers:     3,
	Threshold: 2,
}

// RegtestParams is a single peer federation for testing.
var RegtestParams = FederationParams{
	Name:      networkRegtest,
	Peers:     1,
	Threshold: 1,
}

// FederationParamsByName returns the preset federation with the given
// name.
func FederationParamsByName(name string) (*FederationParams, error) {
	switch name {
	case networkMainnet:
		return &MainnetParams, nil
	case networkDevnet:
		return &DevnetParams, nil
	case networkRegtest:
		return &RegtestParams, nil
	default:
		return nil, fmt.Errorf("unknown federation %q", name)
	}
}

// NewFederationParams builds params for a federation of the given size
// and validates them.
func NewFederationParams(threshold, peers uint16) (*FederationParams, error) {
	p := &FederationParams{
		Name:      fmt.Sprintf("%d-of-%d", threshold, peers),
		Peers:     peers,
		Threshold: threshold,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the threshold can be met by the federation.
func (p *FederationParams) Validate() error {
	if p.Peers == 0 {
		return errors.New("federation must have at least one peer")
	}
	if p.Threshold == 0 || p.Threshold > p.Peers {
		return fmt.Errorf("threshold must be between 1 and %d", p.Peers)
	}
	return nil
}

// IsPeer returns whether the ID belongs to a member of the federation.
func (p *FederationParams) IsPeer(id types.PeerID) bool {
	return uint16(id) < p.Peers
}

// PeerIDs returns the IDs of all federation members.
func (p *FederationParams) PeerIDs() []types.PeerID {
	ids := make([]types.PeerID, 0, p.Peers)
	for i := uint16(0); i < p.Peers; i++ {
		ids = append(ids, types.PeerID(i))
	}
	return ids
}

// MaxFaulty is the number of peers that may withhold their shares while
// outputs can still be finalized.
func (p *FederationParams) MaxFaulty() uint16 {
	return p.Peers - p.Threshold
}
