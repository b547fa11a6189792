// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ipfs/go-datastore"
	"github.com/project-illium/mintd/params"
	"github.com/project-illium/mintd/types"
)

// SignatureShare is one peer's partial blind signature over an output.
// Amount is the face value of the output as seen by that peer. Share is
// opaque to the mint and only interpreted by the Combiner.
type SignatureShare struct {
	Amount types.Amount `json:"amount"`
	Share  []byte       `json:"share"`
}

// ShareCollector tracks the signature shares of each output until a
// threshold of peers has contributed and the output reaches a terminal
// outcome.
//
// An output moves from unknown to pending when the first share is stored
// and from pending to finalized or failed exactly once.
type ShareCollector struct {
	params   *params.FederationParams
	ourPeer  types.PeerID
	combiner Combiner
	prune    bool
	audit    *AuditLedger

	proposed ProposedShareSchema
	received ReceivedShareSchema
}

// NewShareCollector returns a ShareCollector for the federation. If prune
// is set the received shares of an output are deleted once it has an
// outcome.
func NewShareCollector(params *params.FederationParams, ourPeer types.PeerID, combiner Combiner, audit *AuditLedger, prune bool) *ShareCollector {
	return &ShareCollector{
		params:   params,
		ourPeer:  ourPeer,
		combiner: combiner,
		prune:    prune,
		audit:    audit,
	}
}

// ProposeShare stores our own share for an output until consensus
// delivers it back to us.
func (sc *ShareCollector) ProposeShare(dbtx datastore.Txn, outPoint types.OutPoint, share SignatureShare) error {
	exists, err := dsHas(dbtx, OutcomeSchema{}, outPoint)
	if err != nil {
		return err
	}
	if exists {
		return ruleError(ErrOutputExists, fmt.Sprintf("output %s already has an outcome", outPoint))
	}
	return dsPut(dbtx, sc.proposed, outPoint, share)
}

// SubmitShare stores the share from peer and, once shares from a threshold
// of distinct peers exist, combines them and records the outcome.
//
// A nil outcome means the output is still pending. If the output already
// has an outcome it is returned and nothing is written. A later share
// from the same peer replaces the earlier one.
func (sc *ShareCollector) SubmitShare(dbtx datastore.Txn, outPoint types.OutPoint, peer types.PeerID, share SignatureShare) (*OutputOutcome, error) {
	if !sc.params.IsPeer(peer) {
		return nil, ruleError(ErrUnknownPeer, fmt.Sprintf("share for %s from unknown %s", outPoint, peer))
	}

	outcome, err := fetchOutcome(dbtx, outPoint)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return outcome, nil
	}

	if err := dsPut(dbtx, sc.received, ReceivedShareKey{OutPoint: outPoint, Peer: peer}, share); err != nil {
		return nil, err
	}
	if peer == sc.ourPeer {
		if err := dsDelete(dbtx, sc.proposed, outPoint); err != nil {
			return nil, err
		}
	}

	shares, err := sc.fetchShares(dbtx, outPoint)
	if err != nil {
		return nil, err
	}
	if len(shares) < int(sc.params.Threshold) {
		return nil, nil
	}

	outcome = sc.combine(outPoint, shares)
	if outcome == nil {
		return nil, nil
	}
	if err := putOutcome(dbtx, outPoint, outcome); err != nil {
		return nil, err
	}
	if outcome.Status == StatusFinalized {
		if err := sc.audit.recordIssuance(dbtx, outPoint, outcome.Amount); err != nil {
			return nil, err
		}
	}
	// Our share no longer needs proposing even if consensus never
	// delivered it.
	if err := dsDelete(dbtx, sc.proposed, outPoint); err != nil {
		return nil, err
	}
	if sc.prune {
		for p := range shares {
			if err := dsDelete(dbtx, sc.received, ReceivedShareKey{OutPoint: outPoint, Peer: p}); err != nil {
				return nil, err
			}
		}
	}
	return outcome, nil
}

// combine decides the outcome of an output with at least threshold
// shares. The amount carried by the most shares wins (ties go to the
// smaller amount) and peers that disagree are culprits. It returns nil
// while too few peers agree but more shares may still arrive.
func (sc *ShareCollector) combine(outPoint types.OutPoint, shares map[types.PeerID]SignatureShare) *OutputOutcome {
	amount, agreeing, culprits := majorityAmount(shares)
	if len(agreeing) < int(sc.params.Threshold) {
		for _, p := range sc.params.PeerIDs() {
			if _, ok := shares[p]; !ok {
				return nil
			}
		}
		return &OutputOutcome{
			Status:   StatusFailed,
			Amount:   amount,
			Reason:   "peers do not agree on the output amount",
			Culprits: culprits,
		}
	}

	sig, err := sc.combiner.Combine(outPoint, agreeing)
	if err != nil {
		var invalid *InvalidShareError
		if errors.As(err, &invalid) {
			culprits = mergePeers(culprits, invalid.Peers)
			log.Warnf("Invalid signature shares for output %s from %v", outPoint, invalid.Peers)
		} else {
			log.Errorf("Error combining signature shares for output %s: %s", outPoint, err)
		}
		return &OutputOutcome{
			Status:   StatusFailed,
			Amount:   amount,
			Reason:   err.Error(),
			Culprits: culprits,
		}
	}
	return &OutputOutcome{
		Status:    StatusFinalized,
		Amount:    amount,
		Signature: sig,
		Culprits:  culprits,
	}
}

func (sc *ShareCollector) fetchShares(r datastore.Read, outPoint types.OutPoint) (map[types.PeerID]SignatureShare, error) {
	cursor, err := dsRange(r, sc.received, sc.received.outPointPrefix(outPoint))
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	shares := make(map[types.PeerID]SignatureShare)
	for cursor.Next() {
		shares[cursor.Key().Peer] = cursor.Value()
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return shares, nil
}

// Status returns where the output is in its lifecycle.
func (sc *ShareCollector) Status(r datastore.Read, outPoint types.OutPoint) (OutcomeStatus, error) {
	outcome, err := fetchOutcome(r, outPoint)
	if err != nil {
		return StatusUnknown, err
	}
	if outcome != nil {
		return outcome.Status, nil
	}

	proposed, err := dsHas(r, sc.proposed, outPoint)
	if err != nil {
		return StatusUnknown, err
	}
	if proposed {
		return StatusPending, nil
	}

	cursor, err := dsRange(r, sc.received, sc.received.outPointPrefix(outPoint))
	if err != nil {
		return StatusUnknown, err
	}
	defer cursor.Close()
	if cursor.Next() {
		return StatusPending, nil
	}
	return StatusUnknown, cursor.Err()
}

// PendingShares returns the received shares of an output keyed by peer.
func (sc *ShareCollector) PendingShares(r datastore.Read, outPoint types.OutPoint) (map[types.PeerID]SignatureShare, error) {
	return sc.fetchShares(r, outPoint)
}

// ProposedShares returns our own shares that consensus has not yet
// delivered back to us.
func (sc *ShareCollector) ProposedShares(r datastore.Read) (map[types.OutPoint]SignatureShare, error) {
	cursor, err := dsRange(r, sc.proposed, nil)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	shares := make(map[types.OutPoint]SignatureShare)
	for cursor.Next() {
		shares[cursor.Key()] = cursor.Value()
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return shares, nil
}

func majorityAmount(shares map[types.PeerID]SignatureShare) (types.Amount, map[types.PeerID]SignatureShare, []types.PeerID) {
	votes := make(map[types.Amount]int)
	for _, s := range shares {
		votes[s.Amount]++
	}
	var (
		best      types.Amount
		bestVotes int
	)
	for amt, n := range votes {
		if n > bestVotes || (n == bestVotes && amt < best) {
			best, bestVotes = amt, n
		}
	}

	agreeing := make(map[types.PeerID]SignatureShare)
	var culprits []types.PeerID
	for _, p := range sortedPeers(shares) {
		if shares[p].Amount == best {
			agreeing[p] = shares[p]
		} else {
			culprits = append(culprits, p)
		}
	}
	return best, agreeing, culprits
}

func mergePeers(a, b []types.PeerID) []types.PeerID {
	seen := make(map[types.PeerID]bool)
	var merged []types.PeerID
	for _, p := range append(append([]types.PeerID{}, a...), b...) {
		if !seen[p] {
			seen[p] = true
			merged = append(merged, p)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	return merged
}
