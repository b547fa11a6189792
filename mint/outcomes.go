// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ipfs/go-datastore"
	"github.com/project-illium/mintd/types"
)

// OutcomeStatus is the lifecycle state of an output.
type OutcomeStatus uint8

const (
	StatusUnknown OutcomeStatus = iota
	StatusPending
	StatusFinalized
	StatusFailed
)

var outcomeStatusStrings = map[OutcomeStatus]string{
	StatusUnknown:   "unknown",
	StatusPending:   "pending",
	StatusFinalized: "finalized",
	StatusFailed:    "failed",
}

func (s OutcomeStatus) String() string {
	if str, ok := outcomeStatusStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown OutcomeStatus (%d)", int(s))
}

func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OutputOutcome is the terminal result of an output. Finalized outcomes
// carry the combined signature. Failed outcomes carry the reason. Either
// may name peers whose shares were rejected.
type OutputOutcome struct {
	Status    OutcomeStatus  `json:"status"`
	Amount    types.Amount   `json:"amount"`
	Signature []byte         `json:"signature,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Culprits  []types.PeerID `json:"culprits,omitempty"`
}

var errOutcomePending = errors.New("outcome pending")

// putOutcome records the outcome of an output. Outcomes are written once.
// Finding one already stored means the share collector let an output be
// decided twice.
func putOutcome(dbtx datastore.Txn, outPoint types.OutPoint, outcome *OutputOutcome) error {
	exists, err := dsHas(dbtx, OutcomeSchema{}, outPoint)
	if err != nil {
		return err
	}
	if exists {
		return AssertError(fmt.Sprintf("putOutcome: output %s already has an outcome", outPoint))
	}
	return dsPut(dbtx, OutcomeSchema{}, outPoint, *outcome)
}

// fetchOutcome returns nil if the output has no outcome.
func fetchOutcome(r datastore.Read, outPoint types.OutPoint) (*OutputOutcome, error) {
	outcome, found, err := dsGet(r, OutcomeSchema{}, outPoint)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &outcome, nil
}

// Outcome returns the outcome of the output or nil if it has none yet.
func (m *Mint) Outcome(outPoint types.OutPoint) (*OutputOutcome, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return fetchOutcome(m.ds, outPoint)
}

// AwaitOutcome polls until the output has an outcome or the context is
// done.
func (m *Mint) AwaitOutcome(ctx context.Context, outPoint types.OutPoint) (*OutputOutcome, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0

	var outcome *OutputOutcome
	err := backoff.Retry(func() error {
		o, err := m.Outcome(outPoint)
		if err != nil {
			return backoff.Permanent(err)
		}
		if o == nil {
			return errOutcomePending
		}
		outcome = o
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return outcome, nil
}
