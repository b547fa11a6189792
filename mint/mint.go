// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ipfs/go-datastore"
	"github.com/project-illium/mintd/params"
	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/types"
)

// Mint maintains the persistent state of a federated mint: the spent
// nonces, the signature shares and outcomes of outputs, the audit ledger
// and user backups.
//
// State is only changed by ApplyBatch which applies each consensus batch
// in a single datastore transaction. Readers never observe a partially
// applied batch.
type Mint struct {
	params        *params.FederationParams
	ds            repo.Datastore
	ourPeer       types.PeerID
	maxBackupSize int
	readOnly      bool

	nonces  *NonceSet
	shares  *ShareCollector
	audit   *AuditLedger
	backups *BackupStore

	// halted is set after a fatal error. No further batches are applied.
	halted error

	notifications     []NotificationCallback
	notificationsLock sync.RWMutex

	// stateLock protects concurrent access to the mint state
	stateLock sync.RWMutex
}

// NewMint returns a fully initialized mint.
func NewMint(opts ...Option) (*Mint, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	audit := &AuditLedger{}
	m := &Mint{
		params:        cfg.params,
		ds:            cfg.datastore,
		ourPeer:       cfg.ourPeer,
		maxBackupSize: cfg.maxBackupSize,
		readOnly:      cfg.readOnly,
		nonces:        NewNonceSet(cfg.datastore, cfg.maxNonces),
		shares:        NewShareCollector(cfg.params, cfg.ourPeer, cfg.combiner, audit, cfg.pruneShares),
		audit:         audit,
		backups:       &BackupStore{},
		stateLock:     sync.RWMutex{},
	}
	if m.maxBackupSize <= 0 {
		m.maxBackupSize = DefaultMaxBackupSize
	}

	epoch, found, err := dsGet(m.ds, EpochSchema{}, struct{}{})
	if err != nil {
		return nil, err
	}
	if found {
		log.Debugf("Mint state loaded at epoch %d", epoch)
	}
	return m, nil
}

// ApplyBatch applies every item of the batch in order and commits the
// result in one transaction together with the batch epoch.
//
// Batches must be applied in strictly increasing epoch order. A batch whose
// epoch was already applied is skipped so consensus may replay batches
// after a restart.
//
// Items that break a rule are rejected in the result and do not fail the
// batch. Any other error discards the whole batch. If the error shows the
// stored state is corrupt or inconsistent the mint halts and every later
// call returns ErrHalted.
func (m *Mint) ApplyBatch(batch *Batch) (*BatchResult, error) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	if m.readOnly {
		return nil, ErrReadOnly
	}
	if m.halted != nil {
		return nil, fmt.Errorf("%w: %s", ErrHalted, m.halted)
	}
	if batch == nil {
		return nil, errors.New("batch is nil")
	}

	last, found, err := dsGet(m.ds, EpochSchema{}, struct{}{})
	if err != nil {
		return nil, m.halt(err)
	}
	if found && batch.Epoch <= last {
		log.Debugf("Skipping already applied epoch %d (last %d)", batch.Epoch, last)
		return &BatchResult{Epoch: batch.Epoch, Skipped: true}, nil
	}

	dbtx, err := m.ds.NewTransaction(context.Background(), false)
	if err != nil {
		return nil, err
	}
	defer dbtx.Discard(context.Background())

	result := &BatchResult{
		Epoch: batch.Epoch,
		Items: make([]ItemResult, 0, len(batch.Items)),
	}
	var events []Notification
	for i, item := range batch.Items {
		res, event, err := m.applyItem(dbtx, item)
		if err != nil {
			return nil, m.halt(fmt.Errorf("epoch %d item %d (%s): %w", batch.Epoch, i, item.itemName(), err))
		}
		result.Items = append(result.Items, res)
		if event != nil {
			events = append(events, *event)
		}
	}

	if err := dsPut(dbtx, EpochSchema{}, struct{}{}, batch.Epoch); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(context.Background()); err != nil {
		return nil, err
	}

	for _, e := range events {
		m.sendNotification(e.Type, e.Data)
	}
	m.sendNotification(NTBatchApplied, result)

	totals, err := m.audit.fetchTotals(m.ds)
	if err != nil {
		log.Errorf("Error loading audit totals after epoch %d: %s", batch.Epoch, err)
	} else if !totals.Solvent() {
		log.Errorf("Mint shortfall after epoch %d: issued %d, redeemed %d", batch.Epoch, totals.Issued, totals.Redeemed)
	}
	return result, nil
}

// halt stops the mint if the error is fatal. The error is returned
// unchanged.
func (m *Mint) halt(err error) error {
	if isFatal(err) {
		m.halted = err
		log.Errorf("Halting mint: %s", err)
	}
	return err
}

// Halted returns the error that halted the mint, if any.
func (m *Mint) Halted() error {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return m.halted
}

// applyItem applies one item through dbtx. Rule violations are returned as
// a rejected result. A returned error fails the batch.
func (m *Mint) applyItem(dbtx datastore.Txn, item Item) (ItemResult, *Notification, error) {
	switch it := item.(type) {
	case IssueOutput:
		res, err := ruleResult(m.shares.ProposeShare(dbtx, it.OutPoint, it.Share))
		return res, nil, err

	case SubmitShare:
		if m.params.IsPeer(it.Peer) {
			existing, err := fetchOutcome(dbtx, it.OutPoint)
			if err != nil {
				return ItemResult{}, nil, err
			}
			if existing != nil {
				return ItemResult{Status: ItemIgnored, Outcome: existing}, nil, nil
			}
		}
		outcome, err := m.shares.SubmitShare(dbtx, it.OutPoint, it.Peer, it.Share)
		if err != nil {
			res, err := ruleResult(err)
			return res, nil, err
		}
		res := ItemResult{Status: ItemAccepted, Outcome: outcome}
		if outcome == nil {
			return res, nil, nil
		}
		typ := NTOutputFinalized
		if outcome.Status == StatusFailed {
			typ = NTOutputFailed
		}
		return res, &Notification{
			Type: typ,
			Data: &OutcomeNotification{OutPoint: it.OutPoint, Outcome: outcome},
		}, nil

	case RedeemNote:
		if err := m.nonces.RecordSpend(dbtx, it.Nonce); err != nil {
			res, err := ruleResult(err)
			return res, nil, err
		}
		if err := m.audit.recordRedemption(dbtx, it.Nonce, it.Amount); err != nil {
			return ItemResult{}, nil, err
		}
		return ItemResult{Status: ItemAccepted}, &Notification{Type: NTNoteRedeemed, Data: it}, nil

	case StoreBackup:
		req := it.Request
		if req == nil {
			return rejected(ruleError(ErrInvalidBackupSignature, "missing backup request")), nil, nil
		}
		if len(req.Payload) > m.maxBackupSize {
			return rejected(ruleError(ErrBackupTooLarge, fmt.Sprintf("backup of %d bytes exceeds the %d byte limit", len(req.Payload), m.maxBackupSize))), nil, nil
		}
		if err := req.Verify(); err != nil {
			return rejected(ruleError(ErrInvalidBackupSignature, fmt.Sprintf("backup for %s: %s", req.ID, err))), nil, nil
		}
		stored, err := m.backups.storeBackup(dbtx, req.ID, req.Snapshot())
		if err != nil {
			return ItemResult{}, nil, err
		}
		if !stored {
			return ItemResult{Status: ItemIgnored}, nil, nil
		}
		return ItemResult{Status: ItemAccepted}, &Notification{Type: NTBackupStored, Data: req.ID}, nil

	default:
		return rejected(ruleError(ErrUnknownItem, fmt.Sprintf("unknown item type %T", item))), nil, nil
	}
}

func rejected(err error) ItemResult {
	return ItemResult{Status: ItemRejected, Err: err}
}

func ruleResult(err error) (ItemResult, error) {
	if err == nil {
		return ItemResult{Status: ItemAccepted}, nil
	}
	if isRuleError(err) {
		return rejected(err), nil
	}
	return ItemResult{}, err
}

// LastEpoch returns the last applied epoch. found is false before the
// first batch.
func (m *Mint) LastEpoch() (epoch uint64, found bool, err error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return dsGet(m.ds, EpochSchema{}, struct{}{})
}

// IsSpent returns whether the note nonce has been spent.
func (m *Mint) IsSpent(nonce types.Nonce) (bool, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return m.nonces.IsSpent(nonce)
}

// Status returns where the output is in its lifecycle.
func (m *Mint) Status(outPoint types.OutPoint) (OutcomeStatus, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return m.shares.Status(m.ds, outPoint)
}

// PendingShares returns the shares received so far for an output.
func (m *Mint) PendingShares(outPoint types.OutPoint) (map[types.PeerID]SignatureShare, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return m.shares.PendingShares(m.ds, outPoint)
}

// ProposedShares returns our own shares still waiting for consensus.
func (m *Mint) ProposedShares() (map[types.OutPoint]SignatureShare, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	return m.shares.ProposedShares(m.ds)
}

// Dump decodes every entry of a namespace from a single snapshot.
func (m *Mint) Dump(tag byte) ([]Entry, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	dbtx, err := m.ds.NewTransaction(context.Background(), true)
	if err != nil {
		return nil, err
	}
	defer dbtx.Discard(context.Background())

	return DumpNamespace(dbtx, tag)
}
