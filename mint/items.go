// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"fmt"

	"github.com/project-illium/mintd/types"
)

// Item is one entry of a consensus batch.
type Item interface {
	itemName() string
}

// IssueOutput is an output accepted by consensus for issuance. Share is
// our own signature share over it.
type IssueOutput struct {
	OutPoint types.OutPoint
	Share    SignatureShare
}

// SubmitShare is a signature share from a peer.
type SubmitShare struct {
	OutPoint types.OutPoint
	Peer     types.PeerID
	Share    SignatureShare
}

// RedeemNote spends a note.
type RedeemNote struct {
	Nonce  types.Nonce
	Amount types.Amount
}

// StoreBackup stores a user's backup snapshot.
type StoreBackup struct {
	Request *SignedBackupRequest
}

func (IssueOutput) itemName() string { return "IssueOutput" }
func (SubmitShare) itemName() string { return "SubmitShare" }
func (RedeemNote) itemName() string  { return "RedeemNote" }
func (StoreBackup) itemName() string { return "StoreBackup" }

// Batch is the ordered list of items agreed on by consensus for one
// epoch. Every peer applies the same batches in the same order.
type Batch struct {
	Epoch uint64
	Items []Item
}

// ItemStatus is the result of applying one item.
type ItemStatus uint8

const (
	// ItemAccepted means the item changed state.
	ItemAccepted ItemStatus = iota
	// ItemRejected means the item broke a rule. Err holds the RuleError.
	ItemRejected
	// ItemIgnored means the item was valid but had no effect, such as a
	// stale backup or a share for an output that is already decided.
	ItemIgnored
)

var itemStatusStrings = map[ItemStatus]string{
	ItemAccepted: "accepted",
	ItemRejected: "rejected",
	ItemIgnored:  "ignored",
}

func (s ItemStatus) String() string {
	if str, ok := itemStatusStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown ItemStatus (%d)", int(s))
}

// ItemResult is the result of one item. Outcome is set when a share item
// decided its output or found it already decided.
type ItemResult struct {
	Status  ItemStatus
	Err     error
	Outcome *OutputOutcome
}

// BatchResult holds one ItemResult per item, in order. Skipped is set if
// the epoch had already been applied and nothing was done.
type BatchResult struct {
	Epoch   uint64
	Skipped bool
	Items   []ItemResult
}

// OutcomeNotification is the data of NTOutputFinalized and NTOutputFailed.
type OutcomeNotification struct {
	OutPoint types.OutPoint
	Outcome  *OutputOutcome
}
