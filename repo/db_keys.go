// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import "fmt"

// Namespace tags. Every entity stored by the mint lives under exactly one
// of these one byte tags and prefix scans never cross from one tag into
// another.
const (
	// NoteNonceTag is the namespace of spent note nonces.
	NoteNonceTag byte = 0x10
	// ProposedPartialSigTag is the namespace of our own signature shares
	// that have not yet been agreed on by consensus.
	ProposedPartialSigTag byte = 0x11
	// ReceivedPartialSigTag is the namespace of signature shares received
	// through consensus, keyed by outpoint then peer.
	ReceivedPartialSigTag byte = 0x12
	// OutputOutcomeTag is the namespace of finalized or failed outputs.
	OutputOutcomeTag byte = 0x13
	// MintAuditItemTag is the namespace of the issuance/redemption ledger.
	MintAuditItemTag byte = 0x14
	// EcashBackupTag is the namespace of user backup snapshots.
	EcashBackupTag byte = 0x15
	// ConsensusEpochTag holds the last consensus epoch that was applied.
	ConsensusEpochTag byte = 0x16
)

// MintDatastoreRoot is the root path segment all mint keys live under.
const MintDatastoreRoot = "/mint"

var namespaceNames = map[byte]string{
	NoteNonceTag:          "NoteNonce",
	ProposedPartialSigTag: "ProposedPartialSig",
	ReceivedPartialSigTag: "ReceivedPartialSig",
	OutputOutcomeTag:      "OutputOutcome",
	MintAuditItemTag:      "MintAuditItem",
	EcashBackupTag:        "EcashBackup",
	ConsensusEpochTag:     "ConsensusEpoch",
}

// Namespaces returns all namespace tags in ascending order.
func Namespaces() []byte {
	return []byte{
		NoteNonceTag,
		ProposedPartialSigTag,
		ReceivedPartialSigTag,
		OutputOutcomeTag,
		MintAuditItemTag,
		EcashBackupTag,
		ConsensusEpochTag,
	}
}

// NamespaceName returns the human-readable name of a tag.
func NamespaceName(tag byte) string {
	if s, ok := namespaceNames[tag]; ok {
		return s
	}
	return fmt.Sprintf("Unknown namespace (0x%02x)", tag)
}

// NamespaceFromName is the reverse of NamespaceName.
func NamespaceFromName(name string) (byte, bool) {
	for tag, s := range namespaceNames {
		if s == name {
			return tag, true
		}
	}
	return 0, false
}
