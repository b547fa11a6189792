// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"context"
	"fmt"

	"github.com/ipfs/go-datastore"
	"github.com/project-illium/mintd/types"
)

// AuditItemKind selects the variant of an AuditItemKey.
type AuditItemKind uint8

const (
	// AuditIssuance is the amount issued for one output.
	AuditIssuance AuditItemKind = iota
	// AuditIssuanceTotal is the running sum of all issuance items.
	AuditIssuanceTotal
	// AuditRedemption is the amount redeemed by one note.
	AuditRedemption
	// AuditRedemptionTotal is the running sum of all redemption items.
	AuditRedemptionTotal
)

var auditItemKindStrings = map[AuditItemKind]string{
	AuditIssuance:        "Issuance",
	AuditIssuanceTotal:   "IssuanceTotal",
	AuditRedemption:      "Redemption",
	AuditRedemptionTotal: "RedemptionTotal",
}

func (k AuditItemKind) String() string {
	if s, ok := auditItemKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown AuditItemKind (%d)", int(k))
}

func (k AuditItemKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AuditItemKey identifies an entry in the audit ledger. OutPoint is set
// for issuance items and Nonce for redemption items.
type AuditItemKey struct {
	Kind     AuditItemKind   `json:"kind"`
	OutPoint *types.OutPoint `json:"outpoint,omitempty"`
	Nonce    *types.Nonce    `json:"nonce,omitempty"`
}

func IssuanceKey(outPoint types.OutPoint) AuditItemKey {
	return AuditItemKey{Kind: AuditIssuance, OutPoint: &outPoint}
}

func IssuanceTotalKey() AuditItemKey {
	return AuditItemKey{Kind: AuditIssuanceTotal}
}

func RedemptionKey(nonce types.Nonce) AuditItemKey {
	return AuditItemKey{Kind: AuditRedemption, Nonce: &nonce}
}

func RedemptionTotalKey() AuditItemKey {
	return AuditItemKey{Kind: AuditRedemptionTotal}
}

// AuditTotals are the running issuance and redemption totals.
type AuditTotals struct {
	Issued   types.Amount `json:"issued"`
	Redeemed types.Amount `json:"redeemed"`
}

// Solvent returns whether the mint has issued at least as much as it has
// redeemed.
func (t AuditTotals) Solvent() bool {
	return t.Issued >= t.Redeemed
}

// AuditReport is the result of reconciling the whole ledger against its
// running totals.
type AuditReport struct {
	Totals        AuditTotals  `json:"totals"`
	IssuanceSum   types.Amount `json:"issuanceSum"`
	RedemptionSum types.Amount `json:"redemptionSum"`
	Issuances     int          `json:"issuances"`
	Redemptions   int          `json:"redemptions"`
	Consistent    bool         `json:"consistent"`
	Solvent       bool         `json:"solvent"`
}

// AuditLedger records every issuance and redemption and keeps running
// totals of both. Items are written in the same transaction as the state
// change they account for.
type AuditLedger struct {
	schema AuditItemSchema
}

// recordIssuance adds the amount issued for an output. Recording the same
// output again with the same amount is a no-op. A different amount means
// the output was decided twice.
func (al *AuditLedger) recordIssuance(dbtx datastore.Txn, outPoint types.OutPoint, amount types.Amount) error {
	return al.record(dbtx, IssuanceKey(outPoint), IssuanceTotalKey(), amount)
}

// recordRedemption adds the amount redeemed by a note. It must share a
// transaction with the spend of the nonce.
func (al *AuditLedger) recordRedemption(dbtx datastore.Txn, nonce types.Nonce, amount types.Amount) error {
	return al.record(dbtx, RedemptionKey(nonce), RedemptionTotalKey(), amount)
}

func (al *AuditLedger) record(dbtx datastore.Txn, item, total AuditItemKey, amount types.Amount) error {
	existing, found, err := dsGet(dbtx, al.schema, item)
	if err != nil {
		return err
	}
	if found {
		if existing != amount {
			return AssertError(fmt.Sprintf("audit item %s recorded as %d, now %d", al.describe(item), existing, amount))
		}
		return nil
	}

	sum, _, err := dsGet(dbtx, al.schema, total)
	if err != nil {
		return err
	}
	newSum, ok := sum.Add(amount)
	if !ok {
		return AssertError(fmt.Sprintf("audit total %s overflows", total.Kind))
	}
	if err := dsPut(dbtx, al.schema, item, amount); err != nil {
		return err
	}
	return dsPut(dbtx, al.schema, total, newSum)
}

func (al *AuditLedger) describe(k AuditItemKey) string {
	switch {
	case k.OutPoint != nil:
		return fmt.Sprintf("%s(%s)", k.Kind, k.OutPoint)
	case k.Nonce != nil:
		return fmt.Sprintf("%s(%s)", k.Kind, k.Nonce)
	default:
		return k.Kind.String()
	}
}

// fetchTotals reads both totals. Pass a transaction for a consistent
// snapshot.
func (al *AuditLedger) fetchTotals(r datastore.Read) (AuditTotals, error) {
	issued, _, err := dsGet(r, al.schema, IssuanceTotalKey())
	if err != nil {
		return AuditTotals{}, err
	}
	redeemed, _, err := dsGet(r, al.schema, RedemptionTotalKey())
	if err != nil {
		return AuditTotals{}, err
	}
	return AuditTotals{Issued: issued, Redeemed: redeemed}, nil
}

// audit sums every item of the ledger and compares the sums against the
// running totals.
func (al *AuditLedger) audit(r datastore.Read) (*AuditReport, error) {
	totals, err := al.fetchTotals(r)
	if err != nil {
		return nil, err
	}
	report := &AuditReport{Totals: totals}

	var overflow bool
	report.IssuanceSum, report.Issuances, overflow, err = al.sumKind(r, AuditIssuance)
	if err != nil {
		return nil, err
	}
	consistent := !overflow
	report.RedemptionSum, report.Redemptions, overflow, err = al.sumKind(r, AuditRedemption)
	if err != nil {
		return nil, err
	}
	consistent = consistent && !overflow

	report.Consistent = consistent &&
		report.IssuanceSum == totals.Issued &&
		report.RedemptionSum == totals.Redeemed
	report.Solvent = totals.Solvent()
	return report, nil
}

func (al *AuditLedger) sumKind(r datastore.Read, kind AuditItemKind) (sum types.Amount, count int, overflow bool, err error) {
	cursor, err := dsRange(r, al.schema, al.schema.kindPrefix(kind))
	if err != nil {
		return 0, 0, false, err
	}
	defer cursor.Close()

	for cursor.Next() {
		count++
		next, ok := sum.Add(cursor.Value())
		if !ok {
			overflow = true
			continue
		}
		sum = next
	}
	return sum, count, overflow, cursor.Err()
}

// Totals returns the issuance and redemption totals read from a single
// snapshot of the store.
func (m *Mint) Totals() (AuditTotals, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	dbtx, err := m.ds.NewTransaction(context.Background(), true)
	if err != nil {
		return AuditTotals{}, err
	}
	defer dbtx.Discard(context.Background())

	return m.audit.fetchTotals(dbtx)
}

// Audit reconciles every ledger item against the running totals.
func (m *Mint) Audit() (*AuditReport, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	dbtx, err := m.ds.NewTransaction(context.Background(), true)
	if err != nil {
		return nil, err
	}
	defer dbtx.Discard(context.Background())

	return m.audit.audit(dbtx)
}
