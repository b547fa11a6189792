// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"

	"github.com/project-illium/mintd/mint"
	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/types"
)

type Audit struct {
	opts *options
}

func (x *Audit) Execute(args []string) error {
	m, closeFn, err := openMint(x.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := m.Audit()
	if err != nil {
		return err
	}
	return printJSON(x.opts.out, report)
}

type LastEpoch struct {
	opts *options
}

func (x *LastEpoch) Execute(args []string) error {
	m, closeFn, err := openMint(x.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	epoch, found, err := m.LastEpoch()
	if err != nil {
		return err
	}
	return printJSON(x.opts.out, struct {
		Epoch uint64 `json:"epoch"`
		Found bool   `json:"found"`
	}{epoch, found})
}

type Dump struct {
	Namespace string `short:"n" long:"namespace" description:"The namespace to dump" required:"true"`
	opts      *options
}

func (x *Dump) Execute(args []string) error {
	tag, ok := repo.NamespaceFromName(x.Namespace)
	if !ok {
		return fmt.Errorf("unknown namespace %q", x.Namespace)
	}
	m, closeFn, err := openMint(x.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := m.Dump(tag)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []mint.Entry{}
	}
	return printJSON(x.opts.out, entries)
}

type GetOutcome struct {
	OutPoint string `short:"o" long:"outpoint" description:"The output in txid:index format" required:"true"`
	opts     *options
}

func (x *GetOutcome) Execute(args []string) error {
	op, err := types.NewOutPointFromString(x.OutPoint)
	if err != nil {
		return err
	}
	m, closeFn, err := openMint(x.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	status, err := m.Status(op)
	if err != nil {
		return err
	}
	outcome, err := m.Outcome(op)
	if err != nil {
		return err
	}
	return printJSON(x.opts.out, struct {
		Status  mint.OutcomeStatus  `json:"status"`
		Outcome *mint.OutputOutcome `json:"outcome,omitempty"`
	}{status, outcome})
}

type GetPendingShares struct {
	OutPoint string `short:"o" long:"outpoint" description:"The output in txid:index format" required:"true"`
	opts     *options
}

func (x *GetPendingShares) Execute(args []string) error {
	op, err := types.NewOutPointFromString(x.OutPoint)
	if err != nil {
		return err
	}
	m, closeFn, err := openMint(x.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	shares, err := m.PendingShares(op)
	if err != nil {
		return err
	}
	return printJSON(x.opts.out, shares)
}

type GetProposedShares struct {
	opts *options
}

func (x *GetProposedShares) Execute(args []string) error {
	m, closeFn, err := openMint(x.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	shares, err := m.ProposedShares()
	if err != nil {
		return err
	}
	return printJSON(x.opts.out, shares)
}

type IsSpent struct {
	Nonce string `long:"nonce" description:"The note nonce in hex" required:"true"`
	opts  *options
}

func (x *IsSpent) Execute(args []string) error {
	nonce, err := types.NewNonceFromString(x.Nonce)
	if err != nil {
		return err
	}
	m, closeFn, err := openMint(x.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	spent, err := m.IsSpent(nonce)
	if err != nil {
		return err
	}
	return printJSON(x.opts.out, struct {
		Spent bool `json:"spent"`
	}{spent})
}

type GetBackup struct {
	ID   string `long:"id" description:"The backup id in hex" required:"true"`
	opts *options
}

func (x *GetBackup) Execute(args []string) error {
	id, err := types.NewBackupIDFromString(x.ID)
	if err != nil {
		return err
	}
	m, closeFn, err := openMint(x.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	snapshot, err := m.LatestBackup(id)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return errors.New("no backup stored for id")
	}
	return printJSON(x.opts.out, snapshot)
}
