// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"errors"
	"fmt"

	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/types"
)

// ErrHalted is returned by ApplyBatch after a fatal error. The node must be
// restarted (and possibly repaired) before it can apply batches again.
var ErrHalted = errors.New("mint halted")

// ErrReadOnly is returned by ApplyBatch on a mint opened with ReadOnly.
var ErrReadOnly = errors.New("mint opened read only")

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// CorruptionError is returned when a stored key or value cannot be
// decoded. It is never retried.
type CorruptionError struct {
	Tag byte
	Key string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt %s entry %s: %s", repo.NamespaceName(e.Tag), e.Key, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// InvalidShareError is returned by a Combiner when one or more shares do
// not verify. Peers names the culprits.
type InvalidShareError struct {
	Peers  []types.PeerID
	Reason string
}

func (e *InvalidShareError) Error() string {
	return fmt.Sprintf("invalid signature shares from peers %v: %s", e.Peers, e.Reason)
}

type ErrorCode int

const (
	ErrDoubleSpend ErrorCode = iota
	ErrUnknownPeer
	ErrOutputExists
	ErrInvalidBackupSignature
	ErrBackupTooLarge
	ErrUnknownItem
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDoubleSpend:            "ErrDoubleSpend",
	ErrUnknownPeer:            "ErrUnknownPeer",
	ErrOutputExists:           "ErrOutputExists",
	ErrInvalidBackupSignature: "ErrInvalidBackupSignature",
	ErrBackupTooLarge:         "ErrBackupTooLarge",
	ErrUnknownItem:            "ErrUnknownItem",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation. It is used to indicate that
// an item in a batch was rejected. The caller can use type assertions to
// determine if a failure was specifically due to a rule violation and
// access the ErrorCode field to ascertain the specific reason.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human-readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates an RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// ErrorIs returns whether err is a RuleError with the given code.
func ErrorIs(err error, code ErrorCode) bool {
	var ruleErr RuleError
	if errors.As(err, &ruleErr) && ruleErr.ErrorCode == code {
		return true
	}
	return false
}

func isRuleError(err error) bool {
	var ruleErr RuleError
	return errors.As(err, &ruleErr)
}

// isFatal returns whether the error means the persisted state can no
// longer be trusted.
func isFatal(err error) bool {
	var (
		assertErr     AssertError
		corruptionErr *CorruptionError
	)
	return errors.As(err, &assertErr) || errors.As(err, &corruptionErr)
}
