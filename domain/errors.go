package domain

import (
	"errors"
	"fmt"
)

// ErrKind classifies an error the way spec.md §7 enumerates them, so the
// HTTP boundary can map kind -> status code without string matching.
type ErrKind string

const (
	ErrValidation         ErrKind = "validation"
	ErrPaymentRequired    ErrKind = "payment_required"
	ErrVerificationFailed ErrKind = "verification_failed"
	ErrSettlementFailed   ErrKind = "settlement_failed"
	ErrNotFound           ErrKind = "not_found"
	ErrIllegalTransition  ErrKind = "illegal_transition"
	ErrLedger             ErrKind = "ledger"
)

// Error is the clearinghouse's user-facing error type. Internal invariant
// violations never become a domain.Error — they panic in registry, per
// spec.md §7's "impossible by construction" rule.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a domain.Error of the given kind.
func NewError(kind ErrKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a domain.Error of the given kind carrying an underlying
// cause (e.g. a transient RPC error surfaced as ErrLedger).
func Wrap(kind ErrKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrKind from err if it is (or wraps) a *Error,
// defaulting to ErrLedger for anything unrecognized — an opaque failure
// from a collaborator is treated as a ledger-side failure, never silently
// swallowed.
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrLedger
}
