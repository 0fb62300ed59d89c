package payout

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline and the store backends.
var (
	// Store errors
	ErrNotFound      = errors.New("payment not found")
	ErrStateConflict = errors.New("payment is not in the required state")
	ErrStoreClosed   = errors.New("payment store is closed")

	// Pipeline errors
	ErrPipelineWedged = errors.New("pipeline is wedged on a fatal error")
	ErrNoSequence     = errors.New("sequence cursor is not initialized")
)

// TransientError marks a failure that is expected to clear on its own:
// network faults, ledger busy responses, store timeouts. The driver logs it
// and retries the work on the next tick.
type TransientError struct {
	Op        string
	PaymentID int64 // 0 when not tied to a row
	Err       error
}

func (e *TransientError) Error() string {
	if e.PaymentID != 0 {
		return fmt.Sprintf("%s: payment %d: %v", e.Op, e.PaymentID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable. PaymentID may be 0.
func NewTransientError(op string, paymentID int64, err error) *TransientError {
	return &TransientError{Op: op, PaymentID: paymentID, Err: err}
}

// IsTransient reports whether err is retryable on the next tick.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ResignError signals that the offending row's sequence window is poisoned:
// the ledger will never accept the artifact as signed, so every later
// in-flight row must be demoted and re-signed with fresh sequence numbers.
type ResignError struct {
	Row *Payment

	// DemoteRow is true when the offending row itself must go back to
	// Pending (rejected before consuming its sequence, or lost). It is
	// false when the row stays where it is - errored or aborted - and only
	// the trailing window is cleared.
	DemoteRow bool

	Reason string
}

func (e *ResignError) Error() string {
	return fmt.Sprintf("payment %d requires resign: %s", e.Row.ID, e.Reason)
}

// AsResign extracts a ResignError from err's chain.
func AsResign(err error) (*ResignError, bool) {
	var re *ResignError
	ok := errors.As(err, &re)
	return re, ok
}

// FatalError wedges the pipeline. It is held in the driver's fatal slot and
// re-surfaced on every tick until the operator aborts the associated row.
type FatalError struct {
	PaymentID int64 // 0 when no row is associated
	Err       error
}

func (e *FatalError) Error() string {
	if e.PaymentID != 0 {
		return fmt.Sprintf("fatal: payment %d: %v", e.PaymentID, e.Err)
	}
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func (e *FatalError) Is(target error) bool {
	return target == ErrPipelineWedged
}

// ValidationError is raised synchronously at the payment-creation boundary
// and never enters the pipeline.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a creation-boundary validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PaymentError attaches a row reference to an otherwise opaque failure so
// that fatal promotion can park the right row.
type PaymentError struct {
	PaymentID int64
	Op        string
	Err       error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: payment %d: %v", e.Op, e.PaymentID, e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// PaymentIDOf returns the row reference carried by err, if any.
func PaymentIDOf(err error) (int64, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.PaymentID, true
	}
	var te *TransientError
	if errors.As(err, &te) && te.PaymentID != 0 {
		return te.PaymentID, true
	}
	var fe *FatalError
	if errors.As(err, &fe) && fe.PaymentID != 0 {
		return fe.PaymentID, true
	}
	return 0, false
}
