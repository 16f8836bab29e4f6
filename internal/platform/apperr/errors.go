// Package apperr holds the error taxonomy shared by the ledger, subledger and
// settlement modules.
//
// Every typed error matches one sentinel through errors.Is, so callers can
// branch on the kind without caring about the payload:
//
//	if errors.Is(err, apperr.ErrUnbalanced) { ... }
//
// and inspect details with errors.As when they need them.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinels, one per error kind.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUnbalanced          = errors.New("unbalanced voucher")
	ErrUnknownAccount      = errors.New("unknown account")
	ErrUnknownContact      = errors.New("unknown contact")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrIntegrityViolation  = errors.New("integrity violation")
	ErrNotFound            = errors.New("not found")
)

// ValidationError reports malformed input: negative amounts, missing fields,
// cyclic hierarchies, bad report windows.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnbalancedVoucherError is returned when debits and credits of a voucher differ.
// It is never auto-corrected.
type UnbalancedVoucherError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *UnbalancedVoucherError) Error() string {
	return fmt.Sprintf("imbalance: debit=%s, credit=%s", e.TotalDebit, e.TotalCredit)
}

func (e *UnbalancedVoucherError) Is(target error) bool { return target == ErrUnbalanced }

// Difference returns debit minus credit.
func (e *UnbalancedVoucherError) Difference() decimal.Decimal {
	return e.TotalDebit.Sub(e.TotalCredit)
}

// UnknownAccountError is a dangling account reference.
type UnknownAccountError struct {
	AccountID int64
	Code      string
}

func (e *UnknownAccountError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("account not found: %s", e.Code)
	}
	return fmt.Sprintf("account not found: %d", e.AccountID)
}

func (e *UnknownAccountError) Is(target error) bool {
	return target == ErrUnknownAccount || target == ErrNotFound
}

// UnknownContactError is a dangling customer/supplier reference.
type UnknownContactError struct {
	Contact string
}

func (e *UnknownContactError) Error() string {
	return fmt.Sprintf("contact not found: %s", e.Contact)
}

func (e *UnknownContactError) Is(target error) bool {
	return target == ErrUnknownContact || target == ErrNotFound
}

// ConcurrencyConflictError signals a lost update on a versioned row. Callers
// should retry the whole operation.
type ConcurrencyConflictError struct {
	Entity string
	ID     int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("optimistic lock conflict: %s %d modified by others", e.Entity, e.ID)
}

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

// IntegrityViolationError means a recomputed aggregate disagrees with what was
// stored or with an accounting identity. It is surfaced, never repaired.
type IntegrityViolationError struct {
	Check    string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("integrity violation in %s: expected %s, got %s", e.Check, e.Expected, e.Actual)
}

func (e *IntegrityViolationError) Is(target error) bool { return target == ErrIntegrityViolation }

// NotFound wraps ErrNotFound with the entity name and id.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// IsRetryable reports whether the operation can be retried as a whole.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnbalanced) ||
		errors.Is(err, ErrNotFound)
}
