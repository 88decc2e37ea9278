/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match on the sentinels with errors.Is; the structured types carry
  the context needed to render a useful message.

ERROR CATEGORIES:
  1. Validation  - InvalidAmount, DuplicateItemNumber, ItemNotFound
  2. Lifecycle   - InvalidTransition, LedgerLocked
  3. Consistency - ReconciliationMismatch (never expected; fatal to the mutation)
  4. Concurrency - StaleWrite (reload and retry)

None of these leave an application half-updated: every mutation is computed
on a scratch copy that is only swapped in after verification passes.

SEE ALSO:
  - application.go: where mutations are guarded and verified
  - api/handlers.go: maps ErrorKind to HTTP status codes
*/
package aia

import (
	"errors"
	"fmt"
	"strconv"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a monetary or percentage input is
	// malformed or violates its sign/range contract.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidLineItem is returned when a line item's identity fields are malformed.
	ErrInvalidLineItem = errors.New("invalid line item")

	// ErrInvalidApplication is returned when application-level input is malformed.
	ErrInvalidApplication = errors.New("invalid application")

	// ErrDuplicateItemNumber is returned when an item number already exists in the ledger.
	ErrDuplicateItemNumber = errors.New("duplicate item number")

	// ErrItemNotFound is returned when an item number is not in the ledger.
	ErrItemNotFound = errors.New("line item not found")

	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrLedgerLocked is returned when a mutation is attempted on an approved or paid application.
	ErrLedgerLocked = errors.New("ledger locked")

	// ErrNotFinalized is returned when rolling forward from an application
	// that is still editable.
	ErrNotFinalized = errors.New("application not finalized")

	// ErrReconciliationMismatch is returned when the summary disagrees with its ledger.
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")

	// ErrStaleWrite is returned when a commit carries an outdated version stamp.
	ErrStaleWrite = errors.New("stale write")

	// ErrApplicationNotFound is returned when no application has the given id.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrDuplicateApplication is returned when (project, application number) is already taken.
	ErrDuplicateApplication = errors.New("duplicate application number")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError describes a rejected monetary or percentage input.
type InvalidAmountError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid amount %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid amount for %s (%s): %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// InvalidTransitionError describes a rejected status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// LedgerLockedError is returned by the mutation guard.
type LedgerLockedError struct {
	Status Status
}

func (e *LedgerLockedError) Error() string {
	return fmt.Sprintf("ledger locked: application is %s", e.Status)
}

func (e *LedgerLockedError) Unwrap() error { return ErrLedgerLocked }

// ReconciliationMismatchError reports the first figure that failed verification.
// ItemNumber is empty for summary-level figures. Money figures use Stored and
// Computed; a percentComplete mismatch uses StoredPercent and ComputedPercent
// and leaves the money fields zero.
type ReconciliationMismatchError struct {
	ItemNumber      string
	Field           string
	Stored          Money
	Computed        Money
	StoredPercent   *Percent
	ComputedPercent *Percent
}

// IsPercent reports whether the mismatch is on a percentage figure.
func (e *ReconciliationMismatchError) IsPercent() bool {
	return e.StoredPercent != nil && e.ComputedPercent != nil
}

func (e *ReconciliationMismatchError) Error() string {
	stored, computed := strconv.FormatInt(e.Stored.Cents(), 10), strconv.FormatInt(e.Computed.Cents(), 10)
	if e.IsPercent() {
		stored, computed = e.StoredPercent.String()+"%", e.ComputedPercent.String()+"%"
	}
	if e.ItemNumber != "" {
		return fmt.Sprintf("reconciliation mismatch on item %s %s: stored %s, computed %s",
			e.ItemNumber, e.Field, stored, computed)
	}
	return fmt.Sprintf("reconciliation mismatch on %s: stored %s, computed %s",
		e.Field, stored, computed)
}

func (e *ReconciliationMismatchError) Unwrap() error { return ErrReconciliationMismatch }

// StaleWriteError reports the version a commit expected versus the stored one.
type StaleWriteError struct {
	ID       ApplicationID
	Expected Version
	Actual   Version
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("stale write on application %s: expected version %d, stored version %d",
		e.ID, e.Expected, e.Actual)
}

func (e *StaleWriteError) Unwrap() error { return ErrStaleWrite }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ErrorKind classifies errors at the boundary of a mutation call.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindLifecycle   ErrorKind = "lifecycle"
	KindConsistency ErrorKind = "consistency"
	KindConcurrency ErrorKind = "concurrency"
	KindInternal    ErrorKind = "internal"
)

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidLineItem),
		errors.Is(err, ErrInvalidApplication),
		errors.Is(err, ErrDuplicateItemNumber):
		return KindValidation
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrApplicationNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrLedgerLocked),
		errors.Is(err, ErrNotFinalized):
		return KindLifecycle
	case errors.Is(err, ErrReconciliationMismatch):
		return KindConsistency
	case errors.Is(err, ErrStaleWrite), errors.Is(err, ErrDuplicateApplication):
		return KindConcurrency
	default:
		return KindInternal
	}
}

// IsRetryable returns true if reloading and retrying might succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConcurrency
}

// IsClientError returns true if the error is due to invalid client input
// or a request that conflicts with the application's status.
func IsClientError(err error) bool {
	k := KindOf(err)
	return k == KindValidation || k == KindLifecycle
}

// IsNotFound returns true if the error indicates a missing application or item.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
