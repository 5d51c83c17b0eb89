/*
errors.go - Error types for the synchronization engine

ERROR CATEGORIES:
  1. Not applicable - missing account/transaction; skipped, never raised to users
  2. Validation     - malformed trigger or notification; rejected synchronously
  3. Transient      - store/lock failures; propagate, the next trigger heals

There is no retry loop in the engine. Recomputation is idempotent, so the
next notification or the daily sweep repairs a failed write.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when an account id no longer resolves.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned when a transaction id no longer resolves.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidTrigger is returned for a manual trigger without a target.
	ErrInvalidTrigger = errors.New("invalid trigger: userId or accountId is required")

	// ErrInvalidNotification is returned for a change notification that cannot be dispatched.
	ErrInvalidNotification = errors.New("invalid change notification")

	// ErrPreviousAmountRequired is returned by the delta path when an update
	// arrives without the amount it replaces.
	ErrPreviousAmountRequired = errors.New("previous amount required for incremental update")

	// ErrRecomputeRequired is returned by the delta path for changes it cannot
	// express as an increment (deletes, reassignments, completed rows moved to the future).
	ErrRecomputeRequired = errors.New("change requires full recomputation")

	// ErrLockTimeout is returned when an account lock cannot be acquired in time.
	ErrLockTimeout = errors.New("timed out acquiring account lock")

	// ErrStoreRequired is returned when a component needs a store capability that was not wired.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// AccountError attaches the account and operation to a failure.
type AccountError struct {
	AccountID string
	Op        string
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("%s account %s: %v", e.Op, e.AccountID, e.Err)
}

func (e *AccountError) Unwrap() error { return e.Err }

func accountErr(op, accountID string, err error) error {
	if err == nil {
		return nil
	}
	return &AccountError{AccountID: accountID, Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotApplicable reports whether err means the target vanished and the work can be skipped.
func IsNotApplicable(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrTransactionNotFound)
}

// IsClientError reports whether err was caused by bad input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTrigger) || errors.Is(err, ErrInvalidNotification)
}

// IsTransient reports whether a later trigger may succeed.
func IsTransient(err error) bool {
	return err != nil && !IsNotApplicable(err) && !IsClientError(err)
}
