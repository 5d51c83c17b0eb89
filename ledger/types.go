/*
Package ledger provides the balance synchronization engine.

PURPOSE:
  Keeps every account's cached balance consistent with the transaction
  records that reference it. The transaction set is the source of truth;
  Account.Balance is a cache that is rebuilt from it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: the cached balance plus the ids folded into it
  - Transaction: unsigned magnitude + direction, optional account/card links
  - Eligible: has an account, has no credit card, and is due
  - Contribution: +amount for "in", -amount for "out"

DESIGN PRINCIPLES:
  1. Full recomputation is the system of record (recompute.go)
  2. Precision: amounts use decimal.Decimal, never float64
  3. Only this package writes Balance, SyncedTransactionIDs and UpdatedAt

SEE ALSO:
  - recompute.go: the fold over all eligible transactions
  - reactor.go: change notifications -> recomputation
  - sweeper.go: scheduled pass for transactions that became due
  - delta.go: incremental alternate path
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTION / STATUS
// =============================================================================

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (d Direction) Valid() bool { return d == DirectionIn || d == DirectionOut }

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Settleable reports whether the delta path may still fold this status.
func (s Status) Settleable() bool { return s == StatusPending || s == StatusFailed }

// =============================================================================
// ACCOUNT
// =============================================================================

// Account is the cached balance of a ledger account.
// Balance equals Fold over its eligible transactions as of UpdatedAt.
type Account struct {
	ID                   string
	UserID               string
	Balance              decimal.Decimal
	SyncedTransactionIDs []string
	UpdatedAt            time.Time
}

// AccountPatch carries the fields the engine owns. Nil fields are left alone.
type AccountPatch struct {
	Balance              *decimal.Decimal
	SyncedTransactionIDs []string
	UpdatedAt            *time.Time
}

// =============================================================================
// TRANSACTION
// =============================================================================

type Transaction struct {
	ID           string
	AccountID    string // empty: invisible to the engine
	CreditCardID string // non-empty: excluded from account balances
	UserID       string
	Amount       decimal.Decimal // magnitude, never negative once normalized
	Direction    Direction
	Date         time.Time
	Status       Status
}

// Contribution is the signed amount this transaction adds to its account.
func (t Transaction) Contribution() decimal.Decimal {
	return SignedAmount(t.Amount, t.Direction)
}

// HasAccount reports whether the transaction is linked to an account and not a card.
func (t Transaction) HasAccount() bool {
	return t.AccountID != "" && t.CreditCardID == ""
}

// Due reports whether the transaction's date is not after now.
func (t Transaction) Due(now time.Time) bool {
	return !t.Date.After(now)
}

// Eligible reports whether the transaction contributes to its account at now.
func (t Transaction) Eligible(now time.Time) bool {
	return t.HasAccount() && t.Due(now)
}

// SignedAmount converts magnitude + direction to a signed contribution.
func SignedAmount(amount decimal.Decimal, d Direction) decimal.Decimal {
	if d == DirectionOut {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

// NormalizeSigned maps the legacy signed-amount form onto magnitude + direction.
// An explicit direction wins; otherwise the sign of amount decides.
func NormalizeSigned(amount decimal.Decimal, d Direction) (decimal.Decimal, Direction) {
	if d.Valid() {
		return amount.Abs(), d
	}
	if amount.IsNegative() {
		return amount.Abs(), DirectionOut
	}
	return amount, DirectionIn
}

// =============================================================================
// PAGINATION
// =============================================================================

const (
	DefaultTransactionPageSize = 500
	DefaultUserPageSize        = 100
)

// TransactionPage is one page of a cursor scan. NextCursor is empty on the last page.
type TransactionPage struct {
	Transactions []Transaction
	NextCursor   string
}

// IDPage is one page of identifiers.
type IDPage struct {
	IDs        []string
	NextCursor string
}
