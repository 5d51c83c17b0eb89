/*
store.go - Persistence contracts for the ledger store

PURPOSE:
  The engine talks to the ledger store only through these interfaces.
  The store is a thin paginated data service: no retries, no caching.
  Failures propagate to the caller.

KEY INTERFACES:
  Store:      account reads/writes and paginated transaction scans
  SweepStore: owner enumeration and due-transaction scans for the sweeper
  DeltaStore: atomic increment used by the incremental path
  RunStore:   sweep run records
  Mutator:    ledger CRUD done by the surrounding application

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/warp/ledger-sync/ledger SweepStore,DeltaStore,RunStore

// Store is the ledger store adapter the recomputation function reads and writes.
type Store interface {
	// ListTransactionsForAccount returns one page of the account's transactions,
	// ordered by id. An empty cursor starts at the beginning.
	ListTransactionsForAccount(ctx context.Context, accountID, cursor string, limit int) (TransactionPage, error)

	// GetAccount returns ErrAccountNotFound when the id does not resolve.
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// UpdateAccount applies patch. Returns ErrAccountNotFound when the id does not resolve.
	UpdateAccount(ctx context.Context, accountID string, patch AccountPatch) error

	// ListAccountsForUser returns every account owned by userID.
	ListAccountsForUser(ctx context.Context, userID string) ([]Account, error)
}

// SweepStore extends Store with the scans the due-transaction sweeper needs.
type SweepStore interface {
	Store

	// ListUserIDs pages through the distinct owners of accounts, ordered by id.
	ListUserIDs(ctx context.Context, cursor string, limit int) (IDPage, error)

	// ListDueTransactionsForUser pages through the user's transactions that have an
	// account, have no credit card, and are dated on or before until.
	ListDueTransactionsForUser(ctx context.Context, userID string, until time.Time, cursor string, limit int) (TransactionPage, error)
}

// DeltaWrite is one atomic incremental update.
type DeltaWrite struct {
	AccountID     string
	TransactionID string
	Delta         decimal.Decimal
	At            time.Time
}

// DeltaStore is the atomic-increment primitive the incremental path requires.
type DeltaStore interface {
	Store

	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)

	// ApplyDelta adds Delta to the account balance, appends TransactionID to the
	// synced trail if absent, stamps UpdatedAt and marks the transaction completed.
	// All of it happens as one unit.
	ApplyDelta(ctx context.Context, w DeltaWrite) error
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

const (
	RunRunning             = "running"
	RunCompleted           = "completed"
	RunCompletedWithErrors = "completed_with_errors"
	RunFailed              = "failed"
)

// SweepRun records one pass of the sweeper.
type SweepRun struct {
	ID          string
	Cutoff      time.Time // inclusive upper bound (end of day)
	Status      string
	Users       int
	Accounts    int
	Recomputed  int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// RunStore persists sweep runs.
type RunStore interface {
	SaveSweepRun(ctx context.Context, run SweepRun) error

	// LastCompletedSweep returns nil, nil when no run has completed cleanly.
	// Backs the sweep status endpoint.
	LastCompletedSweep(ctx context.Context) (*SweepRun, error)

	// ListSweepRuns returns runs newest first, optionally filtered by status.
	ListSweepRuns(ctx context.Context, status string) ([]SweepRun, error)
}

// Mutator is the CRUD surface of the surrounding application.
// The engine never calls it; tests and the demo webhook do.
type Mutator interface {
	SaveAccount(ctx context.Context, a Account) error
	SaveTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, transactionID string) error
}

// FullStore is what every concrete ledger store implements.
type FullStore interface {
	SweepStore
	DeltaStore
	RunStore
	Mutator
}

// =============================================================================
// PAGINATION HELPERS
// =============================================================================

// ForEachTransaction scans every page of an account's transactions.
func ForEachTransaction(ctx context.Context, s Store, accountID string, pageSize int, fn func(Transaction) error) error {
	if pageSize <= 0 {
		pageSize = DefaultTransactionPageSize
	}
	cursor := ""
	for {
		page, err := s.ListTransactionsForAccount(ctx, accountID, cursor, pageSize)
		if err != nil {
			return err
		}
		for _, tx := range page.Transactions {
			if err := fn(tx); err != nil {
				return err
			}
		}
		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}
