/*
recompute.go - Full, idempotent balance rebuild

PURPOSE:
  Answers "what is this account's balance right now?" by folding every
  eligible transaction. Nothing from the previous cached balance is reused.

ALGORITHM:
  1. Lock the account (per-account serialization)
  2. Load the account
  3. Page through ALL of its transactions
  4. now = end of the current calendar day; skip card-linked and future-dated
  5. Sum +amount for "in", -amount for "out"; remember folded ids
  6. Write balance, synced ids and updatedAt as the LAST step

IDEMPOTENCE:
  For a fixed ledger and a fixed day the fold is deterministic. When the
  result equals what is stored, the write is skipped entirely, so two
  back-to-back calls leave a byte-identical account record.

FAILURES:
  Read errors abort before any write. Nothing partial is ever committed.
*/
package ledger

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// Options are shared by the engine components.
type Options struct {
	PageSize     int            // transaction page size, default 500
	UserPageSize int            // sweeper user page size, default 100
	Location     *time.Location // calendar used for "end of today", default time.Local
	Clock        Clock
	Locker       Locker
	Audit        *AuditLogger
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultTransactionPageSize
	}
	if o.UserPageSize <= 0 {
		o.UserPageSize = DefaultUserPageSize
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Locker == nil {
		o.Locker = NewKeyedMutex()
	}
	if o.Audit == nil {
		o.Audit = NewAuditLogger(nil)
	}
	return o
}

// =============================================================================
// FOLD
// =============================================================================

// FoldResult is the outcome of folding a transaction set.
type FoldResult struct {
	Balance   decimal.Decimal
	FoldedIDs []string
	Processed int
}

type folder struct {
	now time.Time
	res FoldResult
}

func newFolder(now time.Time) *folder {
	return &folder{now: now, res: FoldResult{Balance: decimal.Zero, FoldedIDs: []string{}}}
}

func (f *folder) add(tx Transaction) {
	f.res.Processed++
	if !tx.Eligible(f.now) {
		return
	}
	f.res.Balance = f.res.Balance.Add(tx.Contribution())
	f.res.FoldedIDs = append(f.res.FoldedIDs, tx.ID)
}

// Fold sums the contributions of the eligible transactions in txs at now.
func Fold(txs []Transaction, now time.Time) FoldResult {
	f := newFolder(now)
	for _, tx := range txs {
		f.add(tx)
	}
	return f.res
}

// =============================================================================
// RECOMPUTER
// =============================================================================

// RecomputeResult describes one recomputation.
type RecomputeResult struct {
	AccountID  string
	OldBalance decimal.Decimal
	Balance    decimal.Decimal
	Processed  int
	Folded     int
	Changed    bool
	UpdatedAt  time.Time
}

// Recomputer rebuilds cached balances from the ledger.
type Recomputer struct {
	store Store
	opts  Options
}

func NewRecomputer(store Store, opts Options) *Recomputer {
	return &Recomputer{store: store, opts: opts.withDefaults()}
}

// Recompute overwrites the account's balance with the fold of its eligible transactions.
func (r *Recomputer) Recompute(ctx context.Context, accountID string) (RecomputeResult, error) {
	if accountID == "" {
		return RecomputeResult{}, accountErr("recompute", accountID, ErrAccountNotFound)
	}

	unlock, err := r.opts.Locker.Lock(ctx, accountID)
	if err != nil {
		return RecomputeResult{}, accountErr("lock", accountID, err)
	}
	defer unlock()

	acct, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return RecomputeResult{}, accountErr("load", accountID, err)
	}

	now := cutoff(r.opts.Clock, r.opts.Location)
	f := newFolder(now)
	err = ForEachTransaction(ctx, r.store, accountID, r.opts.PageSize, func(tx Transaction) error {
		f.add(tx)
		return nil
	})
	if err != nil {
		log.Printf("[Recompute] Error reading transactions for %s: %v", accountID, err)
		return RecomputeResult{}, accountErr("scan", accountID, err)
	}

	result := RecomputeResult{
		AccountID:  accountID,
		OldBalance: acct.Balance,
		Balance:    f.res.Balance,
		Processed:  f.res.Processed,
		Folded:     len(f.res.FoldedIDs),
		UpdatedAt:  acct.UpdatedAt,
	}

	if acct.Balance.Equal(f.res.Balance) && sameIDs(acct.SyncedTransactionIDs, f.res.FoldedIDs) {
		r.opts.Audit.LogRecompute(accountID, acct.Balance, f.res.Balance, result.Processed, result.Folded, false)
		return result, nil
	}

	updatedAt := r.opts.Clock()
	err = r.store.UpdateAccount(ctx, accountID, AccountPatch{
		Balance:              &f.res.Balance,
		SyncedTransactionIDs: f.res.FoldedIDs,
		UpdatedAt:            &updatedAt,
	})
	if err != nil {
		log.Printf("[Recompute] Error writing balance for %s: %v", accountID, err)
		return RecomputeResult{}, accountErr("update", accountID, err)
	}

	result.Changed = true
	result.UpdatedAt = updatedAt
	r.opts.Audit.LogRecompute(accountID, acct.Balance, f.res.Balance, result.Processed, result.Folded, true)
	return result, nil
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
