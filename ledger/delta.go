/*
delta.go - Incremental balance updates (alternate path)

PURPOSE:
  Adds a transaction's signed amount to the cached balance instead of
  rebuilding it. Cheaper than a full recompute, but only safe under three
  rules enforced here:

  1. Serialized: the account lock is held for the whole operation
  2. Atomic: the store increments in place (DeltaStore.ApplyDelta), the
     balance is never read, modified and written back by this code
  3. Gated on the account's synced trail: a row already listed in
     SyncedTransactionIDs is in the balance, whoever put it there (an
     earlier delta, a recompute, a sweep). A create for such a row does
     nothing; an update applies only the difference from the previous
     version.

  Anything that cannot be expressed as one increment returns
  ErrRecomputeRequired (or ErrPreviousAmountRequired) and the reactor
  falls back to Recomputer. The scheduled sweep recomputes every account
  with due transactions, so drift lasts until the next sweep at most.
*/
package ledger

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// DeltaResult describes one incremental application.
type DeltaResult struct {
	AccountID     string
	TransactionID string
	Delta         decimal.Decimal
	Applied       bool
	Reason        string
}

// DeltaApplier applies signed deltas to cached balances.
type DeltaApplier struct {
	store DeltaStore
	opts  Options
}

func NewDeltaApplier(store DeltaStore, opts Options) *DeltaApplier {
	return &DeltaApplier{store: store, opts: opts.withDefaults()}
}

// Apply folds a create or update notification into the account balance.
func (d *DeltaApplier) Apply(ctx context.Context, n Notification) (DeltaResult, error) {
	result := DeltaResult{AccountID: n.AccountID, TransactionID: n.TransactionID}

	switch {
	case n.ChangeType == ChangeDelete:
		return result, ErrRecomputeRequired
	case n.ChangeType == ChangeUpdate && n.reassigned():
		return result, ErrRecomputeRequired
	case n.ChangeType == ChangeUpdate && n.AccountID != "" && !n.hasAccount():
		return result, ErrRecomputeRequired
	case !n.hasAccount():
		result.Reason = "not linked to an account"
		return result, nil
	}

	unlock, err := d.opts.Locker.Lock(ctx, n.AccountID)
	if err != nil {
		return result, accountErr("lock", n.AccountID, err)
	}
	defer unlock()

	stored, err := d.store.GetTransaction(ctx, n.TransactionID)
	if err != nil {
		return result, accountErr("load transaction", n.AccountID, err)
	}
	if !stored.HasAccount() || stored.AccountID != n.AccountID {
		// The row moved since the notification was emitted.
		return result, ErrRecomputeRequired
	}

	account, err := d.store.GetAccount(ctx, stored.AccountID)
	if err != nil {
		return result, accountErr("load", stored.AccountID, err)
	}
	folded := slices.Contains(account.SyncedTransactionIDs, stored.ID)
	due := stored.Due(cutoff(d.opts.Clock, d.opts.Location))

	var delta decimal.Decimal
	switch {
	case folded && !due:
		// Moved into the future; it has to leave the balance.
		return result, ErrRecomputeRequired
	case folded && n.ChangeType == ChangeCreate:
		result.Reason = "already folded"
		return result, nil
	case folded:
		// The folded version is only known from the notification.
		if n.PreviousAmount == nil || !n.PreviousDirection.Valid() {
			return result, ErrPreviousAmountRequired
		}
		delta = stored.Contribution().Sub(SignedAmount(*n.PreviousAmount, n.PreviousDirection))
		if delta.IsZero() {
			result.Reason = "amount unchanged"
			return result, nil
		}
	case !due:
		result.Reason = "not yet due"
		return result, nil
	case stored.Status == StatusCompleted:
		// Settled elsewhere but missing from the trail.
		return result, ErrRecomputeRequired
	default:
		delta = stored.Contribution()
	}

	err = d.store.ApplyDelta(ctx, DeltaWrite{
		AccountID:     stored.AccountID,
		TransactionID: stored.ID,
		Delta:         delta,
		At:            d.opts.Clock(),
	})
	if err != nil {
		d.opts.Audit.LogError(stored.AccountID, stored.ID, err)
		return result, accountErr("apply delta", stored.AccountID, fmt.Errorf("transaction %s: %w", stored.ID, err))
	}

	d.opts.Audit.LogDelta(stored.AccountID, stored.ID, delta)
	result.Delta = delta
	result.Applied = true
	return result, nil
}
