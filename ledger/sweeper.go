/*
sweeper.go - Scheduled pass for transactions that became due

PURPOSE:
  A transaction dated tomorrow is excluded today. When the day arrives no
  ledger mutation fires, so nothing would fold it. The sweeper finds such
  transactions and recomputes their accounts.

  It is also the safety net for lost or failed notifications: every run
  scans the whole history up to the end of today, not only what became due
  since the previous run. A backdated row saved without a notification is
  folded by the next sweep. Accounts that are already correct are read but
  not written.

ALGORITHM:
  1. Cutoff = end of today
  2. Page through account owners (100 per page)
  3. For each owner, page through eligible transactions dated on or before
     the cutoff and collect the distinct account ids
  4. Recompute each affected account
  5. Persist the run

FAULT ISOLATION:
  A failure for one user or account is logged and counted, the sweep moves
  on. Only failing to list users or to persist the run aborts it.
*/
package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Sweeper recomputes accounts holding transactions that became due.
type Sweeper struct {
	store      SweepStore
	runs       RunStore // optional
	recomputer *Recomputer
	opts       Options
}

func NewSweeper(store SweepStore, runs RunStore, recomputer *Recomputer, opts Options) *Sweeper {
	return &Sweeper{store: store, runs: runs, recomputer: recomputer, opts: opts.withDefaults()}
}

// Run executes one sweep and returns its record.
func (s *Sweeper) Run(ctx context.Context) (SweepRun, error) {
	run := SweepRun{
		ID:        uuid.NewString(),
		Cutoff:    cutoff(s.opts.Clock, s.opts.Location),
		Status:    RunRunning,
		StartedAt: s.opts.Clock(),
	}

	if s.runs != nil {
		if err := s.runs.SaveSweepRun(ctx, run); err != nil {
			return run, fmt.Errorf("save sweep run: %w", err)
		}
	}

	log.Printf("[Sweeper] Run %s started, cutoff %s", run.ID, run.Cutoff.Format(time.RFC3339))

	accounts, err := s.collect(ctx, &run)
	if err != nil {
		return s.finish(ctx, run, err)
	}
	run.Accounts = len(accounts)

	for _, accountID := range accounts {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, run, err)
		}
		_, err := s.recomputer.Recompute(ctx, accountID)
		switch {
		case err == nil:
			run.Recomputed++
		case IsNotApplicable(err):
			log.Printf("[Sweeper] Skipping %s: %v", accountID, err)
		default:
			run.Failed++
			log.Printf("[Sweeper] Error recomputing %s: %v", accountID, err)
		}
	}

	return s.finish(ctx, run, nil)
}

// collect returns the distinct affected account ids in discovery order.
func (s *Sweeper) collect(ctx context.Context, run *SweepRun) ([]string, error) {
	seen := make(map[string]bool)
	var accounts []string

	cursor := ""
	for {
		page, err := s.store.ListUserIDs(ctx, cursor, s.opts.UserPageSize)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}

		for _, userID := range page.IDs {
			run.Users++
			ids, err := s.dueAccounts(ctx, userID, run.Cutoff)
			if err != nil {
				run.Failed++
				log.Printf("[Sweeper] Error scanning user %s: %v", userID, err)
				continue
			}
			for _, id := range ids {
				if !seen[id] {
					seen[id] = true
					accounts = append(accounts, id)
				}
			}
		}

		if page.NextCursor == "" {
			return accounts, nil
		}
		cursor = page.NextCursor
	}
}

func (s *Sweeper) dueAccounts(ctx context.Context, userID string, until time.Time) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	cursor := ""
	for {
		page, err := s.store.ListDueTransactionsForUser(ctx, userID, until, cursor, s.opts.PageSize)
		if err != nil {
			return nil, err
		}
		for _, tx := range page.Transactions {
			if tx.Eligible(until) && !seen[tx.AccountID] {
				seen[tx.AccountID] = true
				ids = append(ids, tx.AccountID)
			}
		}
		if page.NextCursor == "" {
			return ids, nil
		}
		cursor = page.NextCursor
	}
}

func (s *Sweeper) finish(ctx context.Context, run SweepRun, cause error) (SweepRun, error) {
	completedAt := s.opts.Clock()
	run.CompletedAt = &completedAt

	switch {
	case cause != nil:
		run.Status = RunFailed
		run.Error = cause.Error()
	case run.Failed > 0:
		run.Status = RunCompletedWithErrors
		run.Error = fmt.Sprintf("%d failures", run.Failed)
	default:
		run.Status = RunCompleted
	}

	log.Printf("[Sweeper] Run %s %s: users=%d accounts=%d recomputed=%d failed=%d",
		run.ID, run.Status, run.Users, run.Accounts, run.Recomputed, run.Failed)

	if s.runs != nil {
		// The run record survives a cancelled sweep.
		if err := s.runs.SaveSweepRun(context.WithoutCancel(ctx), run); err != nil {
			if cause == nil {
				cause = fmt.Errorf("save sweep run: %w", err)
			}
			log.Printf("[Sweeper] Error saving run %s: %v", run.ID, err)
		}
	}
	return run, cause
}
