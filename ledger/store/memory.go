// Package store provides an in-memory ledger store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/ledger-sync/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	accounts     map[string]ledger.Account
	transactions map[string]ledger.Transaction
	runs         map[string]ledger.SweepRun
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[string]ledger.Account),
		transactions: make(map[string]ledger.Transaction),
		runs:         make(map[string]ledger.SweepRun),
	}
}

var _ ledger.FullStore = (*Memory)(nil)

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) GetAccount(_ context.Context, accountID string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	a.SyncedTransactionIDs = cloneIDs(a.SyncedTransactionIDs)
	return &a, nil
}

func (m *Memory) UpdateAccount(_ context.Context, accountID string, patch ledger.AccountPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if patch.Balance != nil {
		a.Balance = *patch.Balance
	}
	if patch.SyncedTransactionIDs != nil {
		a.SyncedTransactionIDs = cloneIDs(patch.SyncedTransactionIDs)
	}
	if patch.UpdatedAt != nil {
		a.UpdatedAt = *patch.UpdatedAt
	}
	m.accounts[accountID] = a
	return nil
}

func (m *Memory) ListAccountsForUser(_ context.Context, userID string) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			a.SyncedTransactionIDs = cloneIDs(a.SyncedTransactionIDs)
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) GetTransaction(_ context.Context, transactionID string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[transactionID]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	return &tx, nil
}

func (m *Memory) ListTransactionsForAccount(_ context.Context, accountID, cursor string, limit int) (ledger.TransactionPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.page(cursor, limit, func(tx ledger.Transaction) bool {
		return tx.AccountID == accountID
	}), nil
}

func (m *Memory) ListDueTransactionsForUser(_ context.Context, userID string, until time.Time, cursor string, limit int) (ledger.TransactionPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.page(cursor, limit, func(tx ledger.Transaction) bool {
		if !tx.HasAccount() || m.accounts[tx.AccountID].UserID != userID {
			return false
		}
		return !tx.Date.After(until)
	}), nil
}

// page returns transactions matching keep, ordered by id, starting after cursor.
func (m *Memory) page(cursor string, limit int, keep func(ledger.Transaction) bool) ledger.TransactionPage {
	if limit <= 0 {
		limit = ledger.DefaultTransactionPageSize
	}

	var matched []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.ID > cursor && keep(tx) {
			matched = append(matched, tx)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	page := ledger.TransactionPage{Transactions: matched}
	if len(matched) > limit {
		page.Transactions = matched[:limit]
		page.NextCursor = matched[limit-1].ID
	}
	return page
}

func (m *Memory) ListUserIDs(_ context.Context, cursor string, limit int) (ledger.IDPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = ledger.DefaultUserPageSize
	}

	seen := make(map[string]bool)
	var ids []string
	for _, a := range m.accounts {
		if a.UserID != "" && a.UserID > cursor && !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	sort.Strings(ids)

	page := ledger.IDPage{IDs: ids}
	if len(ids) > limit {
		page.IDs = ids[:limit]
		page.NextCursor = ids[limit-1]
	}
	return page, nil
}

// ApplyDelta increments the balance and completes the transaction under one lock.
func (m *Memory) ApplyDelta(_ context.Context, w ledger.DeltaWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[w.AccountID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	tx, ok := m.transactions[w.TransactionID]
	if !ok {
		return ledger.ErrTransactionNotFound
	}

	a.Balance = a.Balance.Add(w.Delta)
	if !containsID(a.SyncedTransactionIDs, w.TransactionID) {
		a.SyncedTransactionIDs = append(cloneIDs(a.SyncedTransactionIDs), w.TransactionID)
	}
	a.UpdatedAt = w.At
	tx.Status = ledger.StatusCompleted

	m.accounts[w.AccountID] = a
	m.transactions[w.TransactionID] = tx
	return nil
}

// =============================================================================
// MUTATIONS (surrounding application)
// =============================================================================

func (m *Memory) SaveAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.SyncedTransactionIDs = cloneIDs(a.SyncedTransactionIDs)
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) SaveTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[transactionID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	delete(m.transactions, transactionID)
	return nil
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

func (m *Memory) SaveSweepRun(_ context.Context, run ledger.SweepRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = run
	return nil
}

func (m *Memory) LastCompletedSweep(_ context.Context) (*ledger.SweepRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *ledger.SweepRun
	for _, r := range m.runs {
		if r.Status != ledger.RunCompleted {
			continue
		}
		if last == nil || r.Cutoff.After(last.Cutoff) {
			r := r
			last = &r
		}
	}
	return last, nil
}

func (m *Memory) ListSweepRuns(_ context.Context, status string) ([]ledger.SweepRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.SweepRun
	for _, r := range m.runs {
		if status == "" || r.Status == status {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	return result, nil
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
