package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-sync/ledger"
	"github.com/warp/ledger-sync/ledger/store"
)

func TestMemory_PagesOrderedByID(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, id := range []string{"c", "a", "e", "b", "d"} {
		require.NoError(t, m.SaveTransaction(ctx, ledger.Transaction{ID: id, AccountID: "acc-1", Amount: decimal.NewFromInt(1)}))
	}

	page, err := m.ListTransactionsForAccount(ctx, "acc-1", "", 2)
	require.NoError(t, err)
	assert.Equal(t, "a", page.Transactions[0].ID)
	assert.Equal(t, "b", page.NextCursor)

	page, err = m.ListTransactionsForAccount(ctx, "acc-1", "d", 2)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "e", page.Transactions[0].ID)
	assert.Empty(t, page.NextCursor)
}

func TestMemory_ReturnedAccountsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveAccount(ctx, ledger.Account{ID: "acc-1", SyncedTransactionIDs: []string{"x"}}))

	a, err := m.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	a.SyncedTransactionIDs[0] = "mutated"

	b, err := m.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, b.SyncedTransactionIDs)
}

func TestMemory_LastCompletedSweep_IgnoresErrors(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2025, time.March, 10, 23, 59, 59, 0, time.UTC)

	require.NoError(t, m.SaveSweepRun(ctx, ledger.SweepRun{ID: "1", Cutoff: base, Status: ledger.RunCompleted}))
	require.NoError(t, m.SaveSweepRun(ctx, ledger.SweepRun{ID: "2", Cutoff: base.AddDate(0, 0, 1), Status: ledger.RunCompletedWithErrors}))
	require.NoError(t, m.SaveSweepRun(ctx, ledger.SweepRun{ID: "3", Cutoff: base.AddDate(0, 0, 2), Status: ledger.RunFailed}))

	last, err := m.LastCompletedSweep(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "1", last.ID)
}
