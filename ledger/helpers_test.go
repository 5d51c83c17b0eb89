package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-sync/ledger"
	"github.com/warp/ledger-sync/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testClock is a settable wall clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) AddDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

// daysFromNow returns noon n days away from the clock's current day.
func (c *testClock) daysFromNow(n int) time.Time {
	d := ledger.StartOfDay(c.Now(), time.UTC).AddDate(0, 0, n)
	return d.Add(12 * time.Hour)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	clock *testClock
	store *store.Memory
	opts  ledger.Options
}

func newFixture(t *testing.T) *fixture {
	clock := newTestClock()
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		clock: clock,
		store: store.NewMemory(),
		opts: ledger.Options{
			Location: time.UTC,
			Clock:    clock.Now,
			Locker:   ledger.NewKeyedMutex(),
		},
	}
}

func (f *fixture) engine() *ledger.Engine {
	return ledger.NewEngine(f.store, ledger.EngineConfig{Options: f.opts})
}

func (f *fixture) account(id, userID string) {
	f.t.Helper()
	require.NoError(f.t, f.store.SaveAccount(f.ctx, ledger.Account{ID: id, UserID: userID, Balance: decimal.Zero}))
}

func (f *fixture) tx(tx ledger.Transaction) ledger.Transaction {
	f.t.Helper()
	if tx.Status == "" {
		tx.Status = ledger.StatusPending
	}
	require.NoError(f.t, f.store.SaveTransaction(f.ctx, tx))
	return tx
}

func (f *fixture) in(id, accountID string, amount float64, daysOffset int) ledger.Transaction {
	return f.tx(ledger.Transaction{
		ID:        id,
		AccountID: accountID,
		Amount:    decimal.NewFromFloat(amount),
		Direction: ledger.DirectionIn,
		Date:      f.clock.daysFromNow(daysOffset),
	})
}

func (f *fixture) out(id, accountID string, amount float64, daysOffset int) ledger.Transaction {
	return f.tx(ledger.Transaction{
		ID:        id,
		AccountID: accountID,
		Amount:    decimal.NewFromFloat(amount),
		Direction: ledger.DirectionOut,
		Date:      f.clock.daysFromNow(daysOffset),
	})
}

func (f *fixture) balance(accountID string) decimal.Decimal {
	f.t.Helper()
	a, err := f.store.GetAccount(f.ctx, accountID)
	require.NoError(f.t, err)
	return a.Balance
}

func (f *fixture) requireBalance(accountID string, want float64) {
	f.t.Helper()
	got := f.balance(accountID)
	require.True(f.t, got.Equal(decimal.NewFromFloat(want)), "account %s: expected balance %v, got %s", accountID, want, got)
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func decPtr(v float64) *decimal.Decimal {
	d := dec(v)
	return &d
}
