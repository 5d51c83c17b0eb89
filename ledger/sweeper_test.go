package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-sync/ledger"
	"github.com/warp/ledger-sync/ledger/mocks"
	"github.com/warp/ledger-sync/ledger/store"
)

// flakyStore fails account loads for one id.
type flakyStore struct {
	*store.Memory
	failAccount string
}

func (s *flakyStore) GetAccount(ctx context.Context, accountID string) (*ledger.Account, error) {
	if accountID == s.failAccount {
		return nil, errors.New("store unavailable")
	}
	return s.Memory.GetAccount(ctx, accountID)
}

func TestSweep_FutureTransactionBecomesDue(t *testing.T) {
	// GIVEN: balance 70 with a +1000 transaction dated in 10 days
	// WHEN: 10 days pass with no mutation and the sweeper runs
	// THEN: balance is 1070
	f := newFixture(t)
	f.account("acc-1", "user-1")
	f.in("tx-1", "acc-1", 100, -1)
	f.out("tx-2", "acc-1", 30, -1)
	f.in("tx-3", "acc-1", 1000, 10)
	e := f.engine()

	_, err := e.Recomputer.Recompute(f.ctx, "acc-1")
	require.NoError(t, err)
	f.requireBalance("acc-1", 70)

	first, err := e.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.RunCompleted, first.Status)
	f.requireBalance("acc-1", 70)

	f.clock.AddDays(10)

	second, err := e.Sweep(f.ctx)
	require.NoError(t, err)

	f.requireBalance("acc-1", 1070)
	assert.Equal(t, ledger.RunCompleted, second.Status)
	assert.True(t, second.Cutoff.After(first.Cutoff))
	assert.Equal(t, 1, second.Accounts)
	assert.Equal(t, 1, second.Recomputed)
}

func TestSweep_SameDayRerun_NoWrites(t *testing.T) {
	f := newFixture(t)
	f.account("acc-1", "user-1")
	f.in("tx-1", "acc-1", 10, -1)
	e := f.engine()

	_, err := e.Sweep(f.ctx)
	require.NoError(t, err)
	before, err := f.store.GetAccount(f.ctx, "acc-1")
	require.NoError(t, err)

	run, err := e.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Users)
	assert.Equal(t, 1, run.Accounts)

	after, err := f.store.GetAccount(f.ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSweep_HealsBackdatedTransactionWithoutNotification(t *testing.T) {
	// GIVEN: a clean sweep on day 0
	f := newFixture(t)
	f.account("acc-1", "user-1")
	e := f.engine()

	first, err := e.Sweep(f.ctx)
	require.NoError(t, err)
	require.Equal(t, ledger.RunCompleted, first.Status)

	// WHEN: on day 1 a row dated yesterday is saved and its notification is lost
	f.clock.AddDays(1)
	f.in("tx-1", "acc-1", 100, -1)

	run, err := e.Sweep(f.ctx)
	require.NoError(t, err)

	// THEN: the next sweep folds it
	assert.Equal(t, 1, run.Accounts)
	assert.Equal(t, 1, run.Recomputed)
	f.requireBalance("acc-1", 100)
}

func TestSweep_HealsDriftLeftByDeltaPath(t *testing.T) {
	// GIVEN: delta mode, where an edit was applied but its update notification was lost
	f := newFixture(t)
	f.account("acc-1", "user-1")
	tx := f.in("tx-1", "acc-1", 100, -1)
	e := deltaEngine(f)
	require.NoError(t, e.Reactor.Handle(f.ctx, ledger.Notification{TransactionID: "tx-1", AccountID: "acc-1", ChangeType: ledger.ChangeCreate}))
	_, err := e.Sweep(f.ctx)
	require.NoError(t, err)

	tx.Amount = dec(40)
	tx.Status = ledger.StatusCompleted
	require.NoError(t, f.store.SaveTransaction(f.ctx, tx))
	f.requireBalance("acc-1", 100)

	// WHEN: the next day's sweep runs
	f.clock.AddDays(1)
	_, err = e.Sweep(f.ctx)
	require.NoError(t, err)

	// THEN: the balance matches the fold again
	f.requireBalance("acc-1", 40)
}

func TestSweep_PagesUsers_AllAccountsCovered(t *testing.T) {
	f := newFixture(t)
	f.opts.UserPageSize = 1
	f.opts.PageSize = 1

	for _, u := range []string{"u1", "u2", "u3"} {
		f.account("acc-"+u+"-a", u)
		f.account("acc-"+u+"-b", u)
		f.in("tx-"+u+"-1", "acc-"+u+"-a", 10, -2)
		f.in("tx-"+u+"-2", "acc-"+u+"-a", 5, -1)
		f.out("tx-"+u+"-3", "acc-"+u+"-b", 3, 0)
	}

	run, err := f.engine().Sweep(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, run.Users)
	assert.Equal(t, 6, run.Accounts)
	assert.Equal(t, 6, run.Recomputed)
	for _, u := range []string{"u1", "u2", "u3"} {
		f.requireBalance("acc-"+u+"-a", 15)
		f.requireBalance("acc-"+u+"-b", -3)
	}
}

func TestSweep_SkipsCreditCardAndFuture(t *testing.T) {
	f := newFixture(t)
	f.account("acc-1", "user-1")
	f.in("tx-future", "acc-1", 10, 3)
	f.tx(ledger.Transaction{ID: "tx-cc", AccountID: "acc-1", CreditCardID: "cc", Amount: dec(9), Direction: ledger.DirectionOut, Date: f.clock.daysFromNow(-1)})

	run, err := f.engine().Sweep(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, run.Accounts)
	f.requireBalance("acc-1", 0)
}

func TestSweep_FailedAccount_DoesNotAbort_AndIsRetried(t *testing.T) {
	f := newFixture(t)
	fs := &flakyStore{Memory: f.store, failAccount: "acc-a"}
	f.account("acc-a", "user-a")
	f.account("acc-b", "user-b")
	f.in("tx-a", "acc-a", 10, -1)
	f.in("tx-b", "acc-b", 20, -1)

	e := ledger.NewEngine(fs, ledger.EngineConfig{Options: f.opts})

	run, err := e.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.RunCompletedWithErrors, run.Status)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Recomputed)
	f.requireBalance("acc-b", 20)

	// The retry sees acc-a again.
	fs.failAccount = ""
	retry, err := e.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.RunCompleted, retry.Status)
	f.requireBalance("acc-a", 10)

	runs, err := f.store.ListSweepRuns(f.ctx, ledger.RunCompletedWithErrors)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSweep_FaultIsolation_Mocked(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := mocks.NewMockSweepStore(ctrl)
	boom := errors.New("timeout")
	yesterday := time.Now().AddDate(0, 0, -1)

	s.EXPECT().ListUserIDs(gomock.Any(), "", ledger.DefaultUserPageSize).
		Return(ledger.IDPage{IDs: []string{"u1", "u2", "u3"}}, nil)
	s.EXPECT().ListDueTransactionsForUser(gomock.Any(), "u1", gomock.Any(), "", gomock.Any()).
		Return(ledger.TransactionPage{Transactions: []ledger.Transaction{
			{ID: "t1", AccountID: "A", Amount: dec(1), Direction: ledger.DirectionIn, Date: yesterday},
		}}, nil)
	s.EXPECT().ListDueTransactionsForUser(gomock.Any(), "u2", gomock.Any(), "", gomock.Any()).
		Return(ledger.TransactionPage{}, boom)
	s.EXPECT().ListDueTransactionsForUser(gomock.Any(), "u3", gomock.Any(), "", gomock.Any()).
		Return(ledger.TransactionPage{Transactions: []ledger.Transaction{
			{ID: "t3", AccountID: "B", Amount: dec(7), Direction: ledger.DirectionIn, Date: yesterday},
		}}, nil)

	// A throws, B still completes.
	s.EXPECT().GetAccount(gomock.Any(), "A").Return(nil, boom)
	s.EXPECT().GetAccount(gomock.Any(), "B").Return(&ledger.Account{ID: "B", UserID: "u3"}, nil)
	s.EXPECT().ListTransactionsForAccount(gomock.Any(), "B", "", gomock.Any()).
		Return(ledger.TransactionPage{Transactions: []ledger.Transaction{
			{ID: "t3", AccountID: "B", Amount: dec(7), Direction: ledger.DirectionIn, Date: yesterday},
		}}, nil)
	s.EXPECT().UpdateAccount(gomock.Any(), "B", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, p ledger.AccountPatch) error {
			assert.True(t, p.Balance.Equal(dec(7)))
			assert.Equal(t, []string{"t3"}, p.SyncedTransactionIDs)
			return nil
		})

	opts := ledger.Options{Location: time.Local}
	sw := ledger.NewSweeper(s, nil, ledger.NewRecomputer(s, opts), opts)
	run, err := sw.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, run.Users)
	assert.Equal(t, 2, run.Accounts)
	assert.Equal(t, 1, run.Recomputed)
	assert.Equal(t, 2, run.Failed)
	assert.Equal(t, ledger.RunCompletedWithErrors, run.Status)
}

func TestSweep_ListUsersFails_RunFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := mocks.NewMockSweepStore(ctrl)
	runs := mocks.NewMockRunStore(ctrl)
	boom := errors.New("db down")

	runs.EXPECT().SaveSweepRun(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.EXPECT().ListUserIDs(gomock.Any(), "", gomock.Any()).Return(ledger.IDPage{}, boom)

	opts := ledger.Options{}
	sw := ledger.NewSweeper(s, runs, ledger.NewRecomputer(s, opts), opts)
	run, err := sw.Run(context.Background())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, ledger.RunFailed, run.Status)
	assert.NotNil(t, run.CompletedAt)
}
