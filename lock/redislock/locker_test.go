package redislock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-sync/ledger"
)

func newTestLocker(t *testing.T, cfg Config) (*Locker, redismock.ClientMock) {
	rdb, mock := redismock.NewClientMock()
	l := New(rdb, cfg)
	l.newToken = func() string { return "token-1" }
	return l, mock
}

func TestLock_AcquireAndRelease(t *testing.T) {
	l, mock := newTestLocker(t, Config{})

	mock.ExpectSetNX("ledger:lock:acc-1", "token-1", DefaultTTL).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"ledger:lock:acc-1"}, "token-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), "acc-1")
	require.NoError(t, err)
	unlock()
	unlock() // second call is a no-op

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLock_RetriesWhileHeld(t *testing.T) {
	l, mock := newTestLocker(t, Config{Retry: time.Millisecond, TTL: time.Second, Prefix: "t:"})

	mock.ExpectSetNX("t:acc-1", "token-1", time.Second).SetVal(false)
	mock.ExpectSetNX("t:acc-1", "token-1", time.Second).SetVal(false)
	mock.ExpectSetNX("t:acc-1", "token-1", time.Second).SetVal(true)

	unlock, err := l.Lock(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, unlock)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLock_TimesOut(t *testing.T) {
	l, mock := newTestLocker(t, Config{Retry: time.Hour})

	mock.ExpectSetNX("ledger:lock:acc-1", "token-1", DefaultTTL).SetVal(false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := l.Lock(ctx, "acc-1")
	assert.ErrorIs(t, err, ledger.ErrLockTimeout)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLock_RedisError(t *testing.T) {
	l, mock := newTestLocker(t, Config{})

	mock.ExpectSetNX("ledger:lock:acc-1", "token-1", DefaultTTL).SetErr(errors.New("connection refused"))

	_, err := l.Lock(context.Background(), "acc-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ledger.ErrLockTimeout)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLock_ReleaseErrorIsSwallowed(t *testing.T) {
	l, mock := newTestLocker(t, Config{})

	mock.ExpectSetNX("ledger:lock:acc-1", "token-1", DefaultTTL).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"ledger:lock:acc-1"}, "token-1").SetErr(errors.New("timeout"))

	unlock, err := l.Lock(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.NotPanics(t, unlock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_ServesRecomputer(t *testing.T) {
	l, mock := newTestLocker(t, Config{})

	mock.ExpectSetNX("ledger:lock:ghost", "token-1", DefaultTTL).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"ledger:lock:ghost"}, "token-1").SetVal(int64(1))

	r := ledger.NewRecomputer(emptyStore{}, ledger.Options{Locker: l})
	_, err := r.Recompute(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type emptyStore struct{}

func (emptyStore) GetAccount(context.Context, string) (*ledger.Account, error) {
	return nil, ledger.ErrAccountNotFound
}

func (emptyStore) UpdateAccount(context.Context, string, ledger.AccountPatch) error {
	return ledger.ErrAccountNotFound
}

func (emptyStore) ListAccountsForUser(context.Context, string) ([]ledger.Account, error) {
	return nil, nil
}

func (emptyStore) ListTransactionsForAccount(context.Context, string, string, int) (ledger.TransactionPage, error) {
	return ledger.TransactionPage{}, nil
}
