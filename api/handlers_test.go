/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Account creation and lookup
- Ledger mutations driving balance updates (create, update, delete)
- Raw notifications, inline and queued
- Manual trigger and sweep endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-sync/ledger"
	"github.com/warp/ledger-sync/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	t       *testing.T
	store   *store.Memory
	engine  *ledger.Engine
	handler *Handler
	router  http.Handler
	now     time.Time
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	s := &testServer{
		t:     t,
		store: store.NewMemory(),
		now:   time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	s.engine = ledger.NewEngine(s.store, ledger.EngineConfig{
		Options: ledger.Options{
			Clock:    func() time.Time { return s.now },
			Location: time.UTC,
		},
	})
	t.Cleanup(s.engine.Close)

	s.handler = NewHandler(s.engine, s.store)
	s.handler.StoreName = "memory"
	s.router = NewRouter(s.handler, RouterConfig{JWTSecret: secret})
	return s
}

// advance moves the engine clock forward by days.
func (s *testServer) advance(days int) {
	s.now = s.now.AddDate(0, 0, days)
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) account(id, userID string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/accounts", CreateAccountRequest{ID: id, UserID: userID})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) upsert(req TransactionRequest) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/transactions", req)
}

func (s *testServer) balance(accountID string) decimal.Decimal {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/accounts/"+accountID, nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var dto AccountDTO
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &dto))
	return dto.Balance
}

func (s *testServer) requireBalance(accountID string, want int64) {
	s.t.Helper()
	got := s.balance(accountID)
	require.True(s.t, got.Equal(decimal.NewFromInt(want)), "balance of %s: got %s, want %d", accountID, got, want)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "memory", resp.Store)
	assert.True(t, ledger.EndOfDay(s.now, time.UTC).Equal(resp.Now))
}

func TestCreateAccount(t *testing.T) {
	s := newTestServer(t, "")
	s.account("acc-1", "user-1")

	s.requireBalance("acc-1", 0)

	rec := s.do(http.MethodPost, "/api/accounts", CreateAccountRequest{ID: "acc-1", UserID: "user-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/accounts", CreateAccountRequest{ID: "acc-2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAccount_NotFound(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodGet, "/api/accounts/ghost", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Failed to load account", decode[ErrorResponse](t, rec).Error)
}

// =============================================================================
// LEDGER MUTATIONS
// =============================================================================

func TestUpsertTransaction_CreateUpdatesBalance(t *testing.T) {
	// GIVEN: an empty account
	s := newTestServer(t, "")
	s.account("acc-1", "user-1")
	yesterday := s.now.AddDate(0, 0, -1)

	// WHEN: income and expense are posted
	rec := s.upsert(TransactionRequest{ID: "tx-1", AccountID: "acc-1", Amount: decimal.NewFromInt(100), Direction: "in", Date: yesterday})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[ChangeResponse](t, rec)
	assert.Equal(t, "create", resp.ChangeType)
	assert.Equal(t, []string{"acc-1"}, resp.Targets)
	assert.False(t, resp.Queued)

	rec = s.upsert(TransactionRequest{ID: "tx-2", AccountID: "acc-1", Amount: decimal.NewFromInt(-30), Date: yesterday})
	require.Equal(t, http.StatusCreated, rec.Code)

	// THEN: the cached balance follows the ledger
	s.requireBalance("acc-1", 70)

	rec = s.do(http.MethodGet, "/api/accounts/acc-1/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decode[[]TransactionDTO](t, rec)
	require.Len(t, txs, 2)
	assert.Equal(t, "out", txs[1].Direction)
	assert.True(t, txs[1].Amount.Equal(decimal.NewFromInt(30)))
}

func TestUpsertTransaction_UpdateAndReassign(t *testing.T) {
	s := newTestServer(t, "")
	s.account("acc-a", "user-1")
	s.account("acc-b", "user-1")
	yesterday := s.now.AddDate(0, 0, -1)

	require.Equal(t, http.StatusCreated, s.upsert(TransactionRequest{ID: "tx-1", AccountID: "acc-a", Amount: decimal.NewFromInt(100), Direction: "in", Date: yesterday}).Code)
	s.requireBalance("acc-a", 100)

	// amount edit
	rec := s.upsert(TransactionRequest{ID: "tx-1", AccountID: "acc-a", Amount: decimal.NewFromInt(40), Direction: "in", Date: yesterday})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "update", decode[ChangeResponse](t, rec).ChangeType)
	s.requireBalance("acc-a", 40)

	// move to another account
	rec = s.upsert(TransactionRequest{ID: "tx-1", AccountID: "acc-b", Amount: decimal.NewFromInt(40), Direction: "in", Date: yesterday})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"acc-a", "acc-b"}, decode[ChangeResponse](t, rec).Targets)
	s.requireBalance("acc-a", 0)
	s.requireBalance("acc-b", 40)
}

func TestUpsertTransaction_Validation(t *testing.T) {
	s := newTestServer(t, "")
	s.account("acc-1", "user-1")

	rec := s.upsert(TransactionRequest{AccountID: "acc-1", Amount: decimal.NewFromInt(1), Date: s.now})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.upsert(TransactionRequest{ID: "tx-1", AccountID: "acc-1", Amount: decimal.NewFromInt(1), Direction: "sideways", Date: s.now})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.upsert(TransactionRequest{ID: "tx-1", AccountID: "ghost", Amount: decimal.NewFromInt(1), Date: s.now})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTransaction(t *testing.T) {
	s := newTestServer(t, "")
	s.account("acc-1", "user-1")
	yesterday := s.now.AddDate(0, 0, -1)
	s.upsert(TransactionRequest{ID: "tx-1", AccountID: "acc-1", Amount: decimal.NewFromInt(100), Direction: "in", Date: yesterday})
	s.upsert(TransactionRequest{ID: "tx-2", AccountID: "acc-1", Amount: decimal.NewFromInt(30), Direction: "out", Date: yesterday})

	rec := s.do(http.MethodDelete, "/api/transactions/tx-1", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "delete", decode[ChangeResponse](t, rec).ChangeType)
	s.requireBalance("acc-1", -30)

	rec = s.do(http.MethodDelete, "/api/transactions/tx-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotify_Inline(t *testing.T) {
	// GIVEN: a row written behind the engine's back
	s := newTestServer(t, "")
	s.account("acc-1", "user-1")
	ctx := context.Background()
	require.NoError(t, s.store.SaveTransaction(ctx, ledger.Transaction{
		ID: "tx-1", AccountID: "acc-1", UserID: "user-1",
		Amount: decimal.NewFromInt(25), Direction: ledger.DirectionIn, Date: s.now,
	}))

	// WHEN: the application reports it
	rec := s.do(http.MethodPost, "/api/notifications", ledger.Notification{
		TransactionID: "tx-1", AccountID: "acc-1", ChangeType: ledger.ChangeCreate,
	})

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.requireBalance("acc-1", 25)
}

func TestNotify_Invalid(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodPost, "/api/notifications", map[string]string{"transactionId": "tx-1", "changeType": "merge"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotify_MissingAccountIsNotAnError(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodPost, "/api/notifications", ledger.Notification{
		TransactionID: "tx-1", AccountID: "deleted-account", ChangeType: ledger.ChangeDelete,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []ledger.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n ledger.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return nil
}

func TestNotify_Queued(t *testing.T) {
	s := newTestServer(t, "")
	s.account("acc-1", "user-1")
	pub := &recordingPublisher{}
	s.handler.Publisher = pub

	rec := s.upsert(TransactionRequest{ID: "tx-1", AccountID: "acc-1", Amount: decimal.NewFromInt(10), Direction: "in", Date: s.now})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[ChangeResponse](t, rec).Queued)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, ledger.ChangeCreate, pub.sent[0].ChangeType)

	// the balance waits for the consumer
	s.requireBalance("acc-1", 0)

	rec = s.do(http.MethodPost, "/api/notifications", ledger.Notification{TransactionID: "tx-1", AccountID: "acc-1", ChangeType: ledger.ChangeUpdate})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestTriggerRecompute(t *testing.T) {
	s := newTestServer(t, "")
	s.account("acc-1", "user-1")
	s.account("acc-2", "user-1")
	ctx := context.Background()
	require.NoError(t, s.store.SaveTransaction(ctx, ledger.Transaction{
		ID: "tx-1", AccountID: "acc-1", UserID: "user-1",
		Amount: decimal.NewFromInt(100), Direction: ledger.DirectionIn, Date: s.now,
	}))

	rec := s.do(http.MethodPost, "/api/admin/recompute", ledger.TriggerRequest{AccountID: "acc-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[ledger.TriggerResult](t, rec)
	assert.True(t, result.Success)
	require.NotNil(t, result.Balance)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(100)))

	rec = s.do(http.MethodPost, "/api/admin/recompute", ledger.TriggerRequest{UserID: "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ledger.TriggerResult](t, rec).Accounts, 2)

	rec = s.do(http.MethodPost, "/api/admin/recompute", ledger.TriggerRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decode[ledger.TriggerResult](t, rec).Success)

	rec = s.do(http.MethodPost, "/api/admin/recompute", ledger.TriggerRequest{AccountID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerSweep_AndHistory(t *testing.T) {
	s := newTestServer(t, "")
	s.account("acc-1", "user-1")
	require.NoError(t, s.store.SaveTransaction(context.Background(), ledger.Transaction{
		ID: "tx-1", AccountID: "acc-1", UserID: "user-1",
		Amount: decimal.NewFromInt(5), Direction: ledger.DirectionIn, Date: s.now.AddDate(0, 0, -1),
	}))

	rec := s.do(http.MethodPost, "/api/admin/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decode[SweepRunDTO](t, rec)
	assert.Equal(t, ledger.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Recomputed)
	s.requireBalance("acc-1", 5)

	rec = s.do(http.MethodGet, "/api/admin/sweeps?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]SweepRunDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rec = s.do(http.MethodGet, "/api/admin/sweeps?status=failed", nil)
	assert.Empty(t, decode[[]SweepRunDTO](t, rec))
}

func TestSweepStatus(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodGet, "/api/admin/sweeps/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[SweepStatusResponse](t, rec)
	assert.Nil(t, status.LastCompleted)
	assert.Nil(t, status.NextRun)

	run := decode[SweepRunDTO](t, s.do(http.MethodPost, "/api/admin/sweep", nil))

	status = decode[SweepStatusResponse](t, s.do(http.MethodGet, "/api/admin/sweeps/status", nil))
	require.NotNil(t, status.LastCompleted)
	assert.Equal(t, run.ID, status.LastCompleted.ID)
}

func TestSweepStatus_Scheduled(t *testing.T) {
	s := newTestServer(t, "")
	s.handler.Scheduler = NewSweepScheduler(s.engine)
	s.handler.Scheduler.Interval = time.Hour
	s.handler.Scheduler.Start()
	t.Cleanup(s.handler.Scheduler.Stop)

	before := time.Now()
	run := decode[SweepRunDTO](t, s.do(http.MethodPost, "/api/admin/sweep", nil))
	status := decode[SweepStatusResponse](t, s.do(http.MethodGet, "/api/admin/sweeps/status", nil))

	require.NotNil(t, status.LastRun)
	assert.Equal(t, run.ID, status.LastRun.ID)
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(before))
	assert.False(t, status.NextRun.After(before.Add(time.Hour+time.Minute)))
}

func TestTriggerSweep_ThroughScheduler(t *testing.T) {
	s := newTestServer(t, "")
	s.handler.Scheduler = NewSweepScheduler(s.engine)

	rec := s.do(http.MethodPost, "/api/admin/sweep", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, s.handler.Scheduler.LastRun())
	assert.Equal(t, decode[SweepRunDTO](t, rec).ID, s.handler.Scheduler.LastRun().ID)
}

func TestEngineStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrInvalidTrigger, http.StatusBadRequest},
		{ledger.ErrAccountNotFound, http.StatusNotFound},
		{&ledger.AccountError{AccountID: "a", Op: "load", Err: ledger.ErrTransactionNotFound}, http.StatusNotFound},
		{ledger.ErrStoreRequired, http.StatusNotImplemented},
		{ledger.ErrLockTimeout, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, engineStatus(tt.err), tt.err.Error())
	}
}
