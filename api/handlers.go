/*
handlers.go - HTTP API handlers for the balance synchronization engine

PURPOSE:
  Exposes the engine's inbound interfaces over HTTP: change notifications,
  the manual recovery trigger, on-demand sweeps, plus a small ledger CRUD
  surface so the demo can mutate transactions and watch balances follow.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                   Create account
    GET    /api/accounts/{id}              Account with cached balance
    GET    /api/accounts/{id}/transactions Ledger rows of the account

  Ledger mutations (each emits a change notification):
    POST   /api/transactions               Create or replace a transaction
    DELETE /api/transactions/{id}          Delete a transaction

  Notifications:
    POST   /api/notifications              Raw change notification

  Admin (JWT when configured):
    POST   /api/admin/recompute            {userId} | {accountId}
    POST   /api/admin/sweep                Run the due-transaction sweep now
    GET    /api/admin/sweeps?status=       Sweep run history

ERROR HANDLING:
  - 400: invalid body, trigger or notification
  - 404: account or transaction not found
  - 501: store lacks the capability (e.g. no sweep support)
  - 503: account lock not acquired in time
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/ledger-sync/ledger"
)

var validate = validator.New()

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Publisher moves notifications onto a queue instead of handling them inline.
type Publisher interface {
	Publish(ctx context.Context, n ledger.Notification) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *ledger.Engine
	Store     ledger.FullStore
	Publisher Publisher       // optional
	Scheduler *SweepScheduler // optional, serializes manual and scheduled sweeps
	StoreName string
}

// NewHandler creates a handler over a store that supports every engine path.
func NewHandler(engine *ledger.Engine, store ledger.FullStore) *Handler {
	return &Handler{Engine: engine, Store: store}
}

// notify hands a change to the queue when one is configured, else to the reactor.
func (h *Handler) notify(ctx context.Context, n ledger.Notification) (queued bool, err error) {
	if h.Publisher != nil {
		return true, h.Publisher.Publish(ctx, n)
	}
	return false, h.Engine.Reactor.Handle(ctx, n)
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store answers.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: h.StoreName, Now: h.Engine.Now()}
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			resp.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount opens an empty account.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	if _, err := h.Store.GetAccount(ctx, req.ID); err == nil {
		writeError(w, http.StatusConflict, "Account already exists", nil)
		return
	}

	acct := ledger.Account{ID: req.ID, UserID: req.UserID, SyncedTransactionIDs: []string{}}
	if err := h.Store.SaveAccount(ctx, acct); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

// GetAccount returns the cached balance.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Store.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, "Failed to load account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*acct))
}

// GetAccountTransactions lists every transaction linked to the account.
// GET /api/accounts/{id}/transactions
func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "id")

	if _, err := h.Store.GetAccount(ctx, accountID); err != nil {
		writeEngineError(w, "Failed to load account", err)
		return
	}

	dtos := []TransactionDTO{}
	err := ledger.ForEachTransaction(ctx, h.Store, accountID, 0, func(tx ledger.Transaction) error {
		dtos = append(dtos, toTransactionDTO(tx))
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEDGER MUTATIONS
// =============================================================================

// UpsertTransaction stores a transaction and emits the matching create or update.
// POST /api/transactions
func (h *Handler) UpsertTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	var userID string
	if req.AccountID != "" {
		acct, err := h.Store.GetAccount(ctx, req.AccountID)
		if err != nil {
			writeEngineError(w, "Failed to load account", err)
			return
		}
		userID = acct.UserID
	}

	previous, err := h.Store.GetTransaction(ctx, req.ID)
	if err != nil && !errors.Is(err, ledger.ErrTransactionNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to load transaction", err)
		return
	}

	tx := req.toTransaction(userID)
	if err := h.Store.SaveTransaction(ctx, tx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save transaction", err)
		return
	}

	n := notificationFor(tx, previous)
	queued, err := h.notify(ctx, n)
	if err != nil {
		writeEngineError(w, "Transaction saved but balance update failed", err)
		return
	}

	dto := toTransactionDTO(tx)
	status := http.StatusOK
	if previous == nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, ChangeResponse{
		Transaction: &dto,
		ChangeType:  string(n.ChangeType),
		Targets:     nonNil(ledger.Targets(n)),
		Queued:      queued,
	})
}

// DeleteTransaction removes a transaction and emits a delete.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	tx, err := h.Store.GetTransaction(ctx, id)
	if err != nil {
		writeEngineError(w, "Failed to load transaction", err)
		return
	}
	if err := h.Store.DeleteTransaction(ctx, id); err != nil {
		writeEngineError(w, "Failed to delete transaction", err)
		return
	}

	n := ledger.Notification{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		CreditCardID:  tx.CreditCardID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Direction:     tx.Direction,
		Date:          tx.Date,
		Status:        tx.Status,
		ChangeType:    ledger.ChangeDelete,
	}
	queued, err := h.notify(ctx, n)
	if err != nil {
		writeEngineError(w, "Transaction deleted but balance update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ChangeResponse{
		ChangeType: string(n.ChangeType),
		Targets:    nonNil(ledger.Targets(n)),
		Queued:     queued,
	})
}

// notificationFor describes the change from previous (nil on create) to tx.
func notificationFor(tx ledger.Transaction, previous *ledger.Transaction) ledger.Notification {
	n := ledger.Notification{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		CreditCardID:  tx.CreditCardID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Direction:     tx.Direction,
		Date:          tx.Date,
		Status:        tx.Status,
		ChangeType:    ledger.ChangeCreate,
	}
	if previous != nil {
		amount := previous.Amount
		n.ChangeType = ledger.ChangeUpdate
		n.PreviousAccountID = previous.AccountID
		n.PreviousAmount = &amount
		n.PreviousDirection = previous.Direction
	}
	return n
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Notify accepts a change notification from the surrounding application.
// POST /api/notifications
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var n ledger.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	queued, err := h.notify(r.Context(), n)
	if err != nil {
		writeEngineError(w, "Failed to handle notification", err)
		return
	}

	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, ChangeResponse{
		ChangeType: string(n.ChangeType),
		Targets:    nonNil(ledger.Targets(n)),
		Queued:     queued,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRecompute is the manual recovery path.
// POST /api/admin/recompute
func (h *Handler) TriggerRecompute(w http.ResponseWriter, r *http.Request) {
	var req ledger.TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if subject := SubjectFromContext(r.Context()); subject != "" {
		log.Printf("[API] Recompute of user=%q account=%q requested by %s", req.UserID, req.AccountID, subject)
	}

	result, err := h.Engine.Admin.Trigger(r.Context(), req)
	if err != nil {
		writeJSON(w, engineStatus(err), result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TriggerSweep runs one sweep synchronously.
// POST /api/admin/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	var (
		run ledger.SweepRun
		err error
	)
	if h.Scheduler != nil {
		run, err = h.Scheduler.RunNow()
	} else {
		run, err = h.Engine.Sweep(r.Context())
	}
	if errors.Is(err, ErrSweepInProgress) {
		writeError(w, http.StatusConflict, "Sweep already in progress", nil)
		return
	}
	if err != nil {
		if run.ID == "" {
			writeEngineError(w, "Sweep failed", err)
			return
		}
		writeJSON(w, http.StatusInternalServerError, toSweepRunDTO(run))
		return
	}
	writeJSON(w, http.StatusOK, toSweepRunDTO(run))
}

// ListSweepRuns returns sweep history, newest first.
// GET /api/admin/sweeps?status=completed
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListSweepRuns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sweep runs", err)
		return
	}

	dtos := make([]SweepRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSweepRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SweepStatus reports the last clean run and, when scheduled, the next one.
// GET /api/admin/sweeps/status
func (h *Handler) SweepStatus(w http.ResponseWriter, r *http.Request) {
	var resp SweepStatusResponse

	last, err := h.Store.LastCompletedSweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load last sweep", err)
		return
	}
	if last != nil {
		dto := toSweepRunDTO(*last)
		resp.LastCompleted = &dto
	}

	if h.Scheduler != nil {
		if run := h.Scheduler.LastRun(); run != nil {
			dto := toSweepRunDTO(*run)
			resp.LastRun = &dto
		}
		if next := h.Scheduler.GetNextRunTime(); !next.IsZero() {
			resp.NextRun = &next
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func engineStatus(err error) int {
	switch {
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	case ledger.IsNotApplicable(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrStoreRequired):
		return http.StatusNotImplemented
	case errors.Is(err, ledger.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, message string, err error) {
	writeError(w, engineStatus(err), message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
