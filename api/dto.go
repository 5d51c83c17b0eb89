/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP surface. Amounts are decimal strings, times
  are RFC 3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry validator tags; handlers call validate.Struct.
  Trigger and notification bodies reuse the engine's own types and rules.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-sync/ledger"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO is an account with its cached balance.
type AccountDTO struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId"`
	Balance              decimal.Decimal `json:"balance"`
	SyncedTransactionIDs []string        `json:"syncedTransactionIds"`
	UpdatedAt            *time.Time      `json:"updatedAt,omitempty"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	dto := AccountDTO{
		ID:                   a.ID,
		UserID:               a.UserID,
		Balance:              a.Balance,
		SyncedTransactionIDs: a.SyncedTransactionIDs,
	}
	if dto.SyncedTransactionIDs == nil {
		dto.SyncedTransactionIDs = []string{}
	}
	if !a.UpdatedAt.IsZero() {
		t := a.UpdatedAt
		dto.UpdatedAt = &t
	}
	return dto
}

// CreateAccountRequest opens an account for a user.
type CreateAccountRequest struct {
	ID     string `json:"id" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionRequest creates or replaces a ledger transaction.
// A signed amount is accepted; its sign overrides direction.
type TransactionRequest struct {
	ID           string          `json:"id" validate:"required"`
	AccountID    string          `json:"accountId,omitempty"`
	CreditCardID string          `json:"creditCardId,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Direction    string          `json:"direction,omitempty" validate:"omitempty,oneof=in out"`
	Date         time.Time       `json:"date" validate:"required"`
	Status       string          `json:"status,omitempty" validate:"omitempty,oneof=pending completed failed"`
}

func (r TransactionRequest) toTransaction(userID string) ledger.Transaction {
	amount, direction := ledger.NormalizeSigned(r.Amount, ledger.Direction(r.Direction))
	status := ledger.Status(r.Status)
	if status == "" {
		status = ledger.StatusPending
	}
	return ledger.Transaction{
		ID:           r.ID,
		AccountID:    r.AccountID,
		CreditCardID: r.CreditCardID,
		UserID:       userID,
		Amount:       amount,
		Direction:    direction,
		Date:         r.Date,
		Status:       status,
	}
}

// TransactionDTO is a stored transaction.
type TransactionDTO struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId,omitempty"`
	CreditCardID string          `json:"creditCardId,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Direction    string          `json:"direction"`
	Date         time.Time       `json:"date"`
	Status       string          `json:"status"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:           tx.ID,
		AccountID:    tx.AccountID,
		CreditCardID: tx.CreditCardID,
		Amount:       tx.Amount,
		Direction:    string(tx.Direction),
		Date:         tx.Date,
		Status:       string(tx.Status),
	}
}

// ChangeResponse reports what a ledger mutation triggered.
type ChangeResponse struct {
	Transaction *TransactionDTO `json:"transaction,omitempty"`
	ChangeType  string          `json:"changeType"`
	Targets     []string        `json:"targets"`
	Queued      bool            `json:"queued"`
}

// =============================================================================
// SWEEPS
// =============================================================================

type SweepRunDTO struct {
	ID          string     `json:"id"`
	Cutoff      time.Time  `json:"cutoff"`
	Status      string     `json:"status"`
	Users       int        `json:"users"`
	Accounts    int        `json:"accounts"`
	Recomputed  int        `json:"recomputed"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toSweepRunDTO(r ledger.SweepRun) SweepRunDTO {
	return SweepRunDTO{
		ID:          r.ID,
		Cutoff:      r.Cutoff,
		Status:      r.Status,
		Users:       r.Users,
		Accounts:    r.Accounts,
		Recomputed:  r.Recomputed,
		Failed:      r.Failed,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

// SweepStatusResponse summarizes the sweeper for operators.
type SweepStatusResponse struct {
	LastRun       *SweepRunDTO `json:"lastRun,omitempty"`
	LastCompleted *SweepRunDTO `json:"lastCompleted,omitempty"`
	NextRun       *time.Time   `json:"nextRun,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

// =============================================================================
// COMMON
// =============================================================================

type HealthResponse struct {
	Status string    `json:"status"`
	Store  string    `json:"store"`
	Now    time.Time `json:"now"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
