/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built ledgers that show how cached balances follow the
	transactions behind them. Each scenario writes one user's accounts and
	transactions, then runs the manual trigger so the response carries the
	recomputed balances.

AVAILABLE SCENARIOS:

	basic-ledger:   income and expense from yesterday, balance 70
	future-income:  a deposit dated ten days ahead stays out until due
	credit-card:    card spending never touches the account balance
	stale-balance:  a corrupted cached balance healed by recomputation
	multi-account:  one user, two accounts, mixed due and future rows

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "future-income"}

NOTE:

	Loading is an upsert keyed by scenario-prefixed ids. Reloading restores
	the scenario's rows; rows added afterwards through the API remain.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-sync/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	build func(now time.Time) scenarioData
}

type scenarioData struct {
	userID       string
	accounts     []ledger.Account
	transactions []ledger.Transaction
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "basic-ledger",
			Name:        "Basic Ledger",
			Description: "Income of 100 and expense of 30, both dated yesterday",
		},
		build: buildBasicLedger,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "future-income",
			Name:        "Future Income",
			Description: "Adds a 1000 deposit dated ten days ahead; the sweep picks it up once due",
		},
		build: buildFutureIncome,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "credit-card",
			Name:        "Credit Card Spending",
			Description: "A 50 card purchase linked to the account is excluded from its balance",
		},
		build: buildCreditCard,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "stale-balance",
			Name:        "Stale Balance",
			Description: "Cached balance of 999 drifted from the ledger; recomputation overwrites it",
		},
		build: buildStaleBalance,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "multi-account",
			Name:        "Multiple Accounts",
			Description: "Checking and savings for one user with due and future transactions",
		},
		build: buildMultiAccount,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario writes a scenario and recomputes its user's accounts.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	data := s.build(h.Engine.Now())
	if err := h.loadScenario(ctx, data); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	result, err := h.Engine.Admin.Trigger(ctx, ledger.TriggerRequest{UserID: data.userID})
	if err != nil {
		writeJSON(w, engineStatus(err), result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) loadScenario(ctx context.Context, data scenarioData) error {
	for _, a := range data.accounts {
		if err := h.Store.SaveAccount(ctx, a); err != nil {
			return fmt.Errorf("save account %s: %w", a.ID, err)
		}
	}
	for _, tx := range data.transactions {
		tx.UserID = data.userID
		if tx.Status == "" {
			tx.Status = ledger.StatusPending
		}
		if err := h.Store.SaveTransaction(ctx, tx); err != nil {
			return fmt.Errorf("save transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

// =============================================================================
// BUILDERS
// =============================================================================

func account(id, userID string) ledger.Account {
	return ledger.Account{ID: id, UserID: userID, SyncedTransactionIDs: []string{}}
}

func transaction(id, accountID string, amount int64, d ledger.Direction, date time.Time) ledger.Transaction {
	return ledger.Transaction{
		ID:        id,
		AccountID: accountID,
		Amount:    decimal.NewFromInt(amount),
		Direction: d,
		Date:      date,
	}
}

func buildBasicLedger(now time.Time) scenarioData {
	yesterday := now.AddDate(0, 0, -1)
	return scenarioData{
		userID:   "basic-user",
		accounts: []ledger.Account{account("basic-checking", "basic-user")},
		transactions: []ledger.Transaction{
			transaction("basic-tx-income", "basic-checking", 100, ledger.DirectionIn, yesterday),
			transaction("basic-tx-expense", "basic-checking", 30, ledger.DirectionOut, yesterday),
		},
	}
}

func buildFutureIncome(now time.Time) scenarioData {
	data := buildBasicLedger(now)
	data.userID = "future-user"
	data.accounts = []ledger.Account{account("future-checking", "future-user")}
	for i := range data.transactions {
		data.transactions[i].ID = "future-" + data.transactions[i].ID
		data.transactions[i].AccountID = "future-checking"
	}
	data.transactions = append(data.transactions,
		transaction("future-tx-deposit", "future-checking", 1000, ledger.DirectionIn, now.AddDate(0, 0, 10)))
	return data
}

func buildCreditCard(now time.Time) scenarioData {
	yesterday := now.AddDate(0, 0, -1)
	card := transaction("card-tx-purchase", "card-checking", 50, ledger.DirectionOut, yesterday)
	card.CreditCardID = "cc1"
	return scenarioData{
		userID:   "card-user",
		accounts: []ledger.Account{account("card-checking", "card-user")},
		transactions: []ledger.Transaction{
			transaction("card-tx-income", "card-checking", 1070, ledger.DirectionIn, yesterday),
			card,
		},
	}
}

func buildStaleBalance(now time.Time) scenarioData {
	acct := account("stale-checking", "stale-user")
	acct.Balance = decimal.NewFromInt(999)
	acct.SyncedTransactionIDs = []string{"stale-tx-gone"}
	return scenarioData{
		userID:   "stale-user",
		accounts: []ledger.Account{acct},
		transactions: []ledger.Transaction{
			transaction("stale-tx-salary", "stale-checking", 2500, ledger.DirectionIn, now.AddDate(0, 0, -3)),
			transaction("stale-tx-rent", "stale-checking", 1200, ledger.DirectionOut, now.AddDate(0, 0, -2)),
		},
	}
}

func buildMultiAccount(now time.Time) scenarioData {
	return scenarioData{
		userID: "multi-user",
		accounts: []ledger.Account{
			account("multi-checking", "multi-user"),
			account("multi-savings", "multi-user"),
		},
		transactions: []ledger.Transaction{
			transaction("multi-tx-salary", "multi-checking", 3000, ledger.DirectionIn, now.AddDate(0, 0, -5)),
			transaction("multi-tx-transfer-out", "multi-checking", 500, ledger.DirectionOut, now.AddDate(0, 0, -1)),
			transaction("multi-tx-transfer-in", "multi-savings", 500, ledger.DirectionIn, now.AddDate(0, 0, -1)),
			transaction("multi-tx-bonus", "multi-savings", 800, ledger.DirectionIn, now.AddDate(0, 1, 0)),
		},
	}
}
