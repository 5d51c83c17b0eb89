package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

// TriggerRequest is an operator-initiated recomputation. AccountID wins when both are set.
type TriggerRequest struct {
	UserID    string `json:"userId,omitempty" validate:"required_without=AccountID"`
	AccountID string `json:"accountId,omitempty" validate:"required_without=UserID"`
}

// AccountResult is the outcome for one account of a trigger.
type AccountResult struct {
	AccountID string           `json:"accountId"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
	Changed   bool             `json:"changed"`
	Error     string           `json:"error,omitempty"`
}

// TriggerResult is returned to the operator.
type TriggerResult struct {
	Success  bool             `json:"success"`
	Balance  *decimal.Decimal `json:"balance,omitempty"`
	Accounts []AccountResult  `json:"accounts,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Admin serves the manual recovery path.
type Admin struct {
	store      Store
	recomputer *Recomputer
}

func NewAdmin(store Store, recomputer *Recomputer) *Admin {
	return &Admin{store: store, recomputer: recomputer}
}

// Trigger recomputes one account or every account of a user.
// Invalid requests are rejected before any work is done.
func (a *Admin) Trigger(ctx context.Context, req TriggerRequest) (TriggerResult, error) {
	if err := validationError(ErrInvalidTrigger, validate.Struct(req)); err != nil {
		return TriggerResult{Error: err.Error()}, err
	}

	if req.AccountID != "" {
		res, err := a.recompute(ctx, req.AccountID)
		if err != nil {
			return TriggerResult{Error: res.Error, Accounts: []AccountResult{res}}, err
		}
		return TriggerResult{Success: true, Balance: res.Balance, Accounts: []AccountResult{res}}, nil
	}

	accounts, err := a.store.ListAccountsForUser(ctx, req.UserID)
	if err != nil {
		log.Printf("[Admin] Error listing accounts for user %s: %v", req.UserID, err)
		return TriggerResult{Error: err.Error()}, err
	}

	result := TriggerResult{Success: true, Accounts: make([]AccountResult, 0, len(accounts))}
	failed := 0
	for _, acct := range accounts {
		res, err := a.recompute(ctx, acct.ID)
		if err != nil {
			failed++
		}
		result.Accounts = append(result.Accounts, res)
	}
	if failed > 0 {
		result.Success = false
		result.Error = fmt.Sprintf("%d of %d accounts failed", failed, len(accounts))
	}
	log.Printf("[Admin] Recomputed %d accounts for user %s (%d failed)", len(accounts), req.UserID, failed)
	return result, nil
}

func (a *Admin) recompute(ctx context.Context, accountID string) (AccountResult, error) {
	res, err := a.recomputer.Recompute(ctx, accountID)
	if err != nil {
		log.Printf("[Admin] Recompute failed for %s: %v", accountID, err)
		return AccountResult{AccountID: accountID, Error: err.Error()}, err
	}
	balance := res.Balance
	return AccountResult{AccountID: accountID, Balance: &balance, Changed: res.Changed}, nil
}
