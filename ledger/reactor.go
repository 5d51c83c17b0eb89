/*
reactor.go - Transaction change notifications -> balance updates

PURPOSE:
  Translates create/update/delete notifications from the surrounding
  application into recomputation requests for the affected accounts.

DISPATCH:
  create: account set and no credit card -> recompute account
  update: account set -> recompute account; when the row moved between
          accounts, the previous account is recomputed too
  delete: recompute the pre-delete account

MODES:
  ModeRecompute (default): every target is rebuilt by Recomputer.
  ModeDelta: create/update go through DeltaApplier first; anything it
  cannot express as an increment falls back to Recomputer.

DEBOUNCE:
  With Debounce > 0, notifications for one account that arrive within the
  window collapse into a single recomputation. Correctness does not depend
  on it; recomputation is idempotent.
*/
package ledger

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NOTIFICATION
// =============================================================================

type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Notification is a transaction change emitted by the ledger store.
type Notification struct {
	TransactionID     string           `json:"transactionId" validate:"required"`
	AccountID         string           `json:"accountId,omitempty"`
	PreviousAccountID string           `json:"previousAccountId,omitempty"`
	CreditCardID      string           `json:"creditCardId,omitempty"`
	UserID            string           `json:"userId,omitempty"`
	Amount            decimal.Decimal  `json:"amount"`
	Direction         Direction        `json:"direction,omitempty" validate:"omitempty,oneof=in out"`
	Date              time.Time        `json:"date"`
	Status            Status           `json:"status,omitempty" validate:"omitempty,oneof=pending completed failed"`
	ChangeType        ChangeType       `json:"changeType" validate:"required,oneof=create update delete"`
	PreviousAmount    *decimal.Decimal `json:"previousAmount,omitempty"`
	PreviousDirection Direction        `json:"previousDirection,omitempty" validate:"omitempty,oneof=in out"`
}

// Validate checks the notification shape.
func (n Notification) Validate() error {
	return validationError(ErrInvalidNotification, validate.Struct(n))
}

func (n Notification) hasAccount() bool {
	return n.AccountID != "" && n.CreditCardID == ""
}

func (n Notification) reassigned() bool {
	return n.PreviousAccountID != "" && n.PreviousAccountID != n.AccountID
}

// Targets returns the accounts whose balance the notification may have changed.
func Targets(n Notification) []string {
	var ids []string
	switch n.ChangeType {
	case ChangeCreate:
		if n.hasAccount() {
			ids = append(ids, n.AccountID)
		}
	case ChangeUpdate:
		// A card link added by the edit removes a contribution, so the check is on AccountID alone.
		if n.AccountID != "" {
			ids = append(ids, n.AccountID)
		}
		if n.reassigned() {
			ids = append(ids, n.PreviousAccountID)
		}
	case ChangeDelete:
		if n.AccountID != "" {
			ids = append(ids, n.AccountID)
		}
	}
	return ids
}

// =============================================================================
// REACTOR
// =============================================================================

type Mode string

const (
	ModeRecompute Mode = "recompute"
	ModeDelta     Mode = "delta"
)

type ReactorConfig struct {
	Mode     Mode
	Debounce time.Duration
	Timeout  time.Duration // per-invocation bound, default 30s
}

// Reactor dispatches notifications to the recomputation or delta path.
type Reactor struct {
	recomputer *Recomputer
	delta      *DeltaApplier
	cfg        ReactorConfig

	mu      sync.Mutex
	pending map[string]*debounced
	wg      sync.WaitGroup
	closed  bool
}

type debounced struct {
	timer *time.Timer
}

// NewReactor builds a reactor. delta may be nil unless cfg.Mode is ModeDelta.
func NewReactor(recomputer *Recomputer, delta *DeltaApplier, cfg ReactorConfig) *Reactor {
	if cfg.Mode == "" {
		cfg.Mode = ModeRecompute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Mode == ModeDelta && delta == nil {
		log.Printf("[Reactor] Delta mode requested without a delta store, using recompute")
		cfg.Mode = ModeRecompute
	}
	return &Reactor{
		recomputer: recomputer,
		delta:      delta,
		cfg:        cfg,
		pending:    make(map[string]*debounced),
	}
}

// Handle processes one notification. Missing accounts are skipped without error.
func (r *Reactor) Handle(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}

	targets := Targets(n)
	if len(targets) == 0 {
		return nil
	}

	if r.cfg.Mode == ModeDelta && n.ChangeType != ChangeDelete && !n.reassigned() {
		handled, err := r.tryDelta(ctx, n)
		if handled || err != nil {
			return err
		}
	}

	var errs []error
	for _, accountID := range targets {
		if err := r.schedule(ctx, accountID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// tryDelta reports handled=false when the change must be recomputed instead.
func (r *Reactor) tryDelta(ctx context.Context, n Notification) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	res, err := r.delta.Apply(ctx, n)
	switch {
	case err == nil:
		if !res.Applied {
			log.Printf("[Reactor] Delta skipped for %s/%s: %s", n.AccountID, n.TransactionID, res.Reason)
		}
		return true, nil
	case errors.Is(err, ErrRecomputeRequired), errors.Is(err, ErrPreviousAmountRequired):
		log.Printf("[Reactor] Falling back to recompute for %s/%s: %v", n.AccountID, n.TransactionID, err)
		return false, nil
	case IsNotApplicable(err):
		log.Printf("[Reactor] Skipping %s/%s: %v", n.AccountID, n.TransactionID, err)
		return true, nil
	default:
		return true, err
	}
}

func (r *Reactor) schedule(ctx context.Context, accountID string) error {
	if r.cfg.Debounce <= 0 {
		return r.recompute(ctx, accountID)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return r.recompute(ctx, accountID)
	}
	if p, ok := r.pending[accountID]; ok && p.timer.Stop() {
		p.timer.Reset(r.cfg.Debounce)
		r.mu.Unlock()
		return nil
	}
	p := &debounced{}
	r.wg.Add(1)
	p.timer = time.AfterFunc(r.cfg.Debounce, func() { r.fire(accountID, p) })
	r.pending[accountID] = p
	r.mu.Unlock()
	return nil
}

func (r *Reactor) fire(accountID string, p *debounced) {
	defer r.wg.Done()
	r.mu.Lock()
	if r.pending[accountID] == p {
		delete(r.pending, accountID)
	}
	r.mu.Unlock()
	r.recompute(context.Background(), accountID)
}

func (r *Reactor) recompute(ctx context.Context, accountID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	_, err := r.recomputer.Recompute(ctx, accountID)
	if err == nil {
		return nil
	}
	if IsNotApplicable(err) {
		log.Printf("[Reactor] Skipping %s: %v", accountID, err)
		return nil
	}
	log.Printf("[Reactor] Recompute failed for %s: %v", accountID, err)
	return err
}

// Pending returns the number of debounced recomputations not yet run.
func (r *Reactor) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close runs every pending debounced recomputation now and waits for them.
func (r *Reactor) Close() {
	r.mu.Lock()
	r.closed = true
	var flush []string
	for accountID, p := range r.pending {
		if p.timer.Stop() {
			flush = append(flush, accountID)
			delete(r.pending, accountID)
		}
	}
	r.mu.Unlock()

	for _, accountID := range flush {
		r.recompute(context.Background(), accountID)
		r.wg.Done()
	}
	r.wg.Wait()
}
