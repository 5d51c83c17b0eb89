/*
Package sqlite provides a SQLite-backed ledger store.

PURPOSE:
  Implements every ledger persistence contract (Store, SweepStore,
  DeltaStore, RunStore, Mutator) on SQLite. The PostgreSQL store in
  store/postgres follows the same shape with dialect differences.

KEY TABLES:
  accounts:     cached balance, synced id trail (JSON), updated_at
  transactions: ledger rows, magnitude + direction, optional card link
  sweep_runs:   one row per sweeper pass

INDEXES:
  - idx_transactions_account_id: paginated account scans (hot path)
  - idx_transactions_date: sweep window scans
  - idx_accounts_user: owner enumeration

TIME ENCODING:
  Timestamps are stored as fixed-width UTC text (timeLayout) so string
  comparison in SQL orders them correctly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ApplyDelta runs its read and write
  inside one SQL transaction under the write lock.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, ledger.EngineConfig{})

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/ledger-sync/ledger"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.FullStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		synced_transaction_ids TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user
		ON accounts(user_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT,
		credit_card_id TEXT,
		user_id TEXT,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account_id
		ON transactions(account_id, id);
	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(date);

	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		cutoff TEXT NOT NULL,
		status TEXT NOT NULL,
		users INTEGER DEFAULT 0,
		accounts INTEGER DEFAULT 0,
		recomputed INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_runs_status
		ON sweep_runs(status, cutoff);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS (ledger.Store)
// =============================================================================

const accountColumns = `id, user_id, balance, synced_transaction_ids, updated_at`

func (s *Store) GetAccount(ctx context.Context, accountID string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, accountID string, patch ledger.AccountPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return updateAccount(ctx, s.db, accountID, patch)
}

func updateAccount(ctx context.Context, db execer, accountID string, patch ledger.AccountPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Balance != nil {
		sets = append(sets, "balance = ?")
		args = append(args, patch.Balance.String())
	}
	if patch.SyncedTransactionIDs != nil {
		idsJSON, err := json.Marshal(patch.SyncedTransactionIDs)
		if err != nil {
			return fmt.Errorf("failed to encode synced ids: %w", err)
		}
		sets = append(sets, "synced_transaction_ids = ?")
		args = append(args, string(idsJSON))
	}
	if patch.UpdatedAt != nil {
		sets = append(sets, "updated_at = ?")
		args = append(args, formatTime(*patch.UpdatedAt))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, accountID)

	res, err := db.ExecContext(ctx, `UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccountsForUser(ctx context.Context, userID string) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SaveAccount inserts or replaces an account.
func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := a.SyncedTransactionIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, _ := json.Marshal(ids)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, balance, synced_transaction_ids, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			balance = excluded.balance,
			synced_transaction_ids = excluded.synced_transaction_ids,
			updated_at = excluded.updated_at
	`, a.ID, a.UserID, a.Balance.String(), string(idsJSON), nullTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (ledger.Store, ledger.SweepStore, ledger.DeltaStore)
// =============================================================================

const transactionColumns = `t.id, t.account_id, t.credit_card_id, t.user_id, t.amount, t.direction, t.date, t.status`

func (s *Store) ListTransactionsForAccount(ctx context.Context, accountID, cursor string, limit int) (ledger.TransactionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = pageLimit(limit, ledger.DefaultTransactionPageSize)
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		WHERE t.account_id = ? AND t.id > ?
		ORDER BY t.id
		LIMIT ?
	`
	return s.queryPage(ctx, limit, query, accountID, cursor, limit+1)
}

func (s *Store) ListDueTransactionsForUser(ctx context.Context, userID string, until time.Time, cursor string, limit int) (ledger.TransactionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = pageLimit(limit, ledger.DefaultTransactionPageSize)
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = ?
		  AND COALESCE(t.credit_card_id, '') = ''
		  AND t.date <= ?
		  AND t.id > ?
		ORDER BY t.id
		LIMIT ?
	`
	return s.queryPage(ctx, limit, query, userID, formatTime(until), cursor, limit+1)
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ?`, transactionID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// queryPage fetches one row past limit to learn whether another page exists.
func (s *Store) queryPage(ctx context.Context, limit int, query string, args ...any) (ledger.TransactionPage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.TransactionPage{}, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return ledger.TransactionPage{}, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return ledger.TransactionPage{}, err
	}

	page := ledger.TransactionPage{Transactions: txs}
	if len(txs) > limit {
		page.Transactions = txs[:limit]
		page.NextCursor = txs[limit-1].ID
	}
	return page, nil
}

func (s *Store) ListUserIDs(ctx context.Context, cursor string, limit int) (ledger.IDPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = pageLimit(limit, ledger.DefaultUserPageSize)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM accounts
		WHERE user_id > ?
		ORDER BY user_id
		LIMIT ?
	`, cursor, limit+1)
	if err != nil {
		return ledger.IDPage{}, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ledger.IDPage{}, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return ledger.IDPage{}, err
	}

	page := ledger.IDPage{IDs: ids}
	if len(ids) > limit {
		page.IDs = ids[:limit]
		page.NextCursor = ids[limit-1]
	}
	return page, nil
}

// ApplyDelta increments the balance, extends the synced trail and completes
// the transaction in one SQL transaction.
func (s *Store) ApplyDelta(ctx context.Context, w ledger.DeltaWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	row := sqlTx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, w.AccountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrAccountNotFound
	}
	if err != nil {
		return err
	}

	res, err := sqlTx.ExecContext(ctx, `UPDATE transactions SET status = ? WHERE id = ?`, string(ledger.StatusCompleted), w.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}

	balance := a.Balance.Add(w.Delta)
	ids := a.SyncedTransactionIDs
	if !containsID(ids, w.TransactionID) {
		ids = append(ids, w.TransactionID)
	}
	err = updateAccount(ctx, sqlTx, w.AccountID, ledger.AccountPatch{
		Balance:              &balance,
		SyncedTransactionIDs: ids,
		UpdatedAt:            &w.At,
	})
	if err != nil {
		return err
	}

	return sqlTx.Commit()
}

// SaveTransaction inserts or replaces a transaction.
func (s *Store) SaveTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := tx.Status
	if status == "" {
		status = ledger.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, credit_card_id, user_id, amount, direction, date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			credit_card_id = excluded.credit_card_id,
			user_id = excluded.user_id,
			amount = excluded.amount,
			direction = excluded.direction,
			date = excluded.date,
			status = excluded.status
	`,
		tx.ID,
		nullString(tx.AccountID),
		nullString(tx.CreditCardID),
		nullString(tx.UserID),
		tx.Amount.String(),
		string(tx.Direction),
		formatTime(tx.Date),
		string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

// =============================================================================
// SWEEP RUNS (ledger.RunStore)
// =============================================================================

const runColumns = `id, cutoff, status, users, accounts, recomputed, failed, error, started_at, completed_at`

func (s *Store) SaveSweepRun(ctx context.Context, r ledger.SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt sql.NullString
	if r.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*r.CompletedAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sweep_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			users = excluded.users,
			accounts = excluded.accounts,
			recomputed = excluded.recomputed,
			failed = excluded.failed,
			error = excluded.error,
			completed_at = excluded.completed_at
	`,
		r.ID,
		formatTime(r.Cutoff),
		r.Status,
		r.Users,
		r.Accounts,
		r.Recomputed,
		r.Failed,
		nullString(r.Error),
		formatTime(r.StartedAt),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sweep run: %w", err)
	}
	return nil
}

func (s *Store) LastCompletedSweep(ctx context.Context) (*ledger.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM sweep_runs
		WHERE status = ?
		ORDER BY cutoff DESC, started_at DESC
		LIMIT 1
	`, ledger.RunCompleted)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListSweepRuns(ctx context.Context, status string) ([]ledger.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM sweep_runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep runs: %w", err)
	}
	defer rows.Close()

	var runs []ledger.SweepRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanAccount(row scanner) (ledger.Account, error) {
	var (
		a         ledger.Account
		balance   string
		idsJSON   string
		updatedAt sql.NullString
	)
	if err := row.Scan(&a.ID, &a.UserID, &balance, &idsJSON, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("failed to scan account: %w", err)
	}

	a.Balance = decimal.RequireFromString(balance)
	if err := json.Unmarshal([]byte(idsJSON), &a.SyncedTransactionIDs); err != nil {
		return a, fmt.Errorf("failed to decode synced ids for %s: %w", a.ID, err)
	}
	a.UpdatedAt = parseTime(updatedAt.String)
	return a, nil
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		tx           ledger.Transaction
		accountID    sql.NullString
		creditCardID sql.NullString
		userID       sql.NullString
		amount       string
		direction    string
		date         string
		status       string
	)
	err := row.Scan(&tx.ID, &accountID, &creditCardID, &userID, &amount, &direction, &date, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx, err
		}
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.AccountID = accountID.String
	tx.CreditCardID = creditCardID.String
	tx.UserID = userID.String
	tx.Amount = decimal.RequireFromString(amount)
	tx.Direction = ledger.Direction(direction)
	tx.Date = parseTime(date)
	tx.Status = ledger.Status(status)
	return tx, nil
}

func scanRun(row scanner) (ledger.SweepRun, error) {
	var (
		r           ledger.SweepRun
		cutoff      string
		errText     sql.NullString
		startedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&r.ID, &cutoff, &r.Status, &r.Users, &r.Accounts,
		&r.Recomputed, &r.Failed, &errText, &startedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan sweep run: %w", err)
	}

	r.Cutoff = parseTime(cutoff)
	r.Error = errText.String
	r.StartedAt = parseTime(startedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		r.CompletedAt = &t
	}
	return r, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func pageLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
