/*
Package postgres provides a PostgreSQL-backed ledger store.

Same contracts as store/sqlite. Differences:
  - balance is NUMERIC, scanned straight into decimal.Decimal
  - synced ids are a TEXT[] column (pq.Array)
  - ApplyDelta increments in SQL (balance = balance + $1), so the account
    row is never read back by the application
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/warp/ledger-sync/ledger"
)

// Config holds connection settings.
type Config struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Open connects and pings.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ ledger.FullStore = (*Store)(nil)

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	balance NUMERIC NOT NULL DEFAULT 0,
	synced_transaction_ids TEXT[] NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	account_id TEXT,
	credit_card_id TEXT,
	user_id TEXT,
	amount NUMERIC NOT NULL,
	direction TEXT NOT NULL,
	date TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id, id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);

CREATE TABLE IF NOT EXISTS sweep_runs (
	id TEXT PRIMARY KEY,
	cutoff TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	users INTEGER NOT NULL DEFAULT 0,
	accounts INTEGER NOT NULL DEFAULT 0,
	recomputed INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sweep_runs_status ON sweep_runs(status, cutoff);
`

// Migrate creates the schema if missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const selectAccount = `SELECT id, user_id, balance, synced_transaction_ids, updated_at FROM accounts`

func (s *Store) GetAccount(ctx context.Context, accountID string) (*ledger.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, selectAccount+` WHERE id = $1`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAccount writes every engine-owned column; nil patch fields keep their value.
func (s *Store) UpdateAccount(ctx context.Context, accountID string, patch ledger.AccountPatch) error {
	var (
		balance   any
		ids       any
		updatedAt any
	)
	if patch.Balance != nil {
		balance = *patch.Balance
	}
	if patch.SyncedTransactionIDs != nil {
		ids = pq.Array(patch.SyncedTransactionIDs)
	}
	if patch.UpdatedAt != nil {
		updatedAt = *patch.UpdatedAt
	}

	const query = `
		UPDATE accounts SET
			balance = COALESCE($1, balance),
			synced_transaction_ids = COALESCE($2, synced_transaction_ids),
			updated_at = COALESCE($3, updated_at)
		WHERE id = $4`

	res, err := s.db.ExecContext(ctx, query, balance, ids, updatedAt, accountID)
	if err != nil {
		return fmt.Errorf("update account %s: %w", accountID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccountsForUser(ctx context.Context, userID string) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, selectAccount+` WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
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

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	ids := a.SyncedTransactionIDs
	if ids == nil {
		ids = []string{}
	}
	const query = `
		INSERT INTO accounts (id, user_id, balance, synced_transaction_ids, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			balance = EXCLUDED.balance,
			synced_transaction_ids = EXCLUDED.synced_transaction_ids,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query, a.ID, a.UserID, a.Balance, pq.Array(ids), nullTime(a.UpdatedAt))
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const selectTransaction = `SELECT t.id, t.account_id, t.credit_card_id, t.user_id, t.amount, t.direction, t.date, t.status FROM transactions t`

func (s *Store) ListTransactionsForAccount(ctx context.Context, accountID, cursor string, limit int) (ledger.TransactionPage, error) {
	limit = pageLimit(limit, ledger.DefaultTransactionPageSize)
	return s.queryPage(ctx, limit,
		selectTransaction+` WHERE t.account_id = $1 AND t.id > $2 ORDER BY t.id LIMIT $3`,
		accountID, cursor, limit+1)
}

func (s *Store) ListDueTransactionsForUser(ctx context.Context, userID string, until time.Time, cursor string, limit int) (ledger.TransactionPage, error) {
	limit = pageLimit(limit, ledger.DefaultTransactionPageSize)
	const query = selectTransaction + `
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		  AND COALESCE(t.credit_card_id, '') = ''
		  AND t.date <= $2
		  AND t.id > $3
		ORDER BY t.id
		LIMIT $4`
	return s.queryPage(ctx, limit, query, userID, until, cursor, limit+1)
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, selectTransaction+` WHERE t.id = $1`, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) queryPage(ctx context.Context, limit int, query string, args ...any) (ledger.TransactionPage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.TransactionPage{}, err
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
	limit = pageLimit(limit, ledger.DefaultUserPageSize)
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM accounts WHERE user_id > $1 ORDER BY user_id LIMIT $2`,
		cursor, limit+1)
	if err != nil {
		return ledger.IDPage{}, err
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

// ApplyDelta completes the transaction and increments the balance in one SQL transaction.
func (s *Store) ApplyDelta(ctx context.Context, w ledger.DeltaWrite) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	res, err := dbTx.ExecContext(ctx, `UPDATE transactions SET status = $1 WHERE id = $2`,
		string(ledger.StatusCompleted), w.TransactionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}

	const query = `
		UPDATE accounts SET
			balance = balance + $1,
			synced_transaction_ids = CASE
				WHEN $2 = ANY(synced_transaction_ids) THEN synced_transaction_ids
				ELSE array_append(synced_transaction_ids, $2)
			END,
			updated_at = $3
		WHERE id = $4`
	res, err = dbTx.ExecContext(ctx, query, w.Delta, w.TransactionID, w.At, w.AccountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}

	return dbTx.Commit()
}

func (s *Store) SaveTransaction(ctx context.Context, tx ledger.Transaction) error {
	status := tx.Status
	if status == "" {
		status = ledger.StatusPending
	}
	const query = `
		INSERT INTO transactions (id, account_id, credit_card_id, user_id, amount, direction, date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			credit_card_id = EXCLUDED.credit_card_id,
			user_id = EXCLUDED.user_id,
			amount = EXCLUDED.amount,
			direction = EXCLUDED.direction,
			date = EXCLUDED.date,
			status = EXCLUDED.status`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID, nullString(tx.AccountID), nullString(tx.CreditCardID), nullString(tx.UserID),
		tx.Amount, string(tx.Direction), tx.Date, string(status))
	return err
}

func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, transactionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

const selectRun = `SELECT id, cutoff, status, users, accounts, recomputed, failed, error, started_at, completed_at FROM sweep_runs`

func (s *Store) SaveSweepRun(ctx context.Context, r ledger.SweepRun) error {
	var completedAt sql.NullTime
	if r.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *r.CompletedAt, Valid: true}
	}
	const query = `
		INSERT INTO sweep_runs (id, cutoff, status, users, accounts, recomputed, failed, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			users = EXCLUDED.users,
			accounts = EXCLUDED.accounts,
			recomputed = EXCLUDED.recomputed,
			failed = EXCLUDED.failed,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Cutoff, r.Status, r.Users, r.Accounts,
		r.Recomputed, r.Failed, nullString(r.Error), r.StartedAt, completedAt)
	return err
}

func (s *Store) LastCompletedSweep(ctx context.Context) (*ledger.SweepRun, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		selectRun+` WHERE status = $1 ORDER BY cutoff DESC, started_at DESC LIMIT 1`, ledger.RunCompleted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListSweepRuns(ctx context.Context, status string) ([]ledger.SweepRun, error) {
	rows, err := s.db.QueryContext(ctx,
		selectRun+` WHERE ($1 = '' OR status = $1) ORDER BY started_at DESC`, status)
	if err != nil {
		return nil, err
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
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (ledger.Account, error) {
	var (
		a         ledger.Account
		updatedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Balance, pq.Array(&a.SyncedTransactionIDs), &updatedAt)
	if err != nil {
		return a, err
	}
	if a.SyncedTransactionIDs == nil {
		a.SyncedTransactionIDs = []string{}
	}
	a.UpdatedAt = updatedAt.Time
	return a, nil
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		tx                        ledger.Transaction
		accountID, cardID, userID sql.NullString
		direction, status         string
	)
	err := row.Scan(&tx.ID, &accountID, &cardID, &userID, &tx.Amount, &direction, &tx.Date, &status)
	if err != nil {
		return tx, err
	}
	tx.AccountID = accountID.String
	tx.CreditCardID = cardID.String
	tx.UserID = userID.String
	tx.Direction = ledger.Direction(direction)
	tx.Status = ledger.Status(status)
	return tx, nil
}

func scanRun(row scanner) (ledger.SweepRun, error) {
	var (
		r           ledger.SweepRun
		completedAt sql.NullTime
		errText     sql.NullString
	)
	err := row.Scan(&r.ID, &r.Cutoff, &r.Status, &r.Users, &r.Accounts,
		&r.Recomputed, &r.Failed, &errText, &r.StartedAt, &completedAt)
	if err != nil {
		return r, err
	}
	r.Error = errText.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return r, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func pageLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
