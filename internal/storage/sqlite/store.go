// Package sqlite provides a SQLite-backed account store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"coffer/internal/economy"
	"coffer/internal/storage/sqlite/migrations"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists accounts in one SQLite file. Writes run in immediate transactions over a
// single connection, which serializes every read-modify-write.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return New(sqlDB), nil
}

// New wraps an already-migrated handle.
func New(sqlDB *sql.DB) *Store {
	return &Store{sqlDB: sqlDB, now: time.Now}
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) Get(ctx context.Context, id economy.AccountID) (economy.Account, error) {
	var out economy.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		acct, err := s.ensure(ctx, tx, id)
		if err != nil {
			return err
		}
		out = acct
		return nil
	})
	return out, err
}

func (s *Store) Update(ctx context.Context, id economy.AccountID, fn func(*economy.Account) error) (economy.Account, error) {
	var out economy.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		acct, err := s.ensure(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&acct); err != nil {
			return err
		}
		if err := s.save(ctx, tx, acct); err != nil {
			return err
		}
		out = acct
		return nil
	})
	if err != nil {
		return economy.Account{}, err
	}
	return out, nil
}

func (s *Store) UpdatePair(ctx context.Context, a, b economy.AccountID, fn func(a, b *economy.Account) error) (economy.Account, economy.Account, error) {
	var outA, outB economy.Account
	if a == b {
		return outA, outB, economy.ErrInvalidTarget
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		first, second := a, b
		if b < a {
			first, second = b, a
		}
		firstAcct, err := s.ensure(ctx, tx, first)
		if err != nil {
			return err
		}
		secondAcct, err := s.ensure(ctx, tx, second)
		if err != nil {
			return err
		}
		acctA, acctB := firstAcct, secondAcct
		if first != a {
			acctA, acctB = secondAcct, firstAcct
		}
		if err := fn(&acctA, &acctB); err != nil {
			return err
		}
		if err := s.save(ctx, tx, acctA); err != nil {
			return err
		}
		if err := s.save(ctx, tx, acctB); err != nil {
			return err
		}
		outA, outB = acctA, acctB
		return nil
	})
	if err != nil {
		return economy.Account{}, economy.Account{}, err
	}
	return outA, outB, nil
}

func (s *Store) TopByNetWorth(ctx context.Context, limit int) ([]economy.LeaderboardEntry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, cash + bank - debt AS net_worth
		FROM accounts
		ORDER BY net_worth DESC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("query leaderboard", err)
	}
	defer rows.Close()

	var out []economy.LeaderboardEntry
	for rows.Next() {
		var e economy.LeaderboardEntry
		if err := rows.Scan(&e.AccountID, &e.NetWorth); err != nil {
			return nil, unavailable("scan leaderboard", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate leaderboard", err)
	}
	return out, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// ensure creates the row on first reference and returns its current state.
func (s *Store) ensure(ctx context.Context, tx *sql.Tx, id economy.AccountID) (economy.Account, error) {
	now := toMillis(s.now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, job_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		int64(id), economy.DefaultJobID, now, now,
	); err != nil {
		return economy.Account{}, unavailable("create account", err)
	}

	acct := economy.Account{ID: id}
	var lastWork sql.NullInt64
	if err := tx.QueryRowContext(ctx, `
		SELECT cash, bank, debt, job_id, last_work_at
		FROM accounts
		WHERE id = ?`, int64(id),
	).Scan(&acct.Cash, &acct.Bank, &acct.Debt, &acct.JobID, &lastWork); err != nil {
		return economy.Account{}, unavailable("load account", err)
	}
	if lastWork.Valid {
		t := fromMillis(lastWork.Int64)
		acct.LastWorkAt = &t
	}
	return acct, nil
}

func (s *Store) save(ctx context.Context, tx *sql.Tx, acct economy.Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	var lastWork sql.NullInt64
	if acct.LastWorkAt != nil {
		lastWork = sql.NullInt64{Int64: toMillis(*acct.LastWorkAt), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET cash = ?, bank = ?, debt = ?, job_id = ?, last_work_at = ?, updated_at = ?
		WHERE id = ?`,
		acct.Cash, acct.Bank, acct.Debt, acct.JobID, lastWork, toMillis(s.now()), int64(acct.ID),
	)
	if err != nil {
		if isCheckViolation(err) {
			return economy.ErrNegativeBalance
		}
		return unavailable("save account", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", economy.ErrStorageUnavailable, op, err)
}

func isCheckViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_CHECK
	}
	return strings.Contains(strings.ToLower(err.Error()), "check constraint failed")
}
