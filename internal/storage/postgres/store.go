// Package postgres provides the Postgres-backed account store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coffer/internal/economy"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTxConflict = errors.New("transaction conflict: retries exhausted")

// Store runs every mutation in a serializable transaction that also takes row locks.
// Serialization failures re-run the whole read-modify-write against fresh rows.
type Store struct {
	db          *pgxpool.Pool
	maxAttempts int
	retryDelay  time.Duration
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, maxAttempts: 8, retryDelay: 75 * time.Millisecond}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Get(ctx context.Context, id economy.AccountID) (economy.Account, error) {
	var out economy.Account
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureAccount(ctx, tx, id); err != nil {
			return err
		}
		acct, err := loadAccount(ctx, tx, id, false)
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
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureAccount(ctx, tx, id); err != nil {
			return err
		}
		acct, err := loadAccount(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(&acct); err != nil {
			return err
		}
		if err := saveAccount(ctx, tx, acct); err != nil {
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

// UpdatePair locks the lower id first so two opposing transfers wait instead of deadlocking.
func (s *Store) UpdatePair(ctx context.Context, a, b economy.AccountID, fn func(a, b *economy.Account) error) (economy.Account, economy.Account, error) {
	var outA, outB economy.Account
	if a == b {
		return outA, outB, economy.ErrInvalidTarget
	}
	first, second := a, b
	if b < a {
		first, second = b, a
	}
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureAccount(ctx, tx, first); err != nil {
			return err
		}
		if err := ensureAccount(ctx, tx, second); err != nil {
			return err
		}
		firstAcct, err := loadAccount(ctx, tx, first, true)
		if err != nil {
			return err
		}
		secondAcct, err := loadAccount(ctx, tx, second, true)
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
		if err := saveAccount(ctx, tx, acctA); err != nil {
			return err
		}
		if err := saveAccount(ctx, tx, acctB); err != nil {
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

// TopByNetWorth reads without locks; concurrent writers may make it slightly stale.
func (s *Store) TopByNetWorth(ctx context.Context, limit int) ([]economy.LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, cash + bank - debt AS net_worth
		FROM accounts
		ORDER BY net_worth DESC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, unavailable("query leaderboard", err)
	}
	defer rows.Close()

	var out []economy.LeaderboardEntry
	for rows.Next() {
		var id, netWorth int64
		if err := rows.Scan(&id, &netWorth); err != nil {
			return nil, unavailable("scan leaderboard", err)
		}
		out = append(out, economy.LeaderboardEntry{AccountID: economy.AccountID(id), NetWorth: netWorth})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate leaderboard", err)
	}
	return out, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	retryDelay := s.retryDelay
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return unavailable("begin", err)
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			if err := tx.Commit(ctx); err != nil {
				return unavailable("commit", err)
			}
			return nil
		}()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return unavailable("retry wait", err)
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return fmt.Errorf("%w: %w", economy.ErrStorageUnavailable, ErrTxConflict)
}

func ensureAccount(ctx context.Context, tx pgx.Tx, id economy.AccountID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (id, job_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, int64(id), economy.DefaultJobID)
	if err != nil {
		return unavailable("create account", err)
	}
	return nil
}

func loadAccount(ctx context.Context, tx pgx.Tx, id economy.AccountID, forUpdate bool) (economy.Account, error) {
	query := `
		SELECT cash, bank, debt, job_id, last_work_at
		FROM accounts
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}
	acct := economy.Account{ID: id}
	var lastWork *time.Time
	if err := tx.QueryRow(ctx, query, int64(id)).Scan(&acct.Cash, &acct.Bank, &acct.Debt, &acct.JobID, &lastWork); err != nil {
		return economy.Account{}, unavailable("load account", err)
	}
	if lastWork != nil {
		t := lastWork.UTC()
		acct.LastWorkAt = &t
	}
	return acct, nil
}

func saveAccount(ctx context.Context, tx pgx.Tx, acct economy.Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE accounts
		SET cash = $1, bank = $2, debt = $3, job_id = $4, last_work_at = $5, updated_at = now()
		WHERE id = $6
	`, acct.Cash, acct.Bank, acct.Debt, acct.JobID, acct.LastWorkAt, int64(acct.ID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return economy.ErrNegativeBalance
		}
		return unavailable("save account", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", economy.ErrStorageUnavailable, op, err)
}

// isRetryable matches serialization failures and deadlocks.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
