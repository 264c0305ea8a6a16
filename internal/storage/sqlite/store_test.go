package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"coffer/internal/economy"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "coffer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coffer.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	_, err = first.Update(context.Background(), 9, func(a *economy.Account) error {
		a.Cash = 10
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Cash)
}

func TestStoreGetCreatesDefaultAccount(t *testing.T) {
	st := openTempStore(t)
	acct, err := st.Get(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, economy.NewAccount(123), acct)
}

func TestStoreUpdateRoundTrip(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	out, err := st.Update(ctx, 5, func(a *economy.Account) error {
		a.Cash = 700
		a.Bank = 300
		a.Debt = 50
		a.JobID = "engineer"
		a.LastWorkAt = &at
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(950), out.NetWorth())

	got, err := st.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "engineer", got.JobID)
	require.NotNil(t, got.LastWorkAt)
	assert.True(t, at.Equal(*got.LastWorkAt))
}

func TestStoreUpdateRejectsNegative(t *testing.T) {
	st := openTempStore(t)
	_, err := st.Update(context.Background(), 5, func(a *economy.Account) error {
		a.Cash = -1
		return nil
	})
	require.ErrorIs(t, err, economy.ErrNegativeBalance)
}

func TestStoreUpdatePairOrdersArguments(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	_, err := st.Update(ctx, 20, func(a *economy.Account) error {
		a.Cash = 100
		return nil
	})
	require.NoError(t, err)

	src, dst, err := st.UpdatePair(ctx, 20, 10, func(src, dst *economy.Account) error {
		require.Equal(t, economy.AccountID(20), src.ID)
		require.Equal(t, economy.AccountID(10), dst.ID)
		src.Cash -= 40
		dst.Cash += 40
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(60), src.Cash)
	assert.Equal(t, int64(40), dst.Cash)

	_, _, err = st.UpdatePair(ctx, 3, 3, func(*economy.Account, *economy.Account) error { return nil })
	require.ErrorIs(t, err, economy.ErrInvalidTarget)
}

func TestStoreConcurrentCredits(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Update(ctx, 1, func(a *economy.Account) error {
				a.Cash++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := st.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Cash)
}

func TestStoreTopByNetWorth(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	for id, cash := range map[economy.AccountID]int64{1: 10, 2: 30, 3: 30, 4: 5} {
		_, err := st.Update(ctx, id, func(a *economy.Account) error {
			a.Cash = cash
			return nil
		})
		require.NoError(t, err)
	}

	top, err := st.TopByNetWorth(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []economy.AccountID{2, 3, 1}, []economy.AccountID{top[0].AccountID, top[1].AccountID, top[2].AccountID})
	assert.Equal(t, int64(30), top[0].NetWorth)
}

func TestStoreWrapsDriverFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = st.Update(context.Background(), 1, func(*economy.Account) error { return nil })
	require.ErrorIs(t, err, economy.ErrStorageUnavailable)
	assert.Equal(t, "storage_unavailable", economy.Kind(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreBeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	_, err = New(db).Get(context.Background(), 1)
	require.ErrorIs(t, err, economy.ErrStorageUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractUp(t *testing.T) {
	got := extractUp("-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n")
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", got)
	assert.Equal(t, "SELECT 1;", extractUp("SELECT 1;"))
}
