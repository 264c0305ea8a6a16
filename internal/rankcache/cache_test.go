package rankcache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coffer/internal/economy"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "test:lb", time.Minute)

	mock.ExpectGet("test:lb:10").RedisNil()

	entries, ok, err := c.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "test:lb", time.Minute)

	mock.ExpectGet("test:lb:5").SetVal(`[{"rank":1,"account_id":42,"net_worth":900}]`)

	entries, ok, err := c.Get(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, economy.AccountID(42), entries[0].AccountID)
	assert.Equal(t, int64(900), entries[0].NetWorth)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "test:lb", time.Minute)

	mock.ExpectGet("test:lb:5").SetErr(errors.New("i/o timeout"))

	_, ok, err := c.Get(context.Background(), 5)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestGetCorruptSnapshot(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "test:lb", time.Minute)

	mock.ExpectGet("test:lb:5").SetVal("not json")

	_, _, err := c.Get(context.Background(), 5)
	require.Error(t, err)
}

func TestPutUsesTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "test:lb", 45*time.Second)
	entries := []economy.LeaderboardEntry{{Rank: 1, AccountID: 7, NetWorth: 300}}
	raw, err := json.Marshal(entries)
	require.NoError(t, err)

	mock.ExpectSet("test:lb:10", raw, 45*time.Second).SetVal("OK")

	require.NoError(t, c.Put(context.Background(), 10, entries))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDefaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	c := New(db, "", 0)
	assert.Equal(t, "coffer:leaderboard:3", c.key(3))
	assert.Equal(t, 30*time.Second, c.ttl)
}
