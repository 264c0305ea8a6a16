// Package memory provides an in-process account store guarded by per-account mutexes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"coffer/internal/economy"
)

type entry struct {
	mu   sync.Mutex
	acct economy.Account
}

// Store keeps accounts in a map. Each account has its own lock, so operations on distinct
// accounts never contend; the map lock is only held to find or create an entry.
type Store struct {
	mu       sync.Mutex
	accounts map[economy.AccountID]*entry
}

func New() *Store {
	return &Store{accounts: make(map[economy.AccountID]*entry)}
}

// unavailable reports a cancelled or expired caller context the same way the SQL stores do.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", economy.ErrStorageUnavailable, err)
}

func (s *Store) entry(id economy.AccountID) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.accounts[id]
	if !ok {
		e = &entry{acct: economy.NewAccount(id)}
		s.accounts[id] = e
	}
	return e
}

func (s *Store) Get(ctx context.Context, id economy.AccountID) (economy.Account, error) {
	if err := ctx.Err(); err != nil {
		return economy.Account{}, unavailable(err)
	}
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id economy.AccountID, fn func(*economy.Account) error) (economy.Account, error) {
	if err := ctx.Err(); err != nil {
		return economy.Account{}, unavailable(err)
	}
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.acct.Clone()
	if err := fn(&next); err != nil {
		return economy.Account{}, err
	}
	if err := next.Validate(); err != nil {
		return economy.Account{}, err
	}
	e.acct = next
	return next.Clone(), nil
}

// UpdatePair locks both accounts in ascending id order so opposing transfers cannot deadlock.
func (s *Store) UpdatePair(ctx context.Context, a, b economy.AccountID, fn func(a, b *economy.Account) error) (economy.Account, economy.Account, error) {
	var zero economy.Account
	if err := ctx.Err(); err != nil {
		return zero, zero, unavailable(err)
	}
	if a == b {
		return zero, zero, economy.ErrInvalidTarget
	}
	ea, eb := s.entry(a), s.entry(b)
	first, second := ea, eb
	if b < a {
		first, second = eb, ea
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	nextA, nextB := ea.acct.Clone(), eb.acct.Clone()
	if err := fn(&nextA, &nextB); err != nil {
		return zero, zero, err
	}
	if err := nextA.Validate(); err != nil {
		return zero, zero, err
	}
	if err := nextB.Validate(); err != nil {
		return zero, zero, err
	}
	ea.acct, eb.acct = nextA, nextB
	return nextA.Clone(), nextB.Clone(), nil
}

// TopByNetWorth reads each account under its own lock; the result is not a global snapshot.
func (s *Store) TopByNetWorth(ctx context.Context, limit int) ([]economy.LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.accounts))
	for _, e := range s.accounts {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	rows := make([]economy.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		rows = append(rows, economy.LeaderboardEntry{AccountID: e.acct.ID, NetWorth: e.acct.NetWorth()})
		e.mu.Unlock()
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NetWorth != rows[j].NetWorth {
			return rows[i].NetWorth > rows[j].NetWorth
		}
		return rows[i].AccountID < rows[j].AccountID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
