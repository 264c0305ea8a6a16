package economy

import (
	"context"
	"time"
)

// Store is the account table. Every method has get-or-create semantics: an id that was never
// seen before is materialized as NewAccount(id) inside the same call.
//
// Update and UpdatePair run fn inside the critical section of the account(s) involved. fn must
// not block; it may be invoked more than once when the store retries a conflicting transaction,
// so it must derive everything from the state it is handed. When fn returns an error nothing is
// written and the error is returned unchanged.
type Store interface {
	Get(ctx context.Context, id AccountID) (Account, error)
	Update(ctx context.Context, id AccountID, fn func(*Account) error) (Account, error)
	UpdatePair(ctx context.Context, a, b AccountID, fn func(a, b *Account) error) (Account, Account, error)
	TopByNetWorth(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

const (
	EventWork      = "work"
	EventCredit    = "credit"
	EventDebit     = "debit"
	EventTransfer  = "transfer"
	EventBorrow    = "borrow"
	EventRepay     = "repay"
	EventDeposit   = "deposit"
	EventWithdraw  = "withdraw"
	EventJobChange = "job_change"
	EventSlot      = "slot"
	EventCoinFlip  = "coinflip"
)

// Event describes one committed mutation.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	AccountID      AccountID `json:"account_id"`
	CounterpartyID AccountID `json:"counterparty_id,omitempty"`
	Amount         int64     `json:"amount"`
	Net            int64     `json:"net"`
	CashAfter      int64     `json:"cash_after"`
	Detail         string    `json:"detail,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Recorder receives one observation per ledger operation.
type Recorder interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// LeaderboardCache holds recent leaderboard snapshots keyed by limit.
type LeaderboardCache interface {
	Get(ctx context.Context, limit int) ([]LeaderboardEntry, bool, error)
	Put(ctx context.Context, limit int, entries []LeaderboardEntry) error
}
