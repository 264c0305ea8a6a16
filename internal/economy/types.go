package economy

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountID int64

// Account is the persisted ledger row for one member.
type Account struct {
	ID         AccountID
	Cash       int64
	Bank       int64
	Debt       int64
	JobID      string
	LastWorkAt *time.Time
}

// NewAccount returns the state every account starts with on first reference.
func NewAccount(id AccountID) Account {
	return Account{ID: id, JobID: DefaultJobID}
}

func (a Account) NetWorth() int64 {
	return NetWorth(a.Cash, a.Bank, a.Debt)
}

// Validate checks the non-negativity invariant and that net worth stays representable.
// Stores call it before every commit.
func (a Account) Validate() error {
	if a.Cash < 0 || a.Bank < 0 || a.Debt < 0 {
		return ErrNegativeBalance
	}
	return checkHoldings(a.Cash, a.Bank)
}

// Clone returns a copy that shares no memory with a.
func (a Account) Clone() Account {
	if a.LastWorkAt != nil {
		t := *a.LastWorkAt
		a.LastWorkAt = &t
	}
	return a
}

type Balance struct {
	AccountID AccountID `json:"account_id"`
	Cash      int64     `json:"cash"`
	Bank      int64     `json:"bank"`
	Debt      int64     `json:"debt"`
	NetWorth  int64     `json:"net_worth"`
	JobID     string    `json:"job_id"`
}

func balanceOf(a Account) Balance {
	return Balance{
		AccountID: a.ID,
		Cash:      a.Cash,
		Bank:      a.Bank,
		Debt:      a.Debt,
		NetWorth:  a.NetWorth(),
		JobID:     a.JobID,
	}
}

type WorkResult struct {
	JobID    string `json:"job_id"`
	Earnings int64  `json:"earnings"`
	Cash     int64  `json:"cash"`
}

// WagerOutcome is produced by a game and consumed once by settlement.
type WagerOutcome struct {
	Staked     int64           `json:"staked"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Payout     int64           `json:"payout"`
}

func (o WagerOutcome) Net() int64 {
	return o.Payout - o.Staked
}

type SlotResult struct {
	Symbols [3]Symbol `json:"symbols"`
	Payout  int64     `json:"payout"`
	Net     int64     `json:"net"`
	Cash    int64     `json:"cash"`
}

type CoinFlipResult struct {
	Won    bool  `json:"won"`
	Payout int64 `json:"payout"`
	Net    int64 `json:"net"`
	Cash   int64 `json:"cash"`
}

type RepayResult struct {
	Repaid        int64 `json:"repaid"`
	RemainingDebt int64 `json:"remaining_debt"`
}

type LeaderboardEntry struct {
	Rank      int64     `json:"rank"`
	AccountID AccountID `json:"account_id"`
	NetWorth  int64     `json:"net_worth"`
}
