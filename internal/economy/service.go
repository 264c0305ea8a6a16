package economy

import (
	"context"
	"log/slog"
	mathrand "math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// Service is the ledger engine: the only writer of account state.
type Service struct {
	store   Store
	jobs    *Catalog
	log     *slog.Logger
	rand    Rand
	events  Publisher
	metrics Recorder
	cache   LeaderboardCache
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

// WithRand replaces the time-seeded source. The service serializes calls into it.
func WithRand(r Rand) Option {
	return func(s *Service) { s.rand = &lockedRand{r: r} }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithLeaderboardCache(c LeaderboardCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock sets the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, jobs *Catalog, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if jobs == nil {
		jobs = DefaultCatalog()
	}
	s := &Service{
		store:  store,
		jobs:   jobs,
		log:    logger,
		rand:   &lockedRand{r: mathrand.New(mathrand.NewSource(time.Now().UnixNano()))},
		tracer: otel.Tracer("coffer/economy"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Jobs() []JobDefinition {
	return s.jobs.List()
}

func (s *Service) Balance(ctx context.Context, id AccountID) (out Balance, err error) {
	ctx, done := s.track(ctx, "balance", id)
	defer done(&err)

	acct, err := s.store.Get(ctx, id)
	if err != nil {
		return out, err
	}
	return balanceOf(acct), nil
}

func (s *Service) Credit(ctx context.Context, id AccountID, amount int64) (out Balance, err error) {
	ctx, done := s.track(ctx, "credit", id)
	defer done(&err)

	if err := validateAmount(amount); err != nil {
		return out, err
	}
	acct, err := s.update(ctx, id, func(a *Account) error {
		cash, err := addBalance(a.Cash, amount)
		if err != nil {
			return err
		}
		a.Cash = cash
		return nil
	})
	if err != nil {
		return out, err
	}
	s.committed(ctx, Event{Type: EventCredit, AccountID: id, Amount: amount, Net: amount, CashAfter: acct.Cash})
	return balanceOf(acct), nil
}

func (s *Service) Debit(ctx context.Context, id AccountID, amount int64) (out Balance, err error) {
	ctx, done := s.track(ctx, "debit", id)
	defer done(&err)

	if err := validateAmount(amount); err != nil {
		return out, err
	}
	acct, err := s.update(ctx, id, func(a *Account) error {
		if a.Cash < amount {
			return ErrInsufficientFunds
		}
		a.Cash -= amount
		return nil
	})
	if err != nil {
		return out, err
	}
	s.committed(ctx, Event{Type: EventDebit, AccountID: id, Amount: amount, Net: -amount, CashAfter: acct.Cash})
	return balanceOf(acct), nil
}

// Work pays the member's job income, at most once per WorkCooldown.
func (s *Service) Work(ctx context.Context, id AccountID, now time.Time) (out WorkResult, err error) {
	ctx, done := s.track(ctx, "work", id)
	defer done(&err)

	roll := WorkRollMin + int64(s.rand.Intn(int(WorkRollMax-WorkRollMin+1)))
	acct, err := s.update(ctx, id, func(a *Account) error {
		if a.LastWorkAt != nil {
			if elapsed := now.Sub(*a.LastWorkAt); elapsed < WorkCooldown {
				return &CooldownError{Remaining: WorkCooldown - elapsed}
			}
		}
		job := s.jobs.Get(a.JobID)
		earnings := job.Earnings(roll)
		cash, err := addBalance(a.Cash, earnings)
		if err != nil {
			return err
		}
		a.Cash = cash
		at := now
		a.LastWorkAt = &at
		out.JobID = job.ID
		out.Earnings = earnings
		return nil
	})
	if err != nil {
		return WorkResult{}, err
	}
	out.Cash = acct.Cash
	s.committed(ctx, Event{Type: EventWork, AccountID: id, Amount: out.Earnings, Net: out.Earnings, CashAfter: acct.Cash, Detail: out.JobID})
	return out, nil
}

// Transfer moves cash between two members atomically.
func (s *Service) Transfer(ctx context.Context, from, to AccountID, amount int64) (err error) {
	ctx, done := s.track(ctx, "transfer", from, attribute.Int64("ledger.counterparty", int64(to)))
	defer done(&err)

	if err := validateAmount(amount); err != nil {
		return err
	}
	if from == to || to <= 0 {
		return ErrInvalidTarget
	}
	src, _, err := s.updatePair(ctx, from, to, func(src, dst *Account) error {
		if src.Cash < amount {
			return ErrInsufficientFunds
		}
		cash, err := addBalance(dst.Cash, amount)
		if err != nil {
			return err
		}
		src.Cash -= amount
		dst.Cash = cash
		return nil
	})
	if err != nil {
		return err
	}
	s.committed(ctx, Event{Type: EventTransfer, AccountID: from, CounterpartyID: to, Amount: amount, Net: -amount, CashAfter: src.Cash})
	return nil
}

// Borrow lends cash against the member's current net worth. The ceiling is only checked here.
func (s *Service) Borrow(ctx context.Context, id AccountID, amount int64) (err error) {
	ctx, done := s.track(ctx, "borrow", id)
	defer done(&err)

	if err := validateAmount(amount); err != nil {
		return err
	}
	acct, err := s.update(ctx, id, func(a *Account) error {
		limit := DebtCeiling(a.Cash, a.Bank)
		if a.Debt > limit-amount {
			return &DebtLimitError{Limit: limit, Debt: a.Debt}
		}
		cash, err := addBalance(a.Cash, amount)
		if err != nil {
			return err
		}
		a.Cash = cash
		a.Debt += amount
		return nil
	})
	if err != nil {
		return err
	}
	s.committed(ctx, Event{Type: EventBorrow, AccountID: id, Amount: amount, Net: amount, CashAfter: acct.Cash})
	return nil
}

// Repay pays down debt, capped at what is owed.
func (s *Service) Repay(ctx context.Context, id AccountID, amount int64) (out RepayResult, err error) {
	ctx, done := s.track(ctx, "repay", id)
	defer done(&err)

	if err := validateAmount(amount); err != nil {
		return out, err
	}
	acct, err := s.update(ctx, id, func(a *Account) error {
		if a.Debt == 0 {
			return ErrNoDebt
		}
		repay := min(amount, a.Debt)
		if a.Cash < repay {
			return ErrInsufficientFunds
		}
		a.Cash -= repay
		a.Debt -= repay
		out.Repaid = repay
		return nil
	})
	if err != nil {
		return RepayResult{}, err
	}
	out.RemainingDebt = acct.Debt
	s.committed(ctx, Event{Type: EventRepay, AccountID: id, Amount: out.Repaid, Net: -out.Repaid, CashAfter: acct.Cash})
	return out, nil
}

func (s *Service) Deposit(ctx context.Context, id AccountID, amount int64) (out Balance, err error) {
	ctx, done := s.track(ctx, "deposit", id)
	defer done(&err)

	if err := validateAmount(amount); err != nil {
		return out, err
	}
	acct, err := s.update(ctx, id, func(a *Account) error {
		if a.Cash < amount {
			return ErrInsufficientFunds
		}
		bank, err := addBalance(a.Bank, amount)
		if err != nil {
			return err
		}
		a.Cash -= amount
		a.Bank = bank
		return nil
	})
	if err != nil {
		return out, err
	}
	s.committed(ctx, Event{Type: EventDeposit, AccountID: id, Amount: amount, Net: -amount, CashAfter: acct.Cash})
	return balanceOf(acct), nil
}

func (s *Service) Withdraw(ctx context.Context, id AccountID, amount int64) (out Balance, err error) {
	ctx, done := s.track(ctx, "withdraw", id)
	defer done(&err)

	if err := validateAmount(amount); err != nil {
		return out, err
	}
	acct, err := s.update(ctx, id, func(a *Account) error {
		if a.Bank < amount {
			return ErrInsufficientFunds
		}
		cash, err := addBalance(a.Cash, amount)
		if err != nil {
			return err
		}
		a.Bank -= amount
		a.Cash = cash
		return nil
	})
	if err != nil {
		return out, err
	}
	s.committed(ctx, Event{Type: EventWithdraw, AccountID: id, Amount: amount, Net: amount, CashAfter: acct.Cash})
	return balanceOf(acct), nil
}

// ChangeJob buys a job from the catalog for base_salary * JobCostFactor.
func (s *Service) ChangeJob(ctx context.Context, id AccountID, jobID string) (err error) {
	ctx, done := s.track(ctx, "change_job", id, attribute.String("ledger.job", jobID))
	defer done(&err)

	job, err := s.jobs.Lookup(jobID)
	if err != nil {
		return err
	}
	cost := job.PurchaseCost()
	acct, err := s.update(ctx, id, func(a *Account) error {
		if a.Cash < cost {
			return ErrInsufficientFunds
		}
		a.Cash -= cost
		a.JobID = job.ID
		return nil
	})
	if err != nil {
		return err
	}
	s.committed(ctx, Event{Type: EventJobChange, AccountID: id, Amount: cost, Net: -cost, CashAfter: acct.Cash, Detail: job.ID})
	return nil
}

// PlaySlot spins once and settles the stake in the same critical section that checks it.
func (s *Service) PlaySlot(ctx context.Context, id AccountID, stake int64) (out SlotResult, err error) {
	ctx, done := s.track(ctx, "slot", id)
	defer done(&err)

	if err := validateAmount(stake); err != nil {
		return out, err
	}
	symbols, wager := Slot(stake, s.rand)
	acct, err := s.update(ctx, id, func(a *Account) error {
		return settle(a, wager)
	})
	if err != nil {
		return out, err
	}
	out = SlotResult{Symbols: symbols, Payout: wager.Payout, Net: wager.Net(), Cash: acct.Cash}
	s.committed(ctx, Event{Type: EventSlot, AccountID: id, Amount: stake, Net: out.Net, CashAfter: acct.Cash})
	return out, nil
}

func (s *Service) FlipCoin(ctx context.Context, id AccountID, stake int64) (out CoinFlipResult, err error) {
	ctx, done := s.track(ctx, "coinflip", id)
	defer done(&err)

	if err := validateAmount(stake); err != nil {
		return out, err
	}
	won, wager := CoinToss(stake, s.rand)
	acct, err := s.update(ctx, id, func(a *Account) error {
		return settle(a, wager)
	})
	if err != nil {
		return out, err
	}
	out = CoinFlipResult{Won: won, Payout: wager.Payout, Net: wager.Net(), Cash: acct.Cash}
	s.committed(ctx, Event{Type: EventCoinFlip, AccountID: id, Amount: stake, Net: out.Net, CashAfter: acct.Cash})
	return out, nil
}

// update runs fn under the store's critical section and refuses results whose
// cash+bank would overflow, whatever the store itself checks.
func (s *Service) update(ctx context.Context, id AccountID, fn func(*Account) error) (Account, error) {
	return s.store.Update(ctx, id, func(a *Account) error {
		if err := fn(a); err != nil {
			return err
		}
		return checkHoldings(a.Cash, a.Bank)
	})
}

func (s *Service) updatePair(ctx context.Context, a, b AccountID, fn func(a, b *Account) error) (Account, Account, error) {
	return s.store.UpdatePair(ctx, a, b, func(x, y *Account) error {
		if err := fn(x, y); err != nil {
			return err
		}
		if err := checkHoldings(x.Cash, x.Bank); err != nil {
			return err
		}
		return checkHoldings(y.Cash, y.Bank)
	})
}

// settle applies a wager against cash only; bank is never at stake.
func settle(a *Account, w WagerOutcome) error {
	if a.Cash < w.Staked {
		return ErrInsufficientFunds
	}
	net := w.Net()
	if net < 0 {
		a.Cash += net
		return nil
	}
	cash, err := addBalance(a.Cash, net)
	if err != nil {
		return err
	}
	a.Cash = cash
	return nil
}

// Leaderboard ranks members by net worth. It may serve a cached, slightly stale snapshot.
func (s *Service) Leaderboard(ctx context.Context, limit int) (out []LeaderboardEntry, err error) {
	ctx, done := s.track(ctx, "leaderboard", 0)
	defer done(&err)

	limit = clampLimit(limit)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, limit)
		if err != nil {
			s.log.Warn("leaderboard cache read failed", "err", err)
		} else if ok {
			return cached, nil
		}
	}
	return s.loadLeaderboard(ctx, limit)
}

// RefreshLeaderboard recomputes the snapshot from the store and replaces the cached copy.
func (s *Service) RefreshLeaderboard(ctx context.Context, limit int) (out []LeaderboardEntry, err error) {
	ctx, done := s.track(ctx, "leaderboard_refresh", 0)
	defer done(&err)

	return s.loadLeaderboard(ctx, clampLimit(limit))
}

func (s *Service) loadLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.store.TopByNetWorth(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = int64(i + 1)
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, limit, rows); err != nil {
			s.log.Warn("leaderboard cache write failed", "err", err)
		}
	}
	return rows, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}

func (s *Service) track(ctx context.Context, op string, id AccountID, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	if id != 0 {
		attrs = append(attrs, attribute.Int64("ledger.account", int64(id)))
	}
	ctx, span := s.tracer.Start(ctx, "economy."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(errp *error) {
		outcome := Kind(*errp)
		span.SetAttributes(attribute.String("ledger.outcome", outcome))
		if outcome == "internal" || outcome == "storage_unavailable" {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(op, outcome, time.Since(start))
		}
	}
}

// committed logs the mutation and hands it to the publisher. Publishing is best effort.
func (s *Service) committed(ctx context.Context, ev Event) {
	ev.ID = uuid.NewString()
	ev.OccurredAt = s.now().UTC()
	s.log.Info("ledger mutation committed",
		"op", ev.Type,
		"account", int64(ev.AccountID),
		"amount", ev.Amount,
		"net", ev.Net,
		"cash_after", ev.CashAfter,
	)
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("ledger event publish failed", "op", ev.Type, "event_id", ev.ID, "err", err)
	}
}
