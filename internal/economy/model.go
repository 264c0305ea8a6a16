package economy

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	WorkCooldown = 30 * time.Minute

	WorkRollMin = int64(500)
	WorkRollMax = int64(1500)

	MinBorrowFloor = int64(10_000)

	// JobCostFactor multiplies a job's base salary to get its purchase cost.
	JobCostFactor = int64(10)
)

var (
	ErrInvalidAmount      = errors.New("amount must be a positive integer")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidTarget      = errors.New("invalid target account")
	ErrDebtLimitExceeded  = errors.New("debt limit exceeded")
	ErrNoDebt             = errors.New("no outstanding debt")
	ErrCooldownActive     = errors.New("cooldown active")
	ErrUnknownJob         = errors.New("unknown job")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNegativeBalance    = errors.New("balance would become negative")
)

// CooldownError reports how long the caller still has to wait before working again.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %ds remaining", ErrCooldownActive, e.RemainingSeconds())
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

func (e *CooldownError) RemainingSeconds() int64 {
	if e.Remaining <= 0 {
		return 0
	}
	// Round up so an active cooldown never reports zero.
	return int64((e.Remaining + time.Second - 1) / time.Second)
}

// DebtLimitError carries the ceiling that was computed at borrow time.
type DebtLimitError struct {
	Limit int64
	Debt  int64
}

func (e *DebtLimitError) Error() string {
	return fmt.Sprintf("%s: %d more can be borrowed", ErrDebtLimitExceeded, e.RemainingCapacity())
}

func (e *DebtLimitError) Unwrap() error { return ErrDebtLimitExceeded }

// RemainingCapacity is never negative, even when an old loan now exceeds a shrunken ceiling.
func (e *DebtLimitError) RemainingCapacity() int64 {
	if e.Limit <= e.Debt {
		return 0
	}
	return e.Limit - e.Debt
}

// DebtCeiling returns max(MinBorrowFloor, (cash+bank)/2).
func DebtCeiling(cash, bank int64) int64 {
	limit := (cash + bank) / 2
	if limit < MinBorrowFloor {
		return MinBorrowFloor
	}
	return limit
}

func NetWorth(cash, bank, debt int64) int64 {
	return cash + bank - debt
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// addBalance adds delta to a balance field, rejecting int64 overflow.
func addBalance(balance, delta int64) (int64, error) {
	if delta > 0 && balance > math.MaxInt64-delta {
		return balance, fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	return balance + delta, nil
}

var errHoldingsOverflow = fmt.Errorf("%w: cash plus bank overflows", ErrInvalidAmount)

// checkHoldings rejects accounts whose cash+bank no longer fits in an int64.
// With both fields non-negative that bound also keeps net worth in range.
func checkHoldings(cash, bank int64) error {
	if cash > 0 && bank > 0 && cash > math.MaxInt64-bank {
		return errHoldingsOverflow
	}
	return nil
}

func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrDebtLimitExceeded):
		return "debt_limit_exceeded"
	case errors.Is(err, ErrNoDebt):
		return "no_debt"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown_active"
	case errors.Is(err, ErrUnknownJob):
		return "unknown_job"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
