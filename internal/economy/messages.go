package economy

import (
	"errors"
	"fmt"
)

// Message turns a ledger error into the sentence shown to the member who caused it.
func Message(err error) string {
	var cooldown *CooldownError
	if errors.As(err, &cooldown) {
		secs := cooldown.RemainingSeconds()
		return fmt.Sprintf("You are still on break. Try again in %dm %ds.", secs/60, secs%60)
	}
	var debt *DebtLimitError
	if errors.As(err, &debt) {
		return fmt.Sprintf("That would exceed your debt limit. You can borrow %d more.", debt.RemainingCapacity())
	}
	if errors.Is(err, errHoldingsOverflow) {
		return "That would push your holdings past the largest amount the bank can track."
	}
	switch Kind(err) {
	case "ok":
		return ""
	case "invalid_amount":
		return "Amounts must be whole numbers greater than zero."
	case "insufficient_funds":
		return "You do not have enough cash for that."
	case "invalid_target":
		return "You cannot send coins to that account."
	case "debt_limit_exceeded":
		return "That would exceed your debt limit."
	case "no_debt":
		return "You have no debt to repay."
	case "cooldown_active":
		return "You are still on break."
	case "unknown_job":
		return "That job does not exist."
	case "storage_unavailable":
		return "The bank is temporarily closed. Please try again shortly."
	default:
		return "Something went wrong while updating your balance."
	}
}
