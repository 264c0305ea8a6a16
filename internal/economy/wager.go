package economy

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Rand is the randomness the games draw from. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// lockedRand serializes access to a Rand that is not safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

type Symbol string

const (
	SymbolCherry     Symbol = "🍒"
	SymbolLemon      Symbol = "🍋"
	SymbolGrape      Symbol = "🍇"
	SymbolWatermelon Symbol = "🍉"
	SymbolSeven      Symbol = "7️⃣"
)

// SlotReel is the alphabet every reel draws from; the last symbol is the jackpot.
var SlotReel = []Symbol{SymbolCherry, SymbolLemon, SymbolGrape, SymbolWatermelon, SymbolSeven}

var (
	jackpotMultiplier = decimal.NewFromInt(10)
	tripleMultiplier  = decimal.NewFromInt(3)
	pairMultiplier    = decimal.RequireFromString("1.5")
	coinWinMultiplier = decimal.NewFromInt(2)
)

// SpinReels draws three independent symbols.
func SpinReels(rng Rand) [3]Symbol {
	var out [3]Symbol
	for i := range out {
		out[i] = SlotReel[rng.Intn(len(SlotReel))]
	}
	return out
}

func SlotMultiplier(s [3]Symbol) decimal.Decimal {
	switch {
	case s[0] == s[1] && s[1] == s[2]:
		if s[0] == SymbolSeven {
			return jackpotMultiplier
		}
		return tripleMultiplier
	case s[0] == s[1] || s[1] == s[2] || s[0] == s[2]:
		return pairMultiplier
	default:
		return decimal.Zero
	}
}

// Slot spins the reels and prices the result against stake.
func Slot(stake int64, rng Rand) ([3]Symbol, WagerOutcome) {
	symbols := SpinReels(rng)
	return symbols, outcome(stake, SlotMultiplier(symbols))
}

// CoinToss wins half the time. A win pays back twice the stake, so the net gain equals the stake.
func CoinToss(stake int64, rng Rand) (bool, WagerOutcome) {
	if rng.Intn(2) == 0 {
		return true, outcome(stake, coinWinMultiplier)
	}
	return false, outcome(stake, decimal.Zero)
}

func outcome(stake int64, multiplier decimal.Decimal) WagerOutcome {
	return WagerOutcome{
		Staked:     stake,
		Multiplier: multiplier,
		Payout:     decimal.NewFromInt(stake).Mul(multiplier).Floor().IntPart(),
	}
}
