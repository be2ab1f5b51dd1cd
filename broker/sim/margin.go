package sim

import (
	"math"
	"time"

	"github.com/rustyeddy/tradekit/broker"
	"github.com/rustyeddy/tradekit/market"
)

// RolloverHour is the UTC hour at which swaps are charged.
const RolloverHour = 22

// Margin is the margin required to hold volume at price, in account
// currency.
func Margin(s market.Symbol, volume, price, quoteToAccount float64) float64 {
	return math.Abs(volume) * price * quoteToAccount * s.MarginRate
}

// Commission is the (non-positive) fee charged when volume opens.
func Commission(perUnit, volume float64) float64 {
	return -perUnit * math.Abs(volume)
}

// Rollovers counts the daily rollover instants r with from < r <= to.
func Rollovers(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	day := func(t time.Time) int64 {
		t = t.UTC().Add(-RolloverHour * time.Hour)
		return int64(math.Floor(float64(t.Unix()) / 86400))
	}
	return int(day(to) - day(from))
}

// Swap is the swap accrued by an order of volume over n rollovers, in
// quote currency.
func Swap(s market.Symbol, d broker.Direction, volume float64, n int) float64 {
	rate := s.LongSwap
	if d == broker.Sell {
		rate = s.ShortSwap
	}
	return rate * volume * float64(n)
}

// MarketOpen applies an FX-style week: closed from Friday 22:00 UTC until
// Sunday 22:00 UTC. Crypto trades around the clock.
func MarketOpen(s market.Symbol, t time.Time) bool {
	if s.Type == market.SymbolCrypto {
		return true
	}
	t = t.UTC()
	switch t.Weekday() {
	case time.Friday:
		return t.Hour() < RolloverHour
	case time.Saturday:
		return false
	case time.Sunday:
		return t.Hour() >= RolloverHour
	default:
		return true
	}
}
