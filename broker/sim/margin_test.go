package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/tradekit/broker"
	"github.com/rustyeddy/tradekit/market"
)

func TestMargin(t *testing.T) {
	t.Parallel()

	meta := market.Symbols["EUR_USD"]

	got := Margin(meta, 1000, 1.2345, 1.0)
	assert.InDelta(t, 1000*1.2345*meta.MarginRate, got, 1e-9)

	// volume sign does not matter
	assert.InDelta(t, got, Margin(meta, -1000, 1.2345, 1.0), 1e-12)
	assert.InDelta(t, 0.0, Margin(meta, 0, 1.5, 1.0), 1e-12)

	got = Margin(meta, 2500, 2.0, 0.9)
	assert.InDelta(t, 2500*2.0*0.9*meta.MarginRate, got, 1e-9)
}

func TestCommissionAmount(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -5.0, Commission(0.00005, 100000), 1e-12)
	assert.InDelta(t, -5.0, Commission(0.00005, -100000), 1e-12)
	assert.Equal(t, 0.0, Commission(0, 100000))
}

func TestRollovers(t *testing.T) {
	t.Parallel()

	day := func(d, h, m int) time.Time { return time.Date(2024, 1, d, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"same instant", day(1, 9, 0), day(1, 9, 0), 0},
		{"backwards", day(2, 9, 0), day(1, 9, 0), 0},
		{"before rollover", day(1, 9, 0), day(1, 21, 59), 0},
		{"exactly at rollover", day(1, 9, 0), day(1, 22, 0), 1},
		{"starting at rollover", day(1, 22, 0), day(1, 23, 0), 0},
		{"one day", day(1, 9, 0), day(2, 9, 0), 1},
		{"three days", day(1, 21, 0), day(4, 22, 30), 4},
		{"non utc input", day(1, 9, 0), day(1, 23, 0).In(time.FixedZone("CET", 3600)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rollovers(tt.from, tt.to))
		})
	}
}

func TestSwap(t *testing.T) {
	t.Parallel()

	meta := market.Symbols["USD_JPY"]
	assert.InDelta(t, meta.LongSwap*1000*2, Swap(meta, broker.Buy, 1000, 2), 1e-12)
	assert.InDelta(t, meta.ShortSwap*1000, Swap(meta, broker.Sell, 1000, 1), 1e-12)
	assert.Equal(t, 0.0, Swap(meta, broker.Buy, 1000, 0))
}

func TestMarketOpen(t *testing.T) {
	t.Parallel()

	fx := market.Symbols["EUR_USD"]
	crypto := market.Symbols["BTC_USD"]

	// 2024-01-05 is a Friday
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"friday afternoon", time.Date(2024, 1, 5, 21, 59, 0, 0, time.UTC), true},
		{"friday close", time.Date(2024, 1, 5, 22, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC), false},
		{"sunday before open", time.Date(2024, 1, 7, 21, 59, 0, 0, time.UTC), false},
		{"sunday open", time.Date(2024, 1, 7, 22, 0, 0, 0, time.UTC), true},
		{"monday", time.Date(2024, 1, 8, 3, 0, 0, 0, time.UTC), true},
		{"friday evening new york", time.Date(2024, 1, 5, 18, 30, 0, 0, time.FixedZone("EST", -5*3600)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarketOpen(fx, tt.at))
			assert.True(t, MarketOpen(crypto, tt.at))
		})
	}
}
