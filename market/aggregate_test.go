package market

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func tickAt(sec float64, bid float64) Tick {
	return NewTick("EUR_USD", t0.Add(time.Duration(sec*float64(time.Second))), bid, bid+0.0002)
}

func TestAggregateScenario(t *testing.T) {
	ticks := []Tick{
		tickAt(0, 1.0),
		tickAt(5, 1.1),
		tickAt(15, 1.2),
		tickAt(25, 1.3),
	}

	periods := Aggregate(ticks, t0, 10, PriceBid, NoLimit)
	require.Len(t, periods, 3)

	p := periods[0]
	assert.Equal(t, t0, p.StartTime)
	assert.Equal(t, t0.Add(10*time.Second), p.EndTime())
	assert.Equal(t, [5]float64{1.0, 1.1, 1.0, 1.1, 2}, p.OHLCV())
	assert.Len(t, p.Ticks, 2)
	assert.Equal(t, "EUR_USD", p.Symbol)
	assert.Equal(t, PriceBid, p.Side)

	p = periods[1]
	assert.Equal(t, t0.Add(10*time.Second), p.StartTime)
	assert.Equal(t, [5]float64{1.2, 1.2, 1.2, 1.2, 1}, p.OHLCV())

	p = periods[2]
	assert.Equal(t, t0.Add(20*time.Second), p.StartTime)
	assert.Equal(t, [5]float64{1.3, 1.3, 1.3, 1.3, 1}, p.OHLCV())
}

func TestAggregateEmptyInput(t *testing.T) {
	assert.Empty(t, Aggregate(nil, t0, 10, PriceBid, NoLimit))
	assert.Empty(t, Aggregate([]Tick{}, t0, 10, PriceBid, NoLimit))
}

func TestAggregateNonPositiveTimeframe(t *testing.T) {
	ticks := []Tick{tickAt(0, 1.0), tickAt(1, 1.1)}
	assert.Empty(t, Aggregate(ticks, t0, 0, PriceBid, NoLimit))
	assert.Empty(t, Aggregate(ticks, t0, -60, PriceBid, NoLimit))
}

func TestAggregateAskSide(t *testing.T) {
	ticks := []Tick{tickAt(0, 1.0), tickAt(5, 1.1)}
	periods := Aggregate(ticks, t0, 10, PriceAsk, NoLimit)
	require.Len(t, periods, 1)
	assert.InDelta(t, 1.0002, periods[0].Open, 1e-12)
	assert.InDelta(t, 1.1002, periods[0].Close, 1e-12)
	assert.Equal(t, PriceAsk, periods[0].Side)
}

func TestAggregateDropsTicksBeforeStart(t *testing.T) {
	ticks := []Tick{
		tickAt(-20, 0.9),
		tickAt(-1, 0.95),
		tickAt(2, 1.0),
		tickAt(3, 1.05),
	}
	periods := Aggregate(ticks, t0, 10, PriceBid, NoLimit)
	require.Len(t, periods, 1)
	assert.Equal(t, 2, periods[0].Volume)
	assert.Equal(t, 1.0, periods[0].Open)
}

func TestAggregateGapSkipsEmptyWindows(t *testing.T) {
	ticks := []Tick{
		tickAt(1, 1.0),
		tickAt(95, 1.5), // windows [10,20) .. [80,90) are empty
	}
	periods := Aggregate(ticks, t0, 10, PriceBid, NoLimit)
	require.Len(t, periods, 2)
	assert.Equal(t, t0, periods[0].StartTime)
	assert.Equal(t, t0.Add(90*time.Second), periods[1].StartTime)
	assert.Equal(t, 1, periods[1].Volume)
}

func TestAggregateBoundaryTickStaysInWindow(t *testing.T) {
	ticks := []Tick{
		tickAt(0, 1.0),
		tickAt(10, 1.1), // exactly on the end of the first window
		tickAt(10.5, 1.2),
	}
	periods := Aggregate(ticks, t0, 10, PriceBid, NoLimit)
	require.Len(t, periods, 2)
	assert.Equal(t, 2, periods[0].Volume)
	assert.Equal(t, 1.1, periods[0].Close)
	assert.Equal(t, 1, periods[1].Volume)
}

func TestAggregateDropsLateTicksAfterAdvance(t *testing.T) {
	ticks := []Tick{
		tickAt(1, 1.0),
		tickAt(12, 1.1),
		tickAt(3, 0.5), // late, window already at 10
		tickAt(14, 1.2),
	}
	periods := Aggregate(ticks, t0, 10, PriceBid, NoLimit)
	require.Len(t, periods, 2)
	assert.Equal(t, 2, periods[1].Volume)
	assert.Equal(t, 1.1, periods[1].Low)
}

func TestAggregateLimit(t *testing.T) {
	ticks := []Tick{
		tickAt(0, 1.0),
		tickAt(15, 1.1),
		tickAt(25, 1.2),
		tickAt(35, 1.3),
	}

	assert.Empty(t, Aggregate(ticks, t0, 10, PriceBid, 0))

	one := Aggregate(ticks, t0, 10, PriceBid, 1)
	require.Len(t, one, 1)
	assert.Equal(t, t0, one[0].StartTime)

	// cap reached only by the final flush
	single := Aggregate(ticks[:1], t0, 10, PriceBid, 1)
	require.Len(t, single, 1)

	all := Aggregate(ticks, t0, 10, PriceBid, 10)
	assert.Len(t, all, 4)
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	ticks := LinkTicks([]Tick{tickAt(0, 1.0), tickAt(5, 1.1), tickAt(15, 1.2)})
	before := make([]Tick, len(ticks))
	copy(before, ticks)

	periods := Aggregate(ticks, t0, 10, PriceBid, NoLimit)
	require.Len(t, periods, 2)
	periods[0].Ticks[0] = Tick{}

	assert.Equal(t, before, ticks)
}

func randomTicks(r *rand.Rand, n int) []Tick {
	secs := make([]float64, n)
	for i := range secs {
		secs[i] = r.Float64()*600 - 30
	}
	sort.Float64s(secs)

	ticks := make([]Tick, n)
	for i, s := range secs {
		ticks[i] = tickAt(s, 1+r.Float64()/10)
	}
	return ticks
}

func TestAggregateProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		ticks := randomTicks(r, 1+r.Intn(300))
		tf := int32(1 + r.Intn(120))
		side := PriceSide(r.Intn(2))

		periods := Aggregate(ticks, t0, tf, side, NoLimit)

		eligible := 0
		for _, tk := range ticks {
			if !tk.Time.Before(t0) {
				eligible++
			}
		}

		total := 0
		for j, p := range periods {
			total += p.Volume
			require.Len(t, p.Ticks, p.Volume)
			assert.Equal(t, p.Ticks[0].Price(side), p.Open)
			assert.Equal(t, p.Ticks[len(p.Ticks)-1].Price(side), p.Close)
			assert.GreaterOrEqual(t, p.High, p.Open)
			assert.GreaterOrEqual(t, p.High, p.Close)
			assert.LessOrEqual(t, p.Low, p.Open)
			assert.LessOrEqual(t, p.Low, p.Close)
			for _, tk := range p.Ticks {
				assert.False(t, tk.Time.Before(p.StartTime))
				assert.False(t, tk.Time.After(p.EndTime()))
			}
			if j > 0 {
				assert.True(t, p.StartTime.After(periods[j-1].StartTime))
			}
		}
		assert.Equal(t, eligible, total)

		limit := r.Intn(len(periods) + 2)
		capped := Aggregate(ticks, t0, tf, side, limit)
		want := limit
		if want > len(periods) {
			want = len(periods)
		}
		require.Len(t, capped, want)
		for j := range capped {
			assert.Equal(t, periods[j], capped[j])
		}
	}
}

func TestAggregateConcurrentCalls(t *testing.T) {
	ticks := randomTicks(rand.New(rand.NewSource(7)), 500)
	want := Aggregate(ticks, t0, 30, PriceBid, NoLimit)

	done := make(chan []Period)
	for i := 0; i < 8; i++ {
		go func() { done <- Aggregate(ticks, t0, 30, PriceBid, NoLimit) }()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, want, <-done)
	}
}
