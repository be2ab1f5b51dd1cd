package market

import (
	"math"
	"time"
)

// Period is an OHLCV bar over [StartTime, StartTime+Timeframe).
// Volume is the number of ticks folded into the bar.
type Period struct {
	Symbol    string
	StartTime time.Time
	Timeframe int32 // seconds
	Side      PriceSide

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume int

	// Ticks is only populated when the period was built from ticks.
	Ticks []Tick
}

// NewPeriod folds a bucket of ticks into a single period. It returns false
// for an empty bucket.
func NewPeriod(ticks []Tick, start time.Time, timeframe int32, side PriceSide) (Period, bool) {
	if len(ticks) == 0 {
		return Period{}, false
	}

	first := ticks[0].Price(side)
	hi, lo := first, first
	for _, t := range ticks[1:] {
		px := t.Price(side)
		if px > hi {
			hi = px
		}
		if px < lo {
			lo = px
		}
	}

	bucket := make([]Tick, len(ticks))
	copy(bucket, ticks)

	return Period{
		Symbol:    ticks[0].Symbol,
		StartTime: start,
		Timeframe: timeframe,
		Side:      side,
		Open:      first,
		High:      hi,
		Low:       lo,
		Close:     ticks[len(ticks)-1].Price(side),
		Volume:    len(ticks),
		Ticks:     bucket,
	}, true
}

func (p Period) EndTime() time.Time {
	return p.StartTime.Add(time.Duration(p.Timeframe) * time.Second)
}

func (p Period) Momentum() float64 {
	return p.Close / p.Open
}

func (p Period) Body() float64 {
	return p.Close - p.Open
}

func (p Period) AbsBody() float64 {
	return math.Abs(p.Body())
}

func (p Period) LowerShadow() float64 {
	return math.Min(p.Open, p.Close) - p.Low
}

func (p Period) UpperShadow() float64 {
	return p.High - math.Max(p.Open, p.Close)
}

func (p Period) OHLC() [4]float64 {
	return [4]float64{p.Open, p.High, p.Low, p.Close}
}

func (p Period) OHLCV() [5]float64 {
	return [5]float64{p.Open, p.High, p.Low, p.Close, float64(p.Volume)}
}

func (p Period) IsBearish() bool { return p.Body() < 0 }
func (p Period) IsNeutral() bool { return p.Body() == 0 }
func (p Period) IsBullish() bool { return p.Body() > 0 }

// Equal compares window coordinates only: two periods with the same symbol,
// start and timeframe are the same period whatever their prices.
func (p Period) Equal(o Period) bool {
	return p.Symbol == o.Symbol &&
		p.StartTime.Equal(o.StartTime) &&
		p.Timeframe == o.Timeframe
}
