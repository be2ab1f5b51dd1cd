package market

import "time"

// NoLimit disables the period cap of Aggregate.
const NoLimit = -1

// Aggregate composes fixed width periods from a time ordered tick sequence.
//
// Windows start at start and advance one timeframe at a time, so a gap in
// the feed is walked as a series of empty windows which never produce a
// period. Ticks before the current window are dropped and a tick that lands
// exactly on a window end still belongs to that window. A negative limit
// means no cap; otherwise at most limit periods are returned.
//
// Aggregate never fails: bad input degrades to an empty or partial result.
// It does not modify ticks and is safe to call concurrently on the same
// slice.
func Aggregate(ticks []Tick, start time.Time, timeframe int32, side PriceSide, limit int) []Period {
	if len(ticks) == 0 || timeframe <= 0 || limit == 0 {
		return nil
	}

	step := time.Duration(timeframe) * time.Second
	windowStart := start
	windowEnd := windowStart.Add(step)

	var (
		periods []Period
		bucket  []Tick
	)

	full := func() bool {
		return limit > NoLimit && len(periods) >= limit
	}

	flush := func(at time.Time) {
		if p, ok := NewPeriod(bucket, at, timeframe, side); ok {
			periods = append(periods, p)
		}
		bucket = bucket[:0]
	}

	for _, t := range ticks {
		if t.Time.Before(windowStart) {
			continue
		}

		advanced := false
		bucketStart := windowStart
		for t.Time.After(windowEnd) {
			windowStart = windowEnd
			windowEnd = windowStart.Add(step)
			advanced = true
		}

		if advanced {
			// the bucket belongs to the window it was filled in
			flush(bucketStart)
			if full() {
				return periods
			}
		}

		bucket = append(bucket, t)
	}

	flush(windowStart)
	return periods
}
