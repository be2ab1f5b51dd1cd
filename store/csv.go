package store

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rustyeddy/tradekit/market"
)

var csvHeader = []string{"start", "symbol", "timeframe", "side", "open", "high", "low", "close", "volume"}

// WritePeriodsCSV writes periods as CSV with a header row.
func WritePeriodsCSV(w io.Writer, periods []market.Period) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range periods {
		rec := []string{
			p.StartTime.UTC().Format(time.RFC3339),
			p.Symbol,
			strconv.FormatInt(int64(p.Timeframe), 10),
			p.Side.String(),
			f(p.Open),
			f(p.High),
			f(p.Low),
			f(p.Close),
			strconv.Itoa(p.Volume),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
