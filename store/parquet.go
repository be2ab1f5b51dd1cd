// Package store persists aggregated periods. Parquet is the storage format;
// CSV is offered for quick inspection. Ticks are never persisted.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/tradekit/market"
)

// PeriodRecord is the on-disk schema of a period.
type PeriodRecord struct {
	Symbol    string  `parquet:"symbol"`
	Start     int64   `parquet:"start,timestamp(millisecond)"` // Unix ms
	Timeframe int32   `parquet:"timeframe"`
	Side      string  `parquet:"side"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

func toRecord(p market.Period) PeriodRecord {
	return PeriodRecord{
		Symbol:    p.Symbol,
		Start:     p.StartTime.UnixMilli(),
		Timeframe: p.Timeframe,
		Side:      p.Side.String(),
		Open:      p.Open,
		High:      p.High,
		Low:       p.Low,
		Close:     p.Close,
		Volume:    int64(p.Volume),
	}
}

func fromRecord(r PeriodRecord) (market.Period, error) {
	side, err := market.ParsePriceSide(r.Side)
	if err != nil {
		return market.Period{}, err
	}
	return market.Period{
		Symbol:    r.Symbol,
		StartTime: time.UnixMilli(r.Start).UTC(),
		Timeframe: r.Timeframe,
		Side:      side,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    int(r.Volume),
	}, nil
}

// WritePeriods writes periods to a single parquet file, replacing it.
func WritePeriods(path string, periods []market.Period) error {
	records := make([]PeriodRecord, 0, len(periods))
	for _, p := range periods {
		records = append(records, toRecord(p))
	}
	return writeParquetFile(path, records)
}

// ReadPeriods reads a file written by WritePeriods. The returned periods
// carry no ticks.
func ReadPeriods(path string) ([]market.Period, error) {
	records, err := parquet.ReadFile[PeriodRecord](path)
	if err != nil {
		return nil, err
	}
	out := make([]market.Period, 0, len(records))
	for _, r := range records {
		p, err := fromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParquetStore keeps one file per symbol, timeframe, side and UTC day:
//
//	<DataDir>/<SYMBOL>/<TF>-<side>/<YYYY-MM-DD>.parquet
type ParquetStore struct {
	DataDir string
}

func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

func (s *ParquetStore) periodPath(symbol string, timeframe int32, side market.PriceSide, day time.Time) string {
	tf, err := market.SecondsToTFString(timeframe)
	if err != nil {
		tf = fmt.Sprintf("%ds", timeframe)
	}
	return filepath.Join(s.DataDir,
		strings.ToUpper(symbol),
		tf+"-"+side.String(),
		day.UTC().Format("2006-01-02")+".parquet")
}

// Write merges periods into the day files they belong to. A period already
// stored with the same start is replaced.
func (s *ParquetStore) Write(periods []market.Period) error {
	type key struct {
		symbol    string
		timeframe int32
		side      market.PriceSide
		day       string
	}
	groups := make(map[key][]PeriodRecord)
	for _, p := range periods {
		k := key{p.Symbol, p.Timeframe, p.Side, p.StartTime.UTC().Format("2006-01-02")}
		groups[k] = append(groups[k], toRecord(p))
	}

	for k, records := range groups {
		day, _ := time.Parse("2006-01-02", k.day)
		path := s.periodPath(k.symbol, k.timeframe, k.side, day)

		existing, _ := parquet.ReadFile[PeriodRecord](path)
		if err := writeParquetFile(path, mergeRecords(existing, records)); err != nil {
			return fmt.Errorf("writing periods for %s/%s: %w", k.symbol, k.day, err)
		}
	}
	return nil
}

// Read returns the stored periods starting in [start, end], oldest first.
func (s *ParquetStore) Read(symbol string, timeframe int32, side market.PriceSide, start, end time.Time) ([]market.Period, error) {
	var out []market.Period
	first := start.UTC().Truncate(24 * time.Hour)
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		records, err := parquet.ReadFile[PeriodRecord](s.periodPath(symbol, timeframe, side, d))
		if err != nil {
			// no file for this day
			continue
		}
		for _, r := range records {
			p, err := fromRecord(r)
			if err != nil {
				return nil, err
			}
			if p.StartTime.Before(start) || p.StartTime.After(end) {
				continue
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// Symbols lists the symbols that have stored periods.
func (s *ParquetStore) Symbols() ([]string, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// mergeRecords dedupes by start time, preferring incoming records, and
// sorts the result.
func mergeRecords(existing, incoming []PeriodRecord) []PeriodRecord {
	seen := make(map[int64]PeriodRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Start] = r
	}
	for _, r := range incoming {
		seen[r.Start] = r
	}

	merged := make([]PeriodRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })
	return merged
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
