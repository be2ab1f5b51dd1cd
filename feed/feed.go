// Package feed reads tick CSV files:
//
//	time,symbol,bid,ask[,event,args...]
//
// time is RFC3339 or RFC3339Nano. A single header row starting with
// "time" is allowed and empty or short rows are skipped.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradekit/market"
)

// Row is one tick with the optional event that follows it on the line.
type Row struct {
	Tick  market.Tick
	Event string
	Args  []string
}

// Reader yields rows in file order, keeping those in [from, to). A zero
// bound is open.
type Reader struct {
	r      *csv.Reader
	closer io.Closer
	from   time.Time
	to     time.Time

	line     int
	sawFirst bool
}

func NewReader(r io.Reader, from, to time.Time) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	return &Reader{r: cr, from: from, to: to}
}

// Open reads the CSV file at path.
func Open(path string, from, to time.Time) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(f, from, to)
	r.closer = f
	return r, nil
}

func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Next returns the next row in range. ok is false at end of input.
func (r *Reader) Next() (Row, bool, error) {
	for {
		rec, err := r.r.Read()
		if errors.Is(err, io.EOF) {
			return Row{}, false, nil
		}
		if err != nil {
			return Row{}, false, err
		}
		r.line++
		if len(rec) == 0 {
			continue
		}

		if !r.sawFirst {
			r.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
				continue
			}
		}

		row, ok, err := ParseRow(rec)
		if err != nil {
			return Row{}, false, fmt.Errorf("row %d: %w", r.line, err)
		}
		if !ok || !inRange(row.Tick.Time, r.from, r.to) {
			continue
		}
		return row, true, nil
	}
}

// ParseRow parses one CSV record. ok is false for records that carry no
// tick (too short, blank time or symbol).
func ParseRow(rec []string) (Row, bool, error) {
	if len(rec) < 4 {
		return Row{}, false, nil
	}

	ts := strings.TrimSpace(rec[0])
	if ts == "" {
		return Row{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return Row{}, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	symbol := strings.TrimSpace(rec[1])
	if symbol == "" {
		return Row{}, false, nil
	}

	bid, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil {
		return Row{}, false, fmt.Errorf("bad bid %q: %w", rec[2], err)
	}
	ask, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
	if err != nil {
		return Row{}, false, fmt.Errorf("bad ask %q: %w", rec[3], err)
	}

	row := Row{Tick: market.NewTick(symbol, t.UTC(), bid, ask)}
	if len(rec) >= 5 {
		row.Event = strings.ToUpper(strings.TrimSpace(rec[4]))
	}
	for _, a := range rec[min(len(rec), 5):] {
		row.Args = append(row.Args, strings.TrimSpace(a))
	}
	// trailing empty columns are padding, inner ones keep their position
	for len(row.Args) > 0 && row.Args[len(row.Args)-1] == "" {
		row.Args = row.Args[:len(row.Args)-1]
	}
	if len(row.Args) == 0 {
		row.Args = nil
	}
	return row, true, nil
}

// ReadTicks reads every tick in [from, to) and links them in file order.
// Events are ignored.
func ReadTicks(r io.Reader, from, to time.Time) ([]market.Tick, error) {
	fr := NewReader(r, from, to)

	var ticks []market.Tick
	for {
		row, ok, err := fr.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ticks = append(ticks, row.Tick)
	}
	return market.LinkTicks(ticks), nil
}

// ReadTicksFile is ReadTicks over the file at path.
func ReadTicksFile(path string, from, to time.Time) ([]market.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTicks(f, from, to)
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
