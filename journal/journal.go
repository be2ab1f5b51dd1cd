// Package journal records closed orders and equity snapshots produced by an
// account.
package journal

import (
	"fmt"
	"time"
)

// OrderRecord is written when an order leaves the open state.
type OrderRecord struct {
	Ticket      int64
	PositionID  string
	Symbol      string
	Direction   string
	Volume      float64
	OpenPrice   float64
	ClosePrice  float64
	OpenTime    time.Time
	CloseTime   time.Time
	GrossProfit float64
	NetProfit   float64
	Reason      string
}

// EquitySnapshot is the account state after a revaluation. MarginLevel is
// NaN when no margin is used.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	UsedMargin  float64
	FreeMargin  float64
	MarginLevel float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

// Config selects a journal sink.
type Config struct {
	Type       string // "csv", "sqlite" or "none"
	OrdersFile string
	EquityFile string
	DBPath     string
}

// Open returns the sink described by cfg.
func Open(cfg Config) (Journal, error) {
	switch cfg.Type {
	case "", "none":
		return Nop{}, nil
	case "csv":
		return NewCSV(cfg.OrdersFile, cfg.EquityFile)
	case "sqlite":
		return NewSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}
