package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

type CSV struct {
	orders *csv.Writer
	equity *csv.Writer
	of, ef *os.File
}

func NewCSV(ordersPath, equityPath string) (*CSV, error) {
	of, err := os.Create(ordersPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", ordersPath, err)
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		_ = of.Close()
		return nil, fmt.Errorf("create %s: %w", equityPath, err)
	}

	ow := csv.NewWriter(of)
	ew := csv.NewWriter(ef)

	j := &CSV{ow, ew, of, ef}

	if err := ow.Write([]string{"ticket", "position_id", "symbol", "direction", "volume", "open_price", "close_price", "open_time", "close_time", "gross_profit", "net_profit", "reason"}); err != nil {
		_ = j.Close()
		return nil, err
	}
	if err := ew.Write([]string{"time", "balance", "equity", "used_margin", "free_margin", "margin_level"}); err != nil {
		_ = j.Close()
		return nil, err
	}

	ow.Flush()
	ew.Flush()
	if err := ow.Error(); err != nil {
		_ = j.Close()
		return nil, err
	}
	if err := ew.Error(); err != nil {
		_ = j.Close()
		return nil, err
	}

	return j, nil
}

func (j *CSV) RecordOrder(o OrderRecord) error {
	err := j.orders.Write([]string{
		strconv.FormatInt(o.Ticket, 10),
		o.PositionID,
		o.Symbol,
		o.Direction,
		f(o.Volume),
		f(o.OpenPrice),
		f(o.ClosePrice),
		o.OpenTime.Format(time.RFC3339),
		o.CloseTime.Format(time.RFC3339),
		f(o.GrossProfit),
		f(o.NetProfit),
		o.Reason,
	})
	if err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Balance),
		f(e.Equity),
		f(e.UsedMargin),
		f(e.FreeMargin),
		f(e.MarginLevel),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	j.orders.Flush()
	if err := j.orders.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.of.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

// f formats NaN as "NaN".
func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
