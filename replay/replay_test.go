package replay

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradekit/broker"
	"github.com/rustyeddy/tradekit/broker/sim"
	"github.com/rustyeddy/tradekit/feed"
	"github.com/rustyeddy/tradekit/journal"
)

func newSim(t *testing.T, j journal.Journal) *sim.Account {
	t.Helper()
	a, err := sim.New(broker.AccountInfo{ID: "SIM-TEST", CurrencyISO: "USD"}, sim.Options{
		Balance: 100_000,
		Journal: j,
	})
	require.NoError(t, err)
	return a
}

func run(t *testing.T, acct Account, csv string, opts Options) (Summary, error) {
	t.Helper()
	return Run(context.Background(), feed.NewReader(strings.NewReader(csv), time.Time{}, time.Time{}), acct, opts)
}

func TestReplayTakeProfit(t *testing.T) {
	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "trader.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	acct := newSim(t, j)

	csv := `time,symbol,bid,ask,event,arg1,arg2,arg3,arg4
2026-01-21T09:30:00Z,EUR_USD,1.1000,1.1002,BUY,EUR_USD,10000,1.0980,1.1050
2026-01-21T09:30:05Z,EUR_USD,1.1010,1.1012,,,
2026-01-21T09:30:10Z,EUR_USD,1.1020,1.1022,,,
2026-01-21T09:30:15Z,EUR_USD,1.1030,1.1032,,,
2026-01-21T09:30:20Z,EUR_USD,1.1040,1.1042,,,
2026-01-21T09:30:25Z,EUR_USD,1.1050,1.1052,,,
2026-01-21T09:30:30Z,EUR_USD,1.1055,1.1057,CLOSE_ALL,,,
`
	s, err := run(t, acct, csv, Options{TickThenEvent: true})
	require.NoError(t, err)

	assert.Equal(t, 7, s.Rows)
	assert.Equal(t, 2, s.Events)
	assert.Equal(t, 1, s.Orders)
	assert.True(t, math.IsNaN(s.MarginLevel))

	want := 100_000 + (1.1050-1.1002)*10000*1.1050
	assert.InDelta(t, want, s.Balance, 1e-6)
	assert.InDelta(t, want, s.Equity, 1e-6)
	assert.InDelta(t, want, s.FreeMargin, 1e-6)

	rec, err := j.GetOrder(1)
	require.NoError(t, err)
	assert.Equal(t, sim.ReasonTakeProfit, rec.Reason)
	assert.Equal(t, 1.1002, rec.OpenPrice)
	assert.Equal(t, 1.1050, rec.ClosePrice)
}

func TestReplayStopLossSell(t *testing.T) {
	acct := newSim(t, nil)

	csv := `2026-01-21T09:30:00Z,EUR_USD,1.1000,1.1002,SELL,EUR_USD,10000,1.1020,
2026-01-21T09:30:05Z,EUR_USD,1.1010,1.1012
2026-01-21T09:30:10Z,EUR_USD,1.1018,1.1020
`
	s, err := run(t, acct, csv, Options{TickThenEvent: true})
	require.NoError(t, err)
	assert.InDelta(t, 100_000+(1.1000-1.1020)*10000*1.1020, s.Balance, 1e-6)

	o, err := acct.Order(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusClosed, o.Status)
	assert.Nil(t, o.TakeProfit)
}

func TestReplayPendingOrders(t *testing.T) {
	ctx := context.Background()
	acct := newSim(t, nil)

	csv := `2026-01-21T09:30:00Z,EUR_USD,1.1000,1.1002,BUY_LIMIT,EUR_USD,1000,1.0990
2026-01-21T09:30:01Z,EUR_USD,1.1000,1.1002,SELL_STOP,EUR_USD,1000,1.0950
2026-01-21T09:30:02Z,EUR_USD,1.1000,1.1002,BUY_STOP,EUR_USD,1000,1.1100
2026-01-21T09:30:03Z,EUR_USD,1.1000,1.1002,SELL_LIMIT,EUR_USD,1000,1.1200
2026-01-21T09:30:04Z,EUR_USD,1.0985,1.0987
2026-01-21T09:30:05Z,EUR_USD,1.0985,1.0987,CANCEL,2
2026-01-21T09:30:06Z,EUR_USD,1.0985,1.0987,SL,1,1.0900
2026-01-21T09:30:07Z,EUR_USD,1.0985,1.0987,TP,1,1.1100
`
	_, err := run(t, acct, csv, Options{TickThenEvent: true})
	require.NoError(t, err)

	orders, err := acct.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 4)

	assert.Equal(t, broker.StatusOpen, orders[0].Status)
	assert.Equal(t, 1.0987, *orders[0].OpenPrice)
	assert.Equal(t, 1.0900, *orders[0].StopLoss)
	assert.Equal(t, 1.1100, *orders[0].TakeProfit)

	assert.Equal(t, broker.StatusCanceled, orders[1].Status)
	assert.Equal(t, broker.Sell, orders[1].Direction)

	assert.Equal(t, broker.StatusPending, orders[2].Status)
	assert.Equal(t, 1.1100, *orders[2].RequestedOpenPrice)
	assert.Equal(t, broker.StatusPending, orders[3].Status)
	assert.Equal(t, broker.Sell, orders[3].Direction)
}

func TestReplayClosePosition(t *testing.T) {
	ctx := context.Background()
	acct := newSim(t, nil)

	csv := `2026-01-21T09:30:00Z,EUR_USD,1.1000,1.1002,BUY,EUR_USD,3000
2026-01-21T09:30:01Z,EUR_USD,1.1010,1.1012,CLOSE_POSITION,1,1000
2026-01-21T09:30:02Z,EUR_USD,1.1010,1.1012,CLOSE,1
`
	s, err := run(t, acct, csv, Options{TickThenEvent: true})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Events)

	// 1: original (closed last), 2: split part, 3: close order
	orders, err := acct.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, broker.StatusClosed, orders[0].Status)
	assert.Equal(t, 2000.0, orders[0].Volume)
	assert.Equal(t, 1000.0, orders[1].Volume)
	assert.Equal(t, broker.PurposeClose, orders[2].Purpose)

	open, err := broker.OpenOrders(ctx, acct)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReplayEventBeforeTick(t *testing.T) {
	acct := newSim(t, nil)

	// without a previous tick the market order has nothing to fill at
	csv := `2026-01-21T09:30:00Z,EUR_USD,1.1000,1.1002,BUY,EUR_USD,1000
`
	_, err := run(t, acct, csv, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrMarketClosed)
	assert.Contains(t, err.Error(), "BUY at 2026-01-21T09:30:00Z")

	// the second row's event fills at the first row's prices
	acct = newSim(t, nil)
	csv = `2026-01-21T09:30:00Z,EUR_USD,1.1000,1.1002
2026-01-21T09:30:01Z,EUR_USD,1.2000,1.2002,BUY,EUR_USD,1000
`
	_, err = run(t, acct, csv, Options{})
	require.NoError(t, err)
	o, err := acct.Order(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1.1002, *o.OpenPrice)
}

func TestReplayContinueOnError(t *testing.T) {
	acct := newSim(t, nil)

	csv := `2026-01-21T09:30:00Z,EUR_USD,1.1000,1.1002,CLOSE,42
2026-01-21T09:30:01Z,EUR_USD,1.1000,1.1002,JUMP
2026-01-21T09:30:02Z,EUR_USD,1.1000,1.1002,BUY,EUR_USD,1000
`
	_, err := run(t, acct, csv, Options{TickThenEvent: true})
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)

	acct = newSim(t, nil)
	s, err := run(t, acct, csv, Options{TickThenEvent: true, ContinueOnError: true, CloseAtEnd: true})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 3, s.Events)
	assert.Equal(t, 2, s.FailedEvents)

	closed, err := broker.ClosedOrders(context.Background(), acct)
	require.NoError(t, err)
	assert.Len(t, closed, 1)
}

func TestReplayBadTickAborts(t *testing.T) {
	acct := newSim(t, nil)

	csv := `2026-01-21T09:30:00Z,XXX_YYY,1.1000,1.1002
`
	_, err := run(t, acct, csv, Options{TickThenEvent: true, ContinueOnError: true})
	assert.ErrorIs(t, err, broker.ErrSymbolNotFound)
}

func TestReplayCanceledContext(t *testing.T) {
	acct := newSim(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := feed.NewReader(strings.NewReader("2026-01-21T09:30:00Z,EUR_USD,1.1,1.1002\n"), time.Time{}, time.Time{})
	_, err := Run(ctx, r, acct, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyArgumentErrors(t *testing.T) {
	ctx := context.Background()
	acct := newSim(t, nil)

	tests := []struct {
		event string
		args  []string
	}{
		{"BUY", []string{"EUR_USD"}},
		{"BUY", []string{"EUR_USD", "lots"}},
		{"SELL", []string{"EUR_USD", "1000", "x"}},
		{"BUY_LIMIT", []string{"EUR_USD", "1000"}},
		{"SELL_STOP", []string{"EUR_USD", "1000", "-1"}},
		{"CLOSE", nil},
		{"CANCEL", []string{"one"}},
		{"CLOSE_POSITION", nil},
		{"CLOSE_POSITION", []string{"pos", "many"}},
		{"SL", []string{"1"}},
		{"TP", []string{"1", "?"}},
		{"NOPE", nil},
	}

	for _, tt := range tests {
		t.Run(tt.event+"/"+strings.Join(tt.args, ","), func(t *testing.T) {
			assert.Error(t, Apply(ctx, acct, tt.event, tt.args))
		})
	}
}
