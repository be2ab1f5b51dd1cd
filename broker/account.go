package broker

import (
	"context"

	"github.com/rustyeddy/tradekit/market"
)

// Account is the operation set a broker integration must provide. Each call
// may block on I/O. Order storage belongs to the implementation; callers
// only observe orders through these methods.
//
// Metrics that can be composed from these primitives (free margin, margin
// level, gross profit, status filters) are package functions and are not
// part of the interface.
type Account interface {
	Info() AccountInfo

	Balance(ctx context.Context) (float64, error)
	Equity(ctx context.Context) (float64, error)
	UsedMargin(ctx context.Context) (float64, error)

	Orders(ctx context.Context) ([]Order, error)
	// Order returns ErrOrderNotFound for an unknown ticket.
	Order(ctx context.Context, ticket int64) (Order, error)
	OrderSwaps(ctx context.Context, ticket int64) (float64, error)
	OrderCommission(ctx context.Context, ticket int64) (float64, error)
	// OrderNetProfit depends on the integration's cost model.
	OrderNetProfit(ctx context.Context, ticket int64) (float64, error)

	// PlaceOrder returns once the order is stable: open for market
	// execution, pending for limit and stop orders.
	PlaceOrder(ctx context.Context, d OrderDirectives) (Order, error)
	// CancelOrder is only valid for pending orders.
	CancelOrder(ctx context.Context, ticket int64) error
	// CloseOrder is only valid for open orders.
	CloseOrder(ctx context.Context, ticket int64) error
	SetOrderStopLoss(ctx context.Context, ticket int64, stopLoss float64) error
	SetOrderTakeProfit(ctx context.Context, ticket int64, takeProfit float64) error

	Symbols(ctx context.Context) ([]market.Symbol, error)
	Symbol(ctx context.Context, name string) (market.Symbol, error)
	IsSymbolMarketOpen(ctx context.Context, name string) (bool, error)
	// SymbolPeriods returns the most recent periods of a symbol; how many
	// is up to the integration.
	SymbolPeriods(ctx context.Context, name string, timeframe int32, side market.PriceSide) ([]market.Period, error)
	SymbolLastTick(ctx context.Context, name string) (market.Tick, error)
}
