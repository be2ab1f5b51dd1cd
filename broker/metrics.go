package broker

import (
	"context"
	"fmt"
	"math"

	"github.com/rustyeddy/tradekit/market"
)

// Derived metrics. They only compose Account primitives and return any
// primitive error unchanged.

// FreeMargin returns equity minus used margin.
func FreeMargin(ctx context.Context, a Account) (float64, error) {
	equity, err := a.Equity(ctx)
	if err != nil {
		return 0, err
	}
	used, err := a.UsedMargin(ctx)
	if err != nil {
		return 0, err
	}
	return equity - used, nil
}

// MarginLevel returns equity as a percentage of used margin, or NaN when no
// margin is used.
func MarginLevel(ctx context.Context, a Account) (float64, error) {
	used, err := a.UsedMargin(ctx)
	if err != nil {
		return 0, err
	}
	if used == 0 {
		return math.NaN(), nil
	}
	equity, err := a.Equity(ctx)
	if err != nil {
		return 0, err
	}
	return equity / used * 100, nil
}

func OrdersByStatus(ctx context.Context, a Account, status OrderStatus) ([]Order, error) {
	orders, err := a.Orders(ctx)
	if err != nil {
		return nil, err
	}
	var out []Order
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func PendingOrders(ctx context.Context, a Account) ([]Order, error) {
	return OrdersByStatus(ctx, a, StatusPending)
}

func CanceledOrders(ctx context.Context, a Account) ([]Order, error) {
	return OrdersByStatus(ctx, a, StatusCanceled)
}

func OpenOrders(ctx context.Context, a Account) ([]Order, error) {
	return OrdersByStatus(ctx, a, StatusOpen)
}

func ClosedOrders(ctx context.Context, a Account) ([]Order, error) {
	return OrdersByStatus(ctx, a, StatusClosed)
}

// OrderGrossProfit fetches the order and the symbol's last tick and applies
// GrossProfit.
func OrderGrossProfit(ctx context.Context, a Account, ticket int64) (float64, error) {
	o, err := a.Order(ctx, ticket)
	if err != nil {
		return 0, err
	}
	if o.OpenPrice == nil {
		return 0, missingOpenPrice(o)
	}
	last, err := a.SymbolLastTick(ctx, o.Symbol)
	if err != nil {
		return 0, err
	}
	return GrossProfit(o, last)
}

// GrossProfit values an order against a tick. The mark is the order's close
// price when set, otherwise the side the order would close on (bid for buy,
// ask for sell).
//
//	sell: (open - mark) * volume * ask
//	buy:  (mark - open) * volume * bid
//
// The delta is scaled by the tick price rather than a contract size.
func GrossProfit(o Order, last market.Tick) (float64, error) {
	if o.OpenPrice == nil {
		return 0, missingOpenPrice(o)
	}
	open := *o.OpenPrice

	mark := last.Bid
	if o.Direction == Sell {
		mark = last.Ask
	}
	if o.ClosePrice != nil {
		mark = *o.ClosePrice
	}

	switch o.Direction {
	case Sell:
		return (open - mark) * o.Volume * last.Ask, nil
	case Buy:
		return (mark - open) * o.Volume * last.Bid, nil
	default:
		return 0, NewError(ErrInvalidState, fmt.Sprintf("order %d has unknown direction %v", o.Ticket, o.Direction), nil)
	}
}

func SymbolsByType(ctx context.Context, a Account, typ market.SymbolType) ([]market.Symbol, error) {
	symbols, err := a.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	var out []market.Symbol
	for _, s := range symbols {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out, nil
}

func missingOpenPrice(o Order) error {
	return NewError(ErrInvalidState,
		fmt.Sprintf("order %d has no open price", o.Ticket),
		map[string]any{"ticket": o.Ticket, "status": o.Status.String()})
}
