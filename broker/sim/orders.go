package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradekit/broker"
	"github.com/rustyeddy/tradekit/internal/id"
	"github.com/rustyeddy/tradekit/journal"
)

// volume tolerance when matching a partial close against open orders
const volumeEpsilon = 1e-9

// PlaceOrder places the order described by d. Market orders come back
// open, limit and stop orders pending, and close directives return the
// close order itself in the closed state.
func (a *Account) PlaceOrder(ctx context.Context, d broker.OrderDirectives) (broker.Order, error) {
	if d == nil {
		return broker.Order{}, broker.NewError(broker.ErrInvalidDirectives, "directives are required", nil)
	}
	if err := d.Validate(); err != nil {
		return broker.Order{}, err
	}

	a.mu.Lock()

	var (
		o   *order
		err error
	)
	switch d := d.(type) {
	case broker.OpenDirectives:
		o, err = a.openLocked(ctx, d)
	case broker.IncreaseDirectives:
		o, err = a.increaseLocked(ctx, d)
	case broker.CloseDirectives:
		o, err = a.closePositionLocked(ctx, d)
	default:
		err = broker.NewError(broker.ErrInvalidDirectives, fmt.Sprintf("unsupported directives %T", d), nil)
	}
	if err != nil {
		a.mu.Unlock()
		return broker.Order{}, err
	}

	var notes []notification
	if o.Status != broker.StatusPending {
		notes, err = a.settleLocked(ctx)
	}
	out := snapshot(o)
	a.mu.Unlock()

	a.notify(notes)
	return out, err
}

func (a *Account) openLocked(ctx context.Context, d broker.OpenDirectives) (*order, error) {
	if _, ok := a.symbols[d.Symbol]; !ok {
		return nil, symbolNotFound(d.Symbol)
	}

	now := a.now()
	o := &order{Order: broker.Order{
		PositionID:   id.At(now),
		Symbol:       d.Symbol,
		Direction:    d.Direction,
		Purpose:      broker.PurposeOpen,
		Status:       broker.StatusPending,
		Volume:       d.Volume,
		CreationTime: now,
	}}
	if d.Protection != nil {
		o.StopLoss = clone(d.Protection.StopLoss)
		o.TakeProfit = clone(d.Protection.TakeProfit)
	}

	switch {
	case d.Limit != nil:
		o.kind = kindLimit
		o.RequestedOpenPrice = clone(d.Limit)
	case d.Stop != nil:
		o.kind = kindStop
		o.RequestedOpenPrice = clone(d.Stop)
	default:
		if err := a.fillAtMarketLocked(ctx, o); err != nil {
			return nil, err
		}
	}

	a.positions[o.PositionID] = &position{id: o.PositionID, symbol: o.Symbol, direction: o.Direction}
	a.addLocked(o)

	a.log.WithFields(orderFields(o)).Info("order placed")
	return o, nil
}

func (a *Account) increaseLocked(ctx context.Context, d broker.IncreaseDirectives) (*order, error) {
	pos, err := a.positionLocked(d.PositionID)
	if err != nil {
		return nil, err
	}
	if !a.positionOpenLocked(pos.id) {
		return nil, broker.NewError(broker.ErrInvalidState,
			fmt.Sprintf("position %s has no open orders", pos.id),
			map[string]any{"position": pos.id})
	}

	now := a.now()
	o := &order{Order: broker.Order{
		PositionID:   pos.id,
		Symbol:       pos.symbol,
		Direction:    pos.direction,
		Purpose:      broker.PurposeOpen,
		Status:       broker.StatusPending,
		Volume:       d.Volume,
		CreationTime: now,
	}}
	if err := a.fillAtMarketLocked(ctx, o); err != nil {
		return nil, err
	}
	a.addLocked(o)

	a.log.WithFields(orderFields(o)).Info("position increased")
	return o, nil
}

// closePositionLocked closes the position's open orders oldest first. When
// the requested volume ends inside an order, that order is split: the
// closed part gets a new ticket and the rest stays open on the old one.
func (a *Account) closePositionLocked(ctx context.Context, d broker.CloseDirectives) (*order, error) {
	pos, err := a.positionLocked(d.PositionID)
	if err != nil {
		return nil, err
	}

	var open []*order
	total := 0.0
	for _, o := range a.sortedLocked() {
		if o.PositionID == pos.id && o.Purpose == broker.PurposeOpen && o.Status == broker.StatusOpen {
			open = append(open, o)
			total += o.Volume
		}
	}
	if len(open) == 0 {
		return nil, broker.NewError(broker.ErrInvalidState,
			fmt.Sprintf("position %s has no open orders", pos.id),
			map[string]any{"position": pos.id})
	}

	volume := total
	if d.Volume != nil {
		volume = *d.Volume
	}
	if volume > total+volumeEpsilon {
		return nil, broker.NewError(broker.ErrInvalidDirectives,
			fmt.Sprintf("cannot close %v of position %s holding %v", volume, pos.id, total),
			map[string]any{"position": pos.id, "volume": volume})
	}

	price, at, err := a.marketPriceLocked(pos.symbol, pos.direction.Opposite())
	if err != nil {
		return nil, err
	}

	remaining := volume
	for _, o := range open {
		if remaining <= volumeEpsilon {
			break
		}
		target := o
		if o.Volume > remaining+volumeEpsilon {
			target = a.splitLocked(o, remaining)
		}
		remaining -= target.Volume
		if err := a.closeLocked(target, price, at, ReasonManual); err != nil {
			return nil, err
		}
	}

	c := &order{Order: broker.Order{
		PositionID:   pos.id,
		Symbol:       pos.symbol,
		Direction:    pos.direction.Opposite(),
		Purpose:      broker.PurposeClose,
		Status:       broker.StatusClosed,
		Volume:       volume,
		OpenPrice:    broker.Float(price),
		ClosePrice:   broker.Float(price),
		CreationTime: at,
		OpenTime:     at,
		CloseTime:    at,
	}}
	a.addLocked(c)
	return c, nil
}

// splitLocked carves volume off o into a new open order on the same
// position. Commission and swaps are shared pro rata.
func (a *Account) splitLocked(o *order, volume float64) *order {
	share := volume / o.Volume

	part := &order{
		Order:      snapshot(o),
		kind:       o.kind,
		commission: o.commission * share,
		swaps:      o.swaps * share,
		swapTime:   o.swapTime,
	}
	part.Volume = volume
	a.addLocked(part)

	o.Volume -= volume
	o.commission -= part.commission
	o.swaps -= part.swaps
	return part
}

// CancelOrder cancels a pending order.
func (a *Account) CancelOrder(_ context.Context, ticket int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, err := a.orderLocked(ticket)
	if err != nil {
		return err
	}
	if err := o.Transition(broker.StatusCanceled); err != nil {
		return err
	}
	o.CloseTime = a.now()

	a.log.WithFields(orderFields(o)).Info("order canceled")
	return nil
}

// CloseOrder closes an open order at market: buys on the bid, sells on
// the ask.
func (a *Account) CloseOrder(ctx context.Context, ticket int64) error {
	a.mu.Lock()

	o, err := a.orderLocked(ticket)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if o.Status != broker.StatusOpen {
		a.mu.Unlock()
		return invalidState(o, fmt.Sprintf("is %s, not open", o.Status))
	}

	price, at, err := a.marketPriceLocked(o.Symbol, o.Direction.Opposite())
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if err := a.closeLocked(o, price, at, ReasonManual); err != nil {
		a.mu.Unlock()
		return err
	}

	notes, err := a.settleLocked(ctx)
	a.mu.Unlock()

	a.notify(notes)
	return err
}

// CloseAll closes every open order at market.
func (a *Account) CloseAll(ctx context.Context) error {
	a.mu.Lock()

	for _, o := range a.sortedLocked() {
		if o.Status != broker.StatusOpen {
			continue
		}
		price, at, err := a.marketPriceLocked(o.Symbol, o.Direction.Opposite())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		if err := a.closeLocked(o, price, at, ReasonManual); err != nil {
			a.mu.Unlock()
			return err
		}
	}

	notes, err := a.settleLocked(ctx)
	a.mu.Unlock()

	a.notify(notes)
	return err
}

// SetOrderStopLoss sets the stop loss of a pending or open order. Zero
// removes it.
func (a *Account) SetOrderStopLoss(_ context.Context, ticket int64, price float64) error {
	return a.setProtection(ticket, price, func(o *order, p *float64) { o.StopLoss = p })
}

// SetOrderTakeProfit sets the take profit of a pending or open order. Zero
// removes it.
func (a *Account) SetOrderTakeProfit(_ context.Context, ticket int64, price float64) error {
	return a.setProtection(ticket, price, func(o *order, p *float64) { o.TakeProfit = p })
}

func (a *Account) setProtection(ticket int64, price float64, set func(*order, *float64)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, err := a.orderLocked(ticket)
	if err != nil {
		return err
	}
	if o.Status != broker.StatusPending && o.Status != broker.StatusOpen {
		return invalidState(o, fmt.Sprintf("is %s", o.Status))
	}

	var p *float64
	if price != 0 {
		p = broker.Float(price)
	}
	set(o, p)
	return nil
}

func (a *Account) addLocked(o *order) {
	o.Ticket = a.nextTicket
	a.nextTicket++
	a.orders[o.Ticket] = o
}

func (a *Account) positionLocked(positionID string) (*position, error) {
	pos, ok := a.positions[positionID]
	if !ok {
		return nil, broker.NewError(broker.ErrOrderNotFound,
			fmt.Sprintf("position %s not found", positionID),
			map[string]any{"position": positionID})
	}
	return pos, nil
}

func (a *Account) positionOpenLocked(positionID string) bool {
	for _, o := range a.orders {
		if o.PositionID == positionID && o.Purpose == broker.PurposeOpen && o.Status == broker.StatusOpen {
			return true
		}
	}
	return false
}

// marketPriceLocked returns the price an order in direction d executes at
// right now: ask for buys, bid for sells.
func (a *Account) marketPriceLocked(symbol string, d broker.Direction) (float64, time.Time, error) {
	s, ok := a.symbols[symbol]
	if !ok {
		return 0, time.Time{}, symbolNotFound(symbol)
	}
	last, err := a.ticks.Get(symbol)
	if err != nil {
		return 0, time.Time{}, broker.NewError(broker.ErrMarketClosed,
			fmt.Sprintf("no quotation for %s", symbol),
			map[string]any{"symbol": symbol})
	}
	now := a.now()
	if !MarketOpen(s, now) {
		return 0, time.Time{}, broker.NewError(broker.ErrMarketClosed,
			fmt.Sprintf("market for %s is closed at %s", symbol, now.Format(time.RFC3339)),
			map[string]any{"symbol": symbol, "time": now})
	}

	price := last.Ask
	if d == broker.Sell {
		price = last.Bid
	}
	return price, last.Time, nil
}

func (a *Account) fillAtMarketLocked(ctx context.Context, o *order) error {
	price, at, err := a.marketPriceLocked(o.Symbol, o.Direction)
	if err != nil {
		return err
	}
	return a.fillLocked(ctx, o, price, at)
}

// fillLocked opens o at price once the free margin covers its margin and
// commission.
func (a *Account) fillLocked(ctx context.Context, o *order, price float64, at time.Time) error {
	commission := Commission(a.opts.CommissionPerUnit, o.Volume)

	need, err := a.orderMarginLocked(ctx, o.Symbol, o.Volume)
	if err != nil {
		return err
	}
	equity, err := a.equityLocked(ctx)
	if err != nil {
		return err
	}
	used, err := a.usedMarginLocked(ctx)
	if err != nil {
		return err
	}
	if free := equity - used + commission - need; free < 0 {
		return broker.NewError(broker.ErrInsufficientMargin,
			fmt.Sprintf("order needs %.2f margin, %.2f free", need, equity-used),
			map[string]any{"symbol": o.Symbol, "volume": o.Volume, "margin": need})
	}

	if err := o.Transition(broker.StatusOpen); err != nil {
		return err
	}
	o.OpenPrice = broker.Float(price)
	o.OpenTime = at
	o.commission = commission
	o.swapTime = at
	return nil
}

// closeLocked closes o at price and realises its net profit.
func (a *Account) closeLocked(o *order, price float64, at time.Time, reason string) error {
	if err := o.Transition(broker.StatusClosed); err != nil {
		return err
	}
	o.ClosePrice = broker.Float(price)
	o.CloseTime = at

	gross, err := a.grossProfitLocked(o)
	if err != nil {
		return err
	}
	o.realized = gross + o.commission + o.swaps
	a.balance += o.realized

	a.log.WithFields(orderFields(o)).WithFields(logrus.Fields{
		"reason": reason,
		"net":    o.realized,
	}).Info("order closed")

	return a.journal.RecordOrder(journal.OrderRecord{
		Ticket:      o.Ticket,
		PositionID:  o.PositionID,
		Symbol:      o.Symbol,
		Direction:   o.Direction.String(),
		Volume:      o.Volume,
		OpenPrice:   *o.OpenPrice,
		ClosePrice:  price,
		OpenTime:    o.OpenTime,
		CloseTime:   at,
		GrossProfit: gross,
		NetProfit:   o.realized,
		Reason:      reason,
	})
}

// settleLocked journals the account state and liquidates the worst open
// order while the margin level stays under the stop-out level.
func (a *Account) settleLocked(ctx context.Context) ([]notification, error) {
	var notes []notification

	for {
		equity, err := a.equityLocked(ctx)
		if err != nil {
			return notes, err
		}
		used, err := a.usedMarginLocked(ctx)
		if err != nil {
			return notes, err
		}

		level := math.NaN()
		if used != 0 {
			level = equity / used * 100
		}

		if a.opts.StopOutLevel > 0 && used > 0 && level < a.opts.StopOutLevel {
			worst, err := a.worstOpenLocked()
			if err != nil {
				return notes, err
			}
			if worst != nil {
				price, at, err := a.markLocked(worst)
				if err != nil {
					return notes, err
				}
				a.log.WithFields(logrus.Fields{
					"ticket":       worst.Ticket,
					"margin_level": level,
				}).Warn("stop-out")
				if err := a.closeLocked(worst, price, at, ReasonStopOut); err != nil {
					return notes, err
				}
				notes = append(notes, notification{order: snapshot(worst), reason: ReasonStopOut})
				continue
			}
		}

		return notes, a.journal.RecordEquity(journal.EquitySnapshot{
			Time:        a.now(),
			Balance:     a.balance,
			Equity:      equity,
			UsedMargin:  used,
			FreeMargin:  equity - used,
			MarginLevel: level,
		})
	}
}

func (a *Account) worstOpenLocked() (*order, error) {
	var (
		worst    *order
		worstNet float64
	)
	for _, o := range a.sortedLocked() {
		if o.Status != broker.StatusOpen {
			continue
		}
		net, err := a.netProfitLocked(o)
		if err != nil {
			return nil, err
		}
		if worst == nil || net < worstNet {
			worst, worstNet = o, net
		}
	}
	return worst, nil
}

// markLocked is the price an open order would close at on its symbol's
// last tick (bid for buys, ask for sells) and that tick's time.
func (a *Account) markLocked(o *order) (float64, time.Time, error) {
	last, err := a.ticks.Get(o.Symbol)
	if err != nil {
		return 0, time.Time{}, err
	}
	if o.Direction == broker.Sell {
		return last.Ask, last.Time, nil
	}
	return last.Bid, last.Time, nil
}

func symbolNotFound(symbol string) error {
	return broker.NewError(broker.ErrSymbolNotFound,
		fmt.Sprintf("symbol %s is not tradable on this account", symbol),
		map[string]any{"symbol": symbol})
}

func orderFields(o *order) logrus.Fields {
	return logrus.Fields{
		"ticket":    o.Ticket,
		"position":  o.PositionID,
		"symbol":    o.Symbol,
		"direction": o.Direction.String(),
		"volume":    o.Volume,
		"status":    o.Status.String(),
	}
}
