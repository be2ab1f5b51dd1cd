package sim

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradekit/broker"
	"github.com/rustyeddy/tradekit/market"
)

// UpdateTick feeds a quotation into the account. While the symbol's market
// is open, pending orders are filled when triggered and stop loss and take
// profit are checked. Swaps accrue and the resulting state is journaled.
// A tick older than the symbol's last tick is ignored.
func (a *Account) UpdateTick(ctx context.Context, t market.Tick) error {
	a.mu.Lock()

	s, ok := a.symbols[t.Symbol]
	if !ok {
		a.mu.Unlock()
		return symbolNotFound(t.Symbol)
	}

	if last, err := a.ticks.Get(t.Symbol); err == nil && t.Time.Before(last.Time) {
		a.mu.Unlock()
		a.log.WithFields(logrus.Fields{
			"symbol": t.Symbol,
			"time":   t.Time,
			"last":   last.Time,
		}).Debug("stale tick ignored")
		return nil
	}

	a.ticks.Set(t)
	a.appendHistoryLocked(t)
	if t.Time.After(a.lastTime) {
		a.lastTime = t.Time
	}

	a.accrueSwapsLocked(ctx, t.Time)

	var notes []notification

	if MarketOpen(s, t.Time) {
		filled, err := a.fillTriggeredLocked(ctx, t)
		notes = append(notes, filled...)
		if err == nil {
			var protected []notification
			protected, err = a.protectLocked(t)
			notes = append(notes, protected...)
		}
		if err != nil {
			a.mu.Unlock()
			a.notify(notes)
			return err
		}
	}

	liquidated, err := a.settleLocked(ctx)
	notes = append(notes, liquidated...)
	a.mu.Unlock()

	a.notify(notes)
	return err
}

// protectLocked closes the symbol's open orders whose stop loss or take
// profit the tick reaches. Buys are marked on the bid, sells on the ask.
func (a *Account) protectLocked(t market.Tick) ([]notification, error) {
	var notes []notification

	for _, o := range a.sortedLocked() {
		if o.Status != broker.StatusOpen || o.Symbol != t.Symbol {
			continue
		}

		mark := t.Bid
		if o.Direction == broker.Sell {
			mark = t.Ask
		}

		reason := ""
		switch {
		case hitStopLoss(o, mark):
			reason = ReasonStopLoss
		case hitTakeProfit(o, mark):
			reason = ReasonTakeProfit
		}
		if reason == "" {
			continue
		}
		if err := a.closeLocked(o, mark, t.Time, reason); err != nil {
			return notes, err
		}
		notes = append(notes, notification{order: snapshot(o), reason: reason})
	}
	return notes, nil
}

func (a *Account) appendHistoryLocked(t market.Tick) {
	h := append(a.history[t.Symbol], t)
	// trim in batches so appends stay amortised
	if len(h) >= 2*a.opts.HistoryLimit {
		h = append([]market.Tick(nil), h[len(h)-a.opts.HistoryLimit:]...)
	}
	a.history[t.Symbol] = h
}

func (a *Account) historyLocked(symbol string) []market.Tick {
	h := a.history[symbol]
	if len(h) > a.opts.HistoryLimit {
		h = h[len(h)-a.opts.HistoryLimit:]
	}
	return h
}

func (a *Account) accrueSwapsLocked(ctx context.Context, at time.Time) {
	for _, o := range a.orders {
		if o.Status != broker.StatusOpen || !at.After(o.swapTime) {
			continue
		}
		n := Rollovers(o.swapTime, at)
		if n > 0 {
			rate, err := market.QuoteToAccountRate(ctx, o.Symbol, a.info.CurrencyISO, a.ticks)
			if err != nil {
				a.log.WithError(err).WithField("ticket", o.Ticket).Warn("swap not accrued")
				continue
			}
			o.swaps += Swap(a.symbols[o.Symbol], o.Direction, o.Volume, n) * rate
		}
		o.swapTime = at
	}
}

// fillTriggeredLocked fills the symbol's pending orders whose trigger the
// tick satisfies. Orders the free margin cannot cover are canceled.
func (a *Account) fillTriggeredLocked(ctx context.Context, t market.Tick) ([]notification, error) {
	var notes []notification

	for _, o := range a.sortedLocked() {
		if o.Status != broker.StatusPending || o.Symbol != t.Symbol || !triggered(o, t) {
			continue
		}

		price := t.Ask
		if o.Direction == broker.Sell {
			price = t.Bid
		}

		err := a.fillLocked(ctx, o, price, t.Time)
		switch {
		case err == nil:
			a.log.WithFields(orderFields(o)).WithField("price", price).Info("pending order filled")
			notes = append(notes, notification{order: snapshot(o), reason: ReasonFilled})
		case errors.Is(err, broker.ErrInsufficientMargin):
			a.log.WithFields(orderFields(o)).WithError(err).Warn("pending order canceled")
			if err := o.Transition(broker.StatusCanceled); err != nil {
				return notes, err
			}
			o.CloseTime = t.Time
			notes = append(notes, notification{order: snapshot(o), reason: ReasonNoMargin})
		default:
			return notes, err
		}
	}
	return notes, nil
}

// triggered reports whether a pending limit or stop order should fill:
//
//	buy limit:  ask <= price    buy stop:  ask >= price
//	sell limit: bid >= price    sell stop: bid <= price
func triggered(o *order, t market.Tick) bool {
	if o.RequestedOpenPrice == nil {
		return false
	}
	price := *o.RequestedOpenPrice

	switch {
	case o.kind == kindLimit && o.Direction == broker.Buy:
		return t.Ask <= price
	case o.kind == kindLimit && o.Direction == broker.Sell:
		return t.Bid >= price
	case o.kind == kindStop && o.Direction == broker.Buy:
		return t.Ask >= price
	case o.kind == kindStop && o.Direction == broker.Sell:
		return t.Bid <= price
	}
	return false
}

func hitStopLoss(o *order, mark float64) bool {
	if o.StopLoss == nil {
		return false
	}
	if o.Direction == broker.Buy {
		return mark <= *o.StopLoss
	}
	return mark >= *o.StopLoss
}

func hitTakeProfit(o *order, mark float64) bool {
	if o.TakeProfit == nil {
		return false
	}
	if o.Direction == broker.Buy {
		return mark >= *o.TakeProfit
	}
	return mark <= *o.TakeProfit
}

func (a *Account) Symbols(context.Context) ([]market.Symbol, error) {
	out := make([]market.Symbol, 0, len(a.symbols))
	for _, n := range market.SymbolNames() {
		if s, ok := a.symbols[n]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Account) Symbol(_ context.Context, name string) (market.Symbol, error) {
	s, ok := a.symbols[name]
	if !ok {
		return market.Symbol{}, symbolNotFound(name)
	}
	return s, nil
}

func (a *Account) IsSymbolMarketOpen(_ context.Context, name string) (bool, error) {
	s, ok := a.symbols[name]
	if !ok {
		return false, symbolNotFound(name)
	}

	a.mu.Lock()
	now := a.now()
	a.mu.Unlock()

	return MarketOpen(s, now), nil
}

// SymbolPeriods aggregates the retained ticks of a symbol starting at the
// timeframe window that contains the oldest one.
func (a *Account) SymbolPeriods(_ context.Context, name string, timeframe int32, side market.PriceSide) ([]market.Period, error) {
	if _, ok := a.symbols[name]; !ok {
		return nil, symbolNotFound(name)
	}

	a.mu.Lock()
	history := market.LinkTicks(a.historyLocked(name))
	a.mu.Unlock()

	if len(history) == 0 || timeframe <= 0 {
		return nil, nil
	}
	start := history[0].Time.Truncate(time.Duration(timeframe) * time.Second)

	a.log.WithFields(logrus.Fields{
		"symbol":    name,
		"timeframe": timeframe,
		"ticks":     len(history),
	}).Debug("aggregating periods")

	return market.Aggregate(history, start, timeframe, side, market.NoLimit), nil
}

func (a *Account) SymbolLastTick(_ context.Context, name string) (market.Tick, error) {
	if _, ok := a.symbols[name]; !ok {
		return market.Tick{}, symbolNotFound(name)
	}
	return a.ticks.Get(name)
}
