// Package replay drives an account from a tick CSV with scripted events.
//
// Each row is time,symbol,bid,ask[,event,args...]. Events (case-insensitive):
//
//	BUY|SELL                                symbol volume [stopLoss takeProfit]
//	BUY_LIMIT|BUY_STOP|SELL_LIMIT|SELL_STOP symbol volume price
//	CLOSE                                   ticket
//	CANCEL                                  ticket
//	CLOSE_POSITION                          position [volume]
//	SL|TP                                   ticket price
//	CLOSE_ALL
//
// A position may be given by id or by the ticket of one of its orders.
// A stop loss or take profit of 0 means none.
package replay

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradekit/broker"
	"github.com/rustyeddy/tradekit/feed"
	"github.com/rustyeddy/tradekit/market"
)

// Account is a broker account that can be driven tick by tick.
type Account interface {
	broker.Account
	UpdateTick(ctx context.Context, t market.Tick) error
	CloseAll(ctx context.Context) error
}

// Options controls how replay behaves.
type Options struct {
	// Process the tick before the row's event, so events execute at that
	// tick's prices. Otherwise the event runs against the previous tick.
	TickThenEvent bool

	// Close everything still open after the last row.
	CloseAtEnd bool

	// Log failed events and keep going instead of aborting.
	ContinueOnError bool

	Logger logrus.FieldLogger
}

// Summary is the account state at the end of a replay.
type Summary struct {
	Rows         int
	Events       int
	FailedEvents int

	Balance     float64
	Equity      float64
	FreeMargin  float64
	MarginLevel float64 // NaN when no margin is used
	Orders      int
}

// Run replays every row of r into acct.
func Run(ctx context.Context, r *feed.Reader, acct Account, opts Options) (Summary, error) {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	var s Summary
	for {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		row, ok, err := r.Next()
		if err != nil {
			return s, err
		}
		if !ok {
			break
		}
		s.Rows++

		eventErr, err := handleRow(ctx, acct, row, opts)
		if err != nil {
			return s, err
		}
		if row.Event != "" {
			s.Events++
		}
		if eventErr != nil {
			if !opts.ContinueOnError {
				return s, eventErr
			}
			s.FailedEvents++
			log.WithError(eventErr).WithFields(logrus.Fields{
				"time":  row.Tick.Time,
				"event": row.Event,
			}).Warn("event failed")
		}
	}

	if opts.CloseAtEnd {
		if err := acct.CloseAll(ctx); err != nil {
			return s, fmt.Errorf("close at end: %w", err)
		}
	}

	if err := summarize(ctx, acct, &s); err != nil {
		return s, err
	}

	log.WithFields(logrus.Fields{
		"rows":    s.Rows,
		"events":  s.Events,
		"failed":  s.FailedEvents,
		"balance": s.Balance,
		"equity":  s.Equity,
	}).Info("replay finished")
	return s, nil
}

// handleRow returns the event's error apart from the tick's, so a failed
// event can be skipped while a bad tick always aborts.
func handleRow(ctx context.Context, acct Account, row feed.Row, opts Options) (eventErr, err error) {
	if opts.TickThenEvent {
		if err := acct.UpdateTick(ctx, row.Tick); err != nil {
			return nil, err
		}
		return handleEvent(ctx, acct, row), nil
	}

	eventErr = handleEvent(ctx, acct, row)
	return eventErr, acct.UpdateTick(ctx, row.Tick)
}

func handleEvent(ctx context.Context, acct Account, row feed.Row) error {
	if row.Event == "" {
		return nil
	}
	if err := Apply(ctx, acct, row.Event, row.Args); err != nil {
		return fmt.Errorf("%s at %s: %w", row.Event, row.Tick.Time.Format(time.RFC3339Nano), err)
	}
	return nil
}

// Apply executes one scripted event against acct.
func Apply(ctx context.Context, acct Account, event string, args []string) error {
	switch strings.ToUpper(event) {
	case "BUY", "SELL":
		symbol, volume, err := parseSymbolVolume(args)
		if err != nil {
			return err
		}
		d := broker.OpenDirectives{Symbol: symbol, Direction: direction(event), Volume: volume}
		if len(args) >= 3 {
			p, err := parseProtection(args[2:])
			if err != nil {
				return err
			}
			d.Protection = p
		}
		_, err = acct.PlaceOrder(ctx, d)
		return err

	case "BUY_LIMIT", "BUY_STOP", "SELL_LIMIT", "SELL_STOP":
		symbol, volume, err := parseSymbolVolume(args)
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return fmt.Errorf("need symbol volume price")
		}
		price, err := parsePrice("price", args[2])
		if err != nil {
			return err
		}
		kind, _, _ := strings.Cut(event, "_")
		d := broker.OpenDirectives{Symbol: symbol, Direction: direction(kind), Volume: volume}
		if strings.HasSuffix(strings.ToUpper(event), "_LIMIT") {
			d.Limit = broker.Float(price)
		} else {
			d.Stop = broker.Float(price)
		}
		_, err = acct.PlaceOrder(ctx, d)
		return err

	case "CLOSE":
		ticket, err := parseTicket(args)
		if err != nil {
			return err
		}
		return acct.CloseOrder(ctx, ticket)

	case "CANCEL":
		ticket, err := parseTicket(args)
		if err != nil {
			return err
		}
		return acct.CancelOrder(ctx, ticket)

	case "CLOSE_POSITION":
		if len(args) < 1 {
			return fmt.Errorf("need position")
		}
		positionID, err := resolvePosition(ctx, acct, args[0])
		if err != nil {
			return err
		}
		d := broker.CloseDirectives{PositionID: positionID}
		if len(args) >= 2 {
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("bad volume %q: %w", args[1], err)
			}
			d.Volume = broker.Float(v)
		}
		_, err = acct.PlaceOrder(ctx, d)
		return err

	case "SL", "TP":
		ticket, err := parseTicket(args)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return fmt.Errorf("need ticket price")
		}
		price, err := parsePrice("price", args[1])
		if err != nil {
			return err
		}
		if strings.EqualFold(event, "SL") {
			return acct.SetOrderStopLoss(ctx, ticket, price)
		}
		return acct.SetOrderTakeProfit(ctx, ticket, price)

	case "CLOSE_ALL":
		return acct.CloseAll(ctx)

	default:
		return fmt.Errorf("unknown event %q", event)
	}
}

func summarize(ctx context.Context, acct Account, s *Summary) error {
	var err error
	if s.Balance, err = acct.Balance(ctx); err != nil {
		return err
	}
	if s.Equity, err = acct.Equity(ctx); err != nil {
		return err
	}
	if s.FreeMargin, err = broker.FreeMargin(ctx, acct); err != nil {
		return err
	}
	if s.MarginLevel, err = broker.MarginLevel(ctx, acct); err != nil {
		return err
	}
	orders, err := acct.Orders(ctx)
	if err != nil {
		return err
	}
	s.Orders = len(orders)
	return nil
}

func direction(s string) broker.Direction {
	if strings.EqualFold(s, "SELL") {
		return broker.Sell
	}
	return broker.Buy
}

func parseSymbolVolume(args []string) (string, float64, error) {
	if len(args) < 2 {
		return "", 0, fmt.Errorf("need symbol volume")
	}
	volume, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad volume %q: %w", args[1], err)
	}
	return args[0], volume, nil
}

func parseProtection(args []string) (*broker.Protection, error) {
	var p broker.Protection
	if len(args) >= 1 {
		sl, err := parsePrice("stop loss", args[0])
		if err != nil {
			return nil, err
		}
		if sl != 0 {
			p.StopLoss = broker.Float(sl)
		}
	}
	if len(args) >= 2 {
		tp, err := parsePrice("take profit", args[1])
		if err != nil {
			return nil, err
		}
		if tp != 0 {
			p.TakeProfit = broker.Float(tp)
		}
	}
	if p.StopLoss == nil && p.TakeProfit == nil {
		return nil, nil
	}
	return &p, nil
}

func parsePrice(name, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", name, s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", name, v)
	}
	return v, nil
}

func parseTicket(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("need ticket")
	}
	ticket, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad ticket %q: %w", args[0], err)
	}
	return ticket, nil
}

func resolvePosition(ctx context.Context, acct Account, ref string) (string, error) {
	ticket, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return ref, nil
	}
	o, err := acct.Order(ctx, ticket)
	if err != nil {
		return "", err
	}
	return o.PositionID, nil
}
