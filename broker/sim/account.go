// Package sim is an in-memory broker.Account driven by ticks. It fills
// orders against the last tick of each symbol, tracks margin and swaps,
// and journals closed orders and equity snapshots.
package sim

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradekit/broker"
	"github.com/rustyeddy/tradekit/journal"
	"github.com/rustyeddy/tradekit/market"
)

const DefaultHistoryLimit = 10000

// Options configures a simulated account.
type Options struct {
	Balance float64

	// Tradable symbols, all registered symbols when empty.
	Symbols []string

	// Charged per unit of volume when an order opens.
	CommissionPerUnit float64

	// Margin level (percent) under which open orders are liquidated,
	// worst first. Zero disables stop-out.
	StopOutLevel float64

	// Ticks retained per symbol for SymbolPeriods.
	HistoryLimit int

	Journal journal.Journal
	Logger  logrus.FieldLogger

	// Clock overrides the market time used for market hours. The last
	// tick time is used when nil.
	Clock func() time.Time
}

// OrderListener is notified after the account lock is released whenever an
// order changes state on its own: a pending order filled, or an open
// order closed by stop loss, take profit or stop-out.
type OrderListener interface {
	OnOrderUpdate(o broker.Order, reason string)
}

const (
	ReasonFilled     = "Filled"
	ReasonStopLoss   = "StopLoss"
	ReasonTakeProfit = "TakeProfit"
	ReasonStopOut    = "StopOut"
	ReasonManual     = "ManualClose"
	ReasonNoMargin   = "InsufficientMargin"
)

type orderKind int

const (
	kindMarket orderKind = iota
	kindLimit
	kindStop
)

type order struct {
	broker.Order

	kind       orderKind
	commission float64
	swaps      float64
	realized   float64

	// last time swaps were accrued up to
	swapTime time.Time
}

type position struct {
	id        string
	symbol    string
	direction broker.Direction
}

type notification struct {
	order  broker.Order
	reason string
}

// Account implements broker.Account.
type Account struct {
	mu sync.Mutex

	info     broker.AccountInfo
	balance  float64
	opts     Options
	symbols  map[string]market.Symbol
	ticks    *market.TickStore
	history  map[string][]market.Tick
	lastTime time.Time

	orders     map[int64]*order
	positions  map[string]*position
	nextTicket int64

	journal  journal.Journal
	log      logrus.FieldLogger
	listener OrderListener
}

var _ broker.Account = (*Account)(nil)

func New(info broker.AccountInfo, opts Options) (*Account, error) {
	if info.CurrencyISO == "" {
		info.CurrencyISO = "USD"
	}
	if info.Broker == "" {
		info.Broker = "sim"
	}
	if info.Operativity == "" {
		info.Operativity = broker.Demo
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}

	names := opts.Symbols
	if len(names) == 0 {
		names = market.SymbolNames()
	}
	symbols := make(map[string]market.Symbol, len(names))
	for _, n := range names {
		s, err := market.LookupSymbol(n)
		if err != nil {
			return nil, broker.NewError(broker.ErrSymbolNotFound, err.Error(), map[string]any{"symbol": n})
		}
		symbols[n] = s
	}

	return &Account{
		info:       info,
		balance:    opts.Balance,
		opts:       opts,
		symbols:    symbols,
		ticks:      market.NewTickStore(),
		history:    make(map[string][]market.Tick),
		orders:     make(map[int64]*order),
		positions:  make(map[string]*position),
		nextTicket: 1,
		journal:    opts.Journal,
		log:        opts.Logger.WithField("account", info.ID),
	}, nil
}

// SetListener sets the listener notified about fills and automatic closes.
func (a *Account) SetListener(l OrderListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listener = l
}

func (a *Account) Info() broker.AccountInfo { return a.info }

func (a *Account) Balance(context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance, nil
}

func (a *Account) Equity(ctx context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.equityLocked(ctx)
}

func (a *Account) UsedMargin(ctx context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usedMarginLocked(ctx)
}

func (a *Account) Orders(context.Context) ([]broker.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]broker.Order, 0, len(a.orders))
	for _, o := range a.sortedLocked() {
		out = append(out, snapshot(o))
	}
	return out, nil
}

func (a *Account) Order(_ context.Context, ticket int64) (broker.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, err := a.orderLocked(ticket)
	if err != nil {
		return broker.Order{}, err
	}
	return snapshot(o), nil
}

func (a *Account) OrderSwaps(_ context.Context, ticket int64) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, err := a.filledOrderLocked(ticket)
	if err != nil {
		return 0, err
	}
	return o.swaps, nil
}

func (a *Account) OrderCommission(_ context.Context, ticket int64) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, err := a.filledOrderLocked(ticket)
	if err != nil {
		return 0, err
	}
	return o.commission, nil
}

// OrderNetProfit is gross profit plus commission and swaps. Closed orders
// report the amount realised into the balance when they closed.
func (a *Account) OrderNetProfit(_ context.Context, ticket int64) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, err := a.filledOrderLocked(ticket)
	if err != nil {
		return 0, err
	}
	if o.Status == broker.StatusClosed {
		return o.realized, nil
	}
	return a.netProfitLocked(o)
}

func (a *Account) orderLocked(ticket int64) (*order, error) {
	o, ok := a.orders[ticket]
	if !ok {
		return nil, broker.NewError(broker.ErrOrderNotFound,
			fmt.Sprintf("order %d not found", ticket),
			map[string]any{"ticket": ticket})
	}
	return o, nil
}

// filledOrderLocked returns an order that is open or closed.
func (a *Account) filledOrderLocked(ticket int64) (*order, error) {
	o, err := a.orderLocked(ticket)
	if err != nil {
		return nil, err
	}
	if o.Status != broker.StatusOpen && o.Status != broker.StatusClosed {
		return nil, invalidState(o, "has not been filled")
	}
	return o, nil
}

func (a *Account) sortedLocked() []*order {
	out := make([]*order, 0, len(a.orders))
	for _, o := range a.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}

func (a *Account) grossProfitLocked(o *order) (float64, error) {
	last, err := a.ticks.Get(o.Symbol)
	if err != nil {
		return 0, err
	}
	return broker.GrossProfit(o.Order, last)
}

func (a *Account) netProfitLocked(o *order) (float64, error) {
	gross, err := a.grossProfitLocked(o)
	if err != nil {
		return 0, err
	}
	return gross + o.commission + o.swaps, nil
}

func (a *Account) equityLocked(_ context.Context) (float64, error) {
	equity := a.balance
	for _, o := range a.orders {
		if o.Status != broker.StatusOpen {
			continue
		}
		net, err := a.netProfitLocked(o)
		if err != nil {
			return 0, err
		}
		equity += net
	}
	return equity, nil
}

func (a *Account) usedMarginLocked(ctx context.Context) (float64, error) {
	used := 0.0
	for _, o := range a.orders {
		if o.Status != broker.StatusOpen {
			continue
		}
		m, err := a.orderMarginLocked(ctx, o.Symbol, o.Volume)
		if err != nil {
			return 0, err
		}
		used += m
	}
	return used, nil
}

func (a *Account) orderMarginLocked(ctx context.Context, symbol string, volume float64) (float64, error) {
	last, err := a.ticks.Get(symbol)
	if err != nil {
		return 0, err
	}
	rate, err := market.QuoteToAccountRate(ctx, symbol, a.info.CurrencyISO, a.ticks)
	if err != nil {
		return 0, err
	}
	return Margin(a.symbols[symbol], volume, last.Mid(), rate), nil
}

// now is the account's market time.
func (a *Account) now() time.Time {
	if a.opts.Clock != nil {
		return a.opts.Clock()
	}
	if a.lastTime.IsZero() {
		return time.Now().UTC()
	}
	return a.lastTime
}

func (a *Account) notify(pending []notification) {
	a.mu.Lock()
	l := a.listener
	a.mu.Unlock()

	if l == nil {
		return
	}
	for _, n := range pending {
		l.OnOrderUpdate(n.order, n.reason)
	}
}

// snapshot copies an order so callers never share pointers with the
// account's state.
func snapshot(o *order) broker.Order {
	out := o.Order
	out.RequestedOpenPrice = clone(o.RequestedOpenPrice)
	out.OpenPrice = clone(o.OpenPrice)
	out.ClosePrice = clone(o.ClosePrice)
	out.StopLoss = clone(o.StopLoss)
	out.TakeProfit = clone(o.TakeProfit)
	return out
}

func clone(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return broker.Float(*p)
}

func invalidState(o *order, msg string) error {
	return broker.NewError(broker.ErrInvalidState,
		fmt.Sprintf("order %d %s", o.Ticket, msg),
		map[string]any{"ticket": o.Ticket, "status": o.Status.String()})
}
