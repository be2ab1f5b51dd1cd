package market

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoTick = errors.New("tick not found")

type TickSource interface {
	GetTick(ctx context.Context, symbol string) (Tick, error)
}

// Tick is a quotation event. A tick may point at its neighbours by index
// into the slice that owns it; it never owns them.
type Tick struct {
	Quotation

	// index+1 of the neighbour, 0 when unlinked
	prev int
	next int
}

func NewTick(symbol string, t time.Time, bid, ask float64) Tick {
	return Tick{Quotation: Quotation{Symbol: symbol, Time: t, Bid: bid, Ask: ask}}
}

func TickFromQuotation(q Quotation) Tick {
	return Tick{Quotation: q}
}

// Previous returns the index of the previous tick in the owning sequence.
func (t Tick) Previous() (int, bool) {
	if t.prev == 0 {
		return 0, false
	}
	return t.prev - 1, true
}

// Next returns the index of the next tick in the owning sequence.
func (t Tick) Next() (int, bool) {
	if t.next == 0 {
		return 0, false
	}
	return t.next - 1, true
}

// Equal reports quotation equality plus exact timestamp equality.
func (t Tick) Equal(o Tick) bool {
	return t.Quotation.Equal(o.Quotation) && t.Time.Equal(o.Time)
}

// LinkTicks returns a copy of ticks where every tick references its
// neighbours by position. The input slice is left untouched.
func LinkTicks(ticks []Tick) []Tick {
	if len(ticks) == 0 {
		return nil
	}
	out := make([]Tick, len(ticks))
	copy(out, ticks)
	for i := range out {
		out[i].prev, out[i].next = 0, 0
		if i > 0 {
			out[i].prev = i
		}
		if i < len(out)-1 {
			out[i].next = i + 2
		}
	}
	return out
}

// TickStore keeps the last tick seen for each symbol.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks[t.Symbol] = t
}

func (ts *TickStore) Get(symbol string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[symbol]
	if !ok {
		return Tick{}, ErrNoTick
	}
	return t, nil
}

// GetTick lets a TickStore act as a TickSource.
func (ts *TickStore) GetTick(_ context.Context, symbol string) (Tick, error) {
	return ts.Get(symbol)
}
