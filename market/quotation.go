package market

import "time"

// Quotation is a symbol's bid/ask at an instant.
type Quotation struct {
	Symbol string
	Time   time.Time
	Bid    float64
	Ask    float64
}

func (q Quotation) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

func (q Quotation) Spread() float64 {
	return q.Ask - q.Bid
}

// Price returns the bid or the ask depending on side.
func (q Quotation) Price(side PriceSide) float64 {
	if side == PriceAsk {
		return q.Ask
	}
	return q.Bid
}

// Equal compares symbol and prices. The time is not part of a quotation's
// identity; Tick.Equal adds it.
func (q Quotation) Equal(o Quotation) bool {
	return q.Symbol == o.Symbol && q.Bid == o.Bid && q.Ask == o.Ask
}
