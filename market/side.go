package market

import (
	"fmt"
	"strings"
)

// PriceSide selects which side of a quotation a period is built from.
// The zero value is PriceBid.
type PriceSide int

const (
	PriceBid PriceSide = iota
	PriceAsk
)

func (s PriceSide) String() string {
	switch s {
	case PriceBid:
		return "bid"
	case PriceAsk:
		return "ask"
	default:
		return fmt.Sprintf("PriceSide(%d)", int(s))
	}
}

func ParsePriceSide(s string) (PriceSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bid":
		return PriceBid, nil
	case "ask":
		return PriceAsk, nil
	default:
		return PriceBid, fmt.Errorf("unknown price side %q", s)
	}
}
