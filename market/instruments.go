package market

import (
	"fmt"
	"math"
	"sort"
)

type SymbolType string

const (
	SymbolForex     SymbolType = "forex"
	SymbolCommodity SymbolType = "commodity"
	SymbolCrypto    SymbolType = "crypto"
	SymbolIndex     SymbolType = "index"
	SymbolStock     SymbolType = "stock"
)

// Symbol describes a tradable instrument.
type Symbol struct {
	Name          string
	Type          SymbolType
	Description   string
	BaseCurrency  string
	QuoteCurrency string
	PipLocation   int
	MinimumVolume float64
	MarginRate    float64

	// Daily swap per unit of volume, in quote currency.
	LongSwap  float64
	ShortSwap float64
}

// size of 1 pip in price units, e.g. EUR_USD: 0.0001, USD_JPY: 0.01
func (s Symbol) PipSize() float64 {
	return math.Pow10(s.PipLocation)
}

var Symbols = map[string]Symbol{
	"EUR_USD": {
		Name:          "EUR_USD",
		Type:          SymbolForex,
		Description:   "Euro / US Dollar",
		BaseCurrency:  "EUR",
		QuoteCurrency: "USD",
		PipLocation:   -4,
		MinimumVolume: 1,
		MarginRate:    0.02,
		LongSwap:      -0.00006,
		ShortSwap:     0.00002,
	},
	"GBP_USD": {
		Name:          "GBP_USD",
		Type:          SymbolForex,
		Description:   "British Pound / US Dollar",
		BaseCurrency:  "GBP",
		QuoteCurrency: "USD",
		PipLocation:   -4,
		MinimumVolume: 1,
		MarginRate:    0.02,
		LongSwap:      -0.00004,
		ShortSwap:     0.00001,
	},
	"USD_JPY": {
		Name:          "USD_JPY",
		Type:          SymbolForex,
		Description:   "US Dollar / Japanese Yen",
		BaseCurrency:  "USD",
		QuoteCurrency: "JPY",
		PipLocation:   -2,
		MinimumVolume: 1,
		MarginRate:    0.02,
		LongSwap:      0.012,
		ShortSwap:     -0.025,
	},
	"XAU_USD": {
		Name:          "XAU_USD",
		Type:          SymbolCommodity,
		Description:   "Gold / US Dollar",
		BaseCurrency:  "XAU",
		QuoteCurrency: "USD",
		PipLocation:   -2,
		MinimumVolume: 1,
		MarginRate:    0.05,
	},
	"BTC_USD": {
		Name:          "BTC_USD",
		Type:          SymbolCrypto,
		Description:   "Bitcoin / US Dollar",
		BaseCurrency:  "BTC",
		QuoteCurrency: "USD",
		PipLocation:   0,
		MinimumVolume: 0.001,
		MarginRate:    0.5,
	},
}

func LookupSymbol(name string) (Symbol, error) {
	s, ok := Symbols[name]
	if !ok {
		return Symbol{}, fmt.Errorf("unknown symbol %s", name)
	}
	return s, nil
}

// SymbolNames returns the registered symbol names in sorted order.
func SymbolNames() []string {
	names := make([]string, 0, len(Symbols))
	for n := range Symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
