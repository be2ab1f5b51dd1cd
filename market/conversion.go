package market

import (
	"context"
	"fmt"
)

// QuoteToAccountRate returns the factor converting an amount in the
// symbol's quote currency into the account currency.
func QuoteToAccountRate(ctx context.Context, symbol string, accountCurrency string, ticks TickSource) (float64, error) {
	meta, err := LookupSymbol(symbol)
	if err != nil {
		return 0, err
	}

	// Case 1: quote currency == account currency (EUR_USD, GBP_USD, etc.)
	if meta.QuoteCurrency == accountCurrency {
		return 1.0, nil
	}

	// Case 2: account currency is base (USD_JPY, USD_CHF, etc.)
	if meta.BaseCurrency == accountCurrency {
		t, err := ticks.GetTick(ctx, symbol)
		if err != nil {
			return 0, err
		}
		mid := t.Mid()
		if mid == 0 {
			return 0, fmt.Errorf("zero mid price for %s", symbol)
		}
		// USD_JPY mid gives JPY per USD, we want USD per JPY
		return 1.0 / mid, nil
	}

	// Case 3: cross currency
	return 0, fmt.Errorf(
		"cross conversion not implemented for %s → %s",
		meta.QuoteCurrency,
		accountCurrency,
	)
}
