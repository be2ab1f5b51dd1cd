package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTickSource struct {
	tick       Tick
	err        error
	called     int
	lastSymbol string
}

func (f *fakeTickSource) GetTick(ctx context.Context, symbol string) (Tick, error) {
	f.called++
	f.lastSymbol = symbol
	return f.tick, f.err
}

func findByQuote(account string) (string, bool) {
	for _, k := range SymbolNames() {
		if Symbols[k].QuoteCurrency == account {
			return k, true
		}
	}
	return "", false
}

func findByBase(account string) (string, bool) {
	for _, k := range SymbolNames() {
		if Symbols[k].BaseCurrency == account {
			return k, true
		}
	}
	return "", false
}

func findCross(account string) (string, bool) {
	for _, k := range SymbolNames() {
		v := Symbols[k]
		if v.BaseCurrency != account && v.QuoteCurrency != account {
			return k, true
		}
	}
	return "", false
}

func TestQuoteToAccountRate_UnknownSymbol(t *testing.T) {
	t.Parallel()

	ts := &fakeTickSource{}
	rate, err := QuoteToAccountRate(context.Background(), "NO_SUCH_SYMBOL", "USD", ts)
	assert.Error(t, err)
	assert.Equal(t, 0.0, rate)
}

func TestQuoteToAccountRate_QuoteEqualsAccount(t *testing.T) {
	t.Parallel()

	symbol, ok := findByQuote("USD")
	if !ok {
		t.Skip("no symbol with quote currency USD")
	}

	ts := &fakeTickSource{}
	rate, err := QuoteToAccountRate(context.Background(), symbol, "USD", ts)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, rate)
	assert.Equal(t, 0, ts.called)
}

func TestQuoteToAccountRate_BaseEqualsAccount(t *testing.T) {
	t.Parallel()

	symbol, ok := findByBase("USD")
	if !ok {
		t.Skip("no symbol with base currency USD")
	}

	ts := &fakeTickSource{
		tick: Tick{Quotation: Quotation{Bid: 2.0, Ask: 4.0}}, // mid = 3.0
	}
	rate, err := QuoteToAccountRate(context.Background(), symbol, "USD", ts)
	assert.NoError(t, err)

	assert.InDelta(t, 1.0/3.0, rate, 1e-9)
	assert.Equal(t, 1, ts.called)
	assert.Equal(t, symbol, ts.lastSymbol)
}

func TestQuoteToAccountRate_ZeroMid(t *testing.T) {
	t.Parallel()

	ts := &fakeTickSource{}
	_, err := QuoteToAccountRate(context.Background(), "USD_JPY", "USD", ts)
	assert.Error(t, err)
}

func TestQuoteToAccountRate_CrossNotImplemented(t *testing.T) {
	t.Parallel()

	symbol, ok := findCross("USD")
	if !ok {
		t.Skip("no cross symbol found")
	}

	ts := &fakeTickSource{}
	_, err := QuoteToAccountRate(context.Background(), symbol, "USD", ts)
	assert.Error(t, err)
}
