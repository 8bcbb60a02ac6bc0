package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pair is a spot trading pair, e.g. BTC/USDT.
type Pair struct {
	Base  string
	Quote string
}

// ParsePair accepts "btc_usdt", "BTC/USDT", "btc-usdt" and normalises to upper case.
func ParsePair(s string) (Pair, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '_' || r == '-'
	})
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}

// String returns BASE/QUOTE.
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// MarketInfo is the static trading metadata of a pair, fetched once at startup.
type MarketInfo struct {
	Pair            Pair            `json:"pair"`
	MinOrderSize    decimal.Decimal `json:"min_order_size"`
	AmountPrecision int32           `json:"amount_precision"`
	PricePrecision  int32           `json:"price_precision"`
}
