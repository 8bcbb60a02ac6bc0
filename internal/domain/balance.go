package domain

import "github.com/shopspring/decimal"

// Balance is the account balance of a single currency.
type Balance struct {
	Currency string          `json:"currency"`
	Free     decimal.Decimal `json:"free"`  // Available for new orders
	Used     decimal.Decimal `json:"used"`  // Locked in open orders
	Total    decimal.Decimal `json:"total"` // Free + Used
}

// Balances maps currency code to balance.
type Balances map[string]Balance

// Free returns the free amount of currency, zero when the currency is unknown.
func (b Balances) Free(currency string) decimal.Decimal {
	bal, ok := b[currency]
	if !ok {
		return decimal.Zero
	}
	return bal.Free
}
