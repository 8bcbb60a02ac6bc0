package domain

import "github.com/shopspring/decimal"

// Ticker is the top of book of a pair.
type Ticker struct {
	Pair Pair            `json:"pair"`
	Ask  decimal.Decimal `json:"ask"` // Lowest sell price in the order book
	Bid  decimal.Decimal `json:"bid"`
	Last decimal.Decimal `json:"last"`
}
