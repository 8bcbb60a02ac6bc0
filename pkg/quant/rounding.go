// Package quant holds the numeric helpers shared by the ladder math.
package quant

import "github.com/shopspring/decimal"

// RoundPrice rounds a price up to the exchange price precision.
// Prices never round down: an order priced below the exchange grid is rejected.
func RoundPrice(price decimal.Decimal, precision int32) decimal.Decimal {
	return price.RoundCeil(precision)
}

// RoundAmount rounds an amount up to the exchange amount precision.
func RoundAmount(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.RoundCeil(precision)
}

// RoundPriceFloor is used for buy prices.
// NOTE: despite the name it rounds up exactly like RoundPrice. Strategy results
// depend on this, do not switch it to RoundFloor without re-checking the buy math.
func RoundPriceFloor(price decimal.Decimal, precision int32) decimal.Decimal {
	return price.RoundCeil(precision)
}

// RoundAmountFloor is used for buy amounts. Same caveat as RoundPriceFloor.
func RoundAmountFloor(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.RoundCeil(precision)
}

// Percent converts a percentage into a multiplier delta (1.5 -> 0.015).
func Percent(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(decimal.NewFromInt(100))
}
