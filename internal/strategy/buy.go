package strategy

import (
	"dca_ladder/internal/domain"
	"dca_ladder/pkg/quant"

	"github.com/shopspring/decimal"
)

// Fill is the executed part of one sell rung.
type Fill struct {
	Price  decimal.Decimal
	Filled decimal.Decimal
}

// BuyPlan is the buy-back order derived from the sell fills.
type BuyPlan struct {
	TotalFilled  decimal.Decimal
	AveragePrice decimal.Decimal
	Price        decimal.Decimal
	Amount       decimal.Decimal
}

// ComputeBuy returns the buy order that repurchases everything sold so far at
// Profit percent below the average sell price. ok is false when nothing is filled.
func ComputeBuy(fills []Fill, profit decimal.Decimal, market domain.MarketInfo) (plan BuyPlan, ok bool) {
	total := decimal.Zero
	notional := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Filled)
		notional = notional.Add(f.Price.Mul(f.Filled))
	}
	if !total.IsPositive() {
		return BuyPlan{TotalFilled: total}, false
	}

	average := notional.Div(total)
	price := quant.RoundPriceFloor(average.Mul(decimal.NewFromInt(1).Sub(quant.Percent(profit))), market.PricePrecision)
	amount := quant.RoundAmountFloor(total.Mul(average).Div(price), market.AmountPrecision)

	return BuyPlan{
		TotalFilled:  total,
		AveragePrice: average,
		Price:        price,
		Amount:       amount,
	}, true
}

// MeetsMinimum reports whether the buy order is large enough to be accepted.
func (p BuyPlan) MeetsMinimum(minOrderSize decimal.Decimal) bool {
	return p.Amount.GreaterThan(p.Price.Mul(minOrderSize))
}

// Supersedes reports whether p should replace a live buy order priced at price
// with the given order amount.
func (p BuyPlan) Supersedes(price, amount decimal.Decimal) bool {
	return p.Price.GreaterThan(price) || p.Amount.GreaterThan(amount)
}
