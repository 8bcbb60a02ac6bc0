// Package strategy holds the pure arithmetic of the DCA ladder.
package strategy

import (
	"errors"
	"fmt"

	"dca_ladder/internal/domain"
	"dca_ladder/pkg/quant"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Rung is one level of the sell ladder.
type Rung struct {
	Price       decimal.Decimal `json:"price"`
	Amount      decimal.Decimal `json:"amount"`       // Cumulative: sum of the base allocation of all lower rungs
	AverageCost decimal.Decimal `json:"average_cost"` // Average sell price once this rung is filled
}

// RungPlan is the ladder computed from the market and the strategy parameters.
type RungPlan struct {
	Rungs []Rung
}

// First returns rung 0.
func (p RungPlan) First() Rung {
	return p.Rungs[0]
}

// PlanLadder computes the sell ladder for the given lowest ask.
//
// Rung 0 sits StartPricePercent above the ask and sells StartAmount worth of base.
// Every further rung is placed DCA[i] percent above the previous average and sells
// as much as all lower rungs together, so the average of rung i is taken over
// 2 x cumulative.
func PlanLadder(ask decimal.Decimal, cfg domain.StrategyConfig, market domain.MarketInfo) (RungPlan, error) {
	if !ask.IsPositive() {
		return RungPlan{}, fmt.Errorf("invalid ask price %s", ask)
	}
	if !cfg.StartAmount.IsPositive() {
		return RungPlan{}, errors.New("start amount must be positive")
	}

	price0 := quant.RoundPrice(ask.Mul(decimal.NewFromInt(1).Add(quant.Percent(cfg.StartPricePercent))), market.PricePrecision)
	amount0 := quant.RoundAmount(cfg.StartAmount.Div(price0), market.AmountPrecision)

	prices := []decimal.Decimal{price0}
	amounts := []decimal.Decimal{amount0}
	rungs := []Rung{{Price: price0, Amount: amount0, AverageCost: price0}}

	for _, step := range cfg.DCA {
		prevAverage := rungs[len(rungs)-1].AverageCost
		price := quant.RoundPrice(prevAverage.Mul(decimal.NewFromInt(1).Add(quant.Percent(step))), market.PricePrecision)

		cumulative := decimal.Sum(decimal.Zero, amounts...)
		prices = append(prices, price)
		amounts = append(amounts, cumulative)

		average := sumProduct(prices, amounts).Div(cumulative.Mul(two))
		rungs = append(rungs, Rung{Price: price, Amount: cumulative, AverageCost: average})
	}

	return RungPlan{Rungs: rungs}, nil
}

// RequiredBalance is the base currency a fully filled ladder needs for rung i.
func (r Rung) RequiredBalance() decimal.Decimal {
	return r.Amount.Mul(two)
}

func sumProduct(a, b []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for i := range a {
		sum = sum.Add(a[i].Mul(b[i]))
	}
	return sum
}
