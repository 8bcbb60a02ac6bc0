package strategy_test

import (
	"testing"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBuy_WeightedAverage(t *testing.T) {
	fills := []strategy.Fill{
		{Price: d("100"), Filled: d("1")},
		{Price: d("90"), Filled: d("2")},
		{Price: d("110"), Filled: d("0")},
	}

	plan, ok := strategy.ComputeBuy(fills, d("1"), testMarket)
	require.True(t, ok)

	assert.Equal(t, "3", plan.TotalFilled.String())
	assert.Equal(t, "93.3333", plan.AveragePrice.StringFixed(4))
	// 93.33.. * 0.99 = 92.3999.. rounds up to 92.40
	assert.Equal(t, "92.4", plan.Price.String())
	// 3 * 93.33.. / 92.40 = 3.0303.. rounds up to 3.0304
	assert.Equal(t, "3.0304", plan.Amount.String())
}

func TestComputeBuy_NothingFilled(t *testing.T) {
	fills := []strategy.Fill{
		{Price: d("100"), Filled: d("0")},
		{Price: d("105"), Filled: d("0")},
	}

	_, ok := strategy.ComputeBuy(fills, d("1"), testMarket)
	assert.False(t, ok)

	_, ok = strategy.ComputeBuy(nil, d("1"), testMarket)
	assert.False(t, ok)
}

func TestBuyPlan_MeetsMinimumBoundary(t *testing.T) {
	market := domain.MarketInfo{AmountPrecision: 2, PricePrecision: 2}
	plan, ok := strategy.ComputeBuy([]strategy.Fill{{Price: d("100"), Filled: d("1")}}, d("0"), market)
	require.True(t, ok)
	require.Equal(t, "100", plan.Price.String())
	require.Equal(t, "1", plan.Amount.String())

	// amount == price * minOrderSize is not enough, it has to exceed it
	assert.False(t, plan.MeetsMinimum(d("0.01")))
	assert.True(t, plan.MeetsMinimum(d("0.0099")))
	assert.False(t, plan.MeetsMinimum(d("0.02")))
}

func TestBuyPlan_Supersedes(t *testing.T) {
	plan := strategy.BuyPlan{Price: d("92.4"), Amount: d("3.0304")}

	assert.False(t, plan.Supersedes(d("92.4"), d("3.0304")), "identical order stays")
	assert.True(t, plan.Supersedes(d("92.39"), d("3.0304")), "higher price replaces")
	assert.True(t, plan.Supersedes(d("92.4"), d("1")), "larger amount replaces")
	assert.False(t, plan.Supersedes(d("95"), d("4")), "worse plan keeps the live order")
}
