package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyConfig holds the immutable ladder parameters.
type StrategyConfig struct {
	Pair              Pair
	StartAmount       decimal.Decimal   // Quote currency committed to rung 0
	StartPricePercent decimal.Decimal   // Rung 0 distance above the lowest ask
	DCA               []decimal.Decimal // Step percentages for rungs 1..n
	Profit            decimal.Decimal   // Buy-back discount below the average sell price
	SecondsToKeepDCA  int64             // Ladder staleness horizon, -1 disables
	Live              bool              // false: nothing is placed, only logged
}

// StalenessEnabled reports whether an unfilled ladder may be moved with the market.
func (c StrategyConfig) StalenessEnabled() bool {
	return c.SecondsToKeepDCA >= 0
}

// KeepDCA returns the staleness horizon.
func (c StrategyConfig) KeepDCA() time.Duration {
	return time.Duration(c.SecondsToKeepDCA) * time.Second
}
