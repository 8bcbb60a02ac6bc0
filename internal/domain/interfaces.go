package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExchangeClient is the order-management API of a single exchange.
// Implementations own authentication and rate limiting.
type ExchangeClient interface {
	FetchMarket(ctx context.Context, pair Pair) (MarketInfo, error)
	FetchTicker(ctx context.Context, pair Pair) (Ticker, error)
	FetchOrder(ctx context.Context, id string, pair Pair) (Order, error)
	PlaceLimitSellOrder(ctx context.Context, pair Pair, amount, price decimal.Decimal) (Order, error)
	PlaceLimitBuyOrder(ctx context.Context, pair Pair, amount, price decimal.Decimal) (Order, error)
	CancelOrder(ctx context.Context, id string, pair Pair) (Order, error)
	FetchBalance(ctx context.Context) (Balances, error)
}

// StateStore is a durable key/value store. Set writes all entries atomically and
// returns only after they are flushed.
type StateStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, entries map[string]string) error
}

// Notifier delivers operator-facing messages.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
