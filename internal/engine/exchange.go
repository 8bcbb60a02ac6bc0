package engine

import (
	"context"
	"fmt"
	"log/slog"

	"dca_ladder/internal/domain"
	"dca_ladder/pkg/retry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Every remote call goes through retry.Do. Op names double as metric labels.

func (e *Engine) policy() retry.Policy {
	return retry.Policy{
		Attempts: e.opts.RetryAttempts,
		Observe: func(op string, attempt int, err error) {
			e.logger.Warn("Exchange call failed",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Bool("retriable", domain.IsRetriable(err)),
				slog.Any("error", err),
			)
			e.opts.Metrics.RecordRetry(op)
		},
	}
}

func (e *Engine) fetchMarket(ctx context.Context) (domain.MarketInfo, error) {
	m, err := retry.Do(ctx, e.policy(), "fetch_market", func(ctx context.Context) (domain.MarketInfo, error) {
		return e.exchange.FetchMarket(ctx, e.cfg.Pair)
	}, nil)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("fetch trading info for %s: %w", e.cfg.Pair, err)
	}
	return m, nil
}

// fetchAsk returns the lowest sell price in the order book.
func (e *Engine) fetchAsk(ctx context.Context) (decimal.Decimal, error) {
	t, err := retry.Do(ctx, e.policy(), "fetch_ticker", func(ctx context.Context) (domain.Ticker, error) {
		return e.exchange.FetchTicker(ctx, e.cfg.Pair)
	}, func(t domain.Ticker) bool {
		return t.Ask.IsPositive()
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("get ticker for %s: %w", e.cfg.Pair, err)
	}
	return t.Ask, nil
}

func (e *Engine) fetchOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := retry.Do(ctx, e.policy(), "fetch_order", func(ctx context.Context) (domain.Order, error) {
		return e.exchange.FetchOrder(ctx, id, e.cfg.Pair)
	}, domain.HasID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("fetch order %s: %w", id, err)
	}
	return o, nil
}

func (e *Engine) fetchBalance(ctx context.Context) (domain.Balances, error) {
	b, err := retry.Do(ctx, e.policy(), "fetch_balance", func(ctx context.Context) (domain.Balances, error) {
		return e.exchange.FetchBalance(ctx)
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

func (e *Engine) placeSell(ctx context.Context, amount, price decimal.Decimal) (domain.Order, error) {
	// One client order id for all attempts
	ctx = domain.WithClientOrderID(ctx, uuid.NewString())
	o, err := retry.Do(ctx, e.policy(), "place_sell", func(ctx context.Context) (domain.Order, error) {
		return e.exchange.PlaceLimitSellOrder(ctx, e.cfg.Pair, amount, price)
	}, domain.HasID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("place sell order with price %s and amount %s: %w", price, amount, err)
	}
	e.opts.Metrics.RecordOrderPlaced(string(domain.SideSell))
	return o, nil
}

func (e *Engine) placeBuy(ctx context.Context, amount, price decimal.Decimal) (domain.Order, error) {
	// One client order id for all attempts
	ctx = domain.WithClientOrderID(ctx, uuid.NewString())
	o, err := retry.Do(ctx, e.policy(), "place_buy", func(ctx context.Context) (domain.Order, error) {
		return e.exchange.PlaceLimitBuyOrder(ctx, e.cfg.Pair, amount, price)
	}, domain.HasID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("place buy order with price %s and amount %s: %w", price, amount, err)
	}
	e.opts.Metrics.RecordOrderPlaced(string(domain.SideBuy))
	return o, nil
}
