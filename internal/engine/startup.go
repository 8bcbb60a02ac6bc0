package engine

import (
	"context"
	"fmt"
	"log/slog"

	"dca_ladder/internal/domain"
)

const resetHint = "cancel all orders of the bot and clear the persisted state before restarting"

// Start loads the trading info and the persisted state, then either verifies the
// existing ladder or builds a new one. Every error it returns is fatal.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("🚀 Starting DCA ladder", slog.Bool("live", e.cfg.Live))

	market, err := e.fetchMarket(ctx)
	if err != nil {
		return domain.Fatal("startup", err)
	}
	if e.cfg.StartAmount.LessThan(market.MinOrderSize) {
		return domain.Fatal("startup", &domain.ConfigError{
			Field: "strategy.start_amount",
			Err:   fmt.Errorf("%s is too low for %s, need at least %s", e.cfg.StartAmount, e.cfg.Pair, market.MinOrderSize),
		})
	}
	e.setMarket(market)
	e.logger.Info("Trading info loaded",
		slog.String("min_order_size", market.MinOrderSize.String()),
		slog.Int("amount_precision", int(market.AmountPrecision)),
		slog.Int("price_precision", int(market.PricePrecision)),
	)

	state, err := e.repo.Load(ctx)
	if err != nil {
		return domain.Fatal("startup", fmt.Errorf("load ladder state: %w", err))
	}
	if state.Unrecoverable {
		return domain.Fatal("startup", domain.ErrUnrecoverable)
	}
	e.setState(state)

	if len(state.SellOrders) > 0 {
		e.logger.Info("Found existing ladder, checking orders", slog.Int("sell_orders", len(state.SellOrders)))
		if err := e.verifyLadder(ctx); err != nil {
			e.logger.Error("Recovery failed: "+resetHint, slog.Any("error", err))
			return domain.Fatal("recovery", err)
		}
		e.logger.Info("All orders in place, continuing from where the bot stopped")
		return nil
	}

	e.logger.Info("No ladder found, building it now")
	e.opts.Metrics.RecordRebuild("startup")
	return e.build(ctx)
}

// verifyLadder checks that every persisted order is still untouched on the exchange.
func (e *Engine) verifyLadder(ctx context.Context) error {
	for _, id := range e.state.SellOrders {
		e.logger.Info("Checking sell order", slog.String("id", id))
		o, err := e.fetchOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.Status == domain.OrderStatusCanceled {
			return &domain.ExternalInterferenceError{
				OrderID: id, Side: domain.SideSell, Status: o.Status,
				Reason: "canceled by user",
			}
		}
	}

	if !e.state.HasBuyOrder() {
		return nil
	}

	e.logger.Info("Checking buy order", slog.String("id", e.state.BuyOrder))
	o, err := e.fetchOrder(ctx, e.state.BuyOrder)
	if err != nil {
		return err
	}
	switch o.Status {
	case domain.OrderStatusCanceled:
		return &domain.ExternalInterferenceError{
			OrderID: o.ID, Side: domain.SideBuy, Status: o.Status,
			Reason: "canceled by user",
		}
	case domain.OrderStatusClosed:
		return &domain.ExternalInterferenceError{
			OrderID: o.ID, Side: domain.SideBuy, Status: o.Status,
			Reason: "filled while the bot was offline",
		}
	}
	return nil
}
