package engine

import (
	"context"
	"fmt"
	"log/slog"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/storage"
	"dca_ladder/internal/strategy"
)

// Reconcile runs one cycle of the state machine.
//
// Errors from the read path are returned unwrapped and only defer the cycle.
// Errors marked with domain.Fatal mean the bot must stop.
func (e *Engine) Reconcile(ctx context.Context) error {
	if e.state.Unrecoverable {
		return domain.Fatal("reconcile", domain.ErrUnrecoverable)
	}
	if e.state.HasBuyOrder() {
		return e.reconcileBuyOrder(ctx)
	}
	return e.reconcileSellOrders(ctx)
}

// reconcileSellOrders places the first buy order once enough was sold, or moves an
// untouched ladder down with the market.
func (e *Engine) reconcileSellOrders(ctx context.Context) error {
	e.logger.Debug("Checking if something got filled")

	fills, err := e.collectFills(ctx)
	if err != nil {
		return err
	}

	if plan, filled := strategy.ComputeBuy(fills, e.cfg.Profit, e.market); filled {
		e.logger.Info("Found filled sell orders",
			slog.String("filled", plan.TotalFilled.String()),
			slog.String("average", plan.AveragePrice.StringFixed(e.market.PricePrecision)),
		)
		if !plan.MeetsMinimum(e.market.MinOrderSize) {
			e.logger.Info("Min order size not reached, waiting for more fills",
				slog.String("price", plan.Price.String()),
				slog.String("amount", plan.Amount.String()),
			)
			return nil
		}
		return e.openBuyOrder(ctx, plan)
	}

	if !e.ladderExpired() {
		return nil
	}

	e.logger.Info("Checking if the order book moved down")
	ask, err := e.fetchAsk(ctx)
	if err != nil {
		return err
	}
	if ask.LessThan(*e.state.FirstSellPrice) {
		e.logger.Info("Market moved below the ladder, moving all sell orders",
			slog.String("ask", ask.String()),
			slog.String("first_sell_price", e.state.FirstSellPrice.String()),
		)
		e.opts.Metrics.RecordRebuild("stale")
		return e.rebuild(ctx)
	}
	return nil
}

// reconcileBuyOrder restarts the ladder once the buy order filled, and replaces the
// buy order whenever new sell fills ask for a better price or a larger amount.
func (e *Engine) reconcileBuyOrder(ctx context.Context) error {
	buy, err := e.fetchOrder(ctx, e.state.BuyOrder)
	if err != nil {
		return fmt.Errorf("buy order: %w", err)
	}

	if buy.Status == domain.OrderStatusClosed {
		return e.completeBuyCycle(ctx, buy)
	}

	// Cancelled buy orders count as alive here; recovery is what catches them
	fills, err := e.collectFills(ctx)
	if err != nil {
		return err
	}

	plan, filled := strategy.ComputeBuy(fills, e.cfg.Profit, e.market)
	if !filled || !plan.Supersedes(*e.state.BuyOrderPrice, buy.Amount) {
		e.logger.Debug("All orders can stay, no update needed")
		return nil
	}

	amount := plan.Amount.Sub(buy.Filled)
	if !amount.IsPositive() {
		e.logger.Warn("Old buy order already covers the new amount, keeping it",
			slog.String("id", buy.ID),
			slog.String("filled", buy.Filled.String()),
		)
		return nil
	}

	e.logger.Info("New buy price or amount because sell orders got filled",
		slog.String("old_price", e.state.BuyOrderPrice.String()),
		slog.String("new_price", plan.Price.String()),
		slog.String("old_amount", buy.Amount.String()),
		slog.String("new_amount", amount.String()),
	)

	last, err := e.cancelOrder(ctx, buy.ID)
	if err != nil {
		return fmt.Errorf("cancel old buy order: %w", err)
	}
	if last.IsOpen() {
		// Fills can land until the cancel does
		if last, err = e.fetchOrder(ctx, buy.ID); err != nil {
			return fmt.Errorf("old buy order after cancel: %w", err)
		}
		if last.IsOpen() {
			return fmt.Errorf("old buy order %s is still open after cancel", buy.ID)
		}
	}

	amount = plan.Amount.Sub(last.Filled)
	if last.Status == domain.OrderStatusClosed || !amount.IsPositive() {
		return e.completeBuyCycle(ctx, last)
	}

	next := e.state.Clone()
	next.ClearBuyOrder()
	if err := e.commit(ctx, next, storage.FieldBuyOrder); err != nil {
		return err
	}

	plan.Amount = amount
	return e.openBuyOrder(ctx, plan)
}

// completeBuyCycle forgets the bought-back buy order and restarts the ladder.
func (e *Engine) completeBuyCycle(ctx context.Context, buy domain.Order) error {
	e.logger.Info("Buy order was filled, restarting the ladder",
		slog.String("id", buy.ID),
		slog.String("status", string(buy.Status)),
		slog.String("filled", buy.Filled.String()),
	)
	next := e.state.Clone()
	next.ClearBuyOrder()
	if err := e.commit(ctx, next, storage.FieldBuyOrder); err != nil {
		return err
	}
	e.notify(ctx, fmt.Sprintf("✅ Buy order filled on %s: %s @ %s", e.cfg.Pair, buy.Filled, buy.Price))
	e.opts.Metrics.RecordRebuild("filled")
	return e.rebuild(ctx)
}

func (e *Engine) openBuyOrder(ctx context.Context, plan strategy.BuyPlan) error {
	e.logger.Info("Placing buy order",
		slog.String("price", plan.Price.String()),
		slog.String("amount", plan.Amount.String()),
	)

	order, err := e.placeBuy(ctx, plan.Amount, plan.Price)
	if err != nil {
		return err
	}

	next := e.state.Clone()
	next.SetBuyOrder(order.ID, plan.Price)
	if err := e.commit(ctx, next, storage.FieldBuyOrder); err != nil {
		return err
	}

	e.logger.Info("Buy order placed", slog.String("id", order.ID))
	e.notify(ctx, fmt.Sprintf("🛒 Buy order on %s: %s @ %s", e.cfg.Pair, plan.Amount, plan.Price))
	return nil
}

// collectFills reads every sell order, in rung order. The fill price is the limit price.
func (e *Engine) collectFills(ctx context.Context) ([]strategy.Fill, error) {
	fills := make([]strategy.Fill, 0, len(e.state.SellOrders))
	for _, id := range e.state.SellOrders {
		o, err := e.fetchOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		fills = append(fills, strategy.Fill{Price: o.Price, Filled: o.Filled})
	}
	return fills, nil
}

// ladderExpired reports whether an unfilled ladder is older than the staleness horizon.
func (e *Engine) ladderExpired() bool {
	if !e.cfg.StalenessEnabled() || e.state.FirstSellPrice == nil || e.state.FirstSellTime.IsZero() {
		return false
	}
	return e.opts.Now().Sub(e.state.FirstSellTime) > e.cfg.KeepDCA()
}

// rebuild cancels the whole ladder and builds a new one. Both steps are fatal on failure.
func (e *Engine) rebuild(ctx context.Context) error {
	if err := e.cancelLadder(ctx); err != nil {
		return err
	}
	return e.build(ctx)
}
