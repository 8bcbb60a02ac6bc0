package engine

import (
	"context"
	"fmt"
	"log/slog"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/storage"
	"dca_ladder/internal/strategy"
)

// build places a fresh ladder at the current market price. Every error is fatal;
// rungs placed before a failure stay on the exchange for the operator to inspect.
func (e *Engine) build(ctx context.Context) error {
	ask, err := e.fetchAsk(ctx)
	if err != nil {
		return domain.Fatal("build", err)
	}

	plan, err := strategy.PlanLadder(ask, e.cfg, e.market)
	if err != nil {
		return domain.Fatal("build", err)
	}

	if e.cfg.Live {
		if err := e.checkBalance(ctx, plan); err != nil {
			return domain.Fatal("build", err)
		}
	}

	e.logger.Info("Building ladder",
		slog.String("ask", ask.String()),
		slog.Int("rungs", len(plan.Rungs)),
	)

	for i, rung := range plan.Rungs {
		attrs := []any{
			slog.Int("rung", i),
			slog.String("price", rung.Price.String()),
			slog.String("amount", rung.Amount.String()),
			slog.String("average", rung.AverageCost.StringFixed(e.market.PricePrecision)),
		}

		if !e.cfg.Live {
			e.logger.Info("DEMO MODE - nothing gets placed", attrs...)
			continue
		}

		order, err := e.placeSell(ctx, rung.Amount, rung.Price)
		if err != nil {
			return domain.Fatal("build", fmt.Errorf("rung %d: %w", i, err))
		}

		next := e.state.Clone()
		next.SellOrders = append(next.SellOrders, order.ID)
		fields := []storage.Field{storage.FieldSellOrders}
		if i == 0 {
			next.SetFirstSell(rung.Price, e.opts.Now())
			fields = append(fields, storage.FieldFirstSell)
		}
		if err := e.commit(ctx, next, fields...); err != nil {
			return err
		}

		e.logger.Info("Placed sell order", append(attrs, slog.String("id", order.ID))...)
	}

	if e.cfg.Live {
		first := plan.First()
		e.notify(ctx, fmt.Sprintf("📈 Ladder built on %s: %d sell orders from %s", e.cfg.Pair, len(plan.Rungs), first.Price))
	}
	return nil
}

// checkBalance rejects a plan whose rungs need more base currency than is free.
// Rung 0 is not checked.
func (e *Engine) checkBalance(ctx context.Context, plan strategy.RungPlan) error {
	balances, err := e.fetchBalance(ctx)
	if err != nil {
		return err
	}

	free := balances.Free(e.cfg.Pair.Base)
	for _, rung := range plan.Rungs[1:] {
		if need := rung.RequiredBalance(); need.GreaterThan(free) {
			return &domain.InsufficientBalanceError{
				Currency:  e.cfg.Pair.Base,
				Need:      need,
				Available: free,
			}
		}
	}
	return nil
}
