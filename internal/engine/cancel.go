package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/storage"
	"dca_ladder/pkg/retry"
)

// cancelOrder cancels id if it is still open. Closed or cancelled orders are done already.
// It returns the order as observed before the cancel request.
func (e *Engine) cancelOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := e.fetchOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !o.IsOpen() {
		e.logger.Debug("Order already canceled or closed", slog.String("id", id), slog.String("status", string(o.Status)))
		return o, nil
	}

	_, err = retry.Do(ctx, e.policy(), "cancel_order", func(ctx context.Context) (domain.Order, error) {
		return e.exchange.CancelOrder(ctx, id, e.cfg.Pair)
	}, domain.HasID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("cancel order %s: %w", id, err)
	}

	e.opts.Metrics.RecordCancel()
	e.logger.Info("Order canceled", slog.String("id", id))
	return o, nil
}

// cancelLadder cancels every sell order. Orders that fail are retried for up to
// CancelPasses passes; the shrinking list is persisted after each pass. Whatever is
// left after the last pass marks the state unrecoverable.
func (e *Engine) cancelLadder(ctx context.Context) error {
	e.logger.Info("Cancelling all sell orders", slog.Int("count", len(e.state.SellOrders)))

	pending := append([]string(nil), e.state.SellOrders...)
	for pass := 1; pass <= e.opts.CancelPasses; pass++ {
		var failed []string
		for _, id := range pending {
			if _, err := e.cancelOrder(ctx, id); err != nil {
				e.logger.Warn("Failed to cancel sell order",
					slog.String("id", id),
					slog.Int("pass", pass),
					slog.Any("error", err),
				)
				failed = append(failed, id)
			}
		}

		next := e.state.Clone()
		next.SellOrders = append([]string{}, failed...)
		next.FirstSellPrice = nil
		if err := e.commit(ctx, next, storage.FieldSellOrders, storage.FieldFirstSellPrice); err != nil {
			return err
		}

		if len(failed) == 0 {
			return nil
		}
		// Shutdown is not a cancel failure
		if err := ctx.Err(); err != nil {
			return err
		}
		pending = failed
	}

	next := e.state.Clone()
	next.Unrecoverable = true
	if err := e.commit(ctx, next, storage.FieldUnrecoverable); err != nil {
		return err
	}

	e.logger.Error("Unable to cancel all sell orders: "+resetHint, slog.Any("orders", pending))
	e.DumpState(e.opts.DumpPath)
	e.notify(ctx, fmt.Sprintf("🚨 %s ladder is unrecoverable, %d sell orders could not be cancelled: %s",
		e.cfg.Pair, len(pending), strings.Join(pending, ", ")))

	return domain.Fatal("cancel", fmt.Errorf("%w (%d orders left: %s)",
		domain.ErrUnrecoverable, len(pending), strings.Join(pending, ", ")))
}
