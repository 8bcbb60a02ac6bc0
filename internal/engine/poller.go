package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/infra"
)

var errCyclePanicked = errors.New("cycle panicked")

// Run waits PollInterval, runs one cycle and repeats. Cycles never overlap.
// It returns nil when ctx is cancelled and the fatal error otherwise.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Poll loop started", slog.Duration("interval", e.opts.PollInterval))

	timer := time.NewTimer(e.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Poll loop stopping...")
			return nil
		case <-timer.C:
		}

		err := e.cycle(ctx)
		switch {
		case err == nil:
			e.opts.Metrics.RecordCycle(infra.OutcomeOK)
		case ctx.Err() != nil:
			e.logger.Info("Poll loop stopping...", slog.Any("interrupted", err))
			return nil
		case domain.IsFatal(err):
			e.opts.Metrics.RecordCycle(infra.OutcomeFatal)
			e.logger.Error("Fatal error, stopping", slog.Any("error", err))
			return err
		case errors.Is(err, errCyclePanicked):
			e.opts.Metrics.RecordCycle(infra.OutcomePanic)
		default:
			e.opts.Metrics.RecordCycle(infra.OutcomeDeferred)
			e.logger.Warn("Cycle deferred to next poll", slog.Any("error", err))
		}

		timer.Reset(e.opts.PollInterval)
	}
}

// cycle runs Reconcile and turns a panic into an error so the loop keeps going.
func (e *Engine) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("CRITICAL_PANIC_DETECTED",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			e.DumpState(e.opts.DumpPath)
			err = fmt.Errorf("%w: %v", errCyclePanicked, r)
		}
	}()

	return e.Reconcile(ctx)
}
