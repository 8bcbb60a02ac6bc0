// Package service runs background jobs next to the poll loop.
package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dca_ladder/internal/engine"
	"dca_ladder/internal/infra"

	"github.com/robfig/cron/v3"
)

// SnapshotSource is the read side of the engine.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

// StatusService periodically logs the ladder and refreshes the state gauges.
type StatusService struct {
	source  SnapshotSource
	metrics *infra.Metrics
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.RWMutex
	last    engine.Snapshot
	reports int
}

// NewStatusService schedules the report on schedule, a cron expression or descriptor
// such as "@every 5m". Nothing runs until Start.
func NewStatusService(source SnapshotSource, schedule string, metrics *infra.Metrics) (*StatusService, error) {
	s := &StatusService{
		source:  source,
		metrics: metrics,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  slog.Default().With(slog.String("module", "status")),
	}

	if _, err := s.cron.AddFunc(schedule, s.Report); err != nil {
		return nil, fmt.Errorf("schedule status report %q: %w", schedule, err)
	}
	return s, nil
}

func (s *StatusService) Start() {
	s.cron.Start()
	s.logger.Info("⏰ Status report scheduled")
}

// Stop cancels future reports and waits for a running one to finish.
func (s *StatusService) Stop() {
	<-s.cron.Stop().Done()
}

// Report takes one snapshot, logs it and publishes the gauges.
func (s *StatusService) Report() {
	snap := s.source.Snapshot()
	st := snap.State

	attrs := []any{
		slog.String("pair", snap.Pair.String()),
		slog.Bool("live", snap.Live),
		slog.Int("sell_orders", len(st.SellOrders)),
		slog.Bool("buy_order_open", st.HasBuyOrder()),
		slog.Bool("unrecoverable", st.Unrecoverable),
	}
	if st.BuyOrderPrice != nil {
		attrs = append(attrs, slog.String("buy_order_price", st.BuyOrderPrice.String()))
	}
	if st.FirstSellPrice != nil {
		attrs = append(attrs,
			slog.String("first_sell_price", st.FirstSellPrice.String()),
			slog.Duration("ladder_age", snap.Taken.Sub(st.FirstSellTime).Truncate(time.Second)),
		)
	}

	if st.Unrecoverable {
		s.logger.Error("📋 Ladder status", attrs...)
	} else {
		s.logger.Info("📋 Ladder status", attrs...)
	}

	s.metrics.SetLadder(len(st.SellOrders), st.HasBuyOrder(), st.Unrecoverable)

	s.mu.Lock()
	s.last = snap
	s.reports++
	s.mu.Unlock()
}

// Last returns the latest reported snapshot and how many reports ran so far.
func (s *StatusService) Last() (engine.Snapshot, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.reports
}
