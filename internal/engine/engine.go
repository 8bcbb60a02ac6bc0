// Package engine runs the DCA ladder state machine against an exchange.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/infra"
	"dca_ladder/internal/storage"
)

// Options tunes the engine. Zero values take the defaults below.
type Options struct {
	PollInterval  time.Duration // Default 3s
	RetryAttempts int           // Per remote call, default 5
	CancelPasses  int           // Passes over un-cancelled sell orders, default 3
	DumpPath      string        // Post-mortem state dump, default ladder_dump.json

	Metrics  *infra.Metrics  // Optional
	Notifier domain.Notifier // Optional
	Now      func() time.Time
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 5
	}
	if o.CancelPasses <= 0 {
		o.CancelPasses = 3
	}
	if o.DumpPath == "" {
		o.DumpPath = "ladder_dump.json"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Engine owns the ladder state of one market.
//
// Every cycle runs on the goroutine calling Run. State changes go through commit,
// which persists before the new state becomes visible.
type Engine struct {
	cfg      domain.StrategyConfig
	exchange domain.ExchangeClient
	repo     *storage.LadderRepository
	opts     Options
	logger   *slog.Logger

	market domain.MarketInfo
	state  domain.LadderState

	mu sync.RWMutex // Used only for external reads (Snapshot, DumpState)
}

// New creates an engine. Call Start before Run.
func New(cfg domain.StrategyConfig, exchange domain.ExchangeClient, repo *storage.LadderRepository, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{
		cfg:      cfg,
		exchange: exchange,
		repo:     repo,
		opts:     opts,
		logger:   slog.Default().With(slog.String("module", "engine"), slog.String("pair", cfg.Pair.String())),
		state:    domain.LadderState{SellOrders: []string{}},
	}
}

// Snapshot is a point-in-time copy of the engine state.
type Snapshot struct {
	Pair   domain.Pair        `json:"pair"`
	Live   bool               `json:"live"`
	Market domain.MarketInfo  `json:"market"`
	State  domain.LadderState `json:"state"`
	Taken  time.Time          `json:"taken"`
}

// Snapshot returns a copy of the current state (external read).
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Snapshot{
		Pair:   e.cfg.Pair,
		Live:   e.cfg.Live,
		Market: e.market,
		State:  e.state.Clone(),
		Taken:  e.opts.Now(),
	}
}

// commit persists the selected fields of next and then makes it the current state.
// A failed write is fatal: an order the store does not know about cannot be recovered.
func (e *Engine) commit(ctx context.Context, next domain.LadderState, fields ...storage.Field) error {
	// Shutdown must not lose the record of an order that was already placed
	if err := e.repo.Save(context.WithoutCancel(ctx), next, fields...); err != nil {
		return domain.Fatal("persist", err)
	}

	e.mu.Lock()
	e.state = next
	e.mu.Unlock()

	e.opts.Metrics.SetLadder(len(next.SellOrders), next.HasBuyOrder(), next.Unrecoverable)
	return nil
}

func (e *Engine) setMarket(m domain.MarketInfo) {
	e.mu.Lock()
	e.market = m
	e.mu.Unlock()
}

func (e *Engine) setState(s domain.LadderState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.opts.Metrics.SetLadder(len(s.SellOrders), s.HasBuyOrder(), s.Unrecoverable)
}

// notify sends text to the operator. Failures are only logged.
func (e *Engine) notify(ctx context.Context, text string) {
	if e.opts.Notifier == nil {
		return
	}
	if err := e.opts.Notifier.Notify(context.WithoutCancel(ctx), text); err != nil {
		e.logger.Warn("Failed to notify operator", slog.Any("error", err))
	}
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (e *Engine) DumpState(filename string) {
	e.logger.Info("Dumping internal state...", slog.String("file", filename))

	b, err := json.MarshalIndent(e.Snapshot(), "", "  ")
	if err != nil {
		e.logger.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		e.logger.Error("Failed to write state dump", slog.Any("error", err))
	}
}
