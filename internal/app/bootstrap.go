// Package app wires configuration, infrastructure and the engine together.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/engine"
	"dca_ladder/internal/execution"
	"dca_ladder/internal/infra"
	"dca_ladder/internal/infra/bitget"
	"dca_ladder/internal/infra/notify"
	infrastorage "dca_ladder/internal/infra/storage"
	"dca_ladder/internal/service"
	"dca_ladder/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Store    domain.StateStore
	Repo     *storage.LadderRepository
	Exchange domain.ExchangeClient
	Engine   *engine.Engine
	Status   *service.StatusService
	Metrics  *infra.Metrics

	registry   *prometheus.Registry
	metricsSrv *http.Server
	closers    []func() error
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the configuration and builds every component. Nothing talks to
// the exchange yet.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping DCA ladder...",
		slog.String("pair", cfg.Strategy.Pair),
		slog.Bool("live", cfg.Strategy.Live),
		slog.String("exchange", cfg.Exchange.Driver),
		slog.String("storage", cfg.Storage.Driver),
	)

	strategyCfg, err := cfg.StrategyConfig()
	if err != nil {
		return err
	}

	// 3. State store
	if err := b.initStore(ctx); err != nil {
		return err
	}
	b.Repo = storage.NewLadderRepository(b.Store)
	slog.Info("✅ State store initialized")

	// 4. Exchange
	b.Exchange, err = newExchange(cfg, strategyCfg.Pair)
	if err != nil {
		return err
	}
	slog.Info("✅ Exchange client ready")

	// 5. Metrics
	b.registry = prometheus.NewRegistry()
	b.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	b.Metrics = infra.NewMetrics(b.registry)

	// 6. Engine
	opts := engine.Options{
		PollInterval:  cfg.PollInterval(),
		RetryAttempts: cfg.Engine.RetryAttempts,
		CancelPasses:  cfg.Engine.CancelPasses,
		DumpPath:      cfg.Engine.DumpPath,
		Metrics:       b.Metrics,
	}
	if tg := cfg.Notify.Telegram; tg.BotToken != "" {
		opts.Notifier = notify.NewTelegram(tg.APIURL, tg.BotToken, tg.ChatID)
		slog.Info("✅ Telegram notifications enabled")
	}
	b.Engine = engine.New(strategyCfg, b.Exchange, b.Repo, opts)

	// 7. Status report
	b.Status, err = service.NewStatusService(b.Engine, cfg.Report.Cron, b.Metrics)
	if err != nil {
		return &domain.ConfigError{Field: "report.cron", Err: err}
	}

	if cfg.Metrics.Listen != "" {
		b.metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           b.handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return nil
}

func (b *Bootstrap) initStore(ctx context.Context) error {
	cfg := b.Config
	switch cfg.Storage.Driver {
	case infra.StoreRedis:
		store, err := infrastorage.OpenRedis(ctx, &redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		}, cfg.Storage.Redis.Key)
		if err != nil {
			return err
		}
		b.Store = store
		b.closers = append(b.closers, store.Close)
	case infra.StoreMemory:
		slog.Warn("⚠️ In-memory state store: the ladder is lost on restart")
		b.Store = infrastorage.NewMemoryStore()
	default:
		store, err := infrastorage.NewStorage(cfg.Storage.SQLite.Path)
		if err != nil {
			return err
		}
		b.Store = store
		b.closers = append(b.closers, store.Close)
	}
	return nil
}

func newExchange(cfg *infra.Config, pair domain.Pair) (domain.ExchangeClient, error) {
	if cfg.Exchange.Driver == infra.DriverBitget {
		return bitget.NewClient(cfg), nil
	}

	p := cfg.Exchange.Paper
	market := domain.MarketInfo{
		Pair:            pair,
		MinOrderSize:    p.MinOrderSize,
		AmountPrecision: p.AmountPrecision,
		PricePrecision:  p.PricePrecision,
	}
	paper := execution.NewPaperExchange(market, p.Ask)
	for currency, amount := range p.Balances {
		paper.Deposit(currency, amount)
	}

	if p.PriceFeed {
		// Public ticker only, no credentials needed
		paper.WithPriceSource(bitget.NewClient(cfg))
	} else if !p.Ask.IsPositive() {
		return nil, &domain.ConfigError{Field: "exchange.paper.ask", Err: errors.New("must be positive without a price feed")}
	}
	return paper, nil
}

// handler serves /metrics and a JSON view of the ladder on /status.
func (b *Bootstrap) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(b.Engine.Snapshot()); err != nil {
			slog.Warn("Failed to encode status", slog.Any("error", err))
		}
	})
	return mux
}

// Run starts the engine and blocks in the poll loop until ctx is cancelled or a
// fatal error stops it. Shutdown by ctx returns nil.
func (b *Bootstrap) Run(ctx context.Context) error {
	if b.metricsSrv != nil {
		go func() {
			slog.Info("📈 Metrics server started", slog.String("addr", b.metricsSrv.Addr))
			if err := b.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	if err := b.Engine.Start(ctx); err != nil {
		if ctx.Err() != nil {
			slog.Info("👋 Interrupted during startup")
			return nil
		}
		return fmt.Errorf("startup: %w", err)
	}

	b.Status.Start()
	defer b.Status.Stop()

	slog.InfoContext(ctx, "✨ DCA ladder fully operational. Press Ctrl+C to exit.")
	return b.Engine.Run(ctx)
}

// Reset overwrites the persisted ladder with the empty state.
func (b *Bootstrap) Reset(ctx context.Context) error {
	if err := b.Repo.Reset(ctx); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	slog.Warn("🧹 Persisted ladder state cleared")
	return nil
}

// Close stops the metrics server and releases the state store.
func (b *Bootstrap) Close() error {
	var errs []error
	if b.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
