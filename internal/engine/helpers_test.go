package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/execution"
	"dca_ladder/internal/infra"
	infrastorage "dca_ladder/internal/infra/storage"
	"dca_ladder/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	btcusdt    = domain.Pair{Base: "BTC", Quote: "USDT"}
	testMarket = domain.MarketInfo{Pair: btcusdt, MinOrderSize: d("0.0001"), AmountPrecision: 4, PricePrecision: 2}
	errBoom    = errors.New("exchange unavailable")
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Ask 100 with this config gives rungs 101/0.9901, 103.02/0.9901, 105.08/1.9802.
func testConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		Pair:              btcusdt,
		StartAmount:       d("100"),
		StartPricePercent: d("1"),
		DCA:               []decimal.Decimal{d("2"), d("3")},
		Profit:            d("1"),
		SecondsToKeepDCA:  -1,
		Live:              true,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(dur time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(dur)
}

// flakyExchange injects failures into a paper exchange.
type flakyExchange struct {
	*execution.PaperExchange

	mu           sync.Mutex
	fetchFails   map[string]int // Remaining FetchOrder failures per id, -1 forever
	cancelFails  map[string]int // Remaining CancelOrder failures per id, -1 forever
	tickerFails  bool
	buyFails     bool
	buyLostAcks  int // Buy placements that land but report an error
	panicOnFetch bool
	fetchCalls   int
	cancelCalls  int

	// beforeFetch runs ahead of every FetchOrder, outside the lock
	beforeFetch func(id string)
}

func newFlakyExchange(ask string) *flakyExchange {
	return newFlakyExchangeWithBase(ask, "10")
}

func newFlakyExchangeWithBase(ask, base string) *flakyExchange {
	paper := execution.NewPaperExchange(testMarket, d(ask))
	paper.Deposit("BTC", d(base))
	paper.Deposit("USDT", d("1000"))
	return &flakyExchange{
		PaperExchange: paper,
		fetchFails:    make(map[string]int),
		cancelFails:   make(map[string]int),
	}
}

func consume(m map[string]int, id string) bool {
	n, ok := m[id]
	if !ok || n == 0 {
		return false
	}
	if n > 0 {
		m[id] = n - 1
	}
	return true
}

func (f *flakyExchange) FetchOrder(ctx context.Context, id string, pair domain.Pair) (domain.Order, error) {
	f.mu.Lock()
	f.fetchCalls++
	fail := consume(f.fetchFails, id)
	panicking := f.panicOnFetch
	hook := f.beforeFetch
	f.mu.Unlock()

	if hook != nil {
		hook(id)
	}

	if panicking {
		panic("unexpected order payload")
	}
	if fail {
		return domain.Order{}, errBoom
	}
	return f.PaperExchange.FetchOrder(ctx, id, pair)
}

func (f *flakyExchange) CancelOrder(ctx context.Context, id string, pair domain.Pair) (domain.Order, error) {
	f.mu.Lock()
	f.cancelCalls++
	fail := consume(f.cancelFails, id)
	f.mu.Unlock()

	if fail {
		return domain.Order{}, errBoom
	}
	return f.PaperExchange.CancelOrder(ctx, id, pair)
}

func (f *flakyExchange) FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error) {
	f.mu.Lock()
	fail := f.tickerFails
	f.mu.Unlock()

	if fail {
		return domain.Ticker{}, errBoom
	}
	return f.PaperExchange.FetchTicker(ctx, pair)
}

func (f *flakyExchange) PlaceLimitBuyOrder(ctx context.Context, pair domain.Pair, amount, price decimal.Decimal) (domain.Order, error) {
	f.mu.Lock()
	fail := f.buyFails
	lostAck := f.buyLostAcks > 0
	if lostAck {
		f.buyLostAcks--
	}
	f.mu.Unlock()

	if fail {
		return domain.Order{}, errBoom
	}
	o, err := f.PaperExchange.PlaceLimitBuyOrder(ctx, pair, amount, price)
	if err == nil && lostAck {
		return domain.Order{}, errBoom
	}
	return o, err
}

// checkedStore records every write that breaks the buy order invariant.
type checkedStore struct {
	*infrastorage.MemoryStore

	mu         sync.Mutex
	violations []string
}

func (s *checkedStore) Set(ctx context.Context, entries map[string]string) error {
	id, hasID := entries[storage.KeyBuyOrder]
	price, hasPrice := entries[storage.KeyBuyOrderPrice]

	s.mu.Lock()
	switch {
	case hasID != hasPrice:
		s.violations = append(s.violations, fmt.Sprintf("partial buy order write: %v", entries))
	case hasID && (id == "null") != (price == "null"):
		s.violations = append(s.violations, fmt.Sprintf("buy order %s with price %s", id, price))
	}
	s.mu.Unlock()

	return s.MemoryStore.Set(ctx, entries)
}

func (s *checkedStore) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

type harness struct {
	engine   *Engine
	exchange *flakyExchange
	store    *checkedStore
	repo     *storage.LadderRepository
	clock    *fakeClock
	dumpPath string
}

func newHarness(t *testing.T, cfg domain.StrategyConfig, ex *flakyExchange) *harness {
	t.Helper()
	store := &checkedStore{MemoryStore: infrastorage.NewMemoryStore()}
	return newHarnessWithStore(t, cfg, ex, store)
}

func newHarnessWithStore(t *testing.T, cfg domain.StrategyConfig, ex *flakyExchange, store *checkedStore) *harness {
	t.Helper()
	h := &harness{
		exchange: ex,
		store:    store,
		repo:     storage.NewLadderRepository(store),
		clock:    newClock(),
		dumpPath: filepath.Join(t.TempDir(), "dump.json"),
	}
	h.engine = New(cfg, ex, h.repo, Options{
		PollInterval: time.Millisecond,
		Metrics:      infra.NewMetrics(prometheus.NewRegistry()),
		DumpPath:     h.dumpPath,
		Now:          h.clock.Now,
	})
	return h
}

// restart creates a new engine over the same exchange and store, as after a process restart.
func (h *harness) restart(t *testing.T, cfg domain.StrategyConfig) *harness {
	t.Helper()
	return newHarnessWithStore(t, cfg, h.exchange, h.store)
}

func (h *harness) loadState(t *testing.T) domain.LadderState {
	t.Helper()
	state, err := h.repo.Load(context.Background())
	require.NoError(t, err)
	return state
}

func (h *harness) rawValue(t *testing.T, key string, dst any) {
	t.Helper()
	raw, ok, err := h.store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "key %s not written", key)
	require.NoError(t, json.Unmarshal([]byte(raw), dst))
}

// mockExchange is a testify mock of domain.ExchangeClient.
type mockExchange struct {
	mock.Mock
}

func (m *mockExchange) FetchMarket(ctx context.Context, pair domain.Pair) (domain.MarketInfo, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(domain.MarketInfo), args.Error(1)
}

func (m *mockExchange) FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(domain.Ticker), args.Error(1)
}

func (m *mockExchange) FetchOrder(ctx context.Context, id string, pair domain.Pair) (domain.Order, error) {
	args := m.Called(ctx, id, pair)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *mockExchange) PlaceLimitSellOrder(ctx context.Context, pair domain.Pair, amount, price decimal.Decimal) (domain.Order, error) {
	args := m.Called(ctx, pair, amount, price)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *mockExchange) PlaceLimitBuyOrder(ctx context.Context, pair domain.Pair, amount, price decimal.Decimal) (domain.Order, error) {
	args := m.Called(ctx, pair, amount, price)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *mockExchange) CancelOrder(ctx context.Context, id string, pair domain.Pair) (domain.Order, error) {
	args := m.Called(ctx, id, pair)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *mockExchange) FetchBalance(ctx context.Context) (domain.Balances, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Balances), args.Error(1)
}
