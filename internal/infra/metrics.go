package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes reported by RecordCycle.
const (
	OutcomeOK       = "ok"
	OutcomeDeferred = "deferred"
	OutcomeFatal    = "fatal"
	OutcomePanic    = "panic"
)

// Metrics exposes the ladder bot's Prometheus collectors.
// All methods are safe to call on a nil *Metrics so callers can run without observability.
type Metrics struct {
	cycles        *prometheus.CounterVec
	ordersPlaced  *prometheus.CounterVec
	ordersCancel  prometheus.Counter
	retries       *prometheus.CounterVec
	rebuilds      *prometheus.CounterVec
	rungs         prometheus.Gauge
	buyOrderOpen  prometheus.Gauge
	unrecoverable prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_ladder_cycles_total",
				Help: "Reconciliation cycles by outcome",
			},
			[]string{"outcome"},
		),
		ordersPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_ladder_orders_placed_total",
				Help: "Limit orders placed",
			},
			[]string{"side"},
		),
		ordersCancel: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dca_ladder_orders_cancelled_total",
				Help: "Orders cancelled by the bot",
			},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_ladder_retries_total",
				Help: "Failed exchange attempts that were retried",
			},
			[]string{"op"},
		),
		// reason: filled | stale | startup
		rebuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_ladder_rebuilds_total",
				Help: "Ladder builds split by reason",
			},
			[]string{"reason"},
		),
		rungs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dca_ladder_sell_orders",
				Help: "Sell orders currently tracked",
			},
		),
		buyOrderOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dca_ladder_buy_order_open",
				Help: "1 when a buy order is tracked",
			},
		),
		unrecoverable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dca_ladder_unrecoverable",
				Help: "1 when the persisted state is marked unrecoverable",
			},
		),
	}

	reg.MustRegister(
		m.cycles, m.ordersPlaced, m.ordersCancel, m.retries,
		m.rebuilds, m.rungs, m.buyOrderOpen, m.unrecoverable,
	)
	return m
}

// RecordCycle counts one reconciliation cycle.
func (m *Metrics) RecordCycle(outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
}

// RecordOrderPlaced counts a placed order; side is "buy" or "sell".
func (m *Metrics) RecordOrderPlaced(side string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(side).Inc()
}

func (m *Metrics) RecordCancel() {
	if m == nil {
		return
	}
	m.ordersCancel.Inc()
}

// RecordRetry counts a failed attempt of op.
func (m *Metrics) RecordRetry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordRebuild(reason string) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(reason).Inc()
}

// SetLadder publishes the tracked state gauges.
func (m *Metrics) SetLadder(sellOrders int, buyOrder, unrecoverable bool) {
	if m == nil {
		return
	}
	m.rungs.Set(float64(sellOrders))
	m.buyOrderOpen.Set(boolGauge(buyOrder))
	m.unrecoverable.Set(boolGauge(unrecoverable))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
