// Package metrics registers the Prometheus series the platform exposes:
// one promauto var plus a Record* helper per series, grouped by
// Namespace/Subsystem/Name per copy-trading component.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Scheduler / polling ============

var PollLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "copytrader",
		Subsystem: "scheduler",
		Name:      "poll_latency_ms",
		Help:      "Time to fetch and diff one whale's positions in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	},
	[]string{"exchange"},
)

var WhalesPolled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "copytrader",
		Subsystem: "scheduler",
		Name:      "whales_polled_total",
		Help:      "Total number of whale poll attempts",
	},
	[]string{"exchange", "outcome"}, // outcome: ok, sharing_denied, rate_limited, error
)

// ============ Signals ============

var SignalsEmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "copytrader",
		Subsystem: "signals",
		Name:      "emitted_total",
		Help:      "Total number of signals emitted by the position differ",
	},
	[]string{"action", "source"},
)

var QueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "copytrader",
		Subsystem: "signals",
		Name:      "queue_depth",
		Help:      "Current depth of a user's signal priority queue",
	},
	[]string{"user_id"},
)

// ============ Executor ============

var TradeExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "copytrader",
		Subsystem: "executor",
		Name:      "execution_latency_ms",
		Help:      "Time from Reserve to Confirm/Compensate in milliseconds",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000},
	},
	[]string{"exchange", "trade_type"},
)

var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "copytrader",
		Subsystem: "executor",
		Name:      "trades_total",
		Help:      "Total number of copy-trades, by terminal status",
	},
	[]string{"exchange", "status"}, // status: filled, failed, needs_reconciliation
)

var TradesNeedingReconciliation = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "copytrader",
		Subsystem: "executor",
		Name:      "needs_reconciliation",
		Help:      "Current number of trades awaiting reconciliation",
	},
)

// ============ Exchange / circuit breaker / proxy pool ============

var ExchangeCallLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "copytrader",
		Subsystem: "exchange",
		Name:      "call_latency_ms",
		Help:      "Latency of one ExchangePort call in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
	},
	[]string{"exchange", "method"},
)

var BreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "copytrader",
		Subsystem: "exchange",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
	},
	[]string{"exchange"},
)

var ProxyPoolActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "copytrader",
		Subsystem: "proxy",
		Name:      "active_count",
		Help:      "Current number of healthy proxies in the pool",
	},
)

var ProxyLeaseFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "copytrader",
		Subsystem: "proxy",
		Name:      "lease_failures_total",
		Help:      "Total number of proxy lease requests that found no available proxy",
	},
	[]string{"exchange"},
)

// ============ Whale sharing status ============

var WhaleStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "copytrader",
		Subsystem: "whale",
		Name:      "data_status",
		Help:      "Whale data status (1=current status, labeled)",
	},
	[]string{"whale_id", "status"},
)

// ============ Helpers ============

// RecordPoll records the outcome and latency of one whale poll.
func RecordPoll(exchangeName, outcome string, latencyMs float64) {
	WhalesPolled.WithLabelValues(exchangeName, outcome).Inc()
	PollLatency.WithLabelValues(exchangeName).Observe(latencyMs)
}

// RecordSignalEmitted increments the emitted-signals counter.
func RecordSignalEmitted(action, source string) {
	SignalsEmitted.WithLabelValues(action, source).Inc()
}

// RecordTrade records a terminal trade outcome and its execution latency.
func RecordTrade(exchangeName, tradeType, status string, latencyMs float64) {
	TradesTotal.WithLabelValues(exchangeName, status).Inc()
	TradeExecutionLatency.WithLabelValues(exchangeName, tradeType).Observe(latencyMs)
}

// breakerStateValue maps a breaker state name to the gauge's numeric encoding.
func breakerStateValue(state string) float64 {
	switch state {
	case "HALF_OPEN":
		return 1
	case "OPEN":
		return 2
	default: // CLOSED
		return 0
	}
}

// RecordBreakerState updates the breaker-state gauge for one exchange.
func RecordBreakerState(exchangeName, state string) {
	BreakerState.WithLabelValues(exchangeName).Set(breakerStateValue(state))
}

// UpdateProxyPoolActive sets the current healthy-proxy count.
func UpdateProxyPoolActive(count int) {
	ProxyPoolActive.Set(float64(count))
}

// RecordProxyLeaseFailure increments the lease-failure counter for an exchange.
func RecordProxyLeaseFailure(exchangeName string) {
	ProxyLeaseFailures.WithLabelValues(exchangeName).Inc()
}

// UpdateWhaleStatus records a whale's current data status as a one-hot gauge,
// zeroing the other known statuses so Grafana shows a clean step function.
func UpdateWhaleStatus(whaleID string, status string) {
	for _, s := range []string{"ACTIVE", "SHARING_DISABLED", "RATE_LIMITED", "INACTIVE"} {
		if s == status {
			WhaleStatus.WithLabelValues(whaleID, s).Set(1)
		} else {
			WhaleStatus.WithLabelValues(whaleID, s).Set(0)
		}
	}
}
