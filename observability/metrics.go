package observability

import (
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type ledgerMetrics struct {
	outstanding prometheus.Gauge
	custody     prometheus.Gauge
	solvent     prometheus.Gauge
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// RPC returns the lazily-initialised metrics registry for JSON-RPC traffic.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "remittance",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "remittance",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "remittance",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "remittance",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records one JSON-RPC request. A zero code means success.
func (m *rpcMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit".
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// Ledger returns the gauges tracking custody against outstanding entries.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "remittance",
				Subsystem: "ledger",
				Name:      "outstanding",
				Help:      "Sum of all active entry amounts in the smallest native unit.",
			}),
			custody: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "remittance",
				Subsystem: "ledger",
				Name:      "custody_balance",
				Help:      "Balance held by the contract custody account.",
			}),
			solvent: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "remittance",
				Subsystem: "ledger",
				Name:      "solvent",
				Help:      "1 when custody covers the outstanding total, 0 otherwise.",
			}),
		}
		prometheus.MustRegister(ledgerRegistry.outstanding, ledgerRegistry.custody, ledgerRegistry.solvent)
	})
	return ledgerRegistry
}

// SetSolvency publishes the latest custody snapshot. Gauges are float64, so
// very large amounts lose precision.
func (m *ledgerMetrics) SetSolvency(custody, outstanding *uint256.Int) {
	if m == nil {
		return
	}
	c := toFloat(custody)
	o := toFloat(outstanding)
	m.custody.Set(c)
	m.outstanding.Set(o)
	if custody != nil && outstanding != nil && !custody.Lt(outstanding) {
		m.solvent.Set(1)
	} else {
		m.solvent.Set(0)
	}
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
