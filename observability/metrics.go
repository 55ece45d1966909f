package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type vaultMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	denials    prometheus.Counter
	latency    *prometheus.HistogramVec
	burned     prometheus.Gauge
}

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	throttles *prometheus.CounterVec
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *vaultMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics
)

// Vault returns the lazily-initialised registry recording vault operations.
func Vault() *vaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &vaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ontlock",
				Name:      "operations_total",
				Help:      "Vault operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ontlock",
				Name:      "failures_total",
				Help:      "Failed vault operations segmented by operation and failure class.",
			}, []string{"op", "class"}),
			denials: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ontlock",
				Name:      "allowance_denials_total",
				Help:      "Credential writes rejected because the allowance was exhausted.",
			}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ontlock",
				Name:      "operation_duration_seconds",
				Help:      "Latency of vault operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			burned: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "ontlock",
				Name:      "burned_total",
				Help:      "Cumulative token value burned by allowance purchases, in whole tokens.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.failures,
			vaultRegistry.denials,
			vaultRegistry.latency,
			vaultRegistry.burned,
		)
	})
	return vaultRegistry
}

// ObserveOperation records the outcome of one operation. An empty class means
// success.
func (m *vaultMetrics) ObserveOperation(op, class string, duration time.Duration) {
	if m == nil {
		return
	}
	op = normalizeLabel(op)
	outcome := "success"
	if class != "" {
		outcome = "failure"
		m.failures.WithLabelValues(op, normalizeLabel(class)).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordAllowanceDenial counts a put rejected for quota.
func (m *vaultMetrics) RecordAllowanceDenial() {
	if m == nil {
		return
	}
	m.denials.Inc()
}

// SetBurned publishes the global burn total.
func (m *vaultMetrics) SetBurned(tokens float64) {
	if m == nil {
		return
	}
	m.burned.Set(tokens)
}

// RPC returns the registry recording JSON-RPC traffic.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ontlock",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests segmented by method and response code.",
			}, []string{"method", "code"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ontlock",
				Subsystem: "rpc",
				Name:      "throttled_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.throttles)
	})
	return rpcRegistry
}

func (m *rpcMetrics) ObserveRequest(method string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(method), codeLabel(code)).Inc()
}

func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(normalizeLabel(reason)).Inc()
}

func codeLabel(code int) string {
	if code == 0 {
		return "ok"
	}
	return strconv.Itoa(code)
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
