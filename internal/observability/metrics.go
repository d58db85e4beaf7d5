package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metabridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "metabridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	sessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metabridge",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session lifecycle triggers by outcome.",
		},
		[]string{"trigger", "outcome"},
	)
	sessionsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "metabridge",
			Subsystem: "session",
			Name:      "sessions",
			Help:      "Live sessions by connection state.",
		},
		[]string{"state"},
	)
	pairingCodesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "metabridge",
			Subsystem: "pairing",
			Name:      "codes_issued_total",
			Help:      "Pairing codes minted.",
		},
	)
	pairingCodesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "metabridge",
			Subsystem: "pairing",
			Name:      "codes_expired_total",
			Help:      "Pairing codes that lapsed without success.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			sessionTransitions,
			sessionsByState,
			pairingCodesIssued,
			pairingCodesExpired,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordTransition(trigger string, ok bool) {
	RegisterMetrics()
	outcome := "applied"
	if !ok {
		outcome = "rejected"
	}
	sessionTransitions.WithLabelValues(trigger, outcome).Inc()
}

func RecordPairingCodeIssued() {
	RegisterMetrics()
	pairingCodesIssued.Inc()
}

func RecordPairingCodeExpired() {
	RegisterMetrics()
	pairingCodesExpired.Inc()
}

// SetSessionsByState replaces the per-state gauge with a fresh fleet
// census. States absent from counts reset to zero.
func SetSessionsByState(counts map[string]int) {
	RegisterMetrics()
	sessionsByState.Reset()
	for state, n := range counts {
		sessionsByState.WithLabelValues(state).Set(float64(n))
	}
}
