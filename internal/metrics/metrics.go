// Package metrics exposes Prometheus instrumentation for the wiki login flow.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	handshakesStarted prometheus.Counter
	callbacksTotal    *prometheus.CounterVec
	providerCalls     *prometheus.HistogramVec
	tokenStoreSwept   prometheus.Counter
	tokenStorePending prometheus.Gauge
)

// Handler initializes the collectors (once) and returns the /metrics handler.
func Handler(reg prometheus.Registerer) http.Handler {
	registry := reg
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		handshakesStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wiki_oauth_handshakes_started_total",
			Help: "Handshakes initiated (request token obtained and stored)",
		})

		callbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wiki_oauth_callbacks_total",
			Help: "Callback dispositions by outcome",
		}, []string{"outcome"}) // logged_in|registered|linked|error:<code>

		providerCalls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wiki_oauth_provider_call_duration_seconds",
			Help:    "Latency of signed calls to the wiki provider",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "result"}) // result: ok|rejected|protocol|unavailable

		tokenStoreSwept = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wiki_oauth_token_store_swept_total",
			Help: "Pending handshake entries removed by TTL sweeps",
		})

		tokenStorePending = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wiki_oauth_token_store_pending",
			Help: "Pending handshake entries currently held",
		})

		registry.MustRegister(
			handshakesStarted,
			callbacksTotal,
			providerCalls,
			tokenStoreSwept,
			tokenStorePending,
		)
	})

	if gatherer, ok := registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// HandshakeStarted records a stored request token.
func HandshakeStarted() {
	if handshakesStarted != nil {
		handshakesStarted.Inc()
	}
}

// CallbackOutcome records the disposition of a callback.
func CallbackOutcome(outcome string) {
	if callbacksTotal != nil {
		callbacksTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveProviderCall records the latency and result of one provider call.
func ObserveProviderCall(endpoint, result string, d time.Duration) {
	if providerCalls != nil {
		providerCalls.WithLabelValues(endpoint, result).Observe(d.Seconds())
	}
}

// TokenStoreSwept records entries evicted by a sweep.
func TokenStoreSwept(n int) {
	if tokenStoreSwept != nil && n > 0 {
		tokenStoreSwept.Add(float64(n))
	}
}

// TokenStorePending reports the current number of pending entries.
func TokenStorePending(n int) {
	if tokenStorePending != nil {
		tokenStorePending.Set(float64(n))
	}
}
