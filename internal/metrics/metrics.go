// internal/metrics/metrics.go

// Package metrics holds the prometheus collectors of the swap service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cryptoswap"

// Metrics groups every collector so tests can use a private registry.
type Metrics struct {
	FeedFetches    *prometheus.CounterVec
	PriceTableSize prometheus.Gauge
	Quotes         *prometheus.CounterVec
	Submits        *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		FeedFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_feed_fetches_total",
			Help:      "Price feed refreshes by source and outcome.",
		}, []string{"source", "outcome"}),

		PriceTableSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_table_currencies",
			Help:      "Number of currencies in the current price table.",
		}),

		Quotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Form events processed by event and whether a counterpart amount was derived.",
		}, []string{"event", "derived"}),

		Submits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_submits_total",
			Help:      "Swap submissions by outcome.",
		}, []string{"outcome"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Nop returns collectors bound to a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
