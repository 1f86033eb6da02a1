package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beta_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "method", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beta_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	providerFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beta_provider_fetch_duration_seconds",
			Help:    "Time spent fetching a price series from the market data provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "outcome"},
	)

	priceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beta_price_cache_lookups_total",
			Help: "Price cache lookups by result (hit, miss, error)",
		},
		[]string{"cache", "result"},
	)

	estimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beta_estimates_total",
			Help: "Beta estimates by outcome",
		},
		[]string{"outcome"},
	)
)
