package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_queries_total",
			Help: "Answered queries by resolved intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_cache_hits_total",
			Help: "Queries served from a fresh history record",
		},
	)

	ModelAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_model_attempts_total",
			Help: "Text generation attempts by result",
		},
		[]string{"result"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_query_duration_seconds",
			Help:    "End-to-end query latency from receipt to history write",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"intent"},
	)

	AccessDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_access_denied_total",
			Help: "Queries rejected at the scope boundary",
		},
	)
)
