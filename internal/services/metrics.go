package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	movieCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinerec_movie_cache_lookups_total",
		Help: "Movie cache lookups by outcome (hit, miss, stale, error).",
	}, []string{"outcome"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinerec_upstream_requests_total",
		Help: "Metadata provider requests by outcome.",
	}, []string{"outcome"})

	recommendationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinerec_recommendation_requests_total",
		Help: "Recommendation computations by engine.",
	}, []string{"engine"})

	matrixRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cinerec_user_item_matrix_rebuilds_total",
		Help: "User-item rating matrix rebuilds.",
	})
)
