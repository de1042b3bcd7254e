package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devy_chat_turns_total",
		Help: "Processed chat turns by outcome.",
	}, []string{"outcome"}) // reply, finalized, extraction_failed, upstream_error, rejected

	assessmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devy_assessments_total",
		Help: "Sessions finalized with a validated assessment.",
	})

	chatDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devy_chat_turn_duration_seconds",
		Help:    "End-to-end latency of one chat turn, model call included.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
