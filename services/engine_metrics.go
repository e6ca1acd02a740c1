package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_events_ingested_total",
		Help: "Activity events accepted by the ingestor, by type.",
	}, []string{"event_type"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagement_events_dropped_total",
		Help: "Activity events rejected because the ingest buffer was full.",
	})

	batchesFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_batches_flushed_total",
		Help: "Batch flushes by outcome.",
	}, []string{"outcome"})

	batchFlushSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engagement_batch_flush_size",
		Help:    "Events per flushed batch.",
		Buckets: []float64{1, 2, 5, 10},
	})

	achievementsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_achievements_awarded_total",
		Help: "Achievement awards and tier upgrades persisted.",
	}, []string{"kind"})

	classificationJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_classification_jobs_total",
		Help: "Classification queue jobs by outcome.",
	}, []string{"outcome"})

	classificationDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engagement_classification_queue_depth",
		Help: "Users currently waiting in the classification queue.",
	})

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_cache_requests_total",
		Help: "Cache lookups by layer and result.",
	}, []string{"layer", "result"})

	cacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_cache_invalidations_total",
		Help: "Cache invalidations by reason.",
	}, []string{"reason"})
)
