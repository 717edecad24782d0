package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tier labels used by the lookup counter.
const (
	tierScope      = "scope"
	tierMemory     = "memory"
	tierRevalidate = "revalidate"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksquirrel_cache_lookups_total",
			Help: "Cache lookups by namespace, tier and result (hit, miss, stale).",
		},
		[]string{"namespace", "tier", "result"},
	)

	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksquirrel_fetch_total",
			Help: "Persistence accessor calls by namespace and result (found, absent, error).",
		},
		[]string{"namespace", "result"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linksquirrel_fetch_duration_seconds",
			Help:    "Duration of persistence accessor calls.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"namespace"},
	)

	memoryEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksquirrel_memory_evictions_total",
			Help: "Memory tier removals by namespace and reason (capacity, expired, policy).",
		},
		[]string{"namespace", "reason"},
	)

	memoryEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linksquirrel_memory_entries",
			Help: "Current number of entries held by the memory tier.",
		},
		[]string{"namespace"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksquirrel_tag_invalidations_total",
			Help: "Tag invalidations issued against the revalidating tier.",
		},
		[]string{"tag"},
	)
)
