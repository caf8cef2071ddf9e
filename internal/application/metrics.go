package application

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup results recorded by Metrics.
const (
	lookupFresh               = "fresh"
	lookupStale               = "stale"
	lookupMiss                = "miss"
	lookupFingerprintMismatch = "fingerprint_mismatch"
)

// Metrics records cache and aggregation counters. A nil *Metrics records nothing.
type Metrics struct {
	cacheLookups        *prometheus.CounterVec
	cacheInvalidations  *prometheus.CounterVec
	campCollections     *prometheus.CounterVec
	aggregationDuration *prometheus.HistogramVec
	backgroundRefreshes *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campstats",
			Name:      "cache_lookups_total",
			Help:      "Statistics cache lookups by result.",
		}, []string{"result"}),
		cacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campstats",
			Name:      "cache_invalidations_total",
			Help:      "Cache entries removed, by triggering mutation.",
		}, []string{"trigger"}),
		campCollections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campstats",
			Name:      "camp_collections_total",
			Help:      "Per-camp statistic collections by outcome.",
		}, []string{"outcome"}),
		aggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "campstats",
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent aggregating camp statistics.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		backgroundRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campstats",
			Name:      "background_refreshes_total",
			Help:      "Background recomputations of stale cache entries by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.cacheLookups,
			m.cacheInvalidations,
			m.campCollections,
			m.aggregationDuration,
			m.backgroundRefreshes,
		)
	}
	return m
}

func (m *Metrics) lookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) invalidated(trigger string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.cacheInvalidations.WithLabelValues(trigger).Add(float64(count))
}

func (m *Metrics) collected(outcome string) {
	if m == nil {
		return
	}
	m.campCollections.WithLabelValues(outcome).Inc()
}

func (m *Metrics) aggregated(mode AggregationMode, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.aggregationDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

func (m *Metrics) refreshed(outcome string) {
	if m == nil {
		return
	}
	m.backgroundRefreshes.WithLabelValues(outcome).Inc()
}
