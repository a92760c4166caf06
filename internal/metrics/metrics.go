// Package metrics provides the centralized Prometheus metrics registry for the points engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "points_engine"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	EventRecalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_recalculations_total",
		Help:      "Total number of event points recalculations by outcome",
	}, []string{"outcome"})
	ResultsRankedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_ranked_total",
		Help:      "Total number of results that received a placement",
	})
	DefaultConfigFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "default_config_fallbacks_total",
		Help:      "Total number of recalculations that fell back to default point values",
	})
	AchievementsAwardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "achievements_awarded_total",
		Help:      "Total number of achievements awarded by source",
	}, []string{"source"})
	AchievementUpgradesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "achievement_upgrades_total",
		Help:      "Total number of same-group awards replaced by a higher one",
	})
	AchievementCheckFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "achievement_check_failures_total",
		Help:      "Total number of per-result achievement checks that failed",
	})
	CacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Cache lookups by cache and result",
	}, []string{"cache", "result"})
	ImageRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_requests_total",
		Help:      "Badge image generation and deletion requests by operation and outcome",
	}, []string{"operation", "outcome"})
)

// Gauge metrics
var (
	EligibleMembers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "eligible_members",
		Help:      "Number of member ids in the eligibility set",
	})
	EligibilityRefreshTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "eligibility_refresh_timestamp_seconds",
		Help:      "Unix time of the last successful eligibility refresh",
	})
	BackfillProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backfill_progress_ratio",
		Help:      "Progress of the running achievement backfill between 0 and 1",
	})
)

// Histogram metrics
var (
	EventRecalculationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "event_recalculation_duration_seconds",
		Help:      "Duration of an event points recalculation in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	BackfillDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backfill_duration_seconds",
		Help:      "Duration of achievement backfill runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(EventRecalculationsTotal)
		registry.MustRegister(ResultsRankedTotal)
		registry.MustRegister(DefaultConfigFallbacksTotal)
		registry.MustRegister(AchievementsAwardedTotal)
		registry.MustRegister(AchievementUpgradesTotal)
		registry.MustRegister(AchievementCheckFailuresTotal)
		registry.MustRegister(CacheRequestsTotal)
		registry.MustRegister(ImageRequestsTotal)

		registry.MustRegister(EligibleMembers)
		registry.MustRegister(EligibilityRefreshTimestamp)
		registry.MustRegister(BackfillProgress)

		registry.MustRegister(EventRecalculationDuration)
		registry.MustRegister(BackfillDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordEventRecalculation records one event pass.
func RecordEventRecalculation(outcome string, durationSeconds float64, ranked int) {
	EventRecalculationsTotal.WithLabelValues(outcome).Inc()
	EventRecalculationDuration.Observe(durationSeconds)
	ResultsRankedTotal.Add(float64(ranked))
}

// RecordDefaultConfigFallback records a recalculation using default point values.
func RecordDefaultConfigFallback() {
	DefaultConfigFallbacksTotal.Inc()
}

// RecordAchievementAwarded records a new recipient. source is "auto", "manual" or "backfill".
func RecordAchievementAwarded(source string) {
	AchievementsAwardedTotal.WithLabelValues(source).Inc()
}

// RecordAchievementUpgrade records a same-group replacement.
func RecordAchievementUpgrade() {
	AchievementUpgradesTotal.Inc()
}

// RecordAchievementCheckFailure records an isolated per-result failure.
func RecordAchievementCheckFailure() {
	AchievementCheckFailuresTotal.Inc()
}

// RecordCacheLookup records a hit or miss on a named cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(cache, result).Inc()
}

// RecordImageRequest records a call to the image service or store.
func RecordImageRequest(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	ImageRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// UpdateEligibleMembers records the size and time of an eligibility refresh.
func UpdateEligibleMembers(count int, unixSeconds float64) {
	EligibleMembers.Set(float64(count))
	EligibilityRefreshTimestamp.Set(unixSeconds)
}

// UpdateBackfillProgress sets the running backfill ratio.
func UpdateBackfillProgress(ratio float64) {
	BackfillProgress.Set(ratio)
}

// RecordBackfillDuration records a finished backfill.
func RecordBackfillDuration(durationSeconds float64) {
	BackfillDuration.Observe(durationSeconds)
}
