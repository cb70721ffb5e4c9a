package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SourceAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionmap_source_attempts_total",
		Help: "Region source attempts by source url and outcome",
	}, []string{"source", "outcome"})
	SourceFetchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regionmap_source_fetch_duration_ms",
		Help:    "Region source fetch duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"source"})
	LoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionmap_loads_total",
		Help: "Completed source chain runs by final status",
	}, []string{"status"})
	SourceCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionmap_source_cache_hits_total",
		Help: "Region source bodies served from redis",
	})
	SourceCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionmap_source_cache_misses_total",
		Help: "Region source bodies not found in redis",
	})
	FeaturesIndexed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regionmap_features_indexed",
		Help: "Region features in the most recent index",
	})
	FeaturesDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionmap_features_dropped_total",
		Help: "Region features dropped while indexing, by reason",
	}, []string{"reason"})
	ViewsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regionmap_views_active",
		Help: "Currently mounted map views",
	})
	StaleCompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionmap_stale_completions_total",
		Help: "Load completions discarded because the view was unmounted",
	})
	HoverTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionmap_hover_transitions_total",
		Help: "Region state transitions applied by the interaction controller",
	}, []string{"transition"})
	ThemeChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionmap_theme_changes_total",
		Help: "Theme changes by resulting mode",
	}, []string{"mode"})
	LocateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionmap_locate_total",
		Help: "Visitor locate lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(SourceAttemptsTotal)
	prometheus.MustRegister(SourceFetchDurationMs)
	prometheus.MustRegister(LoadsTotal)
	prometheus.MustRegister(SourceCacheHitsTotal)
	prometheus.MustRegister(SourceCacheMissesTotal)
	prometheus.MustRegister(FeaturesIndexed)
	prometheus.MustRegister(FeaturesDroppedTotal)
	prometheus.MustRegister(ViewsActive)
	prometheus.MustRegister(StaleCompletionsTotal)
	prometheus.MustRegister(HoverTransitionsTotal)
	prometheus.MustRegister(ThemeChangesTotal)
	prometheus.MustRegister(LocateTotal)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
