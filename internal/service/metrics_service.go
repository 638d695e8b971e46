package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/edupoint-api/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP, cache and ledger metrics.
// A nil *MetricsService is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	activitiesTotal   *prometheus.CounterVec
	pointsAwarded     prometheus.Counter
	redemptionsTotal  *prometheus.CounterVec
	decisionsTotal    *prometheus.CounterVec
	pointsSpent       prometheus.Counter
	driftCorrections  prometheus.Counter
	reconcileDuration prometheus.Histogram
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		activitiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_activities_recorded_total",
			Help: "Activities recorded by category",
		}, []string{"category"}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_points_awarded_total",
			Help: "Points credited through activities",
		}),
		redemptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_redemptions_requested_total",
			Help: "Redemption requests by channel",
		}, []string{"channel"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_redemption_decisions_total",
			Help: "Redemption decisions by decision and outcome code",
		}, []string{"decision", "outcome"}),
		pointsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_points_spent_total",
			Help: "Points debited by approved redemptions",
		}),
		driftCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_drift_corrections_total",
			Help: "Stored balances overwritten by reconciliation",
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_reconcile_duration_seconds",
			Help:    "Duration of reconciliation runs",
			Buckets: prometheus.DefBuckets,
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheHits, m.cacheMisses,
		m.activitiesTotal, m.pointsAwarded, m.redemptionsTotal, m.decisionsTotal,
		m.pointsSpent, m.driftCorrections, m.reconcileDuration, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ActivityRecorded counts a committed activity.
func (m *MetricsService) ActivityRecorded(category models.ActivityCategory, points int64) {
	if m == nil {
		return
	}
	m.activitiesTotal.WithLabelValues(string(category)).Inc()
	m.pointsAwarded.Add(float64(points))
}

// RedemptionRequested counts a new pending redemption.
func (m *MetricsService) RedemptionRequested(channel string) {
	if m == nil {
		return
	}
	m.redemptionsTotal.WithLabelValues(channel).Inc()
}

// RedemptionDecided counts a decision attempt. Outcome is "ok" or an error code.
func (m *MetricsService) RedemptionDecided(decision models.Decision, outcome string, spent int64) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(string(decision), outcome).Inc()
	if spent > 0 {
		m.pointsSpent.Add(float64(spent))
	}
}

// ReconcileFinished records a reconciliation run.
func (m *MetricsService) ReconcileFinished(corrected int, duration time.Duration) {
	if m == nil {
		return
	}
	m.driftCorrections.Add(float64(corrected))
	m.reconcileDuration.Observe(duration.Seconds())
}
