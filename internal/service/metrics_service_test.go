package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupoint-api/internal/models"
)

func TestMetricsServiceExposesLedgerCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/activities", http.StatusCreated, 20*time.Millisecond)
	m.ActivityRecorded(models.CategorySports, 15)
	m.RedemptionRequested(ChannelQR)
	m.RedemptionDecided(models.DecisionApprove, "ok", 30)
	m.RedemptionDecided(models.DecisionApprove, "INSUFFICIENT_POINTS", 0)
	m.ReconcileFinished(2, time.Second)
	m.RecordCacheOperation(true, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	for _, want := range []string{
		`http_requests_total{method="POST",path="/api/v1/activities",status="201"} 1`,
		`ledger_activities_recorded_total{category="Sports"} 1`,
		`ledger_points_awarded_total 15`,
		`ledger_redemptions_requested_total{channel="qr"} 1`,
		`ledger_redemption_decisions_total{decision="approve",outcome="INSUFFICIENT_POINTS"} 1`,
		`ledger_points_spent_total 30`,
		`ledger_drift_corrections_total 2`,
		`cache_hits_total 1`,
		`cache_latency_seconds_count 1`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %s", want)
	}
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest(http.MethodGet, "/", 200, time.Millisecond)
		m.ActivityRecorded(models.CategoryOther, 1)
		m.RedemptionDecided(models.DecisionReject, "ok", 0)
		m.ReconcileFinished(0, 0)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Nil(t, m.Registry())
}
