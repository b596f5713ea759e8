// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mdhender/blogbatch/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.RowDone("completed", time.Second)
	m.Enrichment(metrics.EnrichOK)
	m.GenerationAttempt(metrics.AttemptOK)
	m.PersistFailed()
	m.RunDone("completed")
}

func TestMetrics_CountsAndServes(t *testing.T) {
	m := metrics.New()
	m.RowDone("completed", 2*time.Second)
	m.RowDone("failed", time.Second)
	m.RowDone("completed", time.Second)
	m.GenerationAttempt(metrics.AttemptRateLimited)

	if got := testutil.ToFloat64(m.Rows.WithLabelValues("completed")); got != 2 {
		t.Errorf("completed rows: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.GenerationAttempts.WithLabelValues(metrics.AttemptRateLimited)); got != 1 {
		t.Errorf("rate limited attempts: got %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `blogbatch_rows_total{status="failed"} 1`) {
		t.Errorf("expected rows_total in exposition, got:\n%s", body)
	}
}
