package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New()

	m.RecordCreated("DEPOSIT")
	m.RecordSettlement("DEPOSIT", "COMPLETED", "matcher")
	m.RecordSettlement("DEPOSIT", "COMPLETED", "matcher")
	m.RecordMatch("no_match")
	m.RecordSurchargeCollision()
	m.ObserveFeed(20*time.Millisecond, errors.New("down"))
	m.RecordSweep(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsCreated.WithLabelValues("DEPOSIT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.settlements.WithLabelValues("DEPOSIT", "COMPLETED", "matcher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matchAttempts.WithLabelValues("no_match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.surchargeCollisions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chipload_ledger_settlements_total")
	assert.Contains(t, string(body), "chipload_matcher_feed_request_duration_seconds")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCreated("DEPOSIT")
		m.RecordSettlement("DEPOSIT", "REJECTED", "manual")
		m.RecordMatch("matched")
		m.ObserveFeed(time.Second, nil)
		m.RecordSurchargeCollision()
		m.RecordSweep(nil)
	})
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
