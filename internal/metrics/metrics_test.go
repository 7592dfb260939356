package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveCreated("CONFIRMED")
	m.ObserveCreated("CONFIRMED")
	m.ObserveCreated("EXTERNAL_SYNC_FAILED")
	m.ObserveFailed("invalid_service")
	m.ObserveCalendarSync("failed", 120*time.Millisecond)
	m.IncLedgerUpdateFailure()
	m.IncAuditAppendFailure()
	m.ObserveAvailability("SCHEDULED")
	m.SetSyncFailedBacklog(4)
	m.SetStalePendingBacklog(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.created.WithLabelValues("CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.created.WithLabelValues("EXTERNAL_SYNC_FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failed.WithLabelValues("invalid_service")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calendarSync.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerUpdateFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditAppendFailures))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.syncFailedBacklog))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stalePendingBacklog))
	assert.Equal(t, 1, testutil.CollectAndCount(m.calendarSyncDuration))
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveCreated("CONFIRMED")
	m.ObserveFailed("persistence")
	m.ObserveCalendarSync("mock", time.Millisecond)
	m.IncLedgerUpdateFailure()
	m.IncAuditAppendFailure()
	m.ObserveAvailability("OPEN_QUEUE")
	m.SetSyncFailedBacklog(0)
	m.SetStalePendingBacklog(0)
}
