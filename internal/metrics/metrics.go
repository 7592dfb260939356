package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	created              *prometheus.CounterVec
	failed               *prometheus.CounterVec
	calendarSync         *prometheus.CounterVec
	calendarSyncDuration prometheus.Histogram
	ledgerUpdateFailures prometheus.Counter
	auditAppendFailures  prometheus.Counter
	availability         *prometheus.CounterVec
	syncFailedBacklog    prometheus.Gauge
	stalePendingBacklog  prometheus.Gauge
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "booking_created_total",
			Help:      "Bookings written to the ledger, by final status",
		}, []string{"status"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "booking_failed_total",
			Help:      "Booking attempts that returned success=false, by reason",
		}, []string{"reason"}),
		calendarSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "calendar_sync_total",
			Help:      "Calendar event creation attempts, by outcome",
		}, []string{"outcome"}),
		calendarSyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Name:      "calendar_sync_duration_seconds",
			Help:      "Latency of calendar event creation",
			Buckets:   prometheus.DefBuckets,
		}),
		ledgerUpdateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "ledger_update_failures_total",
			Help:      "Final status updates that could not be written",
		}),
		auditAppendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "audit_append_failures_total",
			Help:      "Audit entries that could not be appended",
		}),
		availability: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "availability_requests_total",
			Help:      "Availability computations, by booking mode",
		}, []string{"mode"}),
		syncFailedBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Name:      "sync_failed_backlog",
			Help:      "Bookings waiting for manual calendar entry",
		}),
		stalePendingBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Name:      "stale_pending_backlog",
			Help:      "Bookings stuck pending because their final update was lost",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.created,
		m.failed,
		m.calendarSync,
		m.calendarSyncDuration,
		m.ledgerUpdateFailures,
		m.auditAppendFailures,
		m.availability,
		m.syncFailedBacklog,
		m.stalePendingBacklog,
	)
	return m
}

func (m *BookingMetrics) ObserveCreated(status string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveFailed(reason string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(reason).Inc()
}

// ObserveCalendarSync records one createEvent call. outcome is confirmed, failed or mock.
func (m *BookingMetrics) ObserveCalendarSync(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calendarSync.WithLabelValues(outcome).Inc()
	m.calendarSyncDuration.Observe(elapsed.Seconds())
}

func (m *BookingMetrics) IncLedgerUpdateFailure() {
	if m == nil {
		return
	}
	m.ledgerUpdateFailures.Inc()
}

func (m *BookingMetrics) IncAuditAppendFailure() {
	if m == nil {
		return
	}
	m.auditAppendFailures.Inc()
}

func (m *BookingMetrics) ObserveAvailability(mode string) {
	if m == nil {
		return
	}
	m.availability.WithLabelValues(mode).Inc()
}

func (m *BookingMetrics) SetSyncFailedBacklog(n int) {
	if m == nil {
		return
	}
	m.syncFailedBacklog.Set(float64(n))
}

func (m *BookingMetrics) SetStalePendingBacklog(n int) {
	if m == nil {
		return
	}
	m.stalePendingBacklog.Set(float64(n))
}
