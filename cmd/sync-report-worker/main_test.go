package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-booking-engine/internal/booking"
	"github.com/hackgods/clinic-booking-engine/internal/metrics"
)

type stubLister struct {
	rows     []booking.Booking
	stale    []booking.Booking
	err      error
	staleErr error
	limit    int
}

func (s *stubLister) ListSyncFailed(_ context.Context, limit int) ([]booking.Booking, error) {
	s.limit = limit
	return s.rows, s.err
}

func (s *stubLister) ListStalePending(_ context.Context, _ int) ([]booking.Booking, error) {
	return s.stale, s.staleErr
}

func TestRunOnceReportsBacklog(t *testing.T) {
	lister := &stubLister{rows: []booking.Booking{
		{ID: uuid.New(), Status: booking.StatusSyncFailed, SyncError: &booking.SyncError{Message: "timeout", Timestamp: time.Now()}},
		{ID: uuid.New(), Status: booking.StatusSyncFailed},
	}}
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())

	n := runOnce(context.Background(), lister, m, zerolog.Nop())
	assert.Equal(t, 2, n)
	assert.Equal(t, reportLimit, lister.limit)
}

func TestRunOnceReportsStalePending(t *testing.T) {
	lister := &stubLister{
		rows:  []booking.Booking{{ID: uuid.New(), Status: booking.StatusSyncFailed}},
		stale: []booking.Booking{{ID: uuid.New(), Status: booking.StatusPendingSync, CreatedAt: time.Now().Add(-time.Hour)}},
	}
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())

	assert.Equal(t, 2, runOnce(context.Background(), lister, m, zerolog.Nop()))

	lister.staleErr = errors.New("db down")
	assert.Equal(t, -1, runOnce(context.Background(), lister, m, zerolog.Nop()))
}

func TestRunOnceListError(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}

	assert.Equal(t, -1, runOnce(context.Background(), lister, nil, zerolog.Nop()))
}
