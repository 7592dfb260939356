package calendar

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MockAdapter stands in for the calendar when no credentials exist.
// It never fails: busy intervals are empty and event ids are synthetic.
// Only a count of created events is kept, so a long-running mock-mode
// server holds no per-booking state.
type MockAdapter struct {
	created atomic.Int64
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

func (m *MockAdapter) CreateEvent(_ context.Context, spec EventSpec) (EventResult, error) {
	m.created.Add(1)

	id := uuid.NewString()
	res := EventResult{ID: "mock-" + id, Mock: true}
	if spec.MeetLink {
		res.MeetLink = "https://meet.google.com/mock-" + id[:8]
	}
	return res, nil
}

func (m *MockAdapter) GetBusyIntervals(context.Context, time.Time, time.Time) ([]Interval, error) {
	return []Interval{}, nil
}

// Created returns how many events were created so far.
func (m *MockAdapter) Created() int64 {
	return m.created.Load()
}
