// Package calendar mirrors bookings into an external calendar service.
package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrCalendarUnavailable wraps every transport, auth, quota or timeout failure.
var ErrCalendarUnavailable = errors.New("calendar unavailable")

// EventSpec is the event create request.
type EventSpec struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	MeetLink    bool
	Location    string
	// RequestID makes the meeting-link request idempotent on the provider side.
	RequestID string
}

type EventResult struct {
	ID       string
	MeetLink string
	Mock     bool
}

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the interval.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

// Adapter is the calendar boundary used by the booking orchestrator.
type Adapter interface {
	CreateEvent(ctx context.Context, spec EventSpec) (EventResult, error)
	GetBusyIntervals(ctx context.Context, timeMin, timeMax time.Time) ([]Interval, error)
}

// New returns the Google adapter, or the mock adapter when no credentials are configured.
func New(ctx context.Context, opts GoogleOptions, logger zerolog.Logger) (Adapter, error) {
	if strings.TrimSpace(opts.CredentialsFile) == "" {
		logger.Warn().Msg("no calendar credentials configured, running calendar adapter in mock mode")
		return NewMockAdapter(), nil
	}
	a, err := NewGoogleAdapter(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}
