package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const meetSolutionType = "hangoutsMeet"

type GoogleOptions struct {
	CredentialsFile string
	CalendarID      string
	Timeout         time.Duration
	RatePerSec      float64
	Burst           int
}

// GoogleAdapter talks to Google Calendar v3. Every call is bounded by Timeout
// and throttled client-side so bursts of bookings stay under the API quota.
type GoogleAdapter struct {
	svc        *gcal.Service
	calendarID string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewGoogleAdapter builds the adapter. Extra client options are appended after the
// credentials, which lets tests point it at a fake endpoint.
func NewGoogleAdapter(ctx context.Context, opts GoogleOptions, logger zerolog.Logger, clientOpts ...option.ClientOption) (*GoogleAdapter, error) {
	var all []option.ClientOption
	if opts.CredentialsFile != "" {
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read calendar credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, gcal.CalendarScope)
		if err != nil {
			return nil, fmt.Errorf("parse calendar credentials: %w", err)
		}
		all = append(all, option.WithCredentials(creds))
	}
	all = append(all, clientOpts...)

	svc, err := gcal.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	return &GoogleAdapter{
		svc:        svc,
		calendarID: opts.CalendarID,
		timeout:    opts.Timeout,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		logger:     logger.With().Str("component", "google_calendar").Logger(),
	}, nil
}

func (a *GoogleAdapter) CreateEvent(ctx context.Context, spec EventSpec) (EventResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return EventResult{}, fmt.Errorf("%w: rate limit wait: %w", ErrCalendarUnavailable, err)
	}

	ev := &gcal.Event{
		Summary:     spec.Summary,
		Description: spec.Description,
		Location:    spec.Location,
		Start:       &gcal.EventDateTime{DateTime: spec.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: spec.End.Format(time.RFC3339)},
	}
	for _, email := range spec.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
	}

	call := a.svc.Events.Insert(a.calendarID, ev)
	if spec.MeetLink {
		ev.ConferenceData = &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             spec.RequestID,
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: meetSolutionType},
			},
		}
		call = call.ConferenceDataVersion(1)
	}
	if len(ev.Attendees) > 0 {
		call = call.SendUpdates("all")
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return EventResult{}, fmt.Errorf("%w: insert event: %w", ErrCalendarUnavailable, err)
	}

	a.logger.Debug().Str("event_id", created.Id).Msg("calendar event created")
	return EventResult{ID: created.Id, MeetLink: created.HangoutLink}, nil
}

func (a *GoogleAdapter) GetBusyIntervals(ctx context.Context, timeMin, timeMax time.Time) ([]Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", ErrCalendarUnavailable, err)
	}

	resp, err := a.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: a.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: freebusy query: %w", ErrCalendarUnavailable, err)
	}

	cal, ok := resp.Calendars[a.calendarID]
	if !ok {
		return []Interval{}, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("%w: freebusy: %s", ErrCalendarUnavailable, cal.Errors[0].Reason)
	}

	out := make([]Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end %q: %w", p.End, err)
		}
		out = append(out, Interval{Start: start, End: end})
	}
	return out, nil
}
