package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *GoogleAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := NewGoogleAdapter(context.Background(), GoogleOptions{
		CalendarID: "clinic@example.com",
		Timeout:    timeout,
		RatePerSec: 100,
		Burst:      10,
	}, zerolog.Nop(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return a
}

func TestGoogleAdapterCreateEventWithMeetLink(t *testing.T) {
	var got gcal.Event
	var query map[string][]string

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/clinic@example.com/events", r.URL.Path)
		query = r.URL.Query()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-123","hangoutLink":"https://meet.google.com/abc-defg-hij"}`))
	}, time.Second)

	start := time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC)
	res, err := a.CreateEvent(context.Background(), EventSpec{
		Summary:   "Online consultation - Ana Ruiz",
		Start:     start,
		End:       start.Add(20 * time.Minute),
		Attendees: []string{"ana@example.com"},
		MeetLink:  true,
		Location:  "Online (Google Meet)",
		RequestID: "key-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-123", res.ID)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", res.MeetLink)
	assert.False(t, res.Mock)

	assert.Equal(t, "Online consultation - Ana Ruiz", got.Summary)
	assert.Equal(t, "2026-03-09T10:30:00Z", got.Start.DateTime)
	assert.Equal(t, "2026-03-09T10:50:00Z", got.End.DateTime)
	require.Len(t, got.Attendees, 1)
	assert.Equal(t, "ana@example.com", got.Attendees[0].Email)
	require.NotNil(t, got.ConferenceData)
	assert.Equal(t, "key-1", got.ConferenceData.CreateRequest.RequestId)
	assert.Equal(t, "hangoutsMeet", got.ConferenceData.CreateRequest.ConferenceSolutionKey.Type)
	assert.Equal(t, []string{"1"}, query["conferenceDataVersion"])
	assert.Equal(t, []string{"all"}, query["sendUpdates"])
}

func TestGoogleAdapterCreateEventWithoutMeetLink(t *testing.T) {
	var got gcal.Event
	var query map[string][]string

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"evt-9"}`))
	}, time.Second)

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	res, err := a.CreateEvent(context.Background(), EventSpec{Summary: "Cleaning", Start: start, End: start.Add(45 * time.Minute)})
	require.NoError(t, err)

	assert.Equal(t, "evt-9", res.ID)
	assert.Empty(t, res.MeetLink)
	assert.Nil(t, got.ConferenceData)
	assert.Empty(t, query["conferenceDataVersion"])
}

func TestGoogleAdapterCreateEventAPIError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Rate Limit Exceeded"}}`))
	}, time.Second)

	start := time.Now()
	_, err := a.CreateEvent(context.Background(), EventSpec{Summary: "x", Start: start, End: start.Add(time.Minute)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCalendarUnavailable)
}

func TestGoogleAdapterCreateEventTimeout(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	start := time.Now()
	began := time.Now()
	_, err := a.CreateEvent(context.Background(), EventSpec{Summary: "x", Start: start, End: start.Add(time.Minute)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCalendarUnavailable)
	assert.Less(t, time.Since(began), time.Second)
}

func TestGoogleAdapterBusyIntervals(t *testing.T) {
	var req gcal.FreeBusyRequest

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/freeBusy", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(`{
			"calendars": {
				"clinic@example.com": {
					"busy": [
						{"start": "2026-03-09T10:00:00Z", "end": "2026-03-09T10:30:00Z"},
						{"start": "2026-03-09T11:00:00Z", "end": "2026-03-09T12:00:00Z"}
					]
				}
			}
		}`))
	}, time.Second)

	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	busy, err := a.GetBusyIntervals(context.Background(), day, day.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, busy, 2)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), busy[0].Start.UTC())
	assert.Equal(t, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), busy[1].End.UTC())
	require.Len(t, req.Items, 1)
	assert.Equal(t, "clinic@example.com", req.Items[0].Id)
}

func TestGoogleAdapterBusyIntervalsCalendarError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"calendars":{"clinic@example.com":{"errors":[{"domain":"global","reason":"notFound"}]}}}`))
	}, time.Second)

	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	_, err := a.GetBusyIntervals(context.Background(), day, day.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrCalendarUnavailable)
}
