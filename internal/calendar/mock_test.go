package calendar

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutCredentialsIsMock(t *testing.T) {
	a, err := New(context.Background(), GoogleOptions{}, zerolog.Nop())
	require.NoError(t, err)

	_, ok := a.(*MockAdapter)
	assert.True(t, ok)
}

func TestNewWithMissingCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), GoogleOptions{CredentialsFile: "/does/not/exist.json"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestMockAdapter(t *testing.T) {
	m := NewMockAdapter()
	start := time.Now()

	plain, err := m.CreateEvent(context.Background(), EventSpec{Summary: "Cleaning", Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, plain.Mock)
	assert.True(t, strings.HasPrefix(plain.ID, "mock-"))
	assert.Empty(t, plain.MeetLink)

	online, err := m.CreateEvent(context.Background(), EventSpec{Summary: "Online", MeetLink: true})
	require.NoError(t, err)
	assert.NotEqual(t, plain.ID, online.ID)
	assert.NotEmpty(t, online.MeetLink)

	busy, err := m.GetBusyIntervals(context.Background(), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, busy)

	assert.EqualValues(t, 2, m.Created())
}

func TestMockAdapterCountsManyEvents(t *testing.T) {
	m := NewMockAdapter()
	for i := 0; i < 1000; i++ {
		_, err := m.CreateEvent(context.Background(), EventSpec{Summary: "Cleaning", Description: strings.Repeat("x", 1024)})
		require.NoError(t, err)
	}

	assert.EqualValues(t, 1000, m.Created())
}

func TestIntervalOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	iv := Interval{Start: base, End: base.Add(30 * time.Minute)}

	assert.True(t, iv.Overlaps(base.Add(-10*time.Minute), base.Add(10*time.Minute)))
	assert.True(t, iv.Overlaps(base.Add(10*time.Minute), base.Add(20*time.Minute)))
	assert.False(t, iv.Overlaps(base.Add(30*time.Minute), base.Add(time.Hour)), "touching end is not overlap")
	assert.False(t, iv.Overlaps(base.Add(-time.Hour), base), "touching start is not overlap")
}
