package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/audit"
	"github.com/hackgods/clinic-booking-engine/internal/calendar"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

type memRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]Booking
	insertErr error
	updateErr error
	inserts   int
	updates   int
	lastLimit int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]Booking)}
}

func (r *memRepo) InsertPending(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.insertErr != nil {
		return r.insertErr
	}
	now := time.Date(2025, time.March, 1, 8, 0, len(r.rows), 0, time.UTC)
	b.CreatedAt, b.UpdatedAt = now, now
	r.rows[b.ID] = *b
	return nil
}

func (r *memRepo) UpdateSyncOutcome(ctx context.Context, id uuid.UUID, out SyncOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.updateErr != nil {
		return r.updateErr
	}
	b, ok := r.rows[id]
	if !ok {
		return ErrBookingNotFound
	}
	out.apply(&b)
	r.rows[id] = b
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (r *memRepo) ListByDate(_ context.Context, date schedule.Date, doctorID *string) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Booking{}
	for _, b := range r.rows {
		if b.Date != date {
			continue
		}
		if doctorID != nil && (b.DoctorID == nil || *b.DoctorID != *doctorID) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r *memRepo) ListByStatus(_ context.Context, status Status, limit int) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	out := []Booking{}
	for _, b := range r.rows {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memRepo) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	out := []Booking{}
	for _, b := range r.rows {
		if b.Status == StatusPendingSync && b.CreatedAt.Before(olderThan) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// setStatus overwrites a stored row, standing in for an update that never landed.
func (r *memRepo) setStatus(id uuid.UUID, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.rows[id]
	b.Status = status
	r.rows[id] = b
}

func (r *memRepo) all() []Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Booking, 0, len(r.rows))
	for _, b := range r.rows {
		out = append(out, b)
	}
	return out
}

type fakeCalendar struct {
	mu      sync.Mutex
	result  calendar.EventResult
	err     error
	panics  bool
	block   bool
	busy    []calendar.Interval
	busyErr error
	specs   []calendar.EventSpec
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, spec calendar.EventSpec) (calendar.EventResult, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()

	if f.panics {
		panic("calendar client exploded")
	}
	if f.block {
		<-ctx.Done()
		return calendar.EventResult{}, ctx.Err()
	}
	if f.err != nil {
		return calendar.EventResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeCalendar) GetBusyIntervals(context.Context, time.Time, time.Time) ([]calendar.Interval, error) {
	return f.busy, f.busyErr
}

func (f *fakeCalendar) calls() []calendar.EventSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]calendar.EventSpec(nil), f.specs...)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (s *recordingSink) Append(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return s.err
}

func (s *recordingSink) all() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}
