package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-booking-engine/internal/audit"
	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/calendar"
	"github.com/hackgods/clinic-booking-engine/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking-engine/internal/redis"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

var bookingTracer = otel.Tracer("clinic-booking-engine/booking")

const (
	anonymousUser       = "anonymous"
	teleconsultLocation = "Online (Google Meet)"

	defaultSyncFailedLimit = 50
	maxSyncFailedLimit     = 200

	defaultStalePendingAfter = 15 * time.Minute
)

type Options struct {
	// Location is used for calendar datetimes when the schedule has no zone of its own.
	Location *time.Location
	// CalendarTimeout bounds each calendar call. Zero leaves it to the adapter.
	CalendarTimeout time.Duration
	// EnforceSlotExclusivity serializes inserts per clinic day and rejects collisions.
	EnforceSlotExclusivity bool
	// UseCalendarBusy removes externally busy intervals from availability.
	UseCalendarBusy bool
	// StalePendingAfter is how long a row may stay pending before it is reported
	// and can be resynced by staff.
	StalePendingAfter time.Duration

	Locker  redisclient.Locker
	Metrics *metrics.BookingMetrics
	Now     func() time.Time
}

type Service struct {
	repo     Repository
	cal      calendar.Adapter
	audit    audit.Sink
	schedule schedule.Source
	logger   zerolog.Logger
	opts     Options
}

func NewService(repo Repository, cal calendar.Adapter, sink audit.Sink, src schedule.Source, logger zerolog.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StalePendingAfter <= 0 {
		opts.StalePendingAfter = defaultStalePendingAfter
	}
	return &Service{
		repo:     repo,
		cal:      cal,
		audit:    sink,
		schedule: src,
		logger:   logger.With().Str("component", "booking").Logger(),
		opts:     opts,
	}
}

// CreateBooking validates req, writes a pending ledger row, mirrors it into the
// calendar and records the final status. A calendar failure still yields
// Success with StatusSyncFailed. The returned error classifies failures for the
// transport; Result.Error carries the same message for the client.
func (s *Service) CreateBooking(ctx context.Context, req Request) (Result, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create")
	defer span.End()

	userID := strings.TrimSpace(req.RequestedBy)
	if userID == "" {
		userID = anonymousUser
	}
	details := map[string]any{
		"service_id": req.ServiceID,
		"date":       req.Date,
		"start_time": req.StartTime,
	}
	if req.DoctorID != nil {
		details["doctor_id"] = *req.DoctorID
	}

	cfg, err := s.schedule.Snapshot(ctx)
	if err != nil {
		return s.fail(ctx, span, userID, "booking", details, "schedule", fmt.Errorf("load schedule: %w", err))
	}

	b, err := newBooking(cfg, req)
	if err != nil {
		return s.fail(ctx, span, userID, "booking", details, failureReason(err), err)
	}
	resource := "booking:" + b.ID.String()
	details["booking_id"] = b.ID.String()
	details["booking_request_id"] = b.RequestID.String()

	span.SetAttributes(
		attribute.String("booking.id", b.ID.String()),
		attribute.String("booking.request_id", b.RequestID.String()),
		attribute.String("booking.service_id", b.ServiceID),
		attribute.String("booking.date", b.Date.String()),
		attribute.String("booking.start_time", b.StartTime.String()),
	)

	if err := s.insert(ctx, cfg, b); err != nil {
		if !errors.Is(err, ErrSlotTaken) {
			s.logger.Error().Err(err).Str("booking_id", b.ID.String()).Msg("ledger insert failed")
		}
		return s.fail(ctx, span, userID, resource, details, failureReason(err), err)
	}

	s.sync(ctx, cfg, b)
	span.SetAttributes(attribute.String("booking.status", string(b.Status)))

	details["status"] = string(b.Status)
	if b.CalendarEventID != nil {
		details["event_id"] = *b.CalendarEventID
	}
	s.appendAudit(ctx, audit.Entry{
		UserID:   userID,
		Action:   audit.ActionCreateBooking,
		Resource: resource,
		Details:  details,
		Status:   audit.StatusSuccess,
	})
	s.opts.Metrics.ObserveCreated(string(b.Status))

	return resultFor(b), nil
}

// Resync re-attempts the calendar mirror of a booking whose first sync failed,
// or of one left pending for longer than StalePendingAfter. It is only ever
// triggered by staff.
func (s *Service) Resync(ctx context.Context, id uuid.UUID, userID string) (Result, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.resync")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id.String()))

	if strings.TrimSpace(userID) == "" {
		userID = anonymousUser
	}
	resource := "booking:" + id.String()
	details := map[string]any{"booking_id": id.String()}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return s.failAction(ctx, span, audit.ActionResyncBooking, userID, resource, details, failureReason(err), err)
	}
	if !s.resyncable(b) {
		err := fmt.Errorf("%w: status is %s", ErrNotResyncable, b.Status)
		return s.failAction(ctx, span, audit.ActionResyncBooking, userID, resource, details, "not_resyncable", err)
	}

	cfg, err := s.schedule.Snapshot(ctx)
	if err != nil {
		return s.failAction(ctx, span, audit.ActionResyncBooking, userID, resource, details, "schedule", fmt.Errorf("load schedule: %w", err))
	}

	s.sync(ctx, cfg, b)
	span.SetAttributes(attribute.String("booking.status", string(b.Status)))

	details["status"] = string(b.Status)
	s.appendAudit(ctx, audit.Entry{
		UserID:   userID,
		Action:   audit.ActionResyncBooking,
		Resource: resource,
		Details:  details,
		Status:   audit.StatusSuccess,
	})

	return resultFor(b), nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (s *Service) ListBookings(ctx context.Context, date schedule.Date, doctorID *string) ([]Booking, error) {
	bookings, err := s.repo.ListByDate(ctx, date, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListSyncFailed returns the bookings that need a manual calendar entry, oldest first.
func (s *Service) ListSyncFailed(ctx context.Context, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = defaultSyncFailedLimit
	}
	if limit > maxSyncFailedLimit {
		limit = maxSyncFailedLimit
	}

	bookings, err := s.repo.ListByStatus(ctx, StatusSyncFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync failed bookings: %w", err)
	}
	return bookings, nil
}

// ListStalePending returns pending bookings older than StalePendingAfter,
// oldest first. Their final ledger update was lost.
func (s *Service) ListStalePending(ctx context.Context, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = defaultSyncFailedLimit
	}
	if limit > maxSyncFailedLimit {
		limit = maxSyncFailedLimit
	}

	bookings, err := s.repo.ListStalePending(ctx, s.staleCutoff(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending bookings: %w", err)
	}
	return bookings, nil
}

func (s *Service) staleCutoff() time.Time {
	return s.opts.Now().Add(-s.opts.StalePendingAfter)
}

func (s *Service) resyncable(b *Booking) bool {
	switch b.Status {
	case StatusSyncFailed:
		return true
	case StatusPendingSync:
		return b.CreatedAt.Before(s.staleCutoff())
	default:
		return false
	}
}

// Availability computes the bookable slots for a day from a fresh schedule
// snapshot and a fresh read of the ledger.
func (s *Service) Availability(ctx context.Context, date schedule.Date, serviceID, doctorID string) (availability.SlotResult, error) {
	cfg, err := s.schedule.Snapshot(ctx)
	if err != nil {
		return availability.SlotResult{}, fmt.Errorf("load schedule: %w", err)
	}
	s.opts.Metrics.ObserveAvailability(string(cfg.BookingMode))

	if cfg.BookingMode == schedule.ModeOpenQueue {
		return availability.ComputeSlots(cfg, date, serviceID, nil, doctorID), nil
	}

	existing, err := s.repo.ListByDate(ctx, date, nil)
	if err != nil {
		return availability.SlotResult{}, fmt.Errorf("list bookings: %w", err)
	}

	res := availability.ComputeSlots(cfg, date, serviceID, Reservations(existing), doctorID)
	if !s.opts.UseCalendarBusy || len(res.Slots) == 0 {
		return res, nil
	}

	loc := cfg.Location(s.opts.Location)
	busy, err := s.cal.GetBusyIntervals(ctx, date.At(cfg.OperatingHours.Start, loc), date.At(cfg.OperatingHours.End, loc))
	if err != nil {
		s.logger.Warn().Err(err).Str("date", date.String()).Msg("calendar busy lookup failed, using ledger only")
		return res, nil
	}
	return availability.ExcludeBusy(res, date, loc, busy), nil
}

func (s *Service) insert(ctx context.Context, cfg schedule.Config, b *Booking) error {
	if !s.opts.EnforceSlotExclusivity || s.opts.Locker == nil || cfg.BookingMode == schedule.ModeOpenQueue {
		return s.repo.InsertPending(ctx, b)
	}

	key := redisclient.DayKey(cfg.ClinicID, b.Date.String())
	err := s.opts.Locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		existing, err := s.repo.ListByDate(lockCtx, b.Date, nil)
		if err != nil {
			return fmt.Errorf("recheck slot: %w", err)
		}
		if availability.Conflicts(cfg, Reservations(existing), b.Reservation()) {
			return fmt.Errorf("%w: %s %s", ErrSlotTaken, b.Date, b.StartTime)
		}
		return s.repo.InsertPending(lockCtx, b)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: %s %s is being booked", ErrSlotTaken, b.Date, b.StartTime)
	}
	return err
}

// sync mirrors b into the calendar and writes the final status. It never fails:
// calendar errors become StatusSyncFailed and a failed ledger update leaves the
// row pending. Once the row exists the caller going away must not strand it, so
// only CalendarTimeout bounds the work.
func (s *Service) sync(ctx context.Context, cfg schedule.Config, b *Booking) {
	ctx = context.WithoutCancel(ctx)
	spec := eventSpec(cfg, b, cfg.Location(s.opts.Location))

	started := s.opts.Now()
	ev, err := s.createEvent(ctx, spec)
	elapsed := s.opts.Now().Sub(started)

	var out SyncOutcome
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("calendar sync failed, booking kept for manual entry")
		s.opts.Metrics.ObserveCalendarSync("failed", elapsed)
		out = SyncOutcome{
			Status:    StatusSyncFailed,
			SyncError: &SyncError{Message: err.Error(), Timestamp: s.opts.Now().UTC()},
		}
	default:
		outcome := "confirmed"
		if ev.Mock {
			outcome = "mock"
		}
		s.opts.Metrics.ObserveCalendarSync(outcome, elapsed)
		out = SyncOutcome{Status: StatusConfirmed, CalendarEventID: optional(ev.ID), MeetLink: optional(ev.MeetLink)}
	}

	if err := s.repo.UpdateSyncOutcome(ctx, b.ID, out); err != nil {
		s.logger.Error().Err(err).
			Str("booking_id", b.ID.String()).
			Str("status", string(out.Status)).
			Msg("ledger final update failed, row left pending")
		s.opts.Metrics.IncLedgerUpdateFailure()
	}
	out.apply(b)
}

func (s *Service) createEvent(ctx context.Context, spec calendar.EventSpec) (res calendar.EventResult, err error) {
	if s.opts.CalendarTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CalendarTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: adapter panic: %v", calendar.ErrCalendarUnavailable, r)
		}
	}()
	return s.cal.CreateEvent(ctx, spec)
}

func (s *Service) fail(ctx context.Context, span trace.Span, userID, resource string, details map[string]any, reason string, err error) (Result, error) {
	return s.failAction(ctx, span, audit.ActionCreateBooking, userID, resource, details, reason, err)
}

func (s *Service) failAction(ctx context.Context, span trace.Span, action, userID, resource string, details map[string]any, reason string, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)

	s.appendAudit(ctx, audit.Entry{
		UserID:   userID,
		Action:   action,
		Resource: resource,
		Details:  details,
		Status:   audit.StatusFailure,
		Error:    err.Error(),
	})
	if action == audit.ActionCreateBooking {
		s.opts.Metrics.ObserveFailed(reason)
	}

	return Result{Success: false, Error: err.Error()}, err
}

// appendAudit is best effort. It outlives caller cancellation so the terminal
// entry is still written after a client disconnect.
func (s *Service) appendAudit(ctx context.Context, e audit.Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.opts.Now().UTC()
	}
	if err := s.audit.Append(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Error().Err(err).Str("action", e.Action).Str("resource", e.Resource).Msg("audit append failed")
		s.opts.Metrics.IncAuditAppendFailure()
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, ErrInvalidService):
		return "invalid_service"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrBookingNotFound):
		return "not_found"
	default:
		return "persistence"
	}
}

func resultFor(b *Booking) Result {
	r := Result{Success: true, BookingID: b.ID.String(), Status: b.Status}
	if b.CalendarEventID != nil {
		r.EventID = *b.CalendarEventID
	}
	if b.MeetLink != nil {
		r.MeetLink = *b.MeetLink
	}
	return r
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
