package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/audit"
	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/booking"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// BookingService is the part of booking.Service the HTTP layer uses.
type BookingService interface {
	CreateBooking(ctx context.Context, req booking.Request) (booking.Result, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	ListBookings(ctx context.Context, date schedule.Date, doctorID *string) ([]booking.Booking, error)
	ListSyncFailed(ctx context.Context, limit int) ([]booking.Booking, error)
	ListStalePending(ctx context.Context, limit int) ([]booking.Booking, error)
	Resync(ctx context.Context, id uuid.UUID, userID string) (booking.Result, error)
	Availability(ctx context.Context, date schedule.Date, serviceID, doctorID string) (availability.SlotResult, error)
}

type ScheduleStore interface {
	schedule.Source
	ClinicID() string
	Save(ctx context.Context, cfg schedule.Config) error
}

type RouterConfig struct {
	Bookings BookingService
	Schedule ScheduleStore
	Audit    audit.Sink
	Postgres Pinger
	Redis    Pinger
	Logger   zerolog.Logger
	Env      string
	Version  string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(UserIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// Booking endpoints
	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", createBookingHandler(cfg.Bookings))
		r.Get("/", listBookingsHandler(cfg.Bookings))
		r.Get("/sync-failed", listBacklogHandler(cfg.Bookings.ListSyncFailed))
		r.Get("/stale-pending", listBacklogHandler(cfg.Bookings.ListStalePending))
		r.Get("/{id}", getBookingHandler(cfg.Bookings))
		r.Post("/{id}/resync", resyncBookingHandler(cfg.Bookings))
	})

	r.Get("/availability", availabilityHandler(cfg.Bookings))

	// Schedule endpoints
	r.Get("/schedule", getScheduleHandler(cfg.Schedule))
	r.Put("/schedule", putScheduleHandler(cfg.Schedule, cfg.Audit, cfg.Logger))
	r.Get("/doctors", listDoctorsHandler(cfg.Schedule))

	return r
}
