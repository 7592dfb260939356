package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/audit"
	"github.com/hackgods/clinic-booking-engine/internal/booking"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

const maxBodyBytes = 1 << 20

func decodeStrict(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func createBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req booking.Request
		if err := decodeStrict(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, booking.Result{Success: false, Error: "invalid request body: " + err.Error()})
			return
		}
		req.RequestedBy = GetUserID(r.Context())

		res, err := svc.CreateBooking(r.Context(), req)
		if err != nil {
			writeJSON(w, createErrorStatus(err), res)
			return
		}

		writeJSON(w, http.StatusCreated, res)
	}
}

func createErrorStatus(err error) int {
	switch {
	case errors.Is(err, booking.ErrMissingFields),
		errors.Is(err, booking.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrInvalidService):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrSlotTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func getBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookingID(w, r)
		if !ok {
			return
		}

		b, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, b)
	}
}

func listBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		var doctorID *string
		if d := strings.TrimSpace(r.URL.Query().Get("doctor_id")); d != "" {
			doctorID = &d
		}

		bookings, err := svc.ListBookings(r.Context(), date, doctorID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, BookingListResponse{Bookings: bookings, Count: len(bookings)})
	}
}

type backlogFunc func(ctx context.Context, limit int) ([]booking.Booking, error)

// listBacklogHandler is the staff view of bookings that need attention: rows
// whose calendar sync failed, or rows stuck pending.
func listBacklogHandler(list backlogFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		bookings, err := list(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, BookingListResponse{Bookings: bookings, Count: len(bookings)})
	}
}

func resyncBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookingID(w, r)
		if !ok {
			return
		}

		res, err := svc.Resync(r.Context(), id, GetUserID(r.Context()))
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrBookingNotFound):
				writeJSON(w, http.StatusNotFound, res)
			case errors.Is(err, booking.ErrNotResyncable):
				writeJSON(w, http.StatusConflict, res)
			default:
				writeJSON(w, http.StatusInternalServerError, res)
			}
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func availabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		date, err := schedule.ParseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		serviceID := strings.TrimSpace(q.Get("service_id"))
		if serviceID == "" {
			writeError(w, http.StatusBadRequest, "missing_service_id", "service_id is required")
			return
		}
		doctorID := strings.TrimSpace(q.Get("doctor_id"))

		res, err := svc.Availability(r.Context(), date, serviceID, doctorID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Date:           date.String(),
			ServiceID:      serviceID,
			DoctorID:       doctorID,
			Mode:           string(res.Mode),
			Queue:          res.Queue(),
			OperatingHours: res.Hours,
			Slots:          res.Times(),
		})
	}
}

func getScheduleHandler(store ScheduleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := store.Snapshot(r.Context())
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// putScheduleHandler replaces the whole snapshot. Concurrent writers are last-write-wins.
func putScheduleHandler(store ScheduleStore, sink audit.Sink, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg schedule.Config
		if err := decodeStrict(w, r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		cfg, err := cfg.ForClinic(store.ClinicID())
		if err == nil {
			err = store.Save(r.Context(), cfg)
		}

		if sink != nil {
			entry := audit.Entry{
				UserID:   userOrAnonymous(r),
				Action:   audit.ActionUpdateSchedule,
				Resource: "schedule:" + store.ClinicID(),
				Details: map[string]any{
					"booking_mode": string(cfg.BookingMode),
					"doctors":      len(cfg.Doctors),
					"services":     len(cfg.Services),
				},
				Status: audit.StatusSuccess,
			}
			if err != nil {
				entry.Status = audit.StatusFailure
				entry.Error = err.Error()
			}
			if aerr := sink.Append(r.Context(), entry); aerr != nil {
				logger.Error().Err(aerr).Msg("audit append failed for schedule update")
			}
		}

		if err != nil {
			if errors.Is(err, schedule.ErrInvalidConfig) {
				writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, cfg)
	}
}

// listDoctorsHandler lets the UI tell "no doctors available" apart from "no slots".
func listDoctorsHandler(store ScheduleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := store.Snapshot(r.Context())
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		doctors := cfg.AvailableDoctors()
		writeJSON(w, http.StatusOK, DoctorsResponse{Doctors: doctors, Count: len(doctors)})
	}
}

func bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrScheduleNotFound):
		writeError(w, http.StatusServiceUnavailable, "schedule_not_configured", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func userOrAnonymous(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return id
	}
	return "anonymous"
}
