package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

type Status string

const (
	StatusPendingSync Status = "PENDING_EXTERNAL_SYNC"
	StatusConfirmed   Status = "CONFIRMED"
	StatusSyncFailed  Status = "EXTERNAL_SYNC_FAILED"
)

type Type string

const (
	TypeStandard Type = "STANDARD"
	TypeAcademic Type = "ACADEMIC"
)

// Request is the booking creation input. Optional fields are pointers.
type Request struct {
	PatientName  string  `json:"patient_name"`
	PatientPhone string  `json:"patient_phone"`
	PatientEmail *string `json:"patient_email,omitempty"`
	ServiceID    string  `json:"service_id"`
	DoctorID     *string `json:"doctor_id,omitempty"`
	Date         string  `json:"date"`
	StartTime    string  `json:"start_time"`
	Notes        *string `json:"notes,omitempty"`
	Type         Type    `json:"type,omitempty"`

	// RequestedBy is the audit user id, set by the transport from auth context.
	RequestedBy string `json:"-"`
}

type SyncError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Booking is a ledger row.
type Booking struct {
	ID              uuid.UUID          `json:"id"`
	RequestID       uuid.UUID          `json:"booking_request_id"`
	PatientName     string             `json:"patient_name"`
	PatientPhone    string             `json:"patient_phone"`
	PatientEmail    *string            `json:"patient_email,omitempty"`
	ServiceID       string             `json:"service_id"`
	ServiceLabel    string             `json:"service_label"`
	DoctorID        *string            `json:"doctor_id,omitempty"`
	Date            schedule.Date      `json:"appointment_date"`
	StartTime       schedule.TimeOfDay `json:"appointment_time"`
	DurationMinutes int                `json:"duration_minutes"`
	Notes           *string            `json:"notes,omitempty"`
	Type            Type               `json:"type"`
	Status          Status             `json:"status"`
	CalendarEventID *string            `json:"calendar_event_id,omitempty"`
	MeetLink        *string            `json:"meet_link,omitempty"`
	SyncError       *SyncError         `json:"sync_error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (b Booking) EndTime() schedule.TimeOfDay {
	return b.StartTime.Add(b.DurationMinutes)
}

// Reservation is the interval this row occupies for availability purposes.
func (b Booking) Reservation() availability.Reservation {
	r := availability.Reservation{
		Date:            b.Date,
		Start:           b.StartTime,
		DurationMinutes: b.DurationMinutes,
	}
	if b.DoctorID != nil {
		r.DoctorID = *b.DoctorID
	}
	return r
}

func Reservations(bookings []Booking) []availability.Reservation {
	out := make([]availability.Reservation, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.Reservation())
	}
	return out
}

// SyncOutcome is the final status written after the calendar attempt.
type SyncOutcome struct {
	Status          Status
	CalendarEventID *string
	MeetLink        *string
	SyncError       *SyncError
}

func (o SyncOutcome) apply(b *Booking) {
	b.Status = o.Status
	b.CalendarEventID = o.CalendarEventID
	b.MeetLink = o.MeetLink
	b.SyncError = o.SyncError
}

// Result is what callers of CreateBooking and Resync see.
type Result struct {
	Success   bool   `json:"success"`
	BookingID string `json:"booking_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	MeetLink  string `json:"meet_link,omitempty"`
	Status    Status `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}
