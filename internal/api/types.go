package api

import (
	"github.com/hackgods/clinic-booking-engine/internal/booking"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type BookingListResponse struct {
	Bookings []booking.Booking `json:"bookings"`
	Count    int               `json:"count"`
}

// AvailabilityResponse is either an open-queue indicator or the ordered HH:mm
// start times of bookable slots.
type AvailabilityResponse struct {
	Date           string         `json:"date"`
	ServiceID      string         `json:"service_id"`
	DoctorID       string         `json:"doctor_id,omitempty"`
	Mode           string         `json:"mode"`
	Queue          bool           `json:"queue"`
	OperatingHours schedule.Hours `json:"operating_hours"`
	Slots          []string       `json:"slots"`
}

type DoctorsResponse struct {
	Doctors []schedule.Doctor `json:"doctors"`
	Count   int               `json:"count"`
}
