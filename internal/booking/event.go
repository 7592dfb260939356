package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-booking-engine/internal/calendar"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// eventSpec shapes the calendar event for b. Teleconsultations ask for a meeting
// link and carry a virtual location instead of the clinic's name.
func eventSpec(cfg schedule.Config, b *Booking, loc *time.Location) calendar.EventSpec {
	spec := calendar.EventSpec{
		Summary:     fmt.Sprintf("%s - %s", b.ServiceLabel, b.PatientName),
		Description: eventDescription(b),
		Start:       b.Date.At(b.StartTime, loc),
		End:         b.Date.At(b.EndTime(), loc),
		Location:    cfg.Name,
		RequestID:   b.RequestID.String(),
	}
	if b.PatientEmail != nil {
		spec.Attendees = []string{*b.PatientEmail}
	}
	if cfg.IsTeleconsult(b.ServiceID) {
		spec.MeetLink = true
		spec.Location = teleconsultLocation
	}
	return spec
}

func eventDescription(b *Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Patient: %s\n", b.PatientName)
	fmt.Fprintf(&sb, "Phone: %s\n", b.PatientPhone)
	if b.PatientEmail != nil {
		fmt.Fprintf(&sb, "Email: %s\n", *b.PatientEmail)
	}
	if b.DoctorID != nil {
		fmt.Fprintf(&sb, "Doctor: %s\n", *b.DoctorID)
	}
	fmt.Fprintf(&sb, "Type: %s\n", b.Type)
	if b.Notes != nil {
		fmt.Fprintf(&sb, "Notes: %s\n", *b.Notes)
	}
	fmt.Fprintf(&sb, "Booking: %s\n", b.ID)
	fmt.Fprintf(&sb, "Request: %s", b.RequestID)
	return sb.String()
}
