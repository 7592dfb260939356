package booking

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// newBooking checks req against the catalog and builds the pending row with a
// fresh id and request id. Nothing is written.
func newBooking(cfg schedule.Config, req Request) (*Booking, error) {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"patient_name", req.PatientName},
		{"patient_phone", req.PatientPhone},
		{"service_id", req.ServiceID},
		{"date", req.Date},
		{"start_time", req.StartTime},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	svc, ok := cfg.Service(strings.TrimSpace(req.ServiceID))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidService, req.ServiceID)
	}

	date, err := schedule.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return nil, fmt.Errorf("%w: date: %v", ErrInvalidRequest, err)
	}
	start, err := schedule.ParseTimeOfDay(strings.TrimSpace(req.StartTime))
	if err != nil {
		return nil, fmt.Errorf("%w: start_time: %v", ErrInvalidRequest, err)
	}

	kind := req.Type
	switch kind {
	case "":
		kind = TypeStandard
	case TypeStandard, TypeAcademic:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, req.Type)
	}

	doctorID := trimmed(req.DoctorID)
	if doctorID != nil {
		d, ok := cfg.Doctor(*doctorID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown doctor %q", ErrInvalidRequest, *doctorID)
		}
		if !d.IsAvailable {
			return nil, fmt.Errorf("%w: doctor %q is not available", ErrInvalidRequest, *doctorID)
		}
	}

	duration := cfg.DurationFor(svc.ID)
	if end := start.Add(duration); end > schedule.EndOfDay {
		return nil, fmt.Errorf("%w: %s plus %d minutes runs past midnight", ErrInvalidRequest, start, duration)
	}

	return &Booking{
		ID:              uuid.New(),
		RequestID:       uuid.New(),
		PatientName:     strings.TrimSpace(req.PatientName),
		PatientPhone:    strings.TrimSpace(req.PatientPhone),
		PatientEmail:    trimmed(req.PatientEmail),
		ServiceID:       svc.ID,
		ServiceLabel:    svc.Label,
		DoctorID:        doctorID,
		Date:            date,
		StartTime:       start,
		DurationMinutes: duration,
		Notes:           trimmed(req.Notes),
		Type:            kind,
		Status:          StatusPendingSync,
	}, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
