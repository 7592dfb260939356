// Package schedule holds the clinic schedule configuration consumed by the
// availability calculator and the booking orchestrator.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidConfig    = errors.New("invalid schedule config")
	ErrScheduleNotFound = errors.New("schedule not found")
)

type BookingMode string

const (
	ModeScheduled BookingMode = "SCHEDULED"
	ModeOpenQueue BookingMode = "OPEN_QUEUE"
)

type Hours struct {
	Start TimeOfDay `json:"start" yaml:"start"`
	End   TimeOfDay `json:"end" yaml:"end"`
}

type Doctor struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Specialty   string `json:"specialty,omitempty" yaml:"specialty,omitempty"`
	IsAvailable bool   `json:"is_available" yaml:"is_available"`
}

// Service is an entry of the clinic's service catalog.
type Service struct {
	ID              string `json:"id" yaml:"id"`
	Label           string `json:"label" yaml:"label"`
	DurationMinutes int    `json:"duration_minutes" yaml:"duration_minutes"`
	// Online marks teleconsultations; their calendar events carry a meeting link.
	Online bool `json:"online,omitempty" yaml:"online,omitempty"`
}

// Config is a snapshot of the clinic schedule. Callers treat it as immutable.
type Config struct {
	ClinicID            string      `json:"clinic_id" yaml:"clinic_id"`
	Name                string      `json:"name" yaml:"name"`
	Timezone            string      `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	OperatingHours      Hours       `json:"operating_hours" yaml:"operating_hours"`
	BookingMode         BookingMode `json:"booking_mode" yaml:"booking_mode"`
	SlotDurationMinutes int         `json:"slot_duration_minutes" yaml:"slot_duration_minutes"`
	Doctors             []Doctor    `json:"doctors" yaml:"doctors"`
	Services            []Service   `json:"services" yaml:"services"`
}

// Validate checks the invariants the calculator relies on.
func (c Config) Validate() error {
	if c.OperatingHours.Start >= c.OperatingHours.End {
		return fmt.Errorf("%w: operating hours start %s must be before end %s",
			ErrInvalidConfig, c.OperatingHours.Start, c.OperatingHours.End)
	}
	if c.OperatingHours.End > minutesPerDay {
		return fmt.Errorf("%w: operating hours end past midnight", ErrInvalidConfig)
	}
	switch c.BookingMode {
	case ModeScheduled, ModeOpenQueue:
	default:
		return fmt.Errorf("%w: unknown booking mode %q", ErrInvalidConfig, c.BookingMode)
	}
	if c.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidConfig)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
		}
	}

	seen := make(map[string]struct{}, len(c.Doctors))
	for _, d := range c.Doctors {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("%w: doctor with empty id", ErrInvalidConfig)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate doctor id %q", ErrInvalidConfig, d.ID)
		}
		seen[d.ID] = struct{}{}
	}

	seen = make(map[string]struct{}, len(c.Services))
	for _, s := range c.Services {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("%w: service with empty id", ErrInvalidConfig)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate service id %q", ErrInvalidConfig, s.ID)
		}
		if s.DurationMinutes < 0 {
			return fmt.Errorf("%w: service %q has negative duration", ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	return nil
}

// ForClinic binds c to the clinic a store serves. An empty ClinicID is filled
// in; a different one is rejected, since the clinic id also names the slot locks.
func (c Config) ForClinic(clinicID string) (Config, error) {
	switch c.ClinicID {
	case "":
		c.ClinicID = clinicID
	case clinicID:
	default:
		return Config{}, fmt.Errorf("%w: clinic_id %q does not match clinic %q", ErrInvalidConfig, c.ClinicID, clinicID)
	}
	return c, nil
}

// Service resolves a service id against the catalog.
func (c Config) Service(id string) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// ServiceDurations is the catalog viewed as service id -> minutes.
func (c Config) ServiceDurations() map[string]int {
	out := make(map[string]int, len(c.Services))
	for _, s := range c.Services {
		out[s.ID] = s.DurationMinutes
	}
	return out
}

// DurationFor returns the catalog duration, falling back to the default slot duration.
func (c Config) DurationFor(serviceID string) int {
	if s, ok := c.Service(serviceID); ok && s.DurationMinutes > 0 {
		return s.DurationMinutes
	}
	return c.SlotDurationMinutes
}

func (c Config) IsTeleconsult(serviceID string) bool {
	s, ok := c.Service(serviceID)
	return ok && s.Online
}

func (c Config) Doctor(id string) (Doctor, bool) {
	for _, d := range c.Doctors {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}

func (c Config) AvailableDoctors() []Doctor {
	out := make([]Doctor, 0, len(c.Doctors))
	for _, d := range c.Doctors {
		if d.IsAvailable {
			out = append(out, d)
		}
	}
	return out
}

// Location returns the config's own zone, or fallback when unset.
func (c Config) Location(fallback *time.Location) *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// Clone returns a deep copy so snapshots never share slices with the store.
func (c Config) Clone() Config {
	out := c
	out.Doctors = append([]Doctor(nil), c.Doctors...)
	out.Services = append([]Service(nil), c.Services...)
	return out
}
