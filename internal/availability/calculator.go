// Package availability turns a schedule snapshot and the booked reservations of a
// day into the ordered list of bookable slot start times.
//
// Everything here is a pure function of its inputs: no clock, no I/O, no caching.
package availability

import (
	"time"

	"github.com/hackgods/clinic-booking-engine/internal/calendar"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// Reservation is the booked interval of a ledger row. An empty DoctorID means the
// patient had no doctor preference.
type Reservation struct {
	DoctorID        string
	Date            schedule.Date
	Start           schedule.TimeOfDay
	DurationMinutes int
}

func (r Reservation) End() schedule.TimeOfDay {
	return r.Start.Add(r.DurationMinutes)
}

func (r Reservation) overlaps(start, end schedule.TimeOfDay) bool {
	return start < r.End() && r.Start < end
}

type Slot struct {
	Start schedule.TimeOfDay
	End   schedule.TimeOfDay
}

// SlotResult is either an open-queue indicator or an ascending list of slots.
type SlotResult struct {
	Mode  schedule.BookingMode
	Hours schedule.Hours
	Slots []Slot
}

func (r SlotResult) Queue() bool {
	return r.Mode == schedule.ModeOpenQueue
}

// Times formats slot starts as HH:mm. Open-queue results have none.
func (r SlotResult) Times() []string {
	out := make([]string, 0, len(r.Slots))
	for _, s := range r.Slots {
		out = append(out, s.Start.String())
	}
	return out
}

// ComputeSlots generates candidates on a fixed stride from the opening time and
// drops the ones already taken. A candidate that would end after closing is not
// offered.
//
// With a doctorID, a candidate is taken when it overlaps a reservation for that
// doctor or a reservation with no doctor. Without one, it is taken once every
// available doctor is occupied at that time.
func ComputeSlots(cfg schedule.Config, date schedule.Date, serviceID string, existing []Reservation, doctorID string) SlotResult {
	if cfg.BookingMode == schedule.ModeOpenQueue {
		return SlotResult{Mode: schedule.ModeOpenQueue, Hours: cfg.OperatingHours}
	}

	res := SlotResult{Mode: schedule.ModeScheduled, Hours: cfg.OperatingHours, Slots: []Slot{}}

	pool, ok := doctorPool(cfg, doctorID)
	if !ok {
		return res
	}

	duration := cfg.DurationFor(serviceID)
	if duration <= 0 {
		return res
	}

	sameDay := onDate(existing, date)
	for start := cfg.OperatingHours.Start; ; start = start.Add(duration) {
		end := start.Add(duration)
		if end > cfg.OperatingHours.End {
			break
		}
		if pool.taken(sameDay, doctorID, start, end) {
			continue
		}
		res.Slots = append(res.Slots, Slot{Start: start, End: end})
	}

	return res
}

// Conflicts reports whether candidate collides with existing under the same rules
// ComputeSlots applies.
func Conflicts(cfg schedule.Config, existing []Reservation, candidate Reservation) bool {
	pool, ok := doctorPool(cfg, candidate.DoctorID)
	if !ok {
		pool = resourcePool{capacity: 1}
	}
	return pool.taken(onDate(existing, candidate.Date), candidate.DoctorID, candidate.Start, candidate.End())
}

// ExcludeBusy drops slots overlapping external busy intervals.
func ExcludeBusy(res SlotResult, date schedule.Date, loc *time.Location, busy []calendar.Interval) SlotResult {
	if res.Queue() || len(busy) == 0 {
		return res
	}

	kept := make([]Slot, 0, len(res.Slots))
	for _, s := range res.Slots {
		start, end := date.At(s.Start, loc), date.At(s.End, loc)
		clash := false
		for _, iv := range busy {
			if iv.Overlaps(start, end) {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, s)
		}
	}
	res.Slots = kept
	return res
}

// resourcePool describes who can take a slot. members is nil when the clinic has
// no doctor roster and is treated as a single resource.
type resourcePool struct {
	capacity int
	members  map[string]struct{}
}

func doctorPool(cfg schedule.Config, doctorID string) (resourcePool, bool) {
	if doctorID != "" {
		d, ok := cfg.Doctor(doctorID)
		if !ok || !d.IsAvailable {
			return resourcePool{}, false
		}
		return resourcePool{capacity: 1, members: map[string]struct{}{doctorID: {}}}, true
	}

	if len(cfg.Doctors) == 0 {
		return resourcePool{capacity: 1}, true
	}

	available := cfg.AvailableDoctors()
	if len(available) == 0 {
		return resourcePool{}, false
	}
	members := make(map[string]struct{}, len(available))
	for _, d := range available {
		members[d.ID] = struct{}{}
	}
	return resourcePool{capacity: len(available), members: members}, true
}

func (p resourcePool) taken(reservations []Reservation, doctorID string, start, end schedule.TimeOfDay) bool {
	busyDoctors := make(map[string]struct{})
	unassigned := 0

	for _, r := range reservations {
		if !r.overlaps(start, end) {
			continue
		}
		if r.DoctorID == "" {
			unassigned++
			continue
		}
		if doctorID != "" && r.DoctorID != doctorID {
			continue
		}
		if p.members != nil {
			if _, ok := p.members[r.DoctorID]; !ok {
				continue
			}
		}
		busyDoctors[r.DoctorID] = struct{}{}
	}

	if doctorID != "" {
		return unassigned > 0 || len(busyDoctors) > 0
	}
	if p.members == nil {
		return unassigned+len(busyDoctors) > 0
	}
	return unassigned+len(busyDoctors) >= p.capacity
}

func onDate(reservations []Reservation, date schedule.Date) []Reservation {
	out := make([]Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}
