package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

var (
	ErrMissingFields   = errors.New("missing fields")
	ErrInvalidService  = errors.New("invalid service")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrSlotTaken       = errors.New("slot already taken")
	ErrBookingNotFound = errors.New("booking not found")
	ErrNotResyncable   = errors.New("booking is not awaiting calendar sync")
)

// Repository is the ledger store. It does not enforce slot uniqueness.
type Repository interface {
	// InsertPending writes b and fills in its timestamps.
	InsertPending(ctx context.Context, b *Booking) error
	UpdateSyncOutcome(ctx context.Context, id uuid.UUID, out SyncOutcome) error

	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	// ListByDate returns the rows of a day ordered by start time. A nil doctorID
	// returns every row.
	ListByDate(ctx context.Context, date schedule.Date, doctorID *string) ([]Booking, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Booking, error)
	// ListStalePending returns pending rows created before olderThan, oldest first.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Booking, error)
}
