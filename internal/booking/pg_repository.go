package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool dbtx
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PgRepository{pool: pool}
}

func newPgRepositoryWithExec(exec dbtx) *PgRepository {
	if exec == nil {
		panic("booking: exec required")
	}
	return &PgRepository{pool: exec}
}

const bookingColumns = `
	id, booking_request_id, patient_name, patient_phone, patient_email,
	service_id, service_label, doctor_id, appointment_date, appointment_time,
	duration_minutes, notes, type, status, calendar_event_id, meet_link,
	sync_error, created_at, updated_at`

// Helpers

// dateValue is the midnight UTC instant pgx encodes for a date column.
func dateValue(d schedule.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var (
		date      time.Time
		startTime string
		kind      string
		status    string
		syncErr   []byte
	)

	err := row.Scan(
		&b.ID,
		&b.RequestID,
		&b.PatientName,
		&b.PatientPhone,
		&b.PatientEmail,
		&b.ServiceID,
		&b.ServiceLabel,
		&b.DoctorID,
		&date,
		&startTime,
		&b.DurationMinutes,
		&b.Notes,
		&kind,
		&status,
		&b.CalendarEventID,
		&b.MeetLink,
		&syncErr,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Date = schedule.DateOf(date)
	b.StartTime, err = schedule.ParseTimeOfDay(startTime)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	b.Type = Type(kind)
	b.Status = Status(status)

	if len(syncErr) > 0 {
		var se SyncError
		if err := json.Unmarshal(syncErr, &se); err != nil {
			return nil, fmt.Errorf("booking %s: decode sync_error: %w", b.ID, err)
		}
		b.SyncError = &se
	}

	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Interface methods

func (r *PgRepository) InsertPending(ctx context.Context, b *Booking) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (
			id, booking_request_id, patient_name, patient_phone, patient_email,
			service_id, service_label, doctor_id, appointment_date, appointment_time,
			duration_minutes, notes, type, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`,
		b.ID,
		b.RequestID,
		b.PatientName,
		b.PatientPhone,
		b.PatientEmail,
		b.ServiceID,
		b.ServiceLabel,
		b.DoctorID,
		dateValue(b.Date),
		b.StartTime.String(),
		b.DurationMinutes,
		b.Notes,
		string(b.Type),
		string(b.Status),
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateSyncOutcome(ctx context.Context, id uuid.UUID, out SyncOutcome) error {
	var syncErr []byte
	if out.SyncError != nil {
		data, err := json.Marshal(out.SyncError)
		if err != nil {
			return fmt.Errorf("encode sync_error: %w", err)
		}
		syncErr = data
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $2,
		    calendar_event_id = $3,
		    meet_link = $4,
		    sync_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, string(out.Status), out.CalendarEventID, out.MeetLink, syncErr)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListByDate(ctx context.Context, date schedule.Date, doctorID *string) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+`
		FROM bookings
		WHERE appointment_date = $1
		  AND ($2::text IS NULL OR doctor_id = $2)
		ORDER BY appointment_time, created_at
	`, dateValue(date), doctorID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by date: %w", err)
	}
	return collectBookings(rows)
}

func (r *PgRepository) ListByStatus(ctx context.Context, status Status, limit int) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings by status: %w", err)
	}
	return collectBookings(rows)
}

func (r *PgRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, string(StatusPendingSync), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending bookings: %w", err)
	}
	return collectBookings(rows)
}
