package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgSink writes entries to the audit_log table.
type PgSink struct {
	db execer
}

func NewPgSink(pool *pgxpool.Pool) *PgSink {
	if pool == nil {
		panic("audit: pgx pool required")
	}
	return &PgSink{db: pool}
}

func newPgSinkWithExec(exec execer) *PgSink {
	if exec == nil {
		panic("audit: exec required")
	}
	return &PgSink{db: exec}
}

func (s *PgSink) Append(ctx context.Context, e Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("audit: encode details: %w", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}

	const q = `
		INSERT INTO audit_log (user_id, action, resource, details, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.Exec(ctx, q, e.UserID, e.Action, e.Resource, details, string(e.Status), errText, e.Timestamp); err != nil {
		return fmt.Errorf("audit: append %s: %w", e.Action, err)
	}
	return nil
}
