// Package audit appends terminal outcomes of booking operations to an
// append-only trail. Nothing in this module reads the trail back.
package audit

import (
	"context"
	"time"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

const (
	ActionCreateBooking  = "CREATE_BOOKING"
	ActionResyncBooking  = "RESYNC_BOOKING"
	ActionUpdateSchedule = "UPDATE_SCHEDULE"
)

// Entry is one audit record. Error is empty on success.
type Entry struct {
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Details   map[string]any `json:"details,omitempty"`
	Status    Status         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Multi fans an entry out to every sink and returns the first error.
type Multi []Sink

func (m Multi) Append(ctx context.Context, e Entry) error {
	var first error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
