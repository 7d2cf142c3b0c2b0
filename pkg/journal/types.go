package journal

import (
	"context"
	"time"
)

// Record is one journaled audit event.
type Record struct {
	// ID is a UUID v4 assigned at recording time.
	ID string `json:"id"`

	// RecordedTime is when the event was observed.
	RecordedTime time.Time `json:"recorded_time"`

	// Event is the audited event name, e.g. "io.open".
	Event string `json:"event"`

	// Args is the rendered argument list.
	Args string `json:"args"`

	// Verdict is the dispatch outcome, "continue" or "abort".
	Verdict string `json:"verdict"`

	// Mode is the policy mode active when the event was dispatched.
	Mode string `json:"mode"`

	// Script is the hosted program path, when known.
	Script string `json:"script,omitempty"`
}

// Query defines filter parameters for querying journal records.
type Query struct {
	// StartTime and EndTime bound RecordedTime, inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Event filters by event name.
	Event string `json:"event,omitempty"`

	// Verdict filters by dispatch outcome.
	Verdict string `json:"verdict,omitempty"`

	// Mode filters by policy mode.
	Mode string `json:"mode,omitempty"`

	// Limit and Offset paginate the result set. Limit 0 means no limit.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Storage is the interface journal storage backends implement.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the filters and returns the number
	// removed. Used by retention enforcement.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}
