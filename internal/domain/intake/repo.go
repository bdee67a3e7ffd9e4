package intake

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ListOptions pages through submissions, newest first. A Limit of zero
// returns every row.
type ListOptions struct {
	Limit  int
	Offset int
	Status Status
}

// SubmissionRepository is the prescription_submissions table.
type SubmissionRepository interface {
	// Create inserts sub and fills in its ID and CreatedAt.
	Create(ctx context.Context, sub *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	List(ctx context.Context, opts ListOptions) ([]*Submission, int, error)
	// UpdateStatus sets the status only if the row is still in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}
