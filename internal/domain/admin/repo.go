package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// AccountRepository is the admin_users table.
type AccountRepository interface {
	// Create inserts acct and fills in ID and CreatedAt. A taken username
	// fails with ErrDuplicateUsername.
	Create(ctx context.Context, acct *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindActiveByUsername matches only accounts with is_active set.
	FindActiveByUsername(ctx context.Context, username string) (*Account, error)
	// List returns every account, newest first.
	List(ctx context.Context) ([]*Account, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id uuid.UUID, changes AccountChanges) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}
