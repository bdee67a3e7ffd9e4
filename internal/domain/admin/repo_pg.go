package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxintake/rxintake/internal/platform/db"
)

type accountRepoPG struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepoPG{pool: pool}
}

func (r *accountRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const accountColumns = `id, username, password_hash, full_name, is_active, created_at, last_login_at`

func (r *accountRepoPG) Create(ctx context.Context, acct *Account) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admin_users (username, password_hash, full_name, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		acct.Username, acct.PasswordHash, acct.FullName, acct.IsActive,
	).Scan(&acct.ID, &acct.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	acct, err := r.scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM admin_users WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return acct, nil
}

func (r *accountRepoPG) FindActiveByUsername(ctx context.Context, username string) (*Account, error) {
	acct, err := r.scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM admin_users WHERE username = $1 AND is_active = TRUE`, username))
	if db.IsNoRows(err) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return acct, nil
}

func (r *accountRepoPG) List(ctx context.Context) ([]*Account, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+accountColumns+` FROM admin_users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accts []*Account
	for rows.Next() {
		acct, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accts = append(accts, acct)
	}
	return accts, rows.Err()
}

func (r *accountRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// Update writes only the non-nil fields of changes.
func (r *accountRepoPG) Update(ctx context.Context, id uuid.UUID, changes AccountChanges) error {
	if changes.empty() {
		_, err := r.GetByID(ctx, id)
		return err
	}

	sets := []string{}
	args := []interface{}{id}
	add := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if changes.FullName != nil {
		add("full_name", *changes.FullName)
	}
	if changes.IsActive != nil {
		add("is_active", *changes.IsActive)
	}
	if changes.PasswordHash != nil {
		add("password_hash", *changes.PasswordHash)
	}

	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE admin_users SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepoPG) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`UPDATE admin_users SET last_login_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func (r *accountRepoPG) scanAccount(row scannable) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.FullName, &a.IsActive, &a.CreatedAt, &a.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
