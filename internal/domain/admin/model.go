package admin

import (
	"time"

	"github.com/google/uuid"

	"github.com/rxintake/rxintake/internal/platform/session"
)

// Account maps to the admin_users table. The credential never leaves the
// package in JSON.
type Account struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

// Snapshot copies the account into a session, leaving out the credential.
func (a *Account) Snapshot() session.Session {
	s := session.Session{
		ID:        a.ID,
		Username:  a.Username,
		FullName:  a.FullName,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		s.LastLoginAt = &t
	}
	return s
}

// NewAccount is the input to Directory.Create and Directory.Bootstrap.
type NewAccount struct {
	Username string
	Password string
	FullName string
	Active   bool
}

// AccountUpdate lists the editable fields. Nil leaves a field untouched;
// there is no way to change the username.
type AccountUpdate struct {
	FullName *string
	Active   *bool
	Password *string
}

// AccountChanges is what the repository writes. PasswordHash is already
// hashed.
type AccountChanges struct {
	FullName     *string
	IsActive     *bool
	PasswordHash *string
}

func (c AccountChanges) empty() bool {
	return c.FullName == nil && c.IsActive == nil && c.PasswordHash == nil
}
