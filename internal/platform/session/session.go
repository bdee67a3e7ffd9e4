// Package session owns the authenticated staff identity.
//
// A Session is a snapshot of an admin account taken at login. It never
// carries the credential. Protected operations obtain it from the request
// context through Require; only Manager creates, replaces or clears it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoSession is returned by protected operations when no staff member
	// is signed in.
	ErrNoSession = errors.New("login required")
	// ErrLoginInProgress rejects a login attempted while another is running.
	ErrLoginInProgress = errors.New("login already in progress")
)

// Session is the denormalized identity of the signed-in staff member.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// Valid reports whether s identifies an account.
func (s Session) Valid() bool {
	return s.ID != uuid.Nil && s.Username != ""
}

// Encode serializes s for a persisted slot.
func Encode(s Session) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a persisted snapshot. Malformed input and snapshots without
// an id or username are errors.
func Decode(data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if !s.Valid() {
		return Session{}, errors.New("decode session: missing id or username")
	}
	return s, nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached to ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok || !s.Valid() {
		return Session{}, false
	}
	return s, true
}

// Require returns the context session or ErrNoSession.
func Require(ctx context.Context) (Session, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}
