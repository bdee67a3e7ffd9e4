package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Authenticator checks a username and password and returns the account
// snapshot on success.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Session, error)
}

// Manager holds the single process-wide session and mirrors it into a
// persisted Slot so that it survives restarts.
type Manager struct {
	mu      sync.RWMutex
	current *Session

	busy atomic.Bool

	auth   Authenticator
	slot   Slot
	logger zerolog.Logger
}

// NewManager creates a Manager with no session. Call Restore to load a
// persisted one.
func NewManager(auth Authenticator, slot Slot, logger zerolog.Logger) *Manager {
	return &Manager{
		auth:   auth,
		slot:   slot,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Login authenticates and replaces the current session. A failed attempt
// leaves any existing session untouched. Concurrent attempts are rejected
// with ErrLoginInProgress rather than queued.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	if !m.busy.CompareAndSwap(false, true) {
		return Session{}, ErrLoginInProgress
	}
	defer m.busy.Store(false)

	s, err := m.auth.Authenticate(ctx, username, password)
	if err != nil {
		return Session{}, err
	}

	m.set(&s)

	data, err := Encode(s)
	if err == nil {
		err = m.slot.Save(ctx, data)
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("username", s.Username).Msg("session not persisted")
	}
	m.logger.Info().Str("username", s.Username).Msg("signed in")
	return s, nil
}

// InProgress reports whether a login is running.
func (m *Manager) InProgress() bool {
	return m.busy.Load()
}

// Logout clears the in-memory session and the persisted slot. The memory
// state is cleared even when the slot cannot be.
func (m *Manager) Logout(ctx context.Context) error {
	m.set(nil)
	if err := m.slot.Clear(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("persisted session not cleared")
		return err
	}
	return nil
}

// Current returns a copy of the current session.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Context attaches the current session, if any, to ctx.
func (m *Manager) Context(ctx context.Context) context.Context {
	if s, ok := m.Current(); ok {
		return NewContext(ctx, s)
	}
	return ctx
}

// Restore loads the persisted session without re-checking credentials.
// A missing slot, a read failure or an undecodable value all yield no
// session; an undecodable value is also removed from the slot.
func (m *Manager) Restore(ctx context.Context) (Session, bool) {
	data, err := m.slot.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrSlotEmpty) {
			m.logger.Warn().Err(err).Msg("read persisted session")
		}
		m.set(nil)
		return Session{}, false
	}

	s, err := Decode(data)
	if err != nil {
		m.logger.Warn().Err(err).Msg("discarding corrupt persisted session")
		if cerr := m.slot.Clear(ctx); cerr != nil {
			m.logger.Warn().Err(cerr).Msg("clear corrupt session")
		}
		m.set(nil)
		return Session{}, false
	}

	m.set(&s)
	return s, true
}

func (m *Manager) set(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}
