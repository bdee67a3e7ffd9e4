package admin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rxintake/rxintake/internal/platform/credential"
	"github.com/rxintake/rxintake/internal/platform/session"
)

type mockAccountRepo struct {
	mu      sync.Mutex
	store   map[uuid.UUID]*Account
	created int

	err      error
	touchErr error
	panics   bool
	touched  int
	updates  int
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{store: make(map[uuid.UUID]*Account)}
}

func (m *mockAccountRepo) Create(_ context.Context, acct *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, a := range m.store {
		if a.Username == acct.Username {
			return ErrDuplicateUsername
		}
	}
	m.created++
	acct.ID = uuid.New()
	acct.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.created) * time.Minute)
	cp := *acct
	m.store[acct.ID] = &cp
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountRepo) FindActiveByUsername(_ context.Context, username string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics {
		panic("driver exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.store {
		if a.Username == username && a.IsActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepo) List(_ context.Context) ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*Account
	for _, a := range m.store {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockAccountRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return len(m.store), nil
}

func (m *mockAccountRepo) Update(_ context.Context, id uuid.UUID, changes AccountChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return ErrAccountNotFound
	}
	m.updates++
	if changes.FullName != nil {
		a.FullName = *changes.FullName
	}
	if changes.IsActive != nil {
		a.IsActive = *changes.IsActive
	}
	if changes.PasswordHash != nil {
		a.PasswordHash = *changes.PasswordHash
	}
	return nil
}

func (m *mockAccountRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touchErr != nil {
		return m.touchErr
	}
	a, ok := m.store[id]
	if !ok {
		return ErrAccountNotFound
	}
	m.touched++
	a.LastLoginAt = &at
	return nil
}

// seed stores an account with the given raw credential, bypassing the hasher.
func (m *mockAccountRepo) seed(username, stored string, active bool) *Account {
	acct := &Account{Username: username, PasswordHash: stored, FullName: "Staff " + username, IsActive: active}
	if err := m.Create(context.Background(), acct); err != nil {
		panic(err)
	}
	return acct
}

func (m *mockAccountRepo) stored(id uuid.UUID) *Account {
	a, _ := m.GetByID(context.Background(), id)
	return a
}

// testHasher uses bcrypt's minimum cost to keep tests fast.
func testHasher() credential.Hasher {
	return credential.NewHasher(4)
}

func signedIn() context.Context {
	return session.NewContext(context.Background(), session.Session{
		ID:       uuid.New(),
		Username: "admin",
		FullName: "Head Pharmacist",
		IsActive: true,
	})
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }
