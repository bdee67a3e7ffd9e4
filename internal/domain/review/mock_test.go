package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rxintake/rxintake/internal/domain/intake"
	"github.com/rxintake/rxintake/internal/platform/session"
)

type mockSubmissionRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*intake.Submission
	err   error
	// raced makes UpdateStatus behave as if another reviewer moved the row first.
	raced bool
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{store: make(map[uuid.UUID]*intake.Submission)}
}

func (m *mockSubmissionRepo) seed(status intake.Status, age time.Duration) *intake.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &intake.Submission{
		ID:              uuid.New(),
		PatientName:     "Asha Rao",
		Gender:          intake.GenderFemale,
		Age:             34,
		PhoneNumber:     "+91 98450 12345",
		PrimaryQuestion: "Is this dosage safe?",
		UploadMethod:    intake.UploadCamera,
		Status:          status,
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(-age),
	}
	m.store[sub.ID] = sub
	return sub
}

func (m *mockSubmissionRepo) Create(_ context.Context, sub *intake.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now().UTC()
	cp := *sub
	m.store[sub.ID] = &cp
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id uuid.UUID) (*intake.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.store[id]
	if !ok {
		return nil, intake.ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubmissionRepo) List(_ context.Context, opts intake.ListOptions) ([]*intake.Submission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []*intake.Submission
	for _, s := range m.store {
		if opts.Status == "" || s.Status == opts.Status {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := len(out)
	if opts.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, total, nil
}

func (m *mockSubmissionRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to intake.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	s, ok := m.store[id]
	if !ok || s.Status != from || m.raced {
		return intake.ErrStatusConflict
	}
	s.Status = to
	return nil
}

func reviewer() session.Session {
	return session.Session{
		ID:        uuid.New(),
		Username:  "pharmacist",
		FullName:  "Ravi Menon",
		IsActive:  true,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func signedIn() context.Context {
	return session.NewContext(context.Background(), reviewer())
}
