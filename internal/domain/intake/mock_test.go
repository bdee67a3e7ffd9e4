package intake

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rxintake/rxintake/internal/platform/blobstore"
)

type mockSubmissionRepo struct {
	mu      sync.Mutex
	store   map[uuid.UUID]*Submission
	err     error
	panics  bool
	calls   *[]string
	created int
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{store: make(map[uuid.UUID]*Submission)}
}

func (m *mockSubmissionRepo) Create(_ context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls != nil {
		*m.calls = append(*m.calls, "insert")
	}
	if m.panics {
		panic("driver exploded")
	}
	if m.err != nil {
		return m.err
	}
	m.created++
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now().UTC().Add(time.Duration(m.created) * time.Millisecond)
	cp := *sub
	m.store[sub.ID] = &cp
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id uuid.UUID) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubmissionRepo) List(_ context.Context, opts ListOptions) ([]*Submission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Submission
	for _, s := range m.store {
		if opts.Status == "" || s.Status == opts.Status {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *mockSubmissionRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.Status != from {
		return ErrStatusConflict
	}
	s.Status = to
	return nil
}

func (m *mockSubmissionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

type mockObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
	calls   *[]string
	block   chan struct{}
	started chan struct{}
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockObjectStore) Put(_ context.Context, bucket, path string, body []byte, opts blobstore.PutOptions) error {
	if m.started != nil {
		close(m.started)
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls != nil {
		*m.calls = append(*m.calls, "upload")
	}
	if m.err != nil {
		return m.err
	}
	key := bucket + "/" + path
	if _, exists := m.objects[key]; exists && !opts.Upsert {
		return blobstore.ErrObjectExists
	}
	m.objects[key] = body
	m.types[key] = opts.ContentType
	return nil
}

func (m *mockObjectStore) PublicURL(bucket, path string) string {
	return "https://files.example.com/" + bucket + "/" + path
}

func (m *mockObjectStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type mockPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, topic string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return m.err
}

var errBackend = errors.New("backend unavailable")
