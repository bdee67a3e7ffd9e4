package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultSlotKey names the persisted session entry.
const DefaultSlotKey = "admin_user"

// ErrSlotEmpty is returned by Load when nothing is stored.
var ErrSlotEmpty = errors.New("session slot is empty")

// Slot is a single named durable value holding an encoded Session.
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}

// FileSlot keeps the value under Key in a JSON object file. Other keys in
// the file are preserved.
type FileSlot struct {
	mu   sync.Mutex
	path string
	key  string
}

// NewFileSlot returns a slot stored at path.
func NewFileSlot(path, key string) *FileSlot {
	if key == "" {
		key = DefaultSlotKey
	}
	return &FileSlot{path: path, key: key}
}

func (f *FileSlot) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := map[string]json.RawMessage{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		// An unreadable file holds nothing usable; start over.
		return map[string]json.RawMessage{}, nil
	}
	return entries, nil
}

func (f *FileSlot) write(entries map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileSlot) Load(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	raw, ok := entries[f.key]
	if !ok || len(raw) == 0 {
		return nil, ErrSlotEmpty
	}
	// Values are stored as JSON strings so that arbitrary bytes round-trip.
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return raw, nil
	}
	return []byte(value), nil
}

func (f *FileSlot) Save(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}
	raw, err := json.Marshal(string(data))
	if err != nil {
		return err
	}
	entries[f.key] = raw
	return f.write(entries)
}

func (f *FileSlot) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}
	if _, ok := entries[f.key]; !ok {
		return nil
	}
	delete(entries, f.key)
	return f.write(entries)
}

// RedisSlot keeps the value in a single Redis string key.
type RedisSlot struct {
	client redis.Cmdable
	key    string
}

// NewRedisSlot returns a slot stored at key.
func NewRedisSlot(client redis.Cmdable, key string) *RedisSlot {
	if key == "" {
		key = DefaultSlotKey
	}
	return &RedisSlot{client: client, key: "rxintake:session:" + key}
}

func (r *RedisSlot) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return data, nil
}

func (r *RedisSlot) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisSlot) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

// ConnectRedis builds a client from a redis:// URL or a bare host:port.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// MemorySlot is a process-local slot.
type MemorySlot struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemorySlot) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemorySlot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	m.data = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *MemorySlot) Clear(context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}
