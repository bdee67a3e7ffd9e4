package blobstore

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Object is a stored artifact.
type Object struct {
	Bucket      string
	Path        string
	ContentType string
	Body        []byte
	StoredAt    time.Time
}

// InMemory is a thread-safe ObjectStore kept in process memory.
type InMemory struct {
	mu         sync.RWMutex
	objects    map[string]Object
	publicBase string
}

// NewInMemory returns an empty store whose public URLs start with
// publicBase, for example "http://localhost:8000/storage".
func NewInMemory(publicBase string) *InMemory {
	return &InMemory{
		objects:    make(map[string]Object),
		publicBase: publicBase,
	}
}

func objectKey(bucket, path string) string {
	return bucket + "/" + strings.TrimLeft(path, "/")
}

func (s *InMemory) Put(_ context.Context, bucket, path string, body []byte, opts PutOptions) error {
	key := objectKey(bucket, path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; exists && !opts.Upsert {
		return ErrObjectExists
	}
	s.objects[key] = Object{
		Bucket:      bucket,
		Path:        path,
		ContentType: opts.ContentType,
		Body:        append([]byte(nil), body...),
		StoredAt:    time.Now().UTC(),
	}
	return nil
}

func (s *InMemory) PublicURL(bucket, path string) string {
	return publicURL(s.publicBase, bucket, path)
}

// Get returns a copy of the stored object.
func (s *InMemory) Get(_ context.Context, bucket, path string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[objectKey(bucket, path)]
	if !ok {
		return Object{}, ErrObjectNotFound
	}
	obj.Body = append([]byte(nil), obj.Body...)
	return obj, nil
}

// Len returns the number of stored objects.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// RegisterRoutes mounts GET /:bucket/* on g so that public URLs resolve.
func (s *InMemory) RegisterRoutes(g *echo.Group) {
	g.GET("/:bucket/*", s.handleGet)
}

func (s *InMemory) handleGet(c echo.Context) error {
	obj, err := s.Get(c.Request().Context(), c.Param("bucket"), c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "object not found")
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(http.StatusOK, contentType, obj.Body)
}
