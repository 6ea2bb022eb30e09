package storage

import (
	"context"
	"net/url"
	"sync"
	"time"

	appdues "github.com/duesledger/backend/internal/application/dues"
)

var _ appdues.ArchiveStore = (*MemoryArchiveStore)(nil)

// Object is an archive held by MemoryArchiveStore
type Object struct {
	ContentType string
	Body        []byte
}

// MemoryArchiveStore keeps archives in process. Used when object storage
// is disabled; links point at BaseURL and are not signed.
type MemoryArchiveStore struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]Object
	now     func() time.Time
}

// NewMemoryArchiveStore creates an empty store
func NewMemoryArchiveStore(baseURL string) *MemoryArchiveStore {
	if baseURL == "" {
		baseURL = "http://localhost:8080/archives"
	}
	return &MemoryArchiveStore{
		BaseURL: baseURL,
		objects: make(map[string]Object),
		now:     time.Now,
	}
}

// Put stores a copy of body under key
func (s *MemoryArchiveStore) Put(_ context.Context, key, contentType string, body []byte) error {
	if key == "" {
		return ErrKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{ContentType: contentType, Body: append([]byte(nil), body...)}
	return nil
}

// PresignGet returns BaseURL/key with the expiry as a query parameter
func (s *MemoryArchiveStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", ErrKeyRequired
	}
	link, err := url.JoinPath(s.BaseURL, key)
	if err != nil {
		return "", err
	}
	q := url.Values{"expires": {s.now().Add(ttl).UTC().Format(time.RFC3339)}}
	return link + "?" + q.Encode(), nil
}

// Get returns the archive stored under key
func (s *MemoryArchiveStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Len returns how many archives are stored
func (s *MemoryArchiveStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
