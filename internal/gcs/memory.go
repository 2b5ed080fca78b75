package gcs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pubsub2inbox/internal/common/errors"
)

// MemoryOpener is an in-process Opener backed by a map of objects. It counts
// opened and closed sessions so callers can verify release of every session.
type MemoryOpener struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	opened  int
	closed  int
}

type memoryObject struct {
	contents    []byte
	contentType string
}

// NewMemoryOpener creates an empty in-memory object store
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{objects: make(map[string]memoryObject)}
}

// Put stores an object
func (m *MemoryOpener) Put(bucket, object string, contents []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+object] = memoryObject{contents: contents}
}

// Get returns a stored object and its content type
func (m *MemoryOpener) Get(bucket, object string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[bucket+"/"+object]
	return obj.contents, obj.contentType, ok
}

// Sessions returns how many stores were opened and closed
func (m *MemoryOpener) Sessions() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed
}

// Open implements Opener
func (m *MemoryOpener) Open(ctx context.Context) (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
	return &memoryStore{parent: m}, nil
}

type memoryStore struct {
	parent *MemoryOpener
}

func (s *memoryStore) Read(ctx context.Context, bucket, object string, offset, length int64) ([]byte, error) {
	contents, _, ok := s.parent.Get(bucket, object)
	if !ok {
		return nil, errors.ObjectNotFoundError(bucket, object)
	}
	size := int64(len(contents))
	if offset > size {
		offset = size
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}
	out := make([]byte, end-offset)
	copy(out, contents[offset:end])
	return out, nil
}

func (s *memoryStore) SignedURL(ctx context.Context, bucket, object string, expires time.Time) (string, error) {
	if _, _, ok := s.parent.Get(bucket, object); !ok {
		return "", errors.ObjectNotFoundError(bucket, object)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s?X-Goog-Expires=%d", bucket, object, expires.Unix()), nil
}

func (s *memoryStore) Write(ctx context.Context, bucket, object string, contents []byte, contentType string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	stored := make([]byte, len(contents))
	copy(stored, contents)
	s.parent.objects[bucket+"/"+object] = memoryObject{contents: stored, contentType: contentType}
	return nil
}

func (s *memoryStore) Close() error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.parent.closed++
	return nil
}
