package assets

import (
	"context"
	"sort"
	"strings"
	"sync"
)

const memoryURLPrefix = "memory://assets/"

// MemoryStore is an in-process Store used for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	// PutHook, when set, runs before each Put and may fail it.
	PutHook func(key string) error
	// DeleteHook, when set, runs before each Delete and may fail it.
	DeleteHook func(keys []string) error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put records data under key.
func (s *MemoryStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	hook := s.PutHook
	s.mu.Unlock()
	if hook != nil {
		if err := hook(key); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return memoryURLPrefix + key, nil
}

// Delete removes keys. Absent keys are ignored.
func (s *MemoryStore) Delete(_ context.Context, keys []string) error {
	s.mu.Lock()
	hook := s.DeleteHook
	s.mu.Unlock()
	if hook != nil {
		if err := hook(keys); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.objects, key)
		s.deleted = append(s.deleted, key)
	}
	return nil
}

// KeyFromURL strips the memory:// prefix.
func (s *MemoryStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, memoryURLPrefix) {
		return "", false
	}
	return strings.TrimPrefix(url, memoryURLPrefix), true
}

// Has reports whether key is stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Get returns a stored object.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Keys lists stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Deleted lists every key passed to Delete, in call order.
func (s *MemoryStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
