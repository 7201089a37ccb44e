package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "sheetload/internal/errors"
)

// MemoryStore is an in-process ObjectStore. It counts calls so callers can
// check how many writes an operation made.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	fetches int
	puts    int

	// FetchErr and PutErr, when set, make every call fail with that cause
	FetchErr error
	PutErr   error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func objectID(bucket, key string) string {
	return bucket + "/" + key
}

// Fetch returns a copy of the stored object
func (s *MemoryStore) Fetch(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	if s.FetchErr != nil {
		return nil, apperrors.NewSourceUnavailableError(bucket, key, s.FetchErr)
	}
	body, ok := s.objects[objectID(bucket, key)]
	if !ok {
		return nil, apperrors.NewSourceUnavailableError(bucket, key, fmt.Errorf("no such object"))
	}
	return append([]byte(nil), body...), nil
}

// Put stores a copy of body
func (s *MemoryStore) Put(_ context.Context, bucket, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts++
	if s.PutErr != nil {
		return apperrors.NewSinkUnavailableError(fmt.Sprintf("cannot write %s", objectID(bucket, key)), s.PutErr)
	}
	s.objects[objectID(bucket, key)] = append([]byte(nil), body...)
	return nil
}

// Seed stores an object without counting it as a Put
func (s *MemoryStore) Seed(bucket, key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectID(bucket, key)] = append([]byte(nil), body...)
}

// Object returns the stored object and whether it exists
func (s *MemoryStore) Object(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[objectID(bucket, key)]
	return body, ok
}

// Keys lists stored objects as bucket/key, sorted
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns the number of Put calls
func (s *MemoryStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Fetches returns the number of Fetch calls
func (s *MemoryStore) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}
