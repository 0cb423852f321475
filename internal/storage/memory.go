package storage

import (
	"context"
	"sync"
)

// MemoryStorage implements Storage in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Get retrieves a copy of the value at key.
func (s *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := validateKey(key); err != nil {
		return nil, &StorageError{Op: "Get", Key: key, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value at key.
func (s *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Set", Key: key, Err: err}
	}
	if len(value) > MaxValueSize {
		return &StorageError{Op: "Set", Key: key, Err: ErrTooLarge}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
