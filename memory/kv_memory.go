package memory

import (
	"context"
	"sync"
)

type InMemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ KV = (*InMemoryKV)(nil)

func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{
		values: make(map[string][]byte),
	}
}

func (s *InMemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *InMemoryKV) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *InMemoryKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
