// Package memstore is a map-backed store.Blobs, registered as "memory".
// Contents live as long as the process.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/IvanBrykalov/mapgen/store"
)

func init() {
	store.Register("memory", func(string) (store.Blobs, error) { return New(), nil })
}

type Store struct {
	mu   sync.RWMutex
	data map[uint64][]byte
}

var (
	_ store.Blobs = (*Store)(nil)
	_ store.Sizer = (*Store)(nil)
)

func New() *Store { return &Store{data: map[uint64][]byte{}} }

func (s *Store) Get(_ context.Context, id uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(data), nil
}

func (s *Store) Size(_ context.Context, id uint64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	return int64(len(data)), nil
}

func (s *Store) Put(_ context.Context, id uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = slices.Clone(data)
	return nil
}

func (s *Store) Delete(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[id]
	delete(s.data, id)
	return ok, nil
}

func (s *Store) IDs(context.Context) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data)), nil
}

func (s *Store) Close() error { return nil }
