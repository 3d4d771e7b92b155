// Package pebblestore keeps blobs in a Pebble directory, registered as
// "pebble".
package pebblestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"syscall"

	"github.com/cockroachdb/pebble/v2"

	"github.com/IvanBrykalov/mapgen/store"
)

const blobPrefix = "blob:"

// ErrInUse is returned when another process holds the database lock.
var ErrInUse = errors.New("pebblestore: database in use")

func init() {
	store.Register("pebble", func(location string) (store.Blobs, error) { return Open(location) })
}

type Store struct {
	db *pebble.DB
}

var (
	_ store.Blobs = (*Store)(nil)
	_ store.Sizer = (*Store)(nil)
)

func Open(dir string) (*Store, error) {
	opts := pebble.Options{
		MemTableSize: 64 << 20,
	}
	db, err := pebble.Open(dir, &opts)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return nil, ErrInUse
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

func key(id uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(blobPrefix), id)
}

func (s *Store) Get(_ context.Context, id uint64) ([]byte, error) {
	data, closer, err := s.db.Get(key(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ret := make([]byte, len(data))
	copy(ret, data)
	closer.Close()
	return ret, nil
}

func (s *Store) Size(_ context.Context, id uint64) (int64, error) {
	data, closer, err := s.db.Get(key(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	n := int64(len(data))
	closer.Close()
	return n, nil
}

func (s *Store) Put(_ context.Context, id uint64, data []byte) error {
	return s.db.Set(key(id), data, pebble.Sync)
}

func (s *Store) Delete(_ context.Context, id uint64) (bool, error) {
	k := key(id)
	_, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, s.db.Delete(k, pebble.Sync)
}

func (s *Store) IDs(context.Context) ([]uint64, error) {
	iter, err := s.db.NewIter(prefixIterOptions([]byte(blobPrefix)))
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) != len(blobPrefix)+8 {
			iter.Close()
			return nil, fmt.Errorf("pebblestore: malformed key %q", k)
		}
		ids = append(ids, binary.BigEndian.Uint64(k[len(blobPrefix):]))
	}
	return ids, iter.Close()
}

func (s *Store) Close() error { return s.db.Close() }

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, or nil if there is none.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func prefixIterOptions(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	}
}
