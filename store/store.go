// Package store holds the persistent side of the cache: id-keyed blob
// backends behind one small interface, a driver registry, and the adapter
// that turns a blob backend into a typed cache.Store.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNotFound is returned by Blobs.Get for an unknown id.
var ErrNotFound = errors.New("store: not found")

// Blobs is an id-keyed blob backend. Implementations are safe for concurrent
// use.
type Blobs interface {
	// Get returns the blob stored under id, or ErrNotFound.
	Get(ctx context.Context, id uint64) ([]byte, error)

	// Put upserts data under id.
	Put(ctx context.Context, id uint64, data []byte) error

	// Delete removes id and reports whether it existed.
	Delete(ctx context.Context, id uint64) (bool, error)

	// IDs returns every stored id in ascending order.
	IDs(ctx context.Context) ([]uint64, error)

	Close() error
}

// Sizer is optionally implemented by a backend that knows the size of a blob
// without reading it.
type Sizer interface {
	Size(ctx context.Context, id uint64) (int64, error)
}

// Factory opens a backend at location. The meaning of location is up to the
// driver: a directory, a database file, or nothing at all.
type Factory func(location string) (Blobs, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Factory{}
)

// Register makes a backend available under name. It panics if name is taken,
// so that two drivers cannot silently shadow each other.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic(fmt.Sprintf("store: driver %q registered twice", name))
	}
	drivers[name] = f
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open opens location with the named driver.
func Open(driver, location string) (Blobs, error) {
	driversMu.RLock()
	f, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown driver %q (have %v)", driver, Drivers())
	}
	b, err := f(location)
	if err != nil {
		return nil, fmt.Errorf("store: open %s %q: %w", driver, location, err)
	}
	return b, nil
}
