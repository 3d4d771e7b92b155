package cache

import "context"

// ID is the constraint for cache keys. Keys are integers so that the cache can
// hand out fresh ids (InsertNew) by filling gaps and counting past the maximum.
type ID interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// Store is the persistent backend behind a Cache.
//
// Implementations must be safe for use by the cache's goroutines; the cache
// never calls a Store method concurrently for the same id.
type Store[K ID, V any] interface {
	// Load returns the value stored under id and its cost (bytes or any
	// backend-defined unit). ok is false when id is unknown upstream.
	Load(ctx context.Context, id K) (v V, size int64, ok bool, err error)

	// Save upserts v under id and returns the cost to record for it.
	Save(ctx context.Context, id K, v V) (size int64, err error)

	// Erase deletes id. It reports whether something was deleted.
	Erase(ctx context.Context, id K) (bool, error)
}

// IDLister is optionally implemented by a Store to enumerate ids.
// Without it the cache assumes an empty backend for id allocation.
type IDLister[K ID] interface {
	// UsedIDs returns every id present upstream.
	UsedIDs(ctx context.Context) ([]K, error)

	// FreeIDs returns the gaps between used ids plus one past the maximum.
	FreeIDs(ctx context.Context) ([]K, error)
}
