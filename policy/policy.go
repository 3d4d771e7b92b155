// Package policy defines the eviction order used by the cache.
//
// A Policy only tracks ids; the cache owns the entries, their sizes and the
// decision whether a victim can actually be dropped (it may still be borrowed
// or its write-back may fail). Victims are therefore offered oldest first and
// the cache calls Forget only for the ids it really evicted.
package policy

import "iter"

// Policy orders resident ids for eviction.
//
// Concurrency: all methods are invoked under the cache lock.
//
// Semantics:
//   - Admit is called once when an id enters the cache (load or insert).
//   - Touch is called on every borrow of a resident id.
//   - Forget is called when the id leaves the cache (eviction or removal).
//   - Victims yields resident ids, best eviction candidate first. Forget may be
//     called for the id currently yielded without breaking the iteration.
type Policy[K comparable] interface {
	Admit(K)
	Touch(K)
	Forget(K)
	Victims() iter.Seq[K]
	Len() int
}

// Factory creates a fresh policy instance for one cache.
type Factory[K comparable] interface {
	New() Policy[K]
}
