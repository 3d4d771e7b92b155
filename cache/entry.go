package cache

import (
	"fmt"
	"sync/atomic"
)

// entry is one resident object.
//
// users and dirty are atomic so that borrow handles can be copied, released
// and written through without the cache lock. size is guarded by the cache
// lock. An entry that left the table stays valid for the handles still
// holding it; it is simply never written back again.
type entry[K ID, V any] struct {
	id    K
	value V

	users atomic.Int32
	dirty atomic.Bool

	// Cost recorded for this entry; part of Cache.size while resident.
	size int64
}

// acquire hands out a new borrow. Callers hold the cache lock, or another live
// Pointer to the same entry.
func (e *entry[K, V]) acquire() *Pointer[K, V] {
	e.users.Add(1)
	return &Pointer[K, V]{e: e}
}

// idle reports whether nobody borrows the entry. Only meaningful under the
// cache lock: new borrows of an idle entry need that lock.
func (e *entry[K, V]) idle() bool { return e.users.Load() == 0 }

// Pointer is a borrow of a cached object. The object is never evicted while
// any Pointer to it is live; call Release exactly once when done.
//
// A nil *Pointer means the object does not exist.
type Pointer[K ID, V any] struct {
	e        *entry[K, V]
	released atomic.Bool
}

// ID returns the id the object is cached under.
func (p *Pointer[K, V]) ID() K { return p.e.id }

// Value returns the object for reading. Mutating it through a pointer-typed V
// without calling Write first leaves the entry clean and the change may be lost.
func (p *Pointer[K, V]) Value() V { return p.e.value }

// Write marks the entry dirty and returns the object for mutation.
func (p *Pointer[K, V]) Write() V {
	p.e.dirty.Store(true)
	return p.e.value
}

// Set replaces the object and marks the entry dirty.
func (p *Pointer[K, V]) Set(v V) {
	p.e.value = v
	p.e.dirty.Store(true)
}

// Clone returns an independent borrow of the same object, or nil if p was
// already released.
func (p *Pointer[K, V]) Clone() *Pointer[K, V] {
	if p == nil || p.released.Load() {
		return nil
	}
	return p.e.acquire()
}

// Release drops the borrow. Releasing twice is a no-op; releasing nil is allowed.
func (p *Pointer[K, V]) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	if n := p.e.users.Add(-1); n < 0 {
		panic(fmt.Sprintf("cache: borrow count underflow for id %v", p.e.id))
	}
}
