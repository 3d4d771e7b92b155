package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	gocache "github.com/patrickmn/go-cache"

	"github.com/IvanBrykalov/mapgen/internal/stats"
	"github.com/IvanBrykalov/mapgen/policy"
	"github.com/IvanBrykalov/mapgen/policy/fifo"
)

// defaultInterval is the background worker tick.
const defaultInterval = 100 * time.Millisecond

var (
	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache: closed")
	// ErrRunning is returned by Start when the worker already runs.
	ErrRunning = errors.New("cache: worker already running")
)

// Stats is a point-in-time copy of the cache counters.
type Stats = stats.Snapshot

// Cache is a bounded write-back object cache in front of a Store.
// All methods are safe for concurrent use by multiple goroutines.
//
// One lock serializes everything touching the entry table, the eviction
// order and the size counters, including the Store calls made on a miss.
// The prefetch queue has its own lock, so Prefetch never waits for a load.
type Cache[K ID, V any] struct {
	// ---- guarded by mu ----
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	order   policy.Policy[K]
	size    int64
	ids     idPool[K]
	avgSize float64
	samples int64

	store  Store[K, V]
	lister IDLister[K] // nil if the store cannot enumerate ids
	opt    Options[K, V]
	log    *log.Logger

	// ids confirmed absent upstream; nil unless NegativeTTL > 0
	missing *gocache.Cache

	queue prefetchQueue[K]
	wake  chan struct{}

	// worker lifecycle, guarded by life
	life sync.Mutex
	stop chan struct{}
	done chan struct{}

	closed atomic.Bool
	stats  stats.Counters
}

// New constructs a cache over store. store may be nil only with NonPersistent.
// It panics on an invalid configuration, like a missing HardMaxSize.
func New[K ID, V any](store Store[K, V], opt Options[K, V]) *Cache[K, V] {
	if store == nil && !opt.Flags.Has(NonPersistent) {
		panic("cache: Store is required unless NonPersistent is set")
	}
	if opt.memoryLimited() {
		if opt.HardMaxSize <= 0 {
			panic("cache: HardMaxSize must be > 0 unless NoMemoryLimit is set")
		}
		if opt.SoftMaxSize <= 0 || opt.SoftMaxSize > opt.HardMaxSize {
			opt.SoftMaxSize = opt.HardMaxSize * 8 / 10
		}
	}
	if opt.MinObjects < 0 {
		opt.MinObjects = 0
	}
	if opt.Interval <= 0 {
		opt.Interval = defaultInterval
	}
	if opt.Policy == nil {
		opt.Policy = fifo.New[K]()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = log.New(io.Discard)
	}

	c := &Cache[K, V]{
		entries: make(map[K]*entry[K, V]),
		order:   opt.Policy.New(),
		store:   store,
		opt:     opt,
		log:     opt.Logger.WithPrefix("cache"),
		wake:    make(chan struct{}, 1),
	}
	if l, ok := store.(IDLister[K]); ok && opt.persistent() {
		c.lister = l
	}
	if opt.NegativeTTL > 0 {
		c.missing = gocache.New(opt.NegativeTTL, 2*opt.NegativeTTL)
	}

	// Seed the running mean so the first inserts get a plausible size.
	c.avgSize = float64(opt.SoftMaxSize)
	if opt.MinObjects > 0 {
		c.avgSize /= float64(opt.MinObjects)
	}
	c.samples = 1
	return c
}

// Get returns a borrow of the object stored under id, loading it from the
// Store on a miss. It returns (nil, nil) if id is unknown upstream and
// (nil, err) if the Store failed.
func (c *Cache[K, V]) Get(ctx context.Context, id K) (*Pointer[K, V], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		c.hitLocked(id)
		return e.acquire(), nil
	}
	c.stats.Misses.Add(1)
	c.opt.Metrics.Miss()

	e, err := c.loadLocked(ctx, id)
	if e == nil {
		return nil, err
	}
	return e.acquire(), nil
}

// GetIfCached returns a borrow of id if it is resident; it never touches the Store.
func (c *Cache[K, V]) GetIfCached(id K) *Pointer[K, V] {
	if c.closed.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		c.hitLocked(id)
		return e.acquire()
	}
	c.stats.Misses.Add(1)
	c.opt.Metrics.Miss()
	return nil
}

// GetOrPrefetch returns a borrow of id if resident. Otherwise it queues a
// background load, calling notify (if not nil) once it finished, and
// returns nil without blocking.
func (c *Cache[K, V]) GetOrPrefetch(id K, notify func(K)) *Pointer[K, V] {
	if p := c.GetIfCached(id); p != nil {
		return p
	}
	c.Prefetch(id, notify)
	return nil
}

// Insert adds v under id. It returns false if id is already resident or
// present upstream; nothing is changed in that case.
// The new entry is dirty and sized with the running mean until written back.
func (c *Cache[K, V]) Insert(ctx context.Context, id K, v V) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.insertLocked(ctx, id, v)
	if ok {
		c.ids.used(id)
	}
	return ok, err
}

// InsertNew adds v under a fresh id and returns it. Ids released by Remove and
// gaps reported by the Store are reused first.
func (c *Cache[K, V]) InsertNew(ctx context.Context, v V) (K, error) {
	var zero K
	if c.closed.Load() {
		return zero, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.ids.ensure(ctx, c.lister, func(bump func(K)) {
		for id := range c.entries {
			bump(id)
		}
	})
	if err != nil {
		return zero, err
	}
	for {
		id := c.ids.take()
		ok, err := c.insertLocked(ctx, id, v)
		if err != nil {
			// keep the id: it may well be free, the Store just could not tell
			c.ids.release(id)
			return zero, err
		}
		if ok {
			return id, nil
		}
	}
}

// Remove drops id from memory and from the Store. A pending dirty write is
// discarded. Borrowers still holding the object keep a valid value, but
// nothing they write is saved any more. The id becomes reusable.
func (c *Cache[K, V]) Remove(ctx context.Context, id K) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	if e, ok := c.entries[id]; ok {
		c.dropLocked(e)
		removed = true
	}
	if c.opt.writable() {
		erased, err := c.store.Erase(ctx, id)
		if err != nil {
			c.log.Warn("erase failed", "id", id, "err", err)
			return removed, fmt.Errorf("cache: erase %v: %w", id, err)
		}
		removed = removed || erased
	}
	c.ids.release(id)
	c.rememberMissing(id)
	return removed, nil
}

// IsDirty reports whether id is resident with changes not yet written back.
func (c *Cache[K, V]) IsDirty(id K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return ok && e.dirty.Load()
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the total recorded cost of the resident entries.
func (c *Cache[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// UsedIDs returns, sorted and without duplicates, the ids present upstream
// plus the dirty resident ids that may not have reached the Store yet.
func (c *Cache[K, V]) UsedIDs(ctx context.Context) ([]K, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []K
	if c.lister != nil {
		used, err := c.lister.UsedIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("cache: list used ids: %w", err)
		}
		ids = append(ids, used...)
	}
	for id, e := range c.entries {
		if e.dirty.Load() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Stats returns the cache counters.
func (c *Cache[K, V]) Stats() Stats { return c.stats.Snapshot() }

// ---- internals (mu held) ----

func (c *Cache[K, V]) hitLocked(id K) {
	c.order.Touch(id)
	c.stats.Hits.Add(1)
	c.opt.Metrics.Hit()
}

// loadLocked reads id from the Store into the table. It returns a nil entry
// when id is unknown upstream or the cache is not persistent.
func (c *Cache[K, V]) loadLocked(ctx context.Context, id K) (*entry[K, V], error) {
	if !c.opt.persistent() || c.knownMissing(id) {
		return nil, nil
	}
	v, size, ok, err := c.store.Load(ctx, id)
	if err != nil {
		c.stats.LoadFailures.Add(1)
		c.opt.Metrics.Load(false)
		c.log.Warn("load failed", "id", id, "err", err)
		return nil, fmt.Errorf("cache: load %v: %w", id, err)
	}
	c.stats.Loads.Add(1)
	c.opt.Metrics.Load(true)
	if !ok {
		c.rememberMissing(id)
		return nil, nil
	}
	c.sample(size)
	c.makeRoomLocked(ctx, size)
	e := c.admitLocked(id, v, size)
	c.ids.used(id)
	return e, nil
}

// insertLocked admits v as a new dirty entry unless id is taken.
func (c *Cache[K, V]) insertLocked(ctx context.Context, id K, v V) (bool, error) {
	if _, ok := c.entries[id]; ok {
		return false, nil
	}
	e, err := c.loadLocked(ctx, id)
	if err != nil {
		return false, err
	}
	if e != nil {
		// already used upstream; it is resident now, which is harmless
		return false, nil
	}
	size := int64(c.avgSize)
	c.makeRoomLocked(ctx, size)
	e = c.admitLocked(id, v, size)
	e.dirty.Store(true)
	c.forgetMissing(id)
	return true, nil
}

// makeRoomLocked enforces the hard limit before an object of the given size
// enters the table, so the overshoot stays within one object. The incoming
// object counts toward MinObjects.
func (c *Cache[K, V]) makeRoomLocked(ctx context.Context, size int64) {
	if !c.opt.memoryLimited() || c.size+size <= c.opt.HardMaxSize {
		return
	}
	keep := max(c.opt.MinObjects-1, 0)
	n, err := c.evictLocked(ctx, c.opt.HardMaxSize-size, keep, EvictHardLimit)
	if err != nil {
		c.log.Warn("hard limit eviction incomplete", "evicted", n, "err", err)
	}
}

func (c *Cache[K, V]) admitLocked(id K, v V, size int64) *entry[K, V] {
	e := &entry[K, V]{id: id, value: v, size: size}
	c.entries[id] = e
	c.order.Admit(id)
	c.size += size
	c.opt.Metrics.Size(len(c.entries), c.size)
	if c.overSoftLocked() {
		c.signal()
	}
	return e
}

// dropLocked removes e from the table without writing it back.
func (c *Cache[K, V]) dropLocked(e *entry[K, V]) {
	delete(c.entries, e.id)
	c.order.Forget(e.id)
	c.size -= e.size
	if c.size < 0 {
		c.log.Error("negative cached size", "size", c.size, "id", e.id)
		c.size = 0
	}
	c.opt.Metrics.Size(len(c.entries), c.size)
}

func (c *Cache[K, V]) overSoftLocked() bool {
	return c.opt.memoryLimited() &&
		c.size > c.opt.SoftMaxSize &&
		len(c.entries) > c.opt.MinObjects
}

// sample feeds a size reported by the Store into the running mean.
func (c *Cache[K, V]) sample(size int64) {
	c.samples++
	c.avgSize += (float64(size) - c.avgSize) / float64(c.samples)
}

// ---- negative lookups ----

func missingKey[K ID](id K) string { return strconv.FormatInt(int64(id), 10) }

func (c *Cache[K, V]) knownMissing(id K) bool {
	if c.missing == nil {
		return false
	}
	_, found := c.missing.Get(missingKey(id))
	return found
}

func (c *Cache[K, V]) rememberMissing(id K) {
	if c.missing != nil {
		c.missing.SetDefault(missingKey(id), struct{}{})
	}
}

func (c *Cache[K, V]) forgetMissing(id K) {
	if c.missing != nil {
		c.missing.Delete(missingKey(id))
	}
}

// bytes renders a size for log lines.
func bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
