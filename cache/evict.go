package cache

import (
	"context"
	"errors"
	"fmt"
)

// Flush writes back and evicts every resident entry nobody borrows.
// Entries whose write-back fails stay resident and dirty; their errors are
// joined into the returned error. It returns the number of evicted entries.
func (c *Cache[K, V]) Flush(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		n    int
		errs []error
	)
	for id := range c.order.Victims() {
		e := c.entries[id]
		if e == nil || !e.idle() {
			continue
		}
		if err := c.writeBackLocked(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		c.evictedLocked(e, EvictFlush)
		n++
	}
	return n, errors.Join(errs...)
}

// WriteBack saves every dirty entry nobody borrows, without evicting.
// It returns the number of entries written.
func (c *Cache[K, V]) WriteBack(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeBackAllLocked(ctx)
}

func (c *Cache[K, V]) writeBackAllLocked(ctx context.Context) (int, error) {
	if !c.opt.writable() {
		return 0, nil
	}
	var (
		n    int
		errs []error
	)
	for id := range c.order.Victims() {
		e := c.entries[id]
		if e == nil || !e.idle() || !e.dirty.Load() {
			continue
		}
		if err := c.writeBackLocked(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// writeBackLocked saves e if it is dirty. The caller checked that e is idle.
// Without write access the change is dropped with the entry, as configured.
func (c *Cache[K, V]) writeBackLocked(ctx context.Context, e *entry[K, V]) error {
	if !e.dirty.Load() || !c.opt.writable() {
		return nil
	}
	size, err := c.store.Save(ctx, e.id, e.value)
	if err != nil {
		c.stats.WriteBackFailures.Add(1)
		c.opt.Metrics.WriteBack(false)
		c.log.Warn("write back failed", "id", e.id, "err", err)
		return fmt.Errorf("cache: write back %v: %w", e.id, err)
	}
	e.dirty.Store(false)
	c.size += size - e.size
	e.size = size
	c.sample(size)
	c.stats.WriteBacks.Add(1)
	c.opt.Metrics.WriteBack(true)
	return nil
}

// evictLocked walks the eviction order and evicts idle entries until the
// cached size is at most target or only keep entries are left.
// Borrowed entries and entries whose write-back fails are skipped and keep
// their place in the order.
func (c *Cache[K, V]) evictLocked(ctx context.Context, target int64, keep int, reason EvictReason) (int, error) {
	var (
		n    int
		errs []error
	)
	for id := range c.order.Victims() {
		if c.size <= target || len(c.entries) <= keep {
			break
		}
		e := c.entries[id]
		if e == nil {
			c.order.Forget(id)
			continue
		}
		if !e.idle() {
			continue
		}
		if err := c.writeBackLocked(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		c.evictedLocked(e, reason)
		n++
	}
	return n, errors.Join(errs...)
}

func (c *Cache[K, V]) evictedLocked(e *entry[K, V], reason EvictReason) {
	c.dropLocked(e)
	c.stats.Evictions.Add(1)
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(e.id, e.value, reason)
	}
}

// trim evicts down to the soft limit if the cache is over it.
func (c *Cache[K, V]) trim(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.overSoftLocked() {
		return
	}
	before := c.size
	n, err := c.evictLocked(ctx, c.opt.SoftMaxSize, c.opt.MinObjects, EvictSoftLimit)
	c.log.Debug("trimmed to soft limit",
		"evicted", n,
		"from", bytes(before),
		"to", bytes(c.size),
		"limit", bytes(c.opt.SoftMaxSize))
	if err != nil {
		c.log.Warn("soft limit eviction incomplete", "err", err)
	}
}
