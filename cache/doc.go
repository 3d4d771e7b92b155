// Package cache provides a generic, bounded, write-back object cache in front
// of a persistent Store, with borrow handles, background eviction and
// prefetching.
//
// Design
//
//   - Keys are integers (the ID constraint). The cache can hand out fresh ids
//     itself (InsertNew), reusing gaps reported by the Store and ids freed by
//     Remove before counting past the largest known id.
//
//   - Borrowing: Get returns a *Pointer. The entry behind it is never evicted
//     while any Pointer to it is live. Value reads; Write and Set mark the
//     entry dirty. Release must be called once per Pointer (and per Clone).
//
//   - Write-back: dirty entries are saved before they are evicted, by
//     WriteBack, by Flush and by Close. An entry whose save fails stays
//     resident and dirty and is retried on the next pass. Remove discards a
//     pending write.
//
//   - Limits: sizes are whatever unit the Store reports (usually encoded
//     bytes). HardMaxSize is enforced synchronously when an object enters the
//     cache; SoftMaxSize is enforced by the background worker. MinObjects is
//     a floor eviction never goes below. Fresh inserts are sized with the
//     running mean until their first write-back reports the real size.
//
//   - Eviction order: FIFO by admission (policy/fifo) unless Options.Policy
//     says otherwise (policy/lru orders by recency).
//
//   - Worker: Start runs one goroutine per cache. It serves Prefetch
//     requests and trims to the soft limit every Interval, or earlier when
//     woken. Stop does not write anything back; Close does.
//
//   - Concurrency: one mutex guards the entry table, the order and the size
//     counters, including the Store call made on a miss, so concurrent Gets
//     of the same id share one load. The prefetch queue has its own lock.
//     Borrow counts are atomic.
//
// Basic usage
//
//	c := cache.New[uint64, *Tile](st, cache.Options[uint64, *Tile]{
//	    HardMaxSize: 64 << 20,
//	    MinObjects:  16,
//	})
//	if err := c.Start(); err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	p, err := c.Get(ctx, 42)
//	if err != nil {
//	    return err
//	}
//	if p == nil {
//	    // 42 does not exist upstream
//	}
//	defer p.Release()
//	p.Write().Name = "changed"
//
// Exporting metrics
//
//	m := prom.New(nil, "mapgen", "tiles", nil) // implements Metrics
//	c := cache.New[uint64, *Tile](st, cache.Options[uint64, *Tile]{
//	    HardMaxSize: 64 << 20,
//	    Metrics:     m,
//	})
package cache
