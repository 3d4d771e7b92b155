package cache

import (
	"context"
	"sync"
	"time"
)

type prefetchRequest[K ID] struct {
	id     K
	notify func(K)
}

// prefetchQueue is guarded by its own lock so Prefetch never waits for the
// cache lock.
type prefetchQueue[K ID] struct {
	mu   sync.Mutex
	reqs []prefetchRequest[K]
}

func (q *prefetchQueue[K]) push(r prefetchRequest[K]) {
	q.mu.Lock()
	q.reqs = append(q.reqs, r)
	q.mu.Unlock()
}

func (q *prefetchQueue[K]) drain() []prefetchRequest[K] {
	q.mu.Lock()
	defer q.mu.Unlock()
	reqs := q.reqs
	q.reqs = nil
	return reqs
}

func (q *prefetchQueue[K]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reqs)
}

// Prefetch queues id for loading by the background worker. notify, if not
// nil, is called with id once the load attempt finished, whether or not the
// id exists upstream. Requests wait in the queue while the worker is stopped.
func (c *Cache[K, V]) Prefetch(id K, notify func(K)) {
	if c.closed.Load() {
		return
	}
	c.queue.push(prefetchRequest[K]{id: id, notify: notify})
	c.signal()
}

// signal wakes the worker without blocking.
func (c *Cache[K, V]) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Start launches the background worker and returns once it runs.
func (c *Cache[K, V]) Start() error {
	ready, err := c.StartAsync()
	if err != nil {
		return err
	}
	<-ready
	return nil
}

// StartAsync launches the background worker. The returned channel is closed
// once the worker runs.
func (c *Cache[K, V]) StartAsync() (<-chan struct{}, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.life.Lock()
	defer c.life.Unlock()

	if c.stop != nil {
		return nil, ErrRunning
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	ready := make(chan struct{})
	go c.run(c.stop, c.done, ready)
	return ready, nil
}

// Stop signals the worker and waits until it exited. It does not write
// anything back; see Close.
func (c *Cache[K, V]) Stop() { <-c.StopAsync() }

// StopAsync signals the worker to stop. The returned channel is closed once
// it exited. Stopping a cache without a worker is a no-op.
func (c *Cache[K, V]) StopAsync() <-chan struct{} {
	c.life.Lock()
	defer c.life.Unlock()

	if c.stop == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	close(c.stop)
	done := c.done
	c.stop, c.done = nil, nil
	return done
}

// Close stops the worker, writes back every dirty entry and marks the cache
// closed. Later operations return ErrClosed or nothing.
func (c *Cache[K, V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.writeBackAllLocked(context.Background())
	c.log.Debug("closed", "written", n, "resident", len(c.entries), "size", bytes(c.size))
	return err
}

// run is the background worker: it serves prefetch requests and keeps the
// cache under its soft limit.
func (c *Cache[K, V]) run(stop <-chan struct{}, done chan<- struct{}, ready chan<- struct{}) {
	defer close(done)

	// in-flight Store calls see the stop through ctx
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(c.opt.Interval)
	defer ticker.Stop()

	c.log.Debug("worker started", "interval", c.opt.Interval)
	close(ready)

	for {
		select {
		case <-stop:
			c.log.Debug("worker stopped", "pending", c.queue.len())
			return
		case <-c.wake:
		case <-ticker.C:
		}
		c.prefetchPending(ctx)
		c.trim(ctx)
	}
}

// prefetchPending loads every queued id that is not resident yet.
func (c *Cache[K, V]) prefetchPending(ctx context.Context) {
	for _, r := range c.queue.drain() {
		if ctx.Err() != nil {
			// put it back for the next run
			c.queue.push(r)
			continue
		}
		c.mu.Lock()
		if _, ok := c.entries[r.id]; !ok {
			if _, err := c.loadLocked(ctx, r.id); err != nil {
				c.log.Debug("prefetch failed", "id", r.id, "err", err)
			}
		}
		c.mu.Unlock()

		if r.notify != nil {
			r.notify(r.id)
		}
	}
}
