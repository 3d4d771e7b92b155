package cache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"
)

// A mixed workload of concurrent Get/Insert/Remove/Prefetch on random ids with
// the worker running and a tight size limit.
// Should pass under `-race` without detector reports.
func TestRace_Basic(t *testing.T) {
	kv := map[int]string{}
	for i := 1; i <= 500; i++ {
		kv[i] = "v" + strconv.Itoa(i)
	}
	st := newMemStore(1, kv)
	c := New[int, string](st, Options[int, string]{
		HardMaxSize: 64,
		SoftMaxSize: 32,
		MinObjects:  4,
		Interval:    time.Millisecond,
	})
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 1_000
	deadline := time.Now().Add(2 * time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := 1 + r.Intn(keyspace)
				switch r.Intn(100) {
				case 0, 1, 2: // Remove
					_, _ = c.Remove(ctx, k)
				case 3, 4, 5, 6, 7: // Insert
					_, _ = c.Insert(ctx, k, "x")
				case 8, 9: // Prefetch
					c.Prefetch(k, nil)
				case 10:
					_, _ = c.WriteBack(ctx)
				default: // Get
					p, err := c.Get(ctx, k)
					if err != nil {
						t.Errorf("Get %d: %v", k, err)
						return
					}
					if p == nil {
						continue
					}
					if p.Value() == "" {
						t.Errorf("empty value for %d", k)
					}
					q := p.Clone()
					p.Release()
					q.Release()
				}
			}
		}(w)
	}
	wg.Wait()
	checkSize(t, c)
}

// One hundred goroutines hold borrows while Flush runs; none of them may
// observe its entry being evicted.
func TestRace_FlushWhileBorrowed(t *testing.T) {
	st := newMemStore(1, map[int]string{1: "a"})
	c := New[int, string](st, Options[int, string]{HardMaxSize: 10})
	t.Cleanup(func() { _ = c.Close() })

	const goroutines = 100
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			p, err := c.Get(context.Background(), 1)
			if err != nil || p == nil {
				t.Errorf("Get 1: p=%v err=%v", p, err)
				return
			}
			defer p.Release()
			if _, err := c.Flush(context.Background()); err != nil {
				t.Errorf("Flush: %v", err)
			}
			if p.Value() != "a" {
				t.Errorf("unexpected value: %q", p.Value())
			}
		}()
	}

	close(start)
	wg.Wait()
	checkSize(t, c)
}
