// Package stats holds the cache's hot counters.
package stats

import (
	"sync/atomic"
	"unsafe"
)

// cacheLine is a reasonable default for most modern CPUs.
const cacheLine = 64

// Counter is an atomic int64 occupying a whole cache line, so counters bumped
// by different goroutines do not false-share.
type Counter struct {
	atomic.Int64
	_ [cacheLine - 8]byte
}

// must be exactly one cache line
var _ [cacheLine - int(unsafe.Sizeof(Counter{}))]byte

// Counters groups everything the cache reports through Stats.
type Counters struct {
	Hits              Counter
	Misses            Counter
	Loads             Counter
	LoadFailures      Counter
	WriteBacks        Counter
	WriteBackFailures Counter
	Evictions         Counter
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Hits              int64
	Misses            int64
	Loads             int64
	LoadFailures      int64
	WriteBacks        int64
	WriteBackFailures int64
	Evictions         int64
}

// Snapshot reads every counter. Counters are read one by one, so the result
// is not an atomic view across fields.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Hits:              c.Hits.Load(),
		Misses:            c.Misses.Load(),
		Loads:             c.Loads.Load(),
		LoadFailures:      c.LoadFailures.Load(),
		WriteBacks:        c.WriteBacks.Load(),
		WriteBackFailures: c.WriteBackFailures.Load(),
		Evictions:         c.Evictions.Load(),
	}
}

// HitRate returns hits/(hits+misses), or 0 when nothing was looked up.
func (s Snapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
