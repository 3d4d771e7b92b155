package cache

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/IvanBrykalov/mapgen/policy"
)

// Flags switch off parts of the cache behaviour. They can be combined.
type Flags uint8

const (
	// NonPersistent never calls the Store: the cache is transient memory.
	NonPersistent Flags = 1 << iota
	// NoWriteback allows loads but suppresses saves and erases.
	NoWriteback
	// NoMemoryLimit disables both the soft and the hard size limit.
	NoMemoryLimit
)

// Has reports whether all bits of o are set in f.
func (f Flags) Has(o Flags) bool { return f&o == o }

// EvictReason explains why an entry was removed from memory.
type EvictReason int

const (
	// EvictSoftLimit: removed by the background worker to get under SoftMaxSize.
	EvictSoftLimit EvictReason = iota
	// EvictHardLimit: removed synchronously while loading to stay under HardMaxSize.
	EvictHardLimit
	// EvictFlush: removed by an explicit Flush.
	EvictFlush
)

func (r EvictReason) String() string {
	switch r {
	case EvictSoftLimit:
		return "soft_limit"
	case EvictHardLimit:
		return "hard_limit"
	default:
		return "flush"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Load(ok bool)
	WriteBack(ok bool)
	Evict(reason EvictReason)
	Size(entries int, cost int64)
}

// Options configures a Cache. Zero values are safe except for HardMaxSize,
// which is required unless NoMemoryLimit is set. Defaults applied in New():
//   - SoftMaxSize == 0 or > HardMaxSize => 0.8 * HardMaxSize
//   - nil Policy  => FIFO
//   - nil Metrics => NoopMetrics
//   - nil Logger  => discard
//   - Interval <= 0 => 100ms
type Options[K ID, V any] struct {
	Flags Flags

	// MinObjects is a floor on the number of resident entries: eviction never
	// shrinks the cache below it, even when over a size limit.
	MinObjects int

	// HardMaxSize is enforced while loading, SoftMaxSize by the background
	// worker. Both are in the unit reported by the Store.
	HardMaxSize int64
	SoftMaxSize int64

	// Interval is the background worker's tick.
	Interval time.Duration

	// NegativeTTL remembers ids confirmed absent upstream for this long, so
	// repeated misses do not reach the Store. 0 disables it.
	NegativeTTL time.Duration

	// Policy decides the eviction order; nil => FIFO by admission.
	Policy policy.Factory[K]

	// OnEvict is called under the cache lock after an entry left memory;
	// keep callbacks lightweight.
	OnEvict func(id K, v V, reason EvictReason)

	Metrics Metrics
	Logger  *log.Logger
}

// memoryLimited reports whether size limits apply.
func (o *Options[K, V]) memoryLimited() bool { return !o.Flags.Has(NoMemoryLimit) }

// persistent reports whether the Store may be read.
func (o *Options[K, V]) persistent() bool { return !o.Flags.Has(NonPersistent) }

// writable reports whether the Store may be written.
func (o *Options[K, V]) writable() bool {
	return !o.Flags.Has(NonPersistent) && !o.Flags.Has(NoWriteback)
}
