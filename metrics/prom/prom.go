// Package prom exports cache metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/mapgen/cache"
)

// Adapter implements cache.Metrics with Prometheus counters and gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	loads      *prometheus.CounterVec
	writebacks *prometheus.CounterVec
	evicts     *prometheus.CounterVec
	sizeEnt    prometheus.Gauge
	sizeBytes  prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	counterVec := func(name, help, label string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		}, []string{label})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}

	a := &Adapter{
		hits:       counter("hits_total", "Lookups served from memory"),
		misses:     counter("misses_total", "Lookups that went to the store"),
		loads:      counterVec("loads_total", "Store loads by result", "result"),
		writebacks: counterVec("writebacks_total", "Store saves by result", "result"),
		evicts:     counterVec("evictions_total", "Evictions by reason", "reason"),
		sizeEnt:    gauge("size_entries", "Number of resident entries"),
		sizeBytes:  gauge("size_bytes", "Estimated resident size"),
	}
	reg.MustRegister(a.hits, a.misses, a.loads, a.writebacks, a.evicts, a.sizeEnt, a.sizeBytes)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Load counts a store load.
func (a *Adapter) Load(ok bool) { a.loads.WithLabelValues(result(ok)).Inc() }

// WriteBack counts a store save.
func (a *Adapter) WriteBack(ok bool) { a.writebacks.WithLabelValues(result(ok)).Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) { a.evicts.WithLabelValues(r.String()).Inc() }

// Size updates the gauges for the number of entries and their total size.
func (a *Adapter) Size(entries int, size int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeBytes.Set(float64(size))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
