package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/mapgen/cache"
)

func TestAdapter(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "mapgen", "test", prometheus.Labels{"app": "unit"})

	a.Hit()
	a.Hit()
	a.Miss()
	a.Load(true)
	a.Load(false)
	a.WriteBack(true)
	a.Evict(cache.EvictHardLimit)
	a.Evict(cache.EvictHardLimit)
	a.Evict(cache.EvictFlush)
	a.Size(3, 1024)

	require.InDelta(t, 2, testutil.ToFloat64(a.hits), 0)
	require.InDelta(t, 1, testutil.ToFloat64(a.misses), 0)
	require.InDelta(t, 1, testutil.ToFloat64(a.loads.WithLabelValues("error")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(a.writebacks.WithLabelValues("ok")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(a.evicts.WithLabelValues("hard_limit")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(a.evicts.WithLabelValues("flush")), 0)
	require.InDelta(t, 1024, testutil.ToFloat64(a.sizeBytes), 0)

	n, err := testutil.GatherAndCount(reg, "mapgen_test_evictions_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestAdapter_WithCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "mapgen", "cache", nil)
	c := cache.New[uint32, string](nil, cache.Options[uint32, string]{
		Flags:   cache.NonPersistent | cache.NoMemoryLimit,
		Metrics: a,
	})
	defer func() { _ = c.Close() }()

	ok, err := c.Insert(t.Context(), 1, "a")
	require.NoError(t, err)
	require.True(t, ok)
	p, err := c.Get(t.Context(), 1)
	require.NoError(t, err)
	p.Release()

	require.InDelta(t, 1, testutil.ToFloat64(a.hits), 0)
	require.InDelta(t, 1, testutil.ToFloat64(a.sizeEnt), 0)
}
