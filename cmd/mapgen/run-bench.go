package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/IvanBrykalov/mapgen/cache"
	"github.com/IvanBrykalov/mapgen/metrics/prom"
	"github.com/IvanBrykalov/mapgen/tile"
)

const (
	mergeRadius = 15.0 // meters
	maxTurn     = 30.0 // degrees
	queryEvery  = 50   // fixes between two NodesNear calls
)

type benchCounters struct {
	fixes   atomic.Uint64
	queries atomic.Uint64
	found   atomic.Uint64
}

func runBench(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	vehicles := c.Int("vehicles")
	if vehicles <= 0 {
		return errors.New("vehicles must be > 0")
	}
	steps := c.Int("steps")
	seed := c.Int64("seed")

	var metrics cache.Metrics
	if addr := c.String("http"); addr != "" {
		metrics = prom.New(nil, "mapgen", "tiles", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			m.log.Info("metrics: serving", "addr", addr)
			m.log.Error("metrics server", "err", http.ListenAndServe(addr, nil))
		}()
	}

	tiles, closer, err := openTiles(m, metrics)
	if err != nil {
		return err
	}
	if err := tiles.Start(); err != nil {
		closer()
		return err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r := c.Float64("rate"); r > 0 {
		limiter = rate.NewLimiter(rate.Limit(r), max(1, int(r/10)))
	}

	ctx := context.Background()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var counters benchCounters
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for v := range vehicles {
		g.Go(func() error {
			return drive(gctx, tiles, limiter, rand.New(rand.NewSource(seed+int64(v)*9973)), steps, &counters)
		})
	}
	err = g.Wait()
	if errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	elapsed := time.Since(start)

	st := tiles.Objects().Stats()
	fixes := counters.fixes.Load()
	fmt.Fprintf(m.w, "vehicles=%d fixes=%s (%.0f/s) queries=%s found=%s dur=%v\n",
		vehicles, humanize.Comma(int64(fixes)), float64(fixes)/elapsed.Seconds(),
		humanize.Comma(int64(counters.queries.Load())), humanize.Comma(int64(counters.found.Load())),
		elapsed.Round(time.Millisecond))
	fmt.Fprintf(m.w, "tiles=%d resident=%s hit-rate=%.2f%% loads=%d writebacks=%d evictions=%d\n",
		tiles.Objects().Len(), humanize.IBytes(uint64(tiles.Objects().Size())), st.HitRate()*100,
		st.Loads, st.WriteBacks, st.Evictions)

	if cerr := closer(); err == nil {
		err = cerr
	}
	return err
}

// drive simulates one vehicle: it wanders with slowly changing heading and
// speed, feeds each fix into the network and links consecutive nodes.
func drive(ctx context.Context, tiles *tile.Cache, limiter *rate.Limiter, r *rand.Rand, steps int, n *benchCounters) error {
	pos := orb.Point{13.0 + r.Float64(), 52.0 + r.Float64()}
	heading := r.Float64() * 360
	var prev tile.NodeRef

	for i := range steps {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		heading = math.Mod(heading+r.NormFloat64()*10+360, 360)
		pos = geo.PointAtBearingAndDistance(pos, heading, 5+r.Float64()*20)

		ref, err := tiles.Observe(ctx, pos, heading, mergeRadius, maxTurn)
		if err != nil {
			return err
		}
		n.fixes.Add(1)
		if prev != (tile.NodeRef{}) && prev != ref {
			if err := tiles.Link(ctx, prev, ref); err != nil {
				return err
			}
		}
		prev = ref

		if i%queryEvery == 0 {
			near, err := tiles.NodesNear(ctx, pos, 4*mergeRadius)
			if err != nil {
				return err
			}
			n.queries.Add(1)
			n.found.Add(uint64(len(near)))
		}
	}
	return nil
}
