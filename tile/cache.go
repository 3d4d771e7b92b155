package tile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/IvanBrykalov/mapgen/cache"
	"github.com/IvanBrykalov/mapgen/store"
)

// Pointer is a borrowed tile.
type Pointer = cache.Pointer[TileID, *Tile]

// Store is the persistent side of a tile cache.
type Store = cache.Store[TileID, *Tile]

// NewStore returns the msgpack-encoded tile store over b.
func NewStore(b store.Blobs) *store.Typed[TileID, *Tile] {
	return store.NewTyped[TileID, *Tile](b, store.Msgpack[Tile]{})
}

// Cache is the tile cache of a grid: tiles are created empty on first use,
// loaded and written back through the underlying cache.Cache.
type Cache struct {
	grid     Grid
	maxDepth int
	tiles    *cache.Cache[TileID, *Tile]
	log      *log.Logger
}

// NewCache builds a tile cache over st. opt configures the underlying object
// cache; its Logger is also used here.
func NewCache(grid Grid, maxDepth int, st Store, opt cache.Options[TileID, *Tile]) *Cache {
	if opt.Logger == nil {
		opt.Logger = log.New(io.Discard)
	}
	return &Cache{
		grid:     grid,
		maxDepth: maxDepth,
		tiles:    cache.New(st, opt),
		log:      opt.Logger.WithPrefix("tiles"),
	}
}

// Grid returns the tiling.
func (c *Cache) Grid() Grid { return c.grid }

// Objects exposes the underlying object cache for stats and maintenance.
func (c *Cache) Objects() *cache.Cache[TileID, *Tile] { return c.tiles }

// Start runs the background worker of the underlying cache.
func (c *Cache) Start() error { return c.tiles.Start() }

// Close stops the worker and writes back every changed tile.
func (c *Cache) Close() error { return c.tiles.Close() }

// Lookup returns a borrow of tile id, or nil if it does not exist yet.
func (c *Cache) Lookup(ctx context.Context, id TileID) (*Pointer, error) {
	if !c.grid.Valid(id) {
		return nil, fmt.Errorf("tile: invalid id %d", id)
	}
	return c.tiles.Get(ctx, id)
}

// Tile returns a borrow of tile id, creating an empty tile on first use.
func (c *Cache) Tile(ctx context.Context, id TileID) (*Pointer, error) {
	for {
		p, err := c.Lookup(ctx, id)
		if p != nil || err != nil {
			return p, err
		}
		ok, err := c.tiles.Insert(ctx, id, NewTile(id, c.grid.Bound(id), c.maxDepth))
		if err != nil {
			return nil, err
		}
		if ok {
			c.log.Debug("new tile", "id", id, "bound", c.grid.Bound(id))
		}
		// either ours or someone else's tile is resident now
	}
}

// AddNode creates a node at pos in the tile containing it.
func (c *Cache) AddNode(ctx context.Context, pos orb.Point, heading float64) (NodeRef, error) {
	id := c.grid.TileAt(pos)
	p, err := c.Tile(ctx, id)
	if err != nil {
		return NodeRef{}, err
	}
	defer p.Release()
	n, ok := p.Write().AddNode(pos, heading)
	if !ok {
		return NodeRef{}, fmt.Errorf("tile: %v does not fit tile %d", pos, id)
	}
	return NodeRef{Tile: id, Node: n.ID}, nil
}

// Node returns a copy of the referenced node.
func (c *Cache) Node(ctx context.Context, ref NodeRef) (Node, bool, error) {
	p, err := c.Lookup(ctx, ref.Tile)
	if err != nil || p == nil {
		return Node{}, false, err
	}
	defer p.Release()
	n, ok := p.Value().Node(ref.Node)
	return n, ok, nil
}

// Link adds or reinforces the edge from one node to another.
func (c *Cache) Link(ctx context.Context, from, to NodeRef) error {
	p, err := c.Lookup(ctx, from.Tile)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("tile: %d does not exist", from.Tile)
	}
	defer p.Release()
	if !p.Write().Link(from.Node, to) {
		return fmt.Errorf("tile: cannot link %v to %v", from, to)
	}
	return nil
}

// Observe merges a position fix into the network: the nearest node of pos's
// tile within radius meters whose heading is within maxTurn degrees absorbs
// the fix; otherwise a new node is created.
func (c *Cache) Observe(ctx context.Context, pos orb.Point, heading, radius, maxTurn float64) (NodeRef, error) {
	id := c.grid.TileAt(pos)
	p, err := c.Tile(ctx, id)
	if err != nil {
		return NodeRef{}, err
	}
	defer p.Release()

	t := p.Write()
	for _, n := range t.Nearby(pos, radius) {
		if turn(n.Heading, heading) <= maxTurn && t.Reinforce(n.ID, pos, heading) {
			return NodeRef{Tile: id, Node: n.ID}, nil
		}
	}
	n, ok := t.AddNode(pos, heading)
	if !ok {
		return NodeRef{}, fmt.Errorf("tile: %v does not fit tile %d", pos, id)
	}
	return NodeRef{Tile: id, Node: n.ID}, nil
}

// turn returns the absolute difference of two headings in degrees, 0..180.
func turn(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	return min(d, 360-d)
}

// Nearby is a node found by NodesNear.
type Nearby struct {
	Ref      NodeRef
	Node     Node
	Distance float64
}

// NodesNear returns the nodes within radius meters of pos across all tiles
// the search area touches, nearest first. Tiles that do not exist are
// skipped. The neighbours of pos's tile are prefetched for the next query.
func (c *Cache) NodesNear(ctx context.Context, pos orb.Point, radius float64) ([]Nearby, error) {
	center := c.grid.TileAt(pos)
	for _, n := range c.grid.Neighbours(center) {
		c.tiles.Prefetch(n, nil)
	}

	var (
		out  []Nearby
		errs []error
	)
	for _, id := range c.grid.Cover(geo.NewBoundAroundPoint(pos, radius)) {
		p, err := c.tiles.Get(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if p == nil {
			continue
		}
		for _, n := range p.Value().Nearby(pos, radius) {
			out = append(out, Nearby{
				Ref:      NodeRef{Tile: id, Node: n.ID},
				Node:     n,
				Distance: geo.Distance(pos, n.Pos),
			})
		}
		p.Release()
	}
	sortNearby(out)
	return out, errors.Join(errs...)
}

func sortNearby(out []Nearby) {
	slices.SortFunc(out, func(a, b Nearby) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Ref.Tile, b.Ref.Tile); c != 0 {
			return c
		}
		return cmp.Compare(a.Ref.Node, b.Ref.Node)
	})
}
