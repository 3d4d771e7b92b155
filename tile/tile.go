package tile

import (
	"cmp"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/IvanBrykalov/mapgen/quadtree"
)

// NodeRef names a node anywhere in the network.
type NodeRef struct {
	Tile TileID `msgpack:"t"`
	Node uint32 `msgpack:"n"`
}

// Edge is a directed road segment to another node.
type Edge struct {
	To     NodeRef `msgpack:"to"`
	Weight uint32  `msgpack:"w"`
}

// Node is a point of the road network.
type Node struct {
	ID      uint32    `msgpack:"id"`
	Pos     orb.Point `msgpack:"pos"`
	Heading float64   `msgpack:"hdg"`
	Weight  uint32    `msgpack:"w"`
	Edges   []Edge    `msgpack:"edges,omitempty"`
}

// ref is the quadtree entry of a node: its id at its position.
type ref struct {
	id  uint32
	pos orb.Point
}

func (r ref) Point() orb.Point { return r.pos }

// Tile holds the nodes inside one grid cell. Its methods are safe for
// concurrent use; the cache decides when it is written back.
type Tile struct {
	mu       sync.RWMutex
	id       TileID
	bound    orb.Bound
	maxDepth int
	next     uint32
	nodes    map[uint32]*Node
	index    *quadtree.Quadtree[ref]
}

var (
	_ msgpack.CustomEncoder = (*Tile)(nil)
	_ msgpack.CustomDecoder = (*Tile)(nil)
)

// NewTile returns an empty tile covering bound.
func NewTile(id TileID, bound orb.Bound, maxDepth int) *Tile {
	t := &Tile{id: id, bound: bound, maxDepth: maxDepth}
	t.reset()
	return t
}

func (t *Tile) reset() {
	t.nodes = map[uint32]*Node{}
	t.index = quadtree.New[ref](t.maxDepth, t.bound)
	t.next = 1
}

// ID returns the tile's grid id.
func (t *Tile) ID() TileID { return t.id }

// Bound returns the area the tile covers.
func (t *Tile) Bound() orb.Bound { return t.bound }

// Len returns the number of nodes.
func (t *Tile) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// AddNode creates a node at pos. It returns false if pos is outside the tile.
func (t *Tile) AddNode(pos orb.Point, heading float64) (Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := &Node{ID: t.next, Pos: pos, Heading: heading, Weight: 1}
	if !t.index.Add(ref{n.ID, pos}) {
		return Node{}, false
	}
	t.nodes[n.ID] = n
	t.next++
	return *n, true
}

// Node returns a copy of node id.
func (t *Tile) Node(id uint32) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

func (n *Node) clone() Node {
	c := *n
	c.Edges = slices.Clone(n.Edges)
	return c
}

// MoveNode relocates node id inside the tile. Moving a node out of the tile
// is refused.
func (t *Tile) MoveNode(id uint32, pos orb.Point) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok || !t.index.Move(ref{id, n.Pos}, ref{id, pos}) {
		return false
	}
	n.Pos = pos
	return true
}

// Reinforce merges one more observation into node id: the position moves
// toward pos and the heading toward heading, both weighted by the number of
// observations so far.
func (t *Tile) Reinforce(id uint32, pos orb.Point, heading float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	w := float64(n.Weight)
	to := orb.Point{
		(n.Pos[0]*w + pos[0]) / (w + 1),
		(n.Pos[1]*w + pos[1]) / (w + 1),
	}
	if t.index.Move(ref{id, n.Pos}, ref{id, to}) {
		n.Pos = to
	}
	n.Heading = blendHeading(n.Heading, heading, w)
	n.Weight++
	return true
}

// blendHeading averages two compass headings along the shorter arc.
func blendHeading(h, o, w float64) float64 {
	d := o - h
	for d > 180 {
		d -= 360
	}
	for d < -180 {
		d += 360
	}
	h += d / (w + 1)
	for h < 0 {
		h += 360
	}
	for h >= 360 {
		h -= 360
	}
	return h
}

// RemoveNode deletes node id and the edges of this tile pointing to it.
func (t *Tile) RemoveNode(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok || !t.index.Remove(ref{id, n.Pos}) {
		return false
	}
	delete(t.nodes, id)
	self := NodeRef{Tile: t.id, Node: id}
	for _, o := range t.nodes {
		o.Edges = slices.DeleteFunc(o.Edges, func(e Edge) bool { return e.To == self })
	}
	return true
}

// Link adds an edge from node id to another node, or bumps its weight if the
// edge exists.
func (t *Tile) Link(id uint32, to NodeRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok || to == (NodeRef{Tile: t.id, Node: id}) {
		return false
	}
	for i := range n.Edges {
		if n.Edges[i].To == to {
			n.Edges[i].Weight++
			return true
		}
	}
	n.Edges = append(n.Edges, Edge{To: to, Weight: 1})
	return true
}

// NodesIn returns copies of the nodes inside tr.
func (t *Tile) NodesIn(tr quadtree.Trapezoid) []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	refs := t.index.RangeQuery(tr, nil)
	out := make([]Node, 0, len(refs))
	for _, r := range refs {
		out = append(out, t.nodes[r.id].clone())
	}
	return out
}

// Nearby returns copies of the nodes within radius meters of center, nearest
// first.
func (t *Tile) Nearby(center orb.Point, radius float64) []Node {
	box := geo.NewBoundAroundPoint(center, radius)
	candidates := t.NodesIn(quadtree.RectTrapezoid(box))
	out := candidates[:0]
	for _, n := range candidates {
		if geo.Distance(center, n.Pos) <= radius {
			out = append(out, n)
		}
	}
	sortByDistance(center, out)
	return out
}

func sortByDistance(center orb.Point, nodes []Node) {
	slices.SortFunc(nodes, func(a, b Node) int {
		return cmp.Compare(geo.Distance(center, a.Pos), geo.Distance(center, b.Pos))
	})
}

// Nodes returns copies of all nodes ordered by id.
func (t *Tile) Nodes() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n.clone())
	}
	slices.SortFunc(out, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// ---- persistence ----

// wireTile is the stored form: the quadtree is flattened to the node list and
// rebuilt on decode.
type wireTile struct {
	ID       TileID    `msgpack:"id"`
	Min      orb.Point `msgpack:"min"`
	Max      orb.Point `msgpack:"max"`
	MaxDepth int       `msgpack:"depth"`
	Next     uint32    `msgpack:"next"`
	Nodes    []Node    `msgpack:"nodes"`
}

func (t *Tile) EncodeMsgpack(enc *msgpack.Encoder) error {
	w := wireTile{
		ID:       t.id,
		Min:      t.bound.Min,
		Max:      t.bound.Max,
		MaxDepth: t.maxDepth,
	}
	t.mu.RLock()
	w.Next = t.next
	t.mu.RUnlock()
	w.Nodes = t.Nodes()
	return enc.Encode(&w)
}

func (t *Tile) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w wireTile
	if err := dec.Decode(&w); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = w.ID
	t.bound = orb.Bound{Min: w.Min, Max: w.Max}
	t.maxDepth = w.MaxDepth
	t.reset()
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if !t.index.Add(ref{n.ID, n.Pos}) {
			continue
		}
		t.nodes[n.ID] = n
	}
	t.next = max(w.Next, 1)
	return nil
}
