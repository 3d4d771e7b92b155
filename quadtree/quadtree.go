// Package quadtree is a bounded-depth point quadtree over a rectangular
// domain, with insertion, removal and trapezoid range queries.
//
// The tree has no internal locking. It is meant to live inside a value whose
// exclusive use is already arbitrated elsewhere, e.g. a borrowed cache entry.
package quadtree

import (
	"iter"
	"slices"

	"github.com/paulmach/orb"
)

// Quadrant indices of a child inside its parent.
const (
	NE = iota
	SE
	SW
	NW
)

// Locatable is the constraint for stored points. Equality is by value: the
// point itself is the handle used by Remove and Move.
type Locatable interface {
	comparable
	Point() orb.Point
}

// Pt adapts a bare orb.Point to Locatable.
type Pt orb.Point

// Point implements Locatable.
func (p Pt) Point() orb.Point { return orb.Point(p) }

// item is one arena slot. Slot 0 is the root, so 0 never names a child.
type item[P Locatable] struct {
	parent   int32
	children [4]int32
	nchild   int8
	points   []P
}

// Quadtree indexes points inside a fixed bound. Leaves hold one point, except
// at maxDepth where all points of a quadrant share one leaf.
type Quadtree[P Locatable] struct {
	maxDepth int
	bound    orb.Bound
	items    []item[P]
	free     []int32
	n        int
}

// New returns an empty tree over bound. maxDepth < 0 is treated as 0.
func New[P Locatable](maxDepth int, bound orb.Bound) *Quadtree[P] {
	return &Quadtree[P]{
		maxDepth: max(maxDepth, 0),
		bound:    bound,
		items:    []item[P]{{parent: -1}},
	}
}

// Bound returns the indexed domain.
func (q *Quadtree[P]) Bound() orb.Bound { return q.bound }

// MaxDepth returns the depth below which leaves stop splitting.
func (q *Quadtree[P]) MaxDepth() int { return q.maxDepth }

// Len returns the number of stored points.
func (q *Quadtree[P]) Len() int { return q.n }

// quadrant returns the child index for pt and that child's bound. The upper
// halves take the midlines.
func quadrant(b orb.Bound, pt orb.Point) (int, orb.Bound) {
	mid := b.Center()
	east, north := pt[0] >= mid[0], pt[1] >= mid[1]
	qd := SW
	switch {
	case east && north:
		qd = NE
	case east:
		qd = SE
	case north:
		qd = NW
	}
	return qd, childBound(b, qd)
}

func childBound(b orb.Bound, qd int) orb.Bound {
	mid := b.Center()
	switch qd {
	case NE:
		return orb.Bound{Min: mid, Max: b.Max}
	case SE:
		return orb.Bound{Min: orb.Point{mid[0], b.Min[1]}, Max: orb.Point{b.Max[0], mid[1]}}
	case NW:
		return orb.Bound{Min: orb.Point{b.Min[0], mid[1]}, Max: orb.Point{mid[0], b.Max[1]}}
	default:
		return orb.Bound{Min: b.Min, Max: mid}
	}
}

// newItem allocates a slot under parent, reusing freed slots.
func (q *Quadtree[P]) newItem(parent int32) int32 {
	if n := len(q.free); n > 0 {
		idx := q.free[n-1]
		q.free = q.free[:n-1]
		q.items[idx] = item[P]{parent: parent}
		return idx
	}
	q.items = append(q.items, item[P]{parent: parent})
	return int32(len(q.items) - 1)
}

// attach creates child qd of idx holding p.
func (q *Quadtree[P]) attach(idx int32, qd int, p P) {
	c := q.newItem(idx)
	q.items[c].points = []P{p}
	q.items[idx].children[qd] = c
	q.items[idx].nchild++
}

// Add inserts p. It returns false if p is already stored or lies outside the
// tree's bound; the tree is unchanged then.
func (q *Quadtree[P]) Add(p P) bool {
	pt := p.Point()
	if !q.bound.Contains(pt) {
		return false
	}

	idx, b, depth := int32(0), q.bound, 0
	for {
		it := &q.items[idx]
		if it.nchild == 0 {
			switch {
			case len(it.points) == 0:
				it.points = []P{p}
			case slices.Contains(it.points, p):
				return false
			case depth >= q.maxDepth:
				it.points = append(it.points, p)
			default:
				// split: push the single resident point one level down
				old := it.points[0]
				it.points = nil
				oq, _ := quadrant(b, old.Point())
				q.attach(idx, oq, old)
				continue
			}
			q.n++
			return true
		}

		qd, cb := quadrant(b, pt)
		c := it.children[qd]
		if c == 0 {
			q.attach(idx, qd, p)
			q.n++
			return true
		}
		idx, b, depth = c, cb, depth+1
	}
}

// leaf returns the leaf p would live in, or -1 if that path does not exist.
func (q *Quadtree[P]) leaf(pt orb.Point) int32 {
	idx, b := int32(0), q.bound
	for q.items[idx].nchild > 0 {
		qd, cb := quadrant(b, pt)
		c := q.items[idx].children[qd]
		if c == 0 {
			return -1
		}
		idx, b = c, cb
	}
	return idx
}

// Contains reports whether p is stored.
func (q *Quadtree[P]) Contains(p P) bool {
	pt := p.Point()
	if !q.bound.Contains(pt) {
		return false
	}
	idx := q.leaf(pt)
	return idx >= 0 && slices.Contains(q.items[idx].points, p)
}

// Remove deletes p and prunes the leaves and ancestors left empty. It returns
// false if p is not stored.
func (q *Quadtree[P]) Remove(p P) bool {
	pt := p.Point()
	if !q.bound.Contains(pt) {
		return false
	}
	idx := q.leaf(pt)
	if idx < 0 {
		return false
	}
	it := &q.items[idx]
	i := slices.Index(it.points, p)
	if i < 0 {
		return false
	}
	it.points = slices.Delete(it.points, i, i+1)
	q.n--

	for idx != 0 {
		cur := &q.items[idx]
		if cur.nchild > 0 || len(cur.points) > 0 {
			break
		}
		parent := cur.parent
		pi := &q.items[parent]
		for qd, c := range pi.children {
			if c == idx {
				pi.children[qd] = 0
				pi.nchild--
				break
			}
		}
		*cur = item[P]{}
		q.free = append(q.free, idx)
		idx = parent
	}
	return true
}

// Move replaces from with to. If to cannot be added, from is kept and Move
// returns false.
func (q *Quadtree[P]) Move(from, to P) bool {
	if from == to {
		return q.Contains(from)
	}
	if !q.Remove(from) {
		return false
	}
	if !q.Add(to) {
		q.Add(from)
		return false
	}
	return true
}

// Clear drops every point.
func (q *Quadtree[P]) Clear() {
	q.items = []item[P]{{parent: -1}}
	q.free = nil
	q.n = 0
}

// All yields every stored point.
func (q *Quadtree[P]) All() iter.Seq[P] {
	return func(yield func(P) bool) {
		q.walk(0, func(it *item[P]) bool {
			for _, p := range it.points {
				if !yield(p) {
					return false
				}
			}
			return true
		})
	}
}

func (q *Quadtree[P]) walk(idx int32, fn func(*item[P]) bool) bool {
	it := &q.items[idx]
	if !fn(it) {
		return false
	}
	for _, c := range it.children {
		if c != 0 && !q.walk(c, fn) {
			return false
		}
	}
	return true
}

// RangeQuery appends to out every point inside t and returns the result.
// Leaves outside t's bounding box are never visited.
func (q *Quadtree[P]) RangeQuery(t Trapezoid, out []P) []P {
	return q.query(0, q.bound, t.bound.Pad(Epsilon), t, out)
}

func (q *Quadtree[P]) query(idx int32, b, box orb.Bound, t Trapezoid, out []P) []P {
	if !b.Intersects(box) {
		return out
	}
	it := &q.items[idx]
	for _, p := range it.points {
		if t.Contains(p.Point()) {
			out = append(out, p)
		}
	}
	for qd, c := range it.children {
		if c != 0 {
			out = q.query(c, childBound(b, qd), box, t, out)
		}
	}
	return out
}
