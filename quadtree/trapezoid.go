package quadtree

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// Epsilon is the tolerance of the orientation test. Points whose cross
// product with an edge is within Epsilon count as on that edge and are kept.
const Epsilon = 1e-4

// Trapezoid is a convex quadrilateral query region with its corners in
// clockwise order.
type Trapezoid struct {
	Corners [4]orb.Point
	bound   orb.Bound
}

// Orientation returns the cross product of (b-a) and (c-a): positive when
// a, b, c turn counter-clockwise, negative when clockwise, zero when collinear.
func Orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// BuildTrapezoid orders four corners clockwise around their centroid and
// computes the enclosing rectangle.
func BuildTrapezoid(p1, p2, p3, p4 orb.Point) Trapezoid {
	pts := []orb.Point{p1, p2, p3, p4}

	var cx, cy float64
	for _, p := range pts {
		cx += p[0] / 4
		cy += p[1] / 4
	}
	angle := func(p orb.Point) float64 { return math.Atan2(p[1]-cy, p[0]-cx) }
	// descending angle is clockwise
	slices.SortStableFunc(pts, func(a, b orb.Point) int {
		switch aa, ab := angle(a), angle(b); {
		case aa > ab:
			return -1
		case aa < ab:
			return 1
		}
		return 0
	})

	t := Trapezoid{bound: orb.Bound{Min: pts[0], Max: pts[0]}}
	for i, p := range pts {
		t.Corners[i] = p
		t.bound = t.bound.Extend(p)
	}
	return t
}

// RectTrapezoid returns the trapezoid covering b.
func RectTrapezoid(b orb.Bound) Trapezoid {
	return BuildTrapezoid(b.Min, orb.Point{b.Min[0], b.Max[1]}, b.Max, orb.Point{b.Max[0], b.Min[1]})
}

// Corridor returns the rectangle of the given half width around the segment
// from a to b. A zero-length segment yields a square around a.
func Corridor(a, b orb.Point, halfWidth float64) Trapezoid {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return RectTrapezoid(orb.Bound{
			Min: orb.Point{a[0] - halfWidth, a[1] - halfWidth},
			Max: orb.Point{a[0] + halfWidth, a[1] + halfWidth},
		})
	}
	// unit normal scaled to the half width
	nx, ny := -dy/l*halfWidth, dx/l*halfWidth
	return BuildTrapezoid(
		orb.Point{a[0] + nx, a[1] + ny},
		orb.Point{b[0] + nx, b[1] + ny},
		orb.Point{b[0] - nx, b[1] - ny},
		orb.Point{a[0] - nx, a[1] - ny},
	)
}

// Bound returns the axis-aligned rectangle enclosing the corners.
func (t Trapezoid) Bound() orb.Bound { return t.bound }

// Contains reports whether p lies inside t or within Epsilon of its edges.
func (t Trapezoid) Contains(p orb.Point) bool {
	if !t.bound.Pad(Epsilon).Contains(p) {
		return false
	}
	for i := range t.Corners {
		a, b := t.Corners[i], t.Corners[(i+1)%len(t.Corners)]
		if Orientation(a, b, p) > Epsilon {
			return false
		}
	}
	return true
}
