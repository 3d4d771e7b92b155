package quadtree

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestOrientation(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{10, 0}
	require.Greater(t, Orientation(a, b, orb.Point{5, 5}), 0.0)
	require.Less(t, Orientation(a, b, orb.Point{5, -5}), 0.0)
	require.Zero(t, Orientation(a, b, orb.Point{20, 0}))
}

func TestBuildTrapezoid_Clockwise(t *testing.T) {
	// corners in a scrambled order
	tr := BuildTrapezoid(orb.Point{0, 0}, orb.Point{10, 10}, orb.Point{10, 0}, orb.Point{0, 10})
	for i := range tr.Corners {
		a, b, c := tr.Corners[i], tr.Corners[(i+1)%4], tr.Corners[(i+2)%4]
		require.Less(t, Orientation(a, b, c), 0.0, "turn at corner %d", i)
	}
	require.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}, tr.Bound())
}

func TestTrapezoid_Contains(t *testing.T) {
	tr := BuildTrapezoid(orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{7, 5}, orb.Point{3, 5})

	require.True(t, tr.Contains(orb.Point{5, 2}))
	require.True(t, tr.Contains(orb.Point{0, 0}), "corner")
	require.True(t, tr.Contains(orb.Point{5, 0}), "edge")
	require.True(t, tr.Contains(orb.Point{5, -0.000001}), "within tolerance")
	require.False(t, tr.Contains(orb.Point{1, 4}), "outside the slanted edge")
	require.False(t, tr.Contains(orb.Point{5, 6}))
	require.False(t, tr.Contains(orb.Point{-1, 0}))
}

func TestCorridor(t *testing.T) {
	c := Corridor(orb.Point{0, 0}, orb.Point{10, 0}, 1)
	require.True(t, c.Contains(orb.Point{5, 0.5}))
	require.True(t, c.Contains(orb.Point{0, -1}))
	require.False(t, c.Contains(orb.Point{5, 1.5}))
	require.False(t, c.Contains(orb.Point{11, 0}))

	sq := Corridor(orb.Point{3, 3}, orb.Point{3, 3}, 2)
	require.Equal(t, orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{5, 5}}, sq.Bound())
}
