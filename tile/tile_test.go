package tile

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/IvanBrykalov/mapgen/quadtree"
	"github.com/IvanBrykalov/mapgen/store"
)

var berlin = orb.Bound{Min: orb.Point{13, 52}, Max: orb.Point{14, 53}}

func TestTile_AddMoveRemove(t *testing.T) {
	tl := NewTile(7, berlin, 12)

	a, ok := tl.AddNode(orb.Point{13.4, 52.5}, 90)
	require.True(t, ok)
	b, ok := tl.AddNode(orb.Point{13.4, 52.5}, 270) // same spot, other node
	require.True(t, ok)
	require.NotEqual(t, a.ID, b.ID)
	_, ok = tl.AddNode(orb.Point{20, 52.5}, 0)
	require.False(t, ok, "outside the tile")
	require.Equal(t, 2, tl.Len())

	require.True(t, tl.MoveNode(a.ID, orb.Point{13.41, 52.51}))
	require.False(t, tl.MoveNode(a.ID, orb.Point{15, 52.51}))
	n, ok := tl.Node(a.ID)
	require.True(t, ok)
	require.Equal(t, orb.Point{13.41, 52.51}, n.Pos)

	require.True(t, tl.Link(b.ID, NodeRef{Tile: 7, Node: a.ID}))
	require.True(t, tl.Link(b.ID, NodeRef{Tile: 7, Node: a.ID}))
	require.False(t, tl.Link(b.ID, NodeRef{Tile: 7, Node: b.ID}), "no self loops")
	n, _ = tl.Node(b.ID)
	require.Equal(t, []Edge{{To: NodeRef{Tile: 7, Node: a.ID}, Weight: 2}}, n.Edges)

	require.True(t, tl.RemoveNode(a.ID))
	require.False(t, tl.RemoveNode(a.ID))
	n, _ = tl.Node(b.ID)
	require.Empty(t, n.Edges, "edges to a removed node go with it")
}

func TestTile_Reinforce(t *testing.T) {
	tl := NewTile(1, berlin, 12)
	a, _ := tl.AddNode(orb.Point{13.0, 52.0}, 350)

	require.True(t, tl.Reinforce(a.ID, orb.Point{13.2, 52.2}, 10))
	n, _ := tl.Node(a.ID)
	require.InDelta(t, 13.1, n.Pos[0], 1e-9)
	require.InDelta(t, 52.1, n.Pos[1], 1e-9)
	require.InDelta(t, 0, n.Heading, 1e-9, "shorter arc across north")
	require.EqualValues(t, 2, n.Weight)
	require.False(t, tl.Reinforce(99, orb.Point{13, 52}, 0))

	// the index follows the node
	got := tl.NodesIn(quadtree.RectTrapezoid(orb.Bound{Min: orb.Point{13.05, 52.05}, Max: orb.Point{13.15, 52.15}}))
	require.Len(t, got, 1)
}

func TestTile_Nearby(t *testing.T) {
	tl := NewTile(1, berlin, 16)
	center := orb.Point{13.4, 52.5}
	far, _ := tl.AddNode(orb.Point{13.41, 52.5}, 0)   // ~680 m east
	near, _ := tl.AddNode(orb.Point{13.401, 52.5}, 0) // ~68 m east
	_, _ = tl.AddNode(orb.Point{13.9, 52.9}, 0)

	got := tl.Nearby(center, 1000)
	require.Len(t, got, 2)
	require.Equal(t, near.ID, got[0].ID)
	require.Equal(t, far.ID, got[1].ID)
	require.Len(t, tl.Nearby(center, 100), 1)
}

func TestTile_MsgpackRoundTrip(t *testing.T) {
	tl := NewTile(3, berlin, 10)
	a, _ := tl.AddNode(orb.Point{13.1, 52.1}, 45)
	b, _ := tl.AddNode(orb.Point{13.9, 52.9}, 225)
	require.True(t, tl.Link(a.ID, NodeRef{Tile: 3, Node: b.ID}))
	require.True(t, tl.Link(a.ID, NodeRef{Tile: 4, Node: 1}))
	require.True(t, tl.RemoveNode(b.ID))

	data, err := msgpack.Marshal(tl)
	require.NoError(t, err)

	got, err := store.Msgpack[Tile]{}.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, TileID(3), got.ID())
	require.Equal(t, berlin, got.Bound())
	require.Equal(t, tl.Nodes(), got.Nodes())

	// the quadtree was rebuilt and ids keep counting
	require.Len(t, got.NodesIn(quadtree.RectTrapezoid(berlin)), 1)
	c, ok := got.AddNode(orb.Point{13.5, 52.5}, 0)
	require.True(t, ok)
	require.Equal(t, b.ID+1, c.ID)
}
