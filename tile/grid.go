// Package tile splits the road network into fixed lon/lat tiles. Each Tile
// owns its nodes and a quadtree over their positions; tiles are cached with
// write-back to a blob store.
package tile

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// TileID names a grid cell. Ids start at 1 so that 0 is never a valid tile.
type TileID uint32

// Grid maps positions ({lon, lat} in degrees) to square tiles of Size
// degrees.
type Grid struct {
	Size float64
	cols int
	rows int
}

// NewGrid returns the grid of size-degree tiles. Size must divide the globe
// into at most 2^32-1 tiles.
func NewGrid(size float64) (Grid, error) {
	if !(size > 0) || size > 180 {
		return Grid{}, fmt.Errorf("tile: invalid grid size %v", size)
	}
	cols, rows := math.Ceil(360/size), math.Ceil(180/size)
	if cols*rows >= math.MaxUint32 {
		return Grid{}, fmt.Errorf("tile: grid size %v yields too many tiles", size)
	}
	return Grid{Size: size, cols: int(cols), rows: int(rows)}, nil
}

func (g Grid) id(row, col int) TileID { return TileID(row*g.cols + col + 1) }

func (g Grid) cell(id TileID) (row, col int) {
	n := int(id) - 1
	return n / g.cols, n % g.cols
}

// Valid reports whether id names a tile of g.
func (g Grid) Valid(id TileID) bool {
	return id >= 1 && int(id) <= g.cols*g.rows
}

// edge returns the lower border of cell i along an axis starting at origin.
func (g Grid) edge(i int, origin float64) float64 { return float64(i)*g.Size + origin }

// index returns the cell of v along an axis of n cells. It is corrected
// against edge so that TileAt and Bound agree on points near a border.
func (g Grid) index(v, origin float64, n int) int {
	i := min(max(int(math.Floor((v-origin)/g.Size)), 0), n-1)
	for i > 0 && v < g.edge(i, origin) {
		i--
	}
	for i < n-1 && v >= g.edge(i+1, origin) {
		i++
	}
	return i
}

// TileAt returns the tile containing p. Positions outside the valid range are
// clamped to the border tiles.
func (g Grid) TileAt(p orb.Point) TileID {
	return g.id(g.index(p.Lat(), -90, g.rows), g.index(p.Lon(), -180, g.cols))
}

// Bound returns the area covered by id.
func (g Grid) Bound(id TileID) orb.Bound {
	row, col := g.cell(id)
	return orb.Bound{
		Min: orb.Point{g.edge(col, -180), g.edge(row, -90)},
		Max: orb.Point{min(g.edge(col+1, -180), 180), min(g.edge(row+1, -90), 90)},
	}
}

// Neighbours returns the up to eight tiles around id. Longitude wraps around
// the antimeridian; there is nothing beyond the poles.
func (g Grid) Neighbours(id TileID) []TileID {
	row, col := g.cell(id)
	out := make([]TileID, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		r := row + dr
		if r < 0 || r >= g.rows {
			continue
		}
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			c := (col + dc + g.cols) % g.cols
			if n := g.id(r, c); n != id && !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
	}
	return out
}

// Cover returns every tile intersecting b.
func (g Grid) Cover(b orb.Bound) []TileID {
	lo, hi := g.TileAt(b.Min), g.TileAt(b.Max)
	r0, c0 := g.cell(lo)
	r1, c1 := g.cell(hi)
	var out []TileID
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			out = append(out, g.id(r, c))
		}
	}
	return out
}
