// Package grid maps world positions onto the fixed claim grid.
//
// The map is a square of MapSize world units centred on the origin. Columns run
// west to east (x), rows run north to south (-z). Cell ids use spreadsheet style
// column letters followed by the row number, e.g. "A0", "Z12", "AB3".
package grid

import (
	"fmt"
	"math"

	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/logic/ids"
	"outpost.gg/internal/sim/world/logic/mathx"
)

type Options struct {
	// Offset shifts positions before flooring, in world units.
	Offset float64
	// When ExcludeUnderground is set, positions with Y below UndergroundY
	// resolve to no cell.
	ExcludeUnderground bool
	UndergroundY       float64
}

type Grid struct {
	MapSize  float64
	CellSize float64
	Rows     int
	Cols     int

	opts Options
}

func New(mapSize, cellSize float64, opts Options) (Grid, error) {
	if !(mapSize > 0) || !(cellSize > 0) || math.IsInf(mapSize, 0) {
		return Grid{}, fmt.Errorf("grid: bad dimensions map=%v cell=%v", mapSize, cellSize)
	}
	n := int(math.Ceil(mapSize / cellSize))
	if n <= 0 {
		n = 1
	}
	return Grid{MapSize: mapSize, CellSize: cellSize, Rows: n, Cols: n, opts: opts}, nil
}

func (g Grid) NumCells() int { return g.Rows * g.Cols }

func (g Grid) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < g.Rows && col < g.Cols
}

// Index is the row-major slot of (row, col); callers check InBounds first.
func (g Grid) Index(row, col int) int { return row*g.Cols + col }

func (g Grid) ID(row, col int) string {
	if !g.InBounds(row, col) {
		return ""
	}
	return ids.CellID(row, col)
}

func (g Grid) Parse(id string) (row, col int, ok bool) {
	row, col, ok = ids.ParseCellID(id)
	if !ok || !g.InBounds(row, col) {
		return 0, 0, false
	}
	return row, col, true
}

// Bounds returns the centre of a cell (Y=0) and its edge length.
func (g Grid) Bounds(row, col int) (center model.Vec3, size float64) {
	half := g.MapSize / 2
	center = model.Vec3{
		X: -half + (float64(col)+0.5)*g.CellSize - g.opts.Offset,
		Z: half - (float64(row)+0.5)*g.CellSize + g.opts.Offset,
	}
	return center, g.CellSize
}

// CellAt locates the cell under pos. It never panics and allocates nothing.
func (g Grid) CellAt(pos model.Vec3) (row, col int, ok bool) {
	if math.IsNaN(pos.Y) {
		return 0, 0, false
	}
	if g.opts.ExcludeUnderground && pos.Y < g.opts.UndergroundY {
		return 0, 0, false
	}
	return g.CellAtXZ(pos.X, pos.Z)
}

// CellAtXZ is CellAt on the map plane, ignoring height.
func (g Grid) CellAtXZ(x, z float64) (row, col int, ok bool) {
	if g.CellSize <= 0 || math.IsNaN(x) || math.IsNaN(z) {
		return 0, 0, false
	}
	row, col = g.rowCol(x, z)
	if !g.InBounds(row, col) {
		return 0, 0, false
	}
	return row, col, true
}

func (g Grid) rowCol(x, z float64) (row, col int) {
	half := g.MapSize / 2
	col = mathx.FloorToInt((x + half + g.opts.Offset) / g.CellSize)
	row = mathx.FloorToInt((half - z + g.opts.Offset) / g.CellSize)
	return row, col
}

// Span returns the inclusive row/col range of cells overlapping the square of
// half-width radius around center, clipped to the grid. ok is false when
// the square misses the grid entirely.
func (g Grid) Span(center model.Vec3, radius float64) (r0, c0, r1, c1 int, ok bool) {
	if g.CellSize <= 0 || math.IsNaN(center.X) || math.IsNaN(center.Z) || !(radius >= 0) {
		return 0, 0, 0, 0, false
	}
	r0, c0 = g.rowCol(center.X-radius, center.Z+radius)
	r1, c1 = g.rowCol(center.X+radius, center.Z-radius)
	if r1 < 0 || c1 < 0 || r0 >= g.Rows || c0 >= g.Cols {
		return 0, 0, 0, 0, false
	}
	r0 = mathx.ClampInt(r0, 0, g.Rows-1)
	c0 = mathx.ClampInt(c0, 0, g.Cols-1)
	r1 = mathx.ClampInt(r1, 0, g.Rows-1)
	c1 = mathx.ClampInt(c1, 0, g.Cols-1)
	return r0, c0, r1, c1, true
}
