package scene

import (
	"math"

	"github.com/gekko3d/umbra/lightrt/rt/core"
)

// DefaultCellSize suits objects a few units across.
const DefaultCellSize = 16

// SpatialHashGrid buckets object indices by the cells their world boxes
// touch. Queries are clipped to the bounds of everything inserted, so a
// camera frustum reaching far past the scene stays cheap.
type SpatialHashGrid struct {
	cellSize float32
	cells    map[uint64][]int
	bounds   core.Box3
	seen     []bool
}

func NewSpatialHashGrid(cellSize float32) *SpatialHashGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &SpatialHashGrid{
		cellSize: cellSize,
		cells:    make(map[uint64][]int),
		bounds:   core.EmptyBox(),
	}
}

func (g *SpatialHashGrid) Clear() {
	clear(g.cells)
	g.bounds = core.EmptyBox()
}

func (g *SpatialHashGrid) Insert(idx int, box core.Box3) {
	if box.IsEmpty() {
		return
	}
	g.bounds.Extend(box.Min)
	g.bounds.Extend(box.Max)
	g.visit(box, func(key uint64) {
		g.cells[key] = append(g.cells[key], idx)
	})
}

// QueryBox returns the indices whose cells overlap box, in ascending order.
// n bounds the indices that were inserted.
func (g *SpatialHashGrid) QueryBox(box core.Box3, n int) []int {
	box = intersect(box, g.bounds)
	if box.IsEmpty() {
		return nil
	}
	if cap(g.seen) < n {
		g.seen = make([]bool, n)
	}
	seen := g.seen[:n]
	clear(seen)

	g.visit(box, func(key uint64) {
		for _, idx := range g.cells[key] {
			if idx < n {
				seen[idx] = true
			}
		}
	})
	var out []int
	for idx, ok := range seen {
		if ok {
			out = append(out, idx)
		}
	}
	return out
}

func (g *SpatialHashGrid) visit(box core.Box3, fn func(key uint64)) {
	minX, maxX := g.cellIndex(box.Min.X()), g.cellIndex(box.Max.X())
	minY, maxY := g.cellIndex(box.Min.Y()), g.cellIndex(box.Max.Y())
	minZ, maxZ := g.cellIndex(box.Min.Z()), g.cellIndex(box.Max.Z())
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				fn(hashKey(x, y, z))
			}
		}
	}
}

func (g *SpatialHashGrid) cellIndex(pos float32) int {
	return int(math.Floor(float64(pos / g.cellSize)))
}

func hashKey(x, y, z int) uint64 {
	const p1 = 73856093
	const p2 = 19349663
	const p3 = 83492791
	return uint64(x*p1 ^ y*p2 ^ z*p3)
}

func intersect(a, b core.Box3) core.Box3 {
	for i := 0; i < 3; i++ {
		a.Min[i] = max(a.Min[i], b.Min[i])
		a.Max[i] = min(a.Max[i], b.Max[i])
	}
	return a
}
