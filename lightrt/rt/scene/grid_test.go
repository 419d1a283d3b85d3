package scene

import (
	"testing"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestSpatialHashGridQueryBox(t *testing.T) {
	g := NewSpatialHashGrid(2)
	g.Insert(0, core.CubeBox(mgl32.Vec3{0, 0, 0}, 0.5))
	g.Insert(1, core.CubeBox(mgl32.Vec3{10, 0, 0}, 0.5))
	g.Insert(2, core.Box3{Min: mgl32.Vec3{-5, -5, 0}, Max: mgl32.Vec3{15, 5, 0}})
	g.Insert(3, core.EmptyBox())

	assert.Equal(t, []int{0, 2}, g.QueryBox(core.CubeBox(mgl32.Vec3{0, 0, 0}, 1), 4))
	assert.Equal(t, []int{1, 2}, g.QueryBox(core.CubeBox(mgl32.Vec3{10, 0, 0}, 1), 4))
	assert.Equal(t, []int{0, 1, 2}, g.QueryBox(core.CubeBox(mgl32.Vec3{5, 0, 0}, 100), 4))
	assert.Empty(t, g.QueryBox(core.CubeBox(mgl32.Vec3{100, 100, 100}, 1), 4))

	g.Clear()
	assert.Empty(t, g.QueryBox(core.CubeBox(mgl32.Vec3{0, 0, 0}, 100), 4))
}

func TestSpatialHashGridClipsHugeQueries(t *testing.T) {
	g := NewSpatialHashGrid(1)
	g.Insert(0, core.CubeBox(mgl32.Vec3{}, 0.25))
	// Without clipping to the inserted bounds this would walk 2e15 cells.
	huge := core.CubeBox(mgl32.Vec3{}, 1e5)
	assert.Equal(t, []int{0}, g.QueryBox(huge, 1))
}
