package render

import (
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/go-gl/mathgl/mgl32"
)

type InstType int

const (
	InstMesh InstType = iota
	InstInterior
	InstTerrain
)

func (t InstType) String() string {
	switch t {
	case InstInterior:
		return "interior"
	case InstTerrain:
		return "terrain"
	}
	return "mesh"
}

// RenderInst is one draw submitted to a render pass.
type RenderInst struct {
	Type      InstType
	Material  *MatInstance
	World     mgl32.Mat4
	VB        gfx.VertexBuffer
	PB        gfx.PrimitiveBuffer
	PrimType  gfx.PrimitiveType
	NumVerts  int
	PrimCount int
	// SortDist is the squared distance to the camera.
	SortDist float32
}

// RenderPass collects instances during scene traversal and draws them.
type RenderPass interface {
	AddInst(inst *RenderInst)
	Render(state *SceneRenderState)
	Clear()
}
