package shadow

import "github.com/gekko3d/umbra/lightrt/rt/render"

// ShadowRenderPassManager is the render pass shadow maps draw into. Mesh,
// interior and terrain instances only get in with a shadow casting, opaque
// material.
type ShadowRenderPassManager struct {
	*render.PassManager
}

func NewShadowRenderPassManager() *ShadowRenderPassManager {
	return &ShadowRenderPassManager{PassManager: render.NewPassManager("shadow", castsShadow)}
}

func castsShadow(inst *render.RenderInst) bool {
	switch inst.Type {
	case render.InstMesh, render.InstInterior, render.InstTerrain:
		def := inst.Material.Definition()
		return def != nil && def.CastShadows && !def.Translucent
	}
	return true
}
