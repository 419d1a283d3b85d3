package shadow

import (
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
)

// SingleLightShadowMap renders a spot light's cone with one perspective
// projection.
type SingleLightShadowMap struct {
	baseShadowMap
}

func NewSingleLightShadowMap(light *core.LightInfo, params *ShadowMapParams, reg *Registry) *SingleLightShadowMap {
	m := &SingleLightShadowMap{}
	m.init(m, m, light, params, reg)
	return m
}

// projection covers the outer cone out to the light's range.
func (m *SingleLightShadowMap) projection() core.FrustumParams {
	fov := mgl32.DegToRad(m.light.OuterConeAngle)
	return core.PerspectiveParams(fov, 1, m.light.Range*0.01, m.light.Range)
}

func (m *SingleLightShadowMap) renderMap(scene render.SceneManager, diffuse *render.SceneRenderState) error {
	dev := diffuse.Device()
	size := m.BestTexSize(dev, 1)
	if err := m.allocTexture(dev, size, size, gfx.Texture2D); err != nil {
		return err
	}

	restore := gfx.SaveState(dev)
	defer restore()
	if err := m.beginTarget(dev, 0); err != nil {
		return err
	}
	defer m.endTarget(dev)

	_, view := lightView(m.light, m.light.Position())
	params := m.projection()
	m.worldToLightProj = params.Projection().Mul4(view)
	m.drawView(scene, diffuse, params, view, fullViewport(size, size), render.ShadowTypeMask)
	return nil
}

func (m *SingleLightShadowMap) setMapParameters(params *gfx.ShaderConstBuffer, lsc *LightingShaderConstants) {
	params.Set(lsc.ShadowMapScaleSC, mgl32.Vec2{1, 1})
	params.Set(lsc.ShadowMapOffsetSC, mgl32.Vec2{0, 0})
}
