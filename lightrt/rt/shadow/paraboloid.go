package shadow

import (
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
)

// ParaboloidLightShadowMap covers the hemisphere in front of a point light.
// The paraboloid warp happens in the vertex shader; the projection only
// bounds depth.
type ParaboloidLightShadowMap struct {
	baseShadowMap
	scale  mgl32.Vec2
	offset mgl32.Vec2
}

func NewParaboloidLightShadowMap(light *core.LightInfo, params *ShadowMapParams, reg *Registry) *ParaboloidLightShadowMap {
	m := &ParaboloidLightShadowMap{scale: mgl32.Vec2{1, 1}}
	m.init(m, m, light, params, reg)
	return m
}

func (m *ParaboloidLightShadowMap) renderMap(scene render.SceneManager, diffuse *render.SceneRenderState) error {
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

	r := m.light.Range
	_, view := lightView(m.light, m.light.Position())
	m.worldToLightProj = m.light.Transform.Inv()
	m.drawView(scene, diffuse, core.OrthoParams(-r, r, -r, r, 1, r), view, fullViewport(size, size), render.ShadowTypeMask)
	return nil
}

func (m *ParaboloidLightShadowMap) setMapParameters(params *gfx.ShaderConstBuffer, lsc *LightingShaderConstants) {
	params.Set(lsc.ShadowMapScaleSC, m.scale)
	params.Set(lsc.ShadowMapOffsetSC, m.offset)
}

// DualParaboloidLightShadowMap stores both hemispheres of a point light
// side by side in a texture twice as wide as it is tall. The single pass
// variant splits front and back in the vertex shader.
type DualParaboloidLightShadowMap struct {
	baseShadowMap
}

func NewDualParaboloidLightShadowMap(light *core.LightInfo, params *ShadowMapParams, reg *Registry) *DualParaboloidLightShadowMap {
	m := &DualParaboloidLightShadowMap{}
	m.init(m, m, light, params, reg)
	return m
}

func (m *DualParaboloidLightShadowMap) singlePass() bool {
	return m.shadowType == ShadowTypeDualParaboloidSinglePass
}

func (m *DualParaboloidLightShadowMap) renderMap(scene render.SceneManager, diffuse *render.SceneRenderState) error {
	dev := diffuse.Device()
	size := m.BestTexSize(dev, 2)
	if err := m.allocTexture(dev, size*2, size, gfx.Texture2D); err != nil {
		return err
	}

	restore := gfx.SaveState(dev)
	defer restore()
	if err := m.beginTarget(dev, 0); err != nil {
		return err
	}
	defer m.endTarget(dev)

	r := m.light.Range
	pos := m.light.Position()
	dir := m.light.Direction()
	m.worldToLightProj = m.light.Transform.Inv()

	if m.singlePass() {
		_, view := lightView(m.light, pos.Sub(dir.Mul(r+0.01)))
		m.drawView(scene, diffuse, core.OrthoParams(-r, r, -r, r, 0.01, 2*r), view, fullViewport(size*2, size), render.ShadowTypeMask)
		return nil
	}

	_, front := lightView(m.light, pos.Sub(dir.Mul(0.01)))
	m.drawView(scene, diffuse, core.OrthoParams(-r, r, -r, r, 0.01, r), front,
		gfx.Rect{Width: int(size), Height: int(size)}, render.ShadowTypeMask)

	back := m.light.Transform
	back.SetCol(0, back.Col(0).Mul(-1))
	back.SetCol(1, back.Col(1).Mul(-1))
	back.SetCol(3, pos.Add(dir.Mul(0.01)).Vec4(1))
	m.drawView(scene, diffuse, core.OrthoParams(-r, r, -r, r, 0.01, r), core.ViewFromTransform(back),
		gfx.Rect{X: int(size), Width: int(size), Height: int(size)}, render.ShadowTypeMask)
	return nil
}

func (m *DualParaboloidLightShadowMap) setMapParameters(params *gfx.ShaderConstBuffer, lsc *LightingShaderConstants) {
	params.Set(lsc.ShadowMapScaleSC, mgl32.Vec2{0.5, 1})
	params.Set(lsc.ShadowMapOffsetSC, mgl32.Vec2{-0.5, 0})
}
