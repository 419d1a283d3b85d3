package shadow

import (
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
)

// cubeFaces are the GL cube map face directions and up vectors in
// +X, -X, +Y, -Y, +Z, -Z order.
var cubeFaces = [6]struct{ dir, up mgl32.Vec3 }{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}},
}

// CubeLightShadowMap renders a point light into the six faces of a cube
// texture.
type CubeLightShadowMap struct {
	baseShadowMap
}

func NewCubeLightShadowMap(light *core.LightInfo, params *ShadowMapParams, reg *Registry) *CubeLightShadowMap {
	m := &CubeLightShadowMap{}
	m.init(m, m, light, params, reg)
	return m
}

// FaceView returns the view matrix of cube face i.
func (m *CubeLightShadowMap) FaceView(i int) mgl32.Mat4 {
	pos := m.light.Position()
	f := cubeFaces[i]
	return mgl32.LookAtV(pos, pos.Add(f.dir), f.up)
}

func (m *CubeLightShadowMap) renderMap(scene render.SceneManager, diffuse *render.SceneRenderState) error {
	dev := diffuse.Device()
	size := m.BestTexSize(dev, 1)
	if err := m.allocTexture(dev, size, size, gfx.TextureCube); err != nil {
		return err
	}

	restore := gfx.SaveState(dev)
	defer restore()

	params := core.PerspectiveParams(mgl32.DegToRad(90), 1, 0.1, m.light.Range)
	m.worldToLightProj = m.light.Transform.Inv()
	for i := range cubeFaces {
		if err := m.beginTarget(dev, i); err != nil {
			return err
		}
		m.drawView(scene, diffuse, params, m.FaceView(i), fullViewport(size, size), render.ShadowTypeMask)
		m.endTarget(dev)
	}
	return nil
}

func (m *CubeLightShadowMap) setMapParameters(params *gfx.ShaderConstBuffer, lsc *LightingShaderConstants) {
}
