package lightbin

import (
	"math"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/gekko3d/umbra/lightrt/rt/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// Material names looked up for each light type.
const (
	VectorLightMaterialName = "AL_VectorLightMaterial"
	PointLightMaterialName  = "AL_PointLightMaterial"
	SpotLightMaterialName   = "AL_SpotLightMaterial"
)

// SSAOMaskRegister is the sampler the vector light reads the SSAO mask from.
const SSAOMaskRegister = 4

const constSSAOMask = "$ssaoMask"

// LightParameterDescs declares the per-light and per-view constants the
// light materials read.
func LightParameterDescs() []gfx.ConstDesc {
	return []gfx.ConstDesc{
		{Name: shadow.ConstLightPosition, Type: gfx.ConstFloat3},
		{Name: shadow.ConstLightDirection, Type: gfx.ConstFloat3},
		{Name: shadow.ConstLightColor, Type: gfx.ConstFloat4},
		{Name: shadow.ConstLightBrightness, Type: gfx.ConstFloat},
		{Name: shadow.ConstLightInvSqrRange, Type: gfx.ConstFloat},
		{Name: shadow.ConstLightRange, Type: gfx.ConstFloat},
		{Name: shadow.ConstLightSpotParams, Type: gfx.ConstFloat2},
		{Name: shadow.ConstLightAmbient, Type: gfx.ConstFloat4},
		{Name: shadow.ConstLightTrilight, Type: gfx.ConstFloat4},
		{Name: shadow.ConstFarPlane, Type: gfx.ConstFloat3},
		{Name: shadow.ConstVSFarPlane, Type: gfx.ConstFloat3},
		{Name: shadow.ConstNegFarPlaneDotEye, Type: gfx.ConstFloat},
		{Name: shadow.ConstZNearFarInvNearFar, Type: gfx.ConstFloat4},
	}
}

// RegisterDefaultLightMaterials adds the three light material definitions
// to mm unless a definition with the same name already exists.
func RegisterDefaultLightMaterials(mm *render.MaterialManager) {
	consts := append(shadow.LightingConstantDescs(), LightParameterDescs()...)
	for _, name := range []string{VectorLightMaterialName, PointLightMaterialName, SpotLightMaterialName} {
		if _, ok := mm.Definition(name); ok {
			continue
		}
		c := consts
		if name == VectorLightMaterialName {
			c = append(append([]gfx.ConstDesc(nil), consts...),
				gfx.ConstDesc{Name: constSSAOMask, Type: gfx.ConstSampler, Register: SSAOMaskRegister})
		}
		mm.Register(&render.Definition{Name: name, Constants: c, CullMode: render.CullCW})
	}
}

// LightMaterialInfo is a light material compiled for one shadow type
// together with its lighting constant handles.
type LightMaterialInfo struct {
	mat *render.MatInstance
	lsc *shadow.LightingShaderConstants
}

func newLightMaterialInfo(mat *render.MatInstance, consts *shadow.ShaderConstantsCache) *LightMaterialInfo {
	return &LightMaterialInfo{mat: mat, lsc: consts.Get(mat.Shader())}
}

func (i *LightMaterialInfo) Material() *render.MatInstance { return i.mat }

func (i *LightMaterialInfo) Constants() *shadow.LightingShaderConstants {
	i.lsc.Refresh()
	return i.lsc
}

func (i *LightMaterialInfo) set(name string, v any) {
	i.mat.ConstBuffer().Set(i.mat.ShaderConstHandle(name), v)
}

// SetViewParameters uploads the camera far plane the shaders use to
// reconstruct positions from the far frustum rays.
func (i *LightMaterialInfo) SetViewParameters(state *render.SceneRenderState) {
	f := state.Frustum()
	eye := state.CameraPosition()
	pts := f.Points()

	// Plane through three far corners, normal facing the camera.
	farPlane := pts[6].Sub(pts[4]).Cross(pts[5].Sub(pts[4])).Normalize()
	if farPlane.Dot(eye.Sub(pts[4])) < 0 {
		farPlane = farPlane.Mul(-1)
	}
	farD := -farPlane.Dot(pts[4])
	i.set(shadow.ConstFarPlane, farPlane)
	i.set(shadow.ConstNegFarPlaneDotEye, -(farPlane.Dot(eye) + farD))

	// The same plane in view space is the camera's far plane.
	i.set(shadow.ConstVSFarPlane, mgl32.Vec3{0, 0, -1})

	near, far := f.Near, f.Far
	var invNear, invFar float32
	if near != 0 {
		invNear = 1 / near
	}
	if far != 0 {
		invFar = 1 / far
	}
	i.set(shadow.ConstZNearFarInvNearFar, mgl32.Vec4{near, far, invNear, invFar})
}

// SetLightParameters uploads the light's position, color and shape.
func (i *LightMaterialInfo) SetLightParameters(light *core.LightInfo) {
	i.set(shadow.ConstLightPosition, light.Position())
	i.set(shadow.ConstLightDirection, light.Direction().Normalize())
	i.set(shadow.ConstLightColor, light.Color)
	i.set(shadow.ConstLightBrightness, light.Brightness)

	switch light.Type {
	case core.LightTypeVector:
		i.set(shadow.ConstLightAmbient, light.Ambient)
		i.set(shadow.ConstLightTrilight, mgl32.Vec4{})
	case core.LightTypeSpot:
		outer := float32(math.Cos(float64(mgl32.DegToRad(light.OuterConeAngle)) / 2))
		inner := float32(math.Cos(float64(mgl32.DegToRad(light.InnerConeAngle)) / 2))
		i.set(shadow.ConstLightSpotParams, mgl32.Vec2{outer, inner - outer})
		fallthrough
	case core.LightTypePoint:
		i.set(shadow.ConstLightRange, light.Range)
		if light.Range > 0 {
			i.set(shadow.ConstLightInvSqrRange, 1/(light.Range*light.Range))
		}
	}
}
