package render

import (
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/go-gl/mathgl/mgl32"
)

type PassType int

const (
	PassDiffuse PassType = iota
	PassReflect
	PassShadow
	PassOther
)

func (p PassType) String() string {
	switch p {
	case PassDiffuse:
		return "diffuse"
	case PassReflect:
		return "reflect"
	case PassShadow:
		return "shadow"
	}
	return "other"
}

// Object type bits used as scene masks.
const (
	StaticShapeObjectType uint32 = 1 << iota
	InteriorObjectType
	TerrainObjectType
	LightObjectType
	EnvironmentObjectType

	ShadowTypeMask = StaticShapeObjectType | InteriorObjectType | TerrainObjectType
)

// MaterialDelegate maps the material an object renders with to the one
// used in this pass. Returning nil skips the object.
type MaterialDelegate func(mat *MatInstance) *MatInstance

// SceneManager is what render code needs from the scene.
type SceneManager interface {
	LightManager() core.LightManager
	PreRenderSignal() *core.Signal[*SceneRenderState]
	RenderSceneNoLights(state *SceneRenderState, objectMask uint32)
}

// SceneRenderState carries the camera and pass setup for one scene render.
type SceneRenderState struct {
	dev      gfx.Device
	scene    SceneManager
	passType PassType
	frustum  core.Frustum
	viewport gfx.Rect
	pass     RenderPass

	diffuseCamera      mgl32.Mat4
	worldToScreenScale mgl32.Vec2
	materialDelegate   MaterialDelegate
}

// NewSceneRenderState captures the camera from the device's current view,
// frustum and viewport.
func NewSceneRenderState(scene SceneManager, passType PassType, dev gfx.Device, pass RenderPass) *SceneRenderState {
	s := &SceneRenderState{
		dev:      dev,
		scene:    scene,
		passType: passType,
		frustum:  core.NewFrustum(core.TransformFromView(dev.ViewMatrix()), dev.Frustum()),
		viewport: dev.Viewport(),
		pass:     pass,
	}
	s.diffuseCamera = s.frustum.Transform
	s.worldToScreenScale = calcWorldToScreenScale(s.frustum.FrustumParams, s.viewport)
	return s
}

func calcWorldToScreenScale(p core.FrustumParams, vp gfx.Rect) mgl32.Vec2 {
	w := p.Right - p.Left
	h := p.Top - p.Bottom
	if w == 0 || h == 0 {
		return mgl32.Vec2{}
	}
	near := p.Near
	if p.Ortho {
		near = 1
	}
	return mgl32.Vec2{float32(vp.Width) * near / w, float32(vp.Height) * near / h}
}

func (s *SceneRenderState) Device() gfx.Device          { return s.dev }
func (s *SceneRenderState) SceneManager() SceneManager  { return s.scene }
func (s *SceneRenderState) PassType() PassType          { return s.passType }
func (s *SceneRenderState) IsDiffusePass() bool         { return s.passType == PassDiffuse }
func (s *SceneRenderState) IsReflectPass() bool         { return s.passType == PassReflect }
func (s *SceneRenderState) IsShadowPass() bool          { return s.passType == PassShadow }
func (s *SceneRenderState) Frustum() core.Frustum       { return s.frustum }
func (s *SceneRenderState) Viewport() gfx.Rect          { return s.viewport }
func (s *SceneRenderState) RenderPass() RenderPass      { return s.pass }
func (s *SceneRenderState) CameraTransform() mgl32.Mat4 { return s.frustum.Transform }

func (s *SceneRenderState) CameraPosition() mgl32.Vec3 { return s.frustum.Position() }

// DiffuseCameraTransform is the camera of the diffuse pass this state was
// derived from. For a diffuse pass it is the camera itself.
func (s *SceneRenderState) DiffuseCameraTransform() mgl32.Mat4 { return s.diffuseCamera }

func (s *SceneRenderState) SetDiffuseCameraTransform(m mgl32.Mat4) { s.diffuseCamera = m }

func (s *SceneRenderState) WorldToScreenScale() mgl32.Vec2 { return s.worldToScreenScale }

func (s *SceneRenderState) SetWorldToScreenScale(v mgl32.Vec2) { s.worldToScreenScale = v }

func (s *SceneRenderState) SetMaterialDelegate(d MaterialDelegate) { s.materialDelegate = d }

// OverrideMaterial applies the material delegate, if any.
func (s *SceneRenderState) OverrideMaterial(mat *MatInstance) *MatInstance {
	if s.materialDelegate == nil || mat == nil {
		return mat
	}
	return s.materialDelegate(mat)
}

// ProjectRadius returns the on-screen radius in pixels of a sphere of
// radius at dist from the camera.
func (s *SceneRenderState) ProjectRadius(dist, radius float32) float32 {
	if s.frustum.Ortho {
		return radius * s.worldToScreenScale.Y()
	}
	if dist <= 0 {
		return radius * s.worldToScreenScale.Y()
	}
	return radius / dist * s.worldToScreenScale.Y()
}

// MatrixSet holds the transforms a material needs for one draw.
type MatrixSet struct {
	World mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

func MatrixSetFromDevice(dev gfx.Device) *MatrixSet {
	return &MatrixSet{World: dev.WorldMatrix(), View: dev.ViewMatrix(), Proj: dev.ProjectionMatrix()}
}

func (m *MatrixSet) WorldViewProj() mgl32.Mat4 {
	return m.Proj.Mul4(m.View).Mul4(m.World)
}

type BinType int

const (
	BinRegular BinType = iota
	BinDeferred
	BinLightInfo
)

// SceneData is the per-draw scene info handed to materials.
type SceneData struct {
	BinType  BinType
	ObjTrans mgl32.Mat4
	Lights   [4]*core.LightInfo
	Textures map[int]gfx.Texture
}

func NewSceneData(bin BinType) *SceneData {
	return &SceneData{BinType: bin, ObjTrans: mgl32.Ident4()}
}
