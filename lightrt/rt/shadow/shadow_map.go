package shadow

import (
	"fmt"
	"math"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// LODNormalization converts a projected radius in pixels to a 0..1 screen
// size factor.
const LODNormalization = 600

// LightShadowMap is the shadow render resource of one light. It holds no
// texture until first rendered and drops it on ReleaseTextures.
type LightShadowMap interface {
	ID() uuid.UUID
	Light() *core.LightInfo
	ShadowType() ShadowType
	// IsViewDependent reports maps whose content follows the camera. They
	// are not subject to the screen-size LOD skip.
	IsViewDependent() bool

	Render(scene render.SceneManager, diffuse *render.SceneRenderState) error
	ReleaseTextures()
	HasShadowTex() bool
	Texture() gfx.Texture
	TexSize() uint32
	BestTexSize(dev gfx.Device, scale uint32) uint32

	UpdatePriority(state *render.SceneRenderState, nowMs uint32)
	LastUpdate() uint32
	LastPriority() float32
	LastScreenSize() float32

	PreLightRender()
	PostLightRender()
	WasOccluded() bool

	SetTextureStage(flag TextureFlag, lsc *LightingShaderConstants) bool
	SetShaderParameters(params *gfx.ShaderConstBuffer, lsc *LightingShaderConstants)
	WorldToLightProj() mgl32.Mat4

	// ShadowMaterial maps a scene material to the variant that renders
	// depth for this map's shadow type.
	ShadowMaterial(mat *render.MatInstance) *render.MatInstance

	Destroy()
}

// mapRenderer is the per-variant part of a shadow map.
type mapRenderer interface {
	renderMap(scene render.SceneManager, diffuse *render.SceneRenderState) error
	setMapParameters(params *gfx.ShaderConstBuffer, lsc *LightingShaderConstants)
}

type baseShadowMap struct {
	id            uuid.UUID
	light         *core.LightInfo
	params        *ShadowMapParams
	reg           *Registry
	impl          mapRenderer
	self          LightShadowMap
	shadowType    ShadowType
	viewDependent bool

	dev              gfx.Device
	texSize          uint32
	worldToLightProj mgl32.Mat4
	shadowTex        gfx.Texture
	depthTex         gfx.Texture
	target           *gfx.TextureTarget

	lastUpdate     uint32
	lastPriority   float32
	lastScreenSize float32

	vizQuery    gfx.OcclusionQuery
	queryTried  bool
	wasOccluded bool
}

func (b *baseShadowMap) init(self LightShadowMap, impl mapRenderer, light *core.LightInfo, params *ShadowMapParams, reg *Registry) {
	b.id = uuid.New()
	b.self = self
	b.impl = impl
	b.light = light
	b.params = params
	b.reg = reg
	b.shadowType = params.ShadowType
	b.worldToLightProj = mgl32.Ident4()
	b.target = gfx.NewTextureTarget(fmt.Sprintf("shadow:%s", b.id))
	reg.register(self)
}

func (b *baseShadowMap) ID() uuid.UUID           { return b.id }
func (b *baseShadowMap) Light() *core.LightInfo  { return b.light }
func (b *baseShadowMap) ShadowType() ShadowType  { return b.shadowType }
func (b *baseShadowMap) IsViewDependent() bool   { return b.viewDependent }
func (b *baseShadowMap) Texture() gfx.Texture    { return b.shadowTex }
func (b *baseShadowMap) TexSize() uint32         { return b.texSize }
func (b *baseShadowMap) LastUpdate() uint32      { return b.lastUpdate }
func (b *baseShadowMap) LastPriority() float32   { return b.lastPriority }
func (b *baseShadowMap) LastScreenSize() float32 { return b.lastScreenSize }
func (b *baseShadowMap) WasOccluded() bool       { return b.wasOccluded }

func (b *baseShadowMap) WorldToLightProj() mgl32.Mat4 { return b.worldToLightProj }

func (b *baseShadowMap) HasShadowTex() bool {
	return b.shadowTex != nil && !b.shadowTex.Released()
}

// Render draws the map, stamps the update time and marks the map used.
func (b *baseShadowMap) Render(scene render.SceneManager, diffuse *render.SceneRenderState) error {
	dev := diffuse.Device()
	b.dev = dev
	if !b.queryTried {
		b.queryTried = true
		q, err := dev.CreateOcclusionQuery()
		if err != nil {
			b.reg.log.Warnf("shadow map %s: no occlusion query, light is never culled: %v", b.id, err)
		} else {
			b.vizQuery = q
		}
	}

	if err := b.impl.renderMap(scene, diffuse); err != nil {
		return fmt.Errorf("render %s shadow for light %s: %w", b.shadowType, b.light.ID, err)
	}

	b.lastUpdate = b.reg.NowMs()
	if !b.reg.IsUsed(b.self) {
		b.reg.markUsed(b.self)
	}
	return nil
}

// ReleaseTextures is idempotent and safe during device loss.
func (b *baseShadowMap) ReleaseTextures() {
	if b.shadowTex != nil {
		b.shadowTex.Release()
		b.shadowTex = nil
	}
	if b.depthTex != nil {
		b.depthTex.Release()
		b.depthTex = nil
	}
	b.target.AttachTexture(gfx.Color0, nil, 0)
	b.target.AttachTexture(gfx.DepthStencil, nil, 0)
	b.lastUpdate = 0
	b.reg.unmarkUsed(b.self)
}

func (b *baseShadowMap) Destroy() {
	b.ReleaseTextures()
	if b.vizQuery != nil {
		b.vizQuery.Release()
		b.vizQuery = nil
	}
	b.reg.unregister(b.self)
}

// UpdatePriority scores the map for scheduling. Larger on-screen size and
// longer staleness both raise the score; the light's own priority scales it.
func (b *baseShadowMap) UpdatePriority(state *render.SceneRenderState, nowMs uint32) {
	if b.light.Type == core.LightTypeVector {
		b.lastScreenSize = math.MaxFloat32
		b.lastPriority = math.MaxFloat32
		return
	}

	camPos := state.CameraPosition()
	var dist float32
	if b.light.Type == core.LightTypeSpot {
		pos := b.light.Position()
		end := pos.Add(b.light.Direction().Mul(b.light.Range))
		closest := core.ClosestPointOnSegment(pos, end, camPos)
		dist = camPos.Sub(closest).Len() - b.light.Range*core.Sin(b.light.OuterConeAngle/2)
	} else {
		dist = camPos.Sub(b.light.Position()).Len() - b.light.Range
	}
	if dist < 0 {
		dist = 0
	}

	b.lastScreenSize = state.ProjectRadius(dist, b.light.Range)
	sizeFactor := core.Clamp(b.lastScreenSize/LODNormalization, 0, 1)

	var since float32
	if nowMs > b.lastUpdate {
		since = float32(nowMs - b.lastUpdate)
	}
	b.lastPriority = (sizeFactor + since) * b.light.Priority
}

// BestTexSize picks the texture size for this frame. scale is the number
// of texSize-wide tiles the texture holds horizontally.
func (b *baseShadowMap) BestTexSize(dev gfx.Device, scale uint32) uint32 {
	size := float32(b.params.TexSize)
	if !b.viewDependent {
		size *= min(1, b.lastScreenSize/LODNormalization)
	}
	if scale == 0 {
		scale = 1
	}
	best := min(core.NextPow2(uint32(size)), dev.MaxTextureSize()/scale)
	return max(best, MinTexSize)
}

// allocTexture makes sure a w×h shadow texture of kind exists, keeping the
// current one when it already matches.
func (b *baseShadowMap) allocTexture(dev gfx.Device, w, h uint32, kind gfx.TextureKind) error {
	if b.HasShadowTex() {
		d := b.shadowTex.Desc()
		if d.Width == w && d.Height == h && d.Kind == kind {
			return nil
		}
		b.shadowTex.Release()
		b.shadowTex = nil
	}

	tex, err := dev.Textures().Create(gfx.TextureDesc{
		Label:   fmt.Sprintf("shadow %s %s", b.shadowType, b.id),
		Width:   w,
		Height:  h,
		Format:  gfx.FormatR32F,
		Kind:    kind,
		Profile: gfx.ShadowMapProfile,
	})
	if err != nil {
		return err
	}
	b.shadowTex = tex
	b.texSize = h
	return nil
}

// beginTarget binds the shadow texture (face for cube maps) with a pooled
// depth buffer of the same size.
func (b *baseShadowMap) beginTarget(dev gfx.Device, face int) error {
	w, h := b.shadowTex.Width(), b.shadowTex.Height()
	if b.depthTex == nil || b.depthTex.Width() != w || b.depthTex.Height() != h {
		if b.depthTex != nil {
			b.depthTex.Release()
		}
		depth, err := dev.Textures().Create(gfx.TextureDesc{
			Label:   "shadow depth",
			Width:   w,
			Height:  h,
			Format:  gfx.FormatD32F,
			Profile: gfx.ShadowMapZProfile,
		})
		if err != nil {
			b.depthTex = nil
			return err
		}
		b.depthTex = depth
	}

	b.target.AttachTexture(gfx.Color0, b.shadowTex, face)
	b.target.AttachTexture(gfx.DepthStencil, b.depthTex, 0)
	dev.PushActiveRenderTarget()
	dev.SetActiveRenderTarget(b.target)
	dev.Clear(gfx.ClearTarget|gfx.ClearZBuffer, mgl32.Vec4{1, 1, 1, 1}, 1, 0)
	return nil
}

// endTarget resolves the target and hands the depth buffer back to the pool.
func (b *baseShadowMap) endTarget(dev gfx.Device) {
	b.target.Resolve()
	dev.PopActiveRenderTarget()
	if b.depthTex != nil {
		b.depthTex.Release()
		b.depthTex = nil
	}
	b.target.AttachTexture(gfx.DepthStencil, nil, 0)
}

// renderScene draws the shadow casters with the device's current camera.
func (b *baseShadowMap) renderScene(scene render.SceneManager, diffuse *render.SceneRenderState, mask uint32) {
	dev := diffuse.Device()
	state := render.NewSceneRenderState(scene, render.PassShadow, dev, b.reg.RenderPass())
	state.SetMaterialDelegate(b.self.ShadowMaterial)
	state.SetDiffuseCameraTransform(diffuse.CameraTransform())
	state.SetWorldToScreenScale(diffuse.WorldToScreenScale())
	scene.RenderSceneNoLights(state, mask)
}

func (b *baseShadowMap) ShadowMaterial(mat *render.MatInstance) *render.MatInstance {
	hook, _ := mat.Hook(ShadowHookType).(*ShadowMaterialHook)
	if hook == nil {
		hook = newShadowMaterialHook(mat, b.reg)
		mat.AddHook(hook)
	}
	return hook.ShadowMat(b.shadowType)
}

func (b *baseShadowMap) PreLightRender() {
	if b.vizQuery == nil {
		return
	}
	b.wasOccluded = b.vizQuery.Status(false) == gfx.QueryOccluded
	b.vizQuery.Begin()
}

func (b *baseShadowMap) PostLightRender() {
	if b.vizQuery != nil {
		b.vizQuery.End()
	}
}

// SetTextureStage binds the shadow texture for the dynamic light stage.
func (b *baseShadowMap) SetTextureStage(flag TextureFlag, lsc *LightingShaderConstants) bool {
	if flag != TexDynamicLight {
		return false
	}
	if reg := lsc.ShadowMapSC.SamplerRegister(); reg >= 0 && b.dev != nil {
		b.dev.SetTexture(reg, b.shadowTex)
	}
	return true
}

func (b *baseShadowMap) SetShaderParameters(params *gfx.ShaderConstBuffer, lsc *LightingShaderConstants) {
	p := b.params
	params.Set(lsc.WorldToLightProjSC, b.worldToLightProj)
	params.Set(lsc.LightParamsSC, mgl32.Vec4{b.light.Range, p.OverDarkFactor.X(), 0, 0})
	params.Set(lsc.AttenuationRatioSC, p.AttenuationRatio)
	if b.texSize > 0 {
		params.Set(lsc.ShadowSoftnessConst, p.ShadowSoftness/float32(b.texSize))
	}
	if b.shadowTex != nil {
		params.Set(lsc.ShadowMapSizeSC, mgl32.Vec2{1 / float32(b.shadowTex.Width()), 1 / float32(b.shadowTex.Height())})
	}
	b.impl.setMapParameters(params, lsc)
}

// lightView returns the GL view matrix looking down the light's Y axis
// from pos.
func lightView(light *core.LightInfo, pos mgl32.Vec3) (mgl32.Mat4, mgl32.Mat4) {
	m := light.Transform
	m.SetCol(3, pos.Vec4(1))
	return m, core.ViewFromTransform(m)
}

// drawView renders the casters in mask seen through params from view into
// vp of the bound target.
func (b *baseShadowMap) drawView(scene render.SceneManager, diffuse *render.SceneRenderState, params core.FrustumParams, view mgl32.Mat4, vp gfx.Rect, mask uint32) {
	dev := diffuse.Device()
	dev.SetFrustum(params)
	dev.SetViewMatrix(view)
	dev.SetWorldMatrix(mgl32.Ident4())
	dev.SetViewport(vp)
	b.renderScene(scene, diffuse, mask)
}

func fullViewport(w, h uint32) gfx.Rect {
	return gfx.Rect{Width: int(w), Height: int(h)}
}
