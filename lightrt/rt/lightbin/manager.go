package lightbin

import (
	"errors"
	"fmt"
	"math"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/gekko3d/umbra/lightrt/rt/scene"
	"github.com/gekko3d/umbra/lightrt/rt/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// Lights at or below this brightness contribute nothing and are not drawn.
const minBrightness = 0.001

var ErrUnsupportedLight = errors.New("lightbin: unsupported light type")

// LightBinEntry is one light queued for this frame.
type LightBinEntry struct {
	Light     *core.LightInfo
	ShadowMap shadow.LightShadowMap
	// ShadowType is ShadowTypeNone unless ShadowMap holds a texture to sample.
	ShadowType shadow.ShadowType
	Material   *LightMaterialInfo

	VB       gfx.VertexBuffer
	PB       gfx.PrimitiveBuffer
	NumVerts int
	NumPrims int
}

// RenderStats describes the last Render call.
type RenderStats struct {
	Lights      int
	Skipped     int
	SunDrawn    bool
	SunShadowed bool
}

type lightMatKey struct {
	lightType  core.LightType
	shadowType shadow.ShadowType
}

type Option func(*AdvancedLightBinManager)

func WithLogger(log core.Logger) Option {
	return func(m *AdvancedLightBinManager) { m.log = log }
}

// WithMaterialManager overrides where light material definitions are looked
// up. It defaults to the shadow registry's manager.
func WithMaterialManager(mm *render.MaterialManager) Option {
	return func(m *AdvancedLightBinManager) { m.materials = mm }
}

func WithFilterMode(mode shadow.FilterMode) Option {
	return func(m *AdvancedLightBinManager) { m.filter = mode }
}

// WithSSAOMask makes the sun pass modulate ambient light by tex.
func WithSSAOMask(tex gfx.Texture) Option {
	return func(m *AdvancedLightBinManager) { m.ssaoMask = tex }
}

// WithPSSMDebugRender tints each PSSM split in the sun pass.
func WithPSSMDebugRender(on bool) Option {
	return func(m *AdvancedLightBinManager) { m.pssmDebug = on }
}

// AdvancedLightBinManager accumulates the lighting of every queued light
// into the light buffer. The sun is drawn as a full screen quad; point and
// spot lights draw their volume meshes.
type AdvancedLightBinManager struct {
	dev       gfx.Device
	shadows   *shadow.ShadowMapManager
	materials *render.MaterialManager
	log       core.Logger

	filter    shadow.FilterMode
	ssaoMask  gfx.Texture
	pssmDebug bool

	entries  []*LightBinEntry
	matCache map[lightMatKey]*LightMaterialInfo

	sphere *scene.Mesh
	cone   *scene.Mesh

	lightBuffer gfx.Texture
	target      *gfx.TextureTarget
	texEventID  core.SignalID

	renderComplete core.Signal[gfx.Texture]
	stats          RenderStats
}

func NewAdvancedLightBinManager(dev gfx.Device, shadows *shadow.ShadowMapManager, opts ...Option) *AdvancedLightBinManager {
	m := &AdvancedLightBinManager{
		dev:      dev,
		shadows:  shadows,
		log:      core.NewNopLogger(),
		filter:   shadow.FilterSoftShadow,
		matCache: make(map[lightMatKey]*LightMaterialInfo),
		target:   gfx.NewTextureTarget("light buffer"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.materials == nil {
		m.materials = shadows.Registry().Materials()
	}
	m.texEventID = dev.Textures().Events().Notify(m.onTextureEvent, 0)
	return m
}

// Close releases the light buffer and stops listening for device loss.
func (m *AdvancedLightBinManager) Close() {
	m.dev.Textures().Events().Remove(m.texEventID)
	m.releaseLightBuffer()
	m.entries = nil
}

func (m *AdvancedLightBinManager) onTextureEvent(ev gfx.TextureEvent) {
	if ev == gfx.TextureZombify {
		m.releaseLightBuffer()
	}
}

func (m *AdvancedLightBinManager) releaseLightBuffer() {
	if m.lightBuffer != nil {
		m.lightBuffer.Release()
		m.lightBuffer = nil
	}
	m.target.AttachTexture(gfx.Color0, nil, 0)
}

// LightBuffer is the accumulation target of the last Render, or nil.
func (m *AdvancedLightBinManager) LightBuffer() gfx.Texture { return m.lightBuffer }

// RenderCompleteSignal fires with the light buffer after every Render.
func (m *AdvancedLightBinManager) RenderCompleteSignal() *core.Signal[gfx.Texture] {
	return &m.renderComplete
}

func (m *AdvancedLightBinManager) Stats() RenderStats { return m.stats }

func (m *AdvancedLightBinManager) Entries() []*LightBinEntry { return m.entries }

func (m *AdvancedLightBinManager) Clear() { m.entries = m.entries[:0] }

func (m *AdvancedLightBinManager) sphereMesh() *scene.Mesh {
	if m.sphere == nil {
		m.sphere = SphereMesh()
	}
	return m.sphere
}

func (m *AdvancedLightBinManager) coneMesh() *scene.Mesh {
	if m.cone == nil {
		m.cone = ConeMesh()
	}
	return m.cone
}

// AddLight queues a point or spot light. Point lights go to the front of
// the bin and spot lights to the back so draws of the same mesh batch up.
func (m *AdvancedLightBinManager) AddLight(light *core.LightInfo) error {
	var mesh *scene.Mesh
	switch light.Type {
	case core.LightTypePoint:
		mesh = m.sphereMesh()
	case core.LightTypeSpot:
		mesh = m.coneMesh()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedLight, light.Type)
	}
	vb, pb, err := mesh.Buffers(m.dev)
	if err != nil {
		return fmt.Errorf("light volume for %s: %w", light.ID, err)
	}

	e := &LightBinEntry{
		Light:    light,
		VB:       vb,
		PB:       pb,
		NumVerts: len(mesh.Verts),
		NumPrims: mesh.PrimCount(),
	}
	if light.CastShadows {
		if p := shadow.ParamsFor(light); p != nil {
			e.ShadowMap = p.ShadowMap()
		}
	}
	e.ShadowType = m.sampledShadowType(e.ShadowMap)
	e.Material = m.LightMaterial(light.Type, e.ShadowType)

	if light.Type == core.LightTypePoint {
		m.entries = append([]*LightBinEntry{e}, m.entries...)
	} else {
		m.entries = append(m.entries, e)
	}
	return nil
}

// sampledShadowType is the shadow variant a light material may use for sm.
// Maps without a texture, and every map while shadows are disabled, light
// unshadowed.
func (m *AdvancedLightBinManager) sampledShadowType(sm shadow.LightShadowMap) shadow.ShadowType {
	if sm == nil || !sm.HasShadowTex() || m.shadows.Settings().DisableShadows {
		return shadow.ShadowTypeNone
	}
	return sm.ShadowType()
}

// CollectLights refills the bin with every active point and spot light of
// lm and returns how many were queued.
func (m *AdvancedLightBinManager) CollectLights(lm core.LightManager) int {
	m.Clear()
	for _, l := range lm.ActiveLights() {
		if l.Type != core.LightTypePoint && l.Type != core.LightTypeSpot {
			continue
		}
		if err := m.AddLight(l); err != nil {
			m.log.Warnf("light bin: %v", err)
		}
	}
	return len(m.entries)
}

// LightMaterial returns the material for lights of lightType shadowed with
// shadowType. Failures are cached as nil so they are reported once.
func (m *AdvancedLightBinManager) LightMaterial(lightType core.LightType, shadowType shadow.ShadowType) *LightMaterialInfo {
	key := lightMatKey{lightType, shadowType}
	if info, ok := m.matCache[key]; ok {
		return info
	}
	info := m.buildLightMaterial(lightType, shadowType)
	m.matCache[key] = info
	return info
}

func lightMaterialName(t core.LightType) string {
	switch t {
	case core.LightTypeVector:
		return VectorLightMaterialName
	case core.LightTypePoint:
		return PointLightMaterialName
	case core.LightTypeSpot:
		return SpotLightMaterialName
	}
	return ""
}

func (m *AdvancedLightBinManager) buildLightMaterial(lightType core.LightType, shadowType shadow.ShadowType) *LightMaterialInfo {
	name := lightMaterialName(lightType)
	if name == "" {
		m.log.Errorf("light bin: no light material for %s lights", lightType)
		return nil
	}
	mat, err := m.materials.CreateInstance(name, m.dev)
	if err != nil {
		m.log.Errorf("light bin: failed to find light material: %v", err)
		return nil
	}
	for _, macro := range m.lightMacros(lightType, shadowType) {
		mat.AddShaderMacro(macro.Name, macro.Value)
	}
	if err := mat.Init(mat.Definition().Features); err != nil {
		m.log.Errorf("light bin: %v", err)
		return nil
	}
	m.log.Debugf("light bin: built %s", mat)
	return newLightMaterialInfo(mat, m.shadows.Registry().ShaderConstants())
}

func (m *AdvancedLightBinManager) lightMacros(lightType core.LightType, shadowType shadow.ShadowType) []gfx.Macro {
	var macros []gfx.Macro
	add := func(name string) { macros = append(macros, gfx.Macro{Name: name}) }

	switch shadowType {
	case shadow.ShadowTypeNone:
		add("NO_SHADOW")
	case shadow.ShadowTypeParaboloid:
		add("SHADOW_PARABOLOID")
	case shadow.ShadowTypeDualParaboloidSinglePass:
		add("SHADOW_DUALPARABOLOID_SINGLE_PASS")
	case shadow.ShadowTypeDualParaboloid:
		add("SHADOW_DUALPARABOLOID")
	case shadow.ShadowTypeCubeMap:
		add("SHADOW_CUBE")
	case shadow.ShadowTypePSSM:
		if m.pssmDebug {
			add("PSSM_DEBUG_RENDER")
		}
	}

	if shadowType != shadow.ShadowTypeNone {
		switch m.filter {
		case shadow.FilterSoftShadowHighQuality:
			add("SOFTSHADOW")
			if m.dev.PixelShaderVersion() >= 3.0 {
				add("SOFTSHADOW_HIGH_QUALITY")
			}
		case shadow.FilterSoftShadow:
			add("SOFTSHADOW")
		}
	}

	if lightType == core.LightTypeVector && m.ssaoMask != nil {
		add("USE_SSAO_MASK")
	}
	return macros
}

func (m *AdvancedLightBinManager) FilterMode() shadow.FilterMode { return m.filter }

// SetShadowFilterMode rebuilds every light material when the mode changes.
func (m *AdvancedLightBinManager) SetShadowFilterMode(mode shadow.FilterMode) {
	if mode == m.filter {
		return
	}
	m.filter = mode
	m.rebuildMaterials()
}

func (m *AdvancedLightBinManager) SetPSSMDebugRender(on bool) {
	if on == m.pssmDebug {
		return
	}
	m.pssmDebug = on
	m.rebuildMaterials()
}

func (m *AdvancedLightBinManager) SetSSAOMask(tex gfx.Texture) {
	hadMask := m.ssaoMask != nil
	m.ssaoMask = tex
	if hadMask != (tex != nil) {
		m.rebuildMaterials()
	}
}

func (m *AdvancedLightBinManager) rebuildMaterials() {
	clear(m.matCache)
	for _, e := range m.entries {
		e.Material = m.LightMaterial(e.Light.Type, e.ShadowType)
	}
}

// MaterialCacheLen is the number of cached (light type, shadow type) pairs.
func (m *AdvancedLightBinManager) MaterialCacheLen() int { return len(m.matCache) }

func (m *AdvancedLightBinManager) ensureLightBuffer(vp gfx.Rect) error {
	w, h := uint32(max(vp.Width, 1)), uint32(max(vp.Height, 1))
	if m.lightBuffer != nil && !m.lightBuffer.Released() &&
		m.lightBuffer.Width() == w && m.lightBuffer.Height() == h {
		return nil
	}
	m.releaseLightBuffer()
	tex, err := m.dev.Textures().Create(gfx.TextureDesc{
		Label:   "light buffer",
		Width:   w,
		Height:  h,
		Format:  gfx.FormatRGBA8,
		Profile: gfx.LightBufferProfile,
	})
	if err != nil {
		return fmt.Errorf("light buffer: %w", err)
	}
	m.lightBuffer = tex
	m.target.AttachTexture(gfx.Color0, tex, 0)
	return nil
}

// Render draws the sun and every queued light into the light buffer.
func (m *AdvancedLightBinManager) Render(state *render.SceneRenderState) error {
	m.stats = RenderStats{}
	dev := state.Device()
	if err := m.ensureLightBuffer(state.Viewport()); err != nil {
		m.log.Errorf("light bin: %v", err)
		return err
	}

	restore := gfx.SaveState(dev)
	dev.PushActiveRenderTarget()
	dev.SetActiveRenderTarget(m.target)
	dev.Clear(gfx.ClearTarget, mgl32.Vec4{}, 1, 0)

	if lm := state.SceneManager().LightManager(); lm != nil {
		if sun := lm.SpecialLight(core.SunLight); sun != nil {
			m.renderSun(state, sun)
		}
	}

	view := state.Frustum().ViewMatrix()
	proj := state.Frustum().Projection()
	for _, e := range m.entries {
		if e.Light.Brightness <= minBrightness || e.Material == nil {
			m.stats.Skipped++
			continue
		}
		m.renderEntry(state, e, view, proj)
		m.stats.Lights++
	}

	m.shadows.SetLightShadowMap(nil)
	dev.PopActiveRenderTarget()
	restore()
	m.renderComplete.Trigger(m.lightBuffer)
	return nil
}

func (m *AdvancedLightBinManager) renderSun(state *render.SceneRenderState, sun *core.LightInfo) {
	dev := state.Device()
	shadowType := shadow.ShadowTypeNone
	var sm shadow.LightShadowMap
	if sun.CastShadows && !state.IsReflectPass() {
		m.shadows.SetLightShadowMapForLight(sun)
		if cur := m.shadows.CurrentShadowMap(); m.sampledShadowType(cur) != shadow.ShadowTypeNone {
			sm = cur
			shadowType = shadow.ShadowTypePSSM
		}
	}
	if sm == nil {
		m.shadows.SetLightShadowMap(nil)
	}
	info := m.LightMaterial(core.LightTypeVector, shadowType)
	if info == nil {
		return
	}

	f := state.Frustum()
	vb, err := dev.CreateVertexBuffer(farFrustumQuad(f.Points(), f.Position()))
	if err != nil {
		m.log.Errorf("light bin: far frustum quad: %v", err)
		return
	}
	defer vb.Release()

	ident := mgl32.Ident4()
	dev.SetWorldMatrix(ident)
	dev.SetViewMatrix(ident)
	dev.SetProjectionMatrix(ident)
	ms := &render.MatrixSet{World: ident, View: ident, Proj: ident}
	sg := render.NewSceneData(render.BinLightInfo)
	sg.Lights[0] = sun

	mat := info.Material()
	for mat.SetupPass(state, sg) {
		mat.SetTransforms(ms, state)
		mat.SetSceneInfo(state, sg)
		info.SetViewParameters(state)
		info.SetLightParameters(sun)
		m.bindShadow(info, sm)
		if m.ssaoMask != nil {
			dev.SetTexture(SSAOMaskRegister, m.ssaoMask)
		}
		dev.SetVertexBuffer(vb)
		dev.DrawPrimitive(gfx.TriangleStrip, 0, 2)
	}
	m.stats.SunDrawn = true
	m.stats.SunShadowed = sm != nil
}

func (m *AdvancedLightBinManager) renderEntry(state *render.SceneRenderState, e *LightBinEntry, view, proj mgl32.Mat4) {
	dev := state.Device()
	var bound shadow.LightShadowMap
	if e.ShadowType != shadow.ShadowTypeNone {
		bound = e.ShadowMap
	}
	m.shadows.SetLightShadowMap(bound)

	world := volumeTransform(e.Light)
	dev.SetWorldMatrix(world)
	dev.SetViewMatrix(view)
	dev.SetProjectionMatrix(proj)
	ms := &render.MatrixSet{World: world, View: view, Proj: proj}
	sg := render.NewSceneData(render.BinLightInfo)
	sg.ObjTrans = world
	sg.Lights[0] = e.Light

	if e.ShadowMap != nil {
		e.ShadowMap.PreLightRender()
	}
	mat := e.Material.Material()
	for mat.SetupPass(state, sg) {
		mat.SetTransforms(ms, state)
		mat.SetSceneInfo(state, sg)
		e.Material.SetViewParameters(state)
		e.Material.SetLightParameters(e.Light)
		m.bindShadow(e.Material, bound)
		dev.SetVertexBuffer(e.VB)
		dev.SetPrimitiveBuffer(e.PB)
		dev.DrawIndexedPrimitive(gfx.TriangleList, 0, e.NumVerts, 0, e.NumPrims)
	}
	if e.ShadowMap != nil {
		e.ShadowMap.PostLightRender()
	}
}

func (m *AdvancedLightBinManager) bindShadow(info *LightMaterialInfo, sm shadow.LightShadowMap) {
	if sm == nil {
		return
	}
	lsc := info.Constants()
	sm.SetShaderParameters(info.Material().ConstBuffer(), lsc)
	sm.SetTextureStage(shadow.TexDynamicLight, lsc)
	if reg := lsc.TapRotationTexSC.SamplerRegister(); reg >= 0 {
		m.dev.SetTexture(reg, m.shadows.TapRotationTex())
	}
}

// volumeTransform scales the unit light mesh to cover the light's range.
func volumeTransform(l *core.LightInfo) mgl32.Mat4 {
	if l.Type == core.LightTypeSpot {
		r := l.Range * float32(math.Tan(float64(mgl32.DegToRad(l.OuterConeAngle))/2))
		return l.Transform.Mul4(mgl32.Scale3D(r, l.Range, r))
	}
	p := l.Position()
	return mgl32.Translate3D(p.X(), p.Y(), p.Z()).Mul4(mgl32.Scale3D(l.Range, l.Range, l.Range))
}
