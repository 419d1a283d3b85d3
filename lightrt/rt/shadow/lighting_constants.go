package shadow

import (
	"sync"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
)

// Shader constant names shared by the shadow and lighting shaders.
const (
	ConstShadowMap          = "$shadowMap"
	ConstShadowMapSize      = "$shadowMapSize"
	ConstTapRotationTex     = "$gTapRotationTex"
	ConstShadowSoftness     = "$shadowSoftness"
	ConstWorldToLightProj   = "$worldToLightProj"
	ConstViewToLightProj    = "$viewToLightProj"
	ConstShadowMapScale     = "$shadowMapScale"
	ConstShadowMapOffset    = "$shadowMapOffset"
	ConstScaleX             = "$scaleX"
	ConstScaleY             = "$scaleY"
	ConstOffsetX            = "$offsetX"
	ConstOffsetY            = "$offsetY"
	ConstAtlasXOffset       = "$atlasXOffset"
	ConstAtlasYOffset       = "$atlasYOffset"
	ConstAtlasScale         = "$atlasScale"
	ConstFadeStartLength    = "$fadeStartLength"
	ConstFarPlaneScalePSSM  = "$farPlaneScalePSSM"
	ConstOverDarkPSSM       = "$overDarkPSSM"
	ConstSplitFade          = "$splitFade"
	ConstLightParams        = "$lightParams"
	ConstLightPosition      = "$lightPosition"
	ConstLightDirection     = "$lightDirection"
	ConstLightColor         = "$lightColor"
	ConstLightBrightness    = "$lightBrightness"
	ConstLightInvSqrRange   = "$lightInvSqrRange"
	ConstLightRange         = "$lightRange"
	ConstLightSpotParams    = "$lightSpotParams"
	ConstLightAmbient       = "$lightAmbient"
	ConstLightTrilight      = "$lightTrilight"
	ConstAttenuationRatio   = "$attenuationRatio"
	ConstFarPlane           = "$farPlane"
	ConstVSFarPlane         = "$vsFarPlane"
	ConstNegFarPlaneDotEye  = "$negFarPlaneDotEye"
	ConstZNearFarInvNearFar = "$zNearFarInvNearFar"
)

// Sampler registers used by the lighting shaders.
const (
	ShadowMapRegister   = 1
	TapRotationRegister = 2
	LightInfoRegister   = 3
)

// LightingConstantDescs declares every lighting constant; light materials
// add it to their definition.
func LightingConstantDescs() []gfx.ConstDesc {
	return []gfx.ConstDesc{
		{Name: ConstShadowMap, Type: gfx.ConstSampler, Register: ShadowMapRegister},
		{Name: ConstTapRotationTex, Type: gfx.ConstSampler, Register: TapRotationRegister},
		{Name: ConstShadowMapSize, Type: gfx.ConstFloat2},
		{Name: ConstShadowSoftness, Type: gfx.ConstFloat},
		{Name: ConstWorldToLightProj, Type: gfx.ConstMat4},
		{Name: ConstViewToLightProj, Type: gfx.ConstMat4},
		{Name: ConstShadowMapScale, Type: gfx.ConstFloat2},
		{Name: ConstShadowMapOffset, Type: gfx.ConstFloat2},
		{Name: ConstScaleX, Type: gfx.ConstFloat4},
		{Name: ConstScaleY, Type: gfx.ConstFloat4},
		{Name: ConstOffsetX, Type: gfx.ConstFloat4},
		{Name: ConstOffsetY, Type: gfx.ConstFloat4},
		{Name: ConstAtlasXOffset, Type: gfx.ConstFloat4},
		{Name: ConstAtlasYOffset, Type: gfx.ConstFloat4},
		{Name: ConstAtlasScale, Type: gfx.ConstFloat2},
		{Name: ConstFadeStartLength, Type: gfx.ConstFloat2},
		{Name: ConstFarPlaneScalePSSM, Type: gfx.ConstFloat4},
		{Name: ConstOverDarkPSSM, Type: gfx.ConstFloat4},
		{Name: ConstSplitFade, Type: gfx.ConstFloat4},
		{Name: ConstLightParams, Type: gfx.ConstFloat4},
		{Name: ConstAttenuationRatio, Type: gfx.ConstFloat3},
	}
}

// LightingShaderConstants caches the lighting constant handles of one
// shader. The handles are looked up again after the shader reloads.
type LightingShaderConstants struct {
	mu       sync.Mutex
	shader   *gfx.Shader
	inited   bool
	reloadID core.SignalID

	ShadowMapSC         *gfx.ShaderConstHandle
	ShadowMapSizeSC     *gfx.ShaderConstHandle
	TapRotationTexSC    *gfx.ShaderConstHandle
	ShadowSoftnessConst *gfx.ShaderConstHandle
	WorldToLightProjSC  *gfx.ShaderConstHandle
	ViewToLightProjSC   *gfx.ShaderConstHandle
	ShadowMapScaleSC    *gfx.ShaderConstHandle
	ShadowMapOffsetSC   *gfx.ShaderConstHandle
	ScaleXSC            *gfx.ShaderConstHandle
	ScaleYSC            *gfx.ShaderConstHandle
	OffsetXSC           *gfx.ShaderConstHandle
	OffsetYSC           *gfx.ShaderConstHandle
	AtlasXOffsetSC      *gfx.ShaderConstHandle
	AtlasYOffsetSC      *gfx.ShaderConstHandle
	AtlasScaleSC        *gfx.ShaderConstHandle
	FadeStartLengthSC   *gfx.ShaderConstHandle
	FarPlaneScalePSSMSC *gfx.ShaderConstHandle
	OverDarkFactorPSSM  *gfx.ShaderConstHandle
	SplitFadeSC         *gfx.ShaderConstHandle
	LightParamsSC       *gfx.ShaderConstHandle
	AttenuationRatioSC  *gfx.ShaderConstHandle
}

func newLightingShaderConstants(shader *gfx.Shader) *LightingShaderConstants {
	lsc := &LightingShaderConstants{shader: shader}
	lsc.reloadID = shader.ReloadSignal().Notify(lsc.onShaderReload, 0)
	lsc.init()
	return lsc
}

func (lsc *LightingShaderConstants) onShaderReload(*gfx.Shader) {
	lsc.mu.Lock()
	defer lsc.mu.Unlock()
	lsc.inited = false
}

func (lsc *LightingShaderConstants) init() {
	s := lsc.shader
	lsc.ShadowMapSC = s.ConstHandle(ConstShadowMap)
	lsc.ShadowMapSizeSC = s.ConstHandle(ConstShadowMapSize)
	lsc.TapRotationTexSC = s.ConstHandle(ConstTapRotationTex)
	lsc.ShadowSoftnessConst = s.ConstHandle(ConstShadowSoftness)
	lsc.WorldToLightProjSC = s.ConstHandle(ConstWorldToLightProj)
	lsc.ViewToLightProjSC = s.ConstHandle(ConstViewToLightProj)
	lsc.ShadowMapScaleSC = s.ConstHandle(ConstShadowMapScale)
	lsc.ShadowMapOffsetSC = s.ConstHandle(ConstShadowMapOffset)
	lsc.ScaleXSC = s.ConstHandle(ConstScaleX)
	lsc.ScaleYSC = s.ConstHandle(ConstScaleY)
	lsc.OffsetXSC = s.ConstHandle(ConstOffsetX)
	lsc.OffsetYSC = s.ConstHandle(ConstOffsetY)
	lsc.AtlasXOffsetSC = s.ConstHandle(ConstAtlasXOffset)
	lsc.AtlasYOffsetSC = s.ConstHandle(ConstAtlasYOffset)
	lsc.AtlasScaleSC = s.ConstHandle(ConstAtlasScale)
	lsc.FadeStartLengthSC = s.ConstHandle(ConstFadeStartLength)
	lsc.FarPlaneScalePSSMSC = s.ConstHandle(ConstFarPlaneScalePSSM)
	lsc.OverDarkFactorPSSM = s.ConstHandle(ConstOverDarkPSSM)
	lsc.SplitFadeSC = s.ConstHandle(ConstSplitFade)
	lsc.LightParamsSC = s.ConstHandle(ConstLightParams)
	lsc.AttenuationRatioSC = s.ConstHandle(ConstAttenuationRatio)
	lsc.inited = true
}

// Refresh re-reads the handles if the shader reloaded since the last call.
func (lsc *LightingShaderConstants) Refresh() {
	lsc.mu.Lock()
	defer lsc.mu.Unlock()
	if !lsc.inited {
		lsc.init()
	}
}

func (lsc *LightingShaderConstants) Shader() *gfx.Shader { return lsc.shader }

func (lsc *LightingShaderConstants) release() {
	lsc.shader.ReloadSignal().Remove(lsc.reloadID)
}

// ShaderConstantsCache hands out one LightingShaderConstants per shader.
type ShaderConstantsCache struct {
	mu      sync.Mutex
	entries map[*gfx.Shader]*LightingShaderConstants
}

func NewShaderConstantsCache() *ShaderConstantsCache {
	return &ShaderConstantsCache{entries: make(map[*gfx.Shader]*LightingShaderConstants)}
}

// Get returns nil for a nil shader.
func (c *ShaderConstantsCache) Get(shader *gfx.Shader) *LightingShaderConstants {
	if shader == nil {
		return nil
	}
	c.mu.Lock()
	lsc, ok := c.entries[shader]
	if !ok {
		lsc = newLightingShaderConstants(shader)
		c.entries[shader] = lsc
	}
	c.mu.Unlock()

	lsc.Refresh()
	return lsc
}

func (c *ShaderConstantsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry and its reload subscription.
func (c *ShaderConstantsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s, lsc := range c.entries {
		lsc.release()
		delete(c.entries, s)
	}
}
