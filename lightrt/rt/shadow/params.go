package shadow

import (
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const ParamsExType core.ExType = "ShadowMapParams"

const (
	MinTexSize     = 32
	MaxTexSize     = 4096
	MaxPSSMTexSize = 2048
	MaxSplits      = 4
)

// ShadowMapParams is the shadow configuration attached to a light. It owns
// the light's shadow map, created on first use.
type ShadowMapParams struct {
	light     *core.LightInfo
	reg       *Registry
	shadowMap LightShadowMap

	ShadowType           ShadowType
	AttenuationRatio     mgl32.Vec3
	TexSize              uint32
	NumSplits            uint32
	LogWeight            float32
	OverDarkFactor       mgl32.Vec4
	ShadowDistance       float32
	ShadowSoftness       float32
	FadeStartDist        float32
	SplitFadeDistances   mgl32.Vec4
	LastSplitTerrainOnly bool
}

// NewShadowMapParams returns params with default values for light. Shadow
// maps created from them register in reg; a nil reg gets a private one.
func NewShadowMapParams(light *core.LightInfo, reg *Registry) *ShadowMapParams {
	if reg == nil {
		reg = NewRegistry(nil, nil)
	}
	return &ShadowMapParams{
		light:              light,
		reg:                reg,
		ShadowType:         ShadowTypeSpot,
		AttenuationRatio:   mgl32.Vec3{0, 1, 1},
		TexSize:            512,
		NumSplits:          4,
		LogWeight:          0.91,
		OverDarkFactor:     mgl32.Vec4{2000, 1000, 500, 100},
		ShadowDistance:     400,
		ShadowSoftness:     0.15,
		SplitFadeDistances: mgl32.Vec4{10, 20, 30, 40},
	}
}

func (p *ShadowMapParams) ExType() core.ExType { return ParamsExType }

func (p *ShadowMapParams) Light() *core.LightInfo { return p.light }

// ParamsFor returns the shadow params attached to light, if any.
func ParamsFor(light *core.LightInfo) *ShadowMapParams {
	if light == nil {
		return nil
	}
	p, _ := core.GetExtended[*ShadowMapParams](light, ParamsExType)
	return p
}

// Validate corrects the shadow type for the light type and clamps sizes.
func (p *ShadowMapParams) Validate() {
	switch p.light.Type {
	case core.LightTypeSpot:
		p.ShadowType = ShadowTypeSpot
	case core.LightTypeVector:
		p.ShadowType = ShadowTypePSSM
	case core.LightTypePoint:
		if p.ShadowType < ShadowTypeParaboloid {
			p.ShadowType = ShadowTypeDualParaboloidSinglePass
		}
	}

	if p.ShadowType == ShadowTypePSSM {
		p.NumSplits = clampU32(p.NumSplits, 1, MaxSplits)
	} else {
		p.NumSplits = 1
	}

	maxTex := uint32(MaxTexSize)
	if p.ShadowType == ShadowTypePSSM && p.NumSplits == MaxSplits {
		maxTex = MaxPSSMTexSize
	}
	p.TexSize = clampU32(p.TexSize, MinTexSize, maxTex)
}

// ShadowMap returns the current map without creating one.
func (p *ShadowMapParams) ShadowMap() LightShadowMap { return p.shadowMap }

// GetOrCreateShadowMap returns nil when the light does not cast shadows.
func (p *ShadowMapParams) GetOrCreateShadowMap() LightShadowMap {
	if p.shadowMap != nil {
		return p.shadowMap
	}
	if !p.light.CastShadows {
		return nil
	}

	p.Validate()
	switch p.light.Type {
	case core.LightTypeSpot:
		p.shadowMap = NewSingleLightShadowMap(p.light, p, p.reg)
	case core.LightTypeVector:
		p.shadowMap = NewPSSMLightShadowMap(p.light, p, p.reg)
	case core.LightTypePoint:
		switch p.ShadowType {
		case ShadowTypeCubeMap:
			p.shadowMap = NewCubeLightShadowMap(p.light, p, p.reg)
		case ShadowTypeParaboloid:
			p.shadowMap = NewParaboloidLightShadowMap(p.light, p, p.reg)
		default:
			p.shadowMap = NewDualParaboloidLightShadowMap(p.light, p, p.reg)
		}
	default:
		return nil
	}
	return p.shadowMap
}

// SetShadowType changes the type and drops the map if it changed.
func (p *ShadowMapParams) SetShadowType(t ShadowType) {
	if t == p.ShadowType {
		return
	}
	p.ShadowType = t
	p.Validate()
	p.destroyShadowMap()
}

func (p *ShadowMapParams) destroyShadowMap() {
	if p.shadowMap != nil {
		p.shadowMap.Destroy()
		p.shadowMap = nil
	}
}

// Set copies the settings of another ShadowMapParams.
func (p *ShadowMapParams) Set(other core.LightInfoEx) {
	o, ok := other.(*ShadowMapParams)
	if !ok {
		return
	}
	if o.ShadowType != p.ShadowType {
		p.destroyShadowMap()
	}
	p.ShadowType = o.ShadowType
	p.AttenuationRatio = o.AttenuationRatio
	p.TexSize = o.TexSize
	p.NumSplits = o.NumSplits
	p.LogWeight = o.LogWeight
	p.OverDarkFactor = o.OverDarkFactor
	p.ShadowDistance = o.ShadowDistance
	p.ShadowSoftness = o.ShadowSoftness
	p.FadeStartDist = o.FadeStartDist
	p.SplitFadeDistances = o.SplitFadeDistances
	p.LastSplitTerrainOnly = o.LastSplitTerrainOnly
	p.Validate()
}

func (p *ShadowMapParams) PackUpdate(bs *core.BitStream) {
	bs.WriteInt(uint32(uint8(int8(p.ShadowType))), 8)
	bs.WriteVec3(p.AttenuationRatio)
	bs.WriteUint32(p.TexSize)
	bs.WriteUint32(p.NumSplits)
	bs.WriteFloat32(p.LogWeight)
	bs.WriteVec4(p.OverDarkFactor)
	bs.WriteFloat32(p.FadeStartDist)
	bs.WriteFlag(p.LastSplitTerrainOnly)
	bs.WriteVec4(p.SplitFadeDistances)
	bs.WriteFloat32(p.ShadowDistance)
	bs.WriteFloat32(p.ShadowSoftness)
}

// UnpackUpdate reads fields in PackUpdate order. A changed shadow type
// destroys the map so the next render recreates it. A truncated update is
// dropped and the current values stay.
func (p *ShadowMapParams) UnpackUpdate(bs *core.BitStream) {
	newType := ShadowType(int8(uint8(bs.ReadInt(8))))
	attenuation := bs.ReadVec3()
	texSize := bs.ReadUint32()
	numSplits := bs.ReadUint32()
	logWeight := bs.ReadFloat32()
	overDark := bs.ReadVec4()
	fadeStart := bs.ReadFloat32()
	terrainOnly := bs.ReadFlag()
	splitFade := bs.ReadVec4()
	distance := bs.ReadFloat32()
	softness := bs.ReadFloat32()
	if err := bs.Err(); err != nil {
		p.reg.log.Warnf("shadow params for %s: update dropped: %v", p.light.ID, err)
		return
	}

	if newType != p.ShadowType {
		p.ShadowType = newType
		p.destroyShadowMap()
	}
	p.AttenuationRatio = attenuation
	p.TexSize = texSize
	p.NumSplits = numSplits
	p.LogWeight = logWeight
	p.OverDarkFactor = overDark
	p.FadeStartDist = fadeStart
	p.LastSplitTerrainOnly = terrainOnly
	p.SplitFadeDistances = splitFade
	p.ShadowDistance = distance
	p.ShadowSoftness = softness
}

// Destroy drops the shadow map with its textures.
func (p *ShadowMapParams) Destroy() {
	p.destroyShadowMap()
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
