package shadow

import (
	"sync"

	"github.com/gekko3d/umbra/lightrt/rt/render"
)

const (
	ShadowHookType            = "ShadowMaterialHook"
	DefaultShadowMaterialName = "AL_DefaultShadowMaterial"
)

// ShadowMaterialHook hangs off a scene material and holds the depth-only
// variants of it, one per shadow type, built on first use.
type ShadowMaterialHook struct {
	base *render.MatInstance
	reg  *Registry

	mu    sync.Mutex
	mats  [ShadowTypeCount]*render.MatInstance
	built [ShadowTypeCount]bool
}

func newShadowMaterialHook(base *render.MatInstance, reg *Registry) *ShadowMaterialHook {
	return &ShadowMaterialHook{base: base, reg: reg}
}

func (h *ShadowMaterialHook) HookType() string { return ShadowHookType }

// ShadowMat returns the variant for t, or nil when the base material does
// not cast shadows or is translucent.
func (h *ShadowMaterialHook) ShadowMat(t ShadowType) *render.MatInstance {
	if t < 0 || int(t) >= ShadowTypeCount {
		return nil
	}
	def := h.base.Definition()
	if !def.CastShadows || def.Translucent {
		return nil
	}

	// PSSM and single paraboloid maps render like spot maps.
	if t == ShadowTypePSSM || t == ShadowTypeParaboloid {
		t = ShadowTypeSpot
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.built[t] {
		h.mats[t] = h.build(t)
		h.built[t] = true
	}
	return h.mats[t]
}

func (h *ShadowMaterialHook) build(t ShadowType) *render.MatInstance {
	dev := h.base.Device()
	def := h.base.Definition()
	baseFeats := h.base.Features()

	feats := render.NewFeatureSet(
		render.FeatVertTransform,
		render.FeatDiffuseMap,
		render.FeatTexAnim,
		render.FeatAlphaTest,
		render.FeatVisibility,
	)
	for _, f := range baseFeats.FilterGroup(render.GroupPreTransform) {
		feats.Add(f)
	}
	if baseFeats.Has(render.FeatInstancing) {
		feats.Add(render.FeatInstancing)
	}

	var mat *render.MatInstance
	if def.Custom {
		inst, err := h.reg.Materials().CreateInstance(DefaultShadowMaterialName, dev)
		if err != nil {
			h.reg.log.Warnf("no shadow material for custom material %s: %v", def.Name, err)
			return h.reg.Materials().WarningMaterial(dev, feats)
		}
		mat = inst
	} else {
		mat = render.NewMatInstance(def, dev)
	}

	switch t {
	case ShadowTypeCubeMap:
		mat.AddShaderMacro("CUBE_SHADOW_MAP", "")
		mat.SetCullMode(render.CullCW)
	case ShadowTypeDualParaboloidSinglePass:
		feats.Add(render.FeatParaboloidVertTransform)
		feats.Add(render.FeatIsSinglePassParaboloid)
		feats.Remove(render.FeatVertTransform)
		mat.SetCullMode(render.CullNone)
	case ShadowTypeDualParaboloid:
		feats.Add(render.FeatParaboloidVertTransform)
		feats.Remove(render.FeatVertTransform)
	}

	if err := mat.Init(feats); err != nil {
		h.reg.log.Warnf("shadow material %s (%s): %v", def.Name, t, err)
		return h.reg.Materials().WarningMaterial(dev, feats)
	}
	return mat
}
