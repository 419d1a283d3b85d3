package shadow

import (
	"fmt"
	"sync"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/render"
)

// Registry tracks every live shadow map and the subset that rendered
// recently and therefore holds textures. It also carries what shadow maps
// share: the shadow render pass, materials and shader constant caches.
//
// Registry is used from the render goroutine; the mutex only guards
// against device-loss callbacks arriving from elsewhere.
type Registry struct {
	mu   sync.Mutex
	maps []LightShadowMap
	used []LightShadowMap

	passes      []render.RenderPass
	defaultPass *ShadowRenderPassManager

	materials *render.MaterialManager
	consts    *ShaderConstantsCache
	log       core.Logger
	clock     core.Clock
}

func NewRegistry(materials *render.MaterialManager, log core.Logger) *Registry {
	if log == nil {
		log = core.NewNopLogger()
	}
	if materials == nil {
		materials = render.NewMaterialManager()
	}
	if _, ok := materials.Definition(DefaultShadowMaterialName); !ok {
		materials.Register(&render.Definition{
			Name:        DefaultShadowMaterialName,
			CastShadows: true,
			Features:    render.NewFeatureSet(render.FeatVertTransform),
		})
	}
	return &Registry{
		materials: materials,
		consts:    NewShaderConstantsCache(),
		log:       log,
		clock:     core.NewSystemClock(),
	}
}

// SetClock sets the time source used to stamp rendered maps.
func (r *Registry) SetClock(c core.Clock) { r.clock = c }

func (r *Registry) NowMs() uint32 { return r.clock.NowMs() }

func (r *Registry) Logger() core.Logger                    { return r.log }
func (r *Registry) Materials() *render.MaterialManager     { return r.materials }
func (r *Registry) ShaderConstants() *ShaderConstantsCache { return r.consts }

func (r *Registry) register(sm LightShadowMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maps = append(r.maps, sm)
}

func (r *Registry) unregister(sm LightShadowMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maps = removeMap(r.maps, sm)
	r.used = removeMap(r.used, sm)
}

// markUsed panics if sm is already in the used set.
func (r *Registry) markUsed(sm LightShadowMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.used {
		if u == sm {
			panic(fmt.Sprintf("shadow: map for light %s inserted twice into the used set", sm.Light().ID))
		}
	}
	r.used = append(r.used, sm)
}

func (r *Registry) unmarkUsed(sm LightShadowMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used = removeMap(r.used, sm)
}

func (r *Registry) IsUsed(sm LightShadowMap) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.used {
		if u == sm {
			return true
		}
	}
	return false
}

func (r *Registry) Maps() []LightShadowMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LightShadowMap(nil), r.maps...)
}

func (r *Registry) Used() []LightShadowMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LightShadowMap(nil), r.used...)
}

// ReleaseAll frees the textures of every shadow map.
func (r *Registry) ReleaseAll() {
	for _, sm := range r.Maps() {
		sm.ReleaseTextures()
	}
}

// ReleaseUnused frees the textures of maps not rendered within windowMs of
// nowMs and returns how many were released.
func (r *Registry) ReleaseUnused(nowMs, windowMs uint32) int {
	released := 0
	for _, sm := range r.Used() {
		if nowMs-sm.LastUpdate() < windowMs {
			continue
		}
		sm.ReleaseTextures()
		released++
	}
	return released
}

// PushRenderPass makes pass the one shadow maps render into.
func (r *Registry) PushRenderPass(pass render.RenderPass) {
	r.passes = append(r.passes, pass)
}

func (r *Registry) PopRenderPass() {
	if len(r.passes) > 0 {
		r.passes = r.passes[:len(r.passes)-1]
	}
}

// RenderPass returns the pushed pass, or a default shadow pass when a map
// renders outside of ShadowMapPass.
func (r *Registry) RenderPass() render.RenderPass {
	if n := len(r.passes); n > 0 {
		return r.passes[n-1]
	}
	if r.defaultPass == nil {
		r.defaultPass = NewShadowRenderPassManager()
	}
	return r.defaultPass
}

func removeMap(list []LightShadowMap, sm LightShadowMap) []LightShadowMap {
	for i, x := range list {
		if x == sm {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
