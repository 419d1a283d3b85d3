package shadow

import (
	"fmt"
	"sort"
	"time"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/render"
)

// Settings tune the shadow pass scheduler.
type Settings struct {
	// RenderBudget stops further shadow renders once a frame spent it.
	RenderBudget time.Duration `mapstructure:"render_budget"`
	// PurgeWindow releases textures of maps not rendered for this long.
	PurgeWindow    time.Duration `mapstructure:"purge_window"`
	DisableShadows bool          `mapstructure:"disable_shadows"`

	LODNormalization float32 `mapstructure:"lod_normalization"`
	LODCutoff        float32 `mapstructure:"lod_cutoff"`
	LODThreshold     float32 `mapstructure:"lod_threshold"`
}

func DefaultSettings() Settings {
	return Settings{
		RenderBudget:     8 * time.Millisecond,
		PurgeWindow:      1000 * time.Millisecond,
		LODNormalization: LODNormalization,
		LODCutoff:        0.25,
		LODThreshold:     2,
	}
}

// Timer measures wall time spent in one pass.
type Timer interface {
	Reset()
	Elapsed() time.Duration
}

type wallTimer struct{ start time.Time }

func NewWallTimer() Timer { return &wallTimer{start: time.Now()} }

func (t *wallTimer) Reset()                 { t.start = time.Now() }
func (t *wallTimer) Elapsed() time.Duration { return time.Since(t.start) }

// PassStats describes the last ShadowMapPass.Render.
type PassStats struct {
	ActiveMaps      int
	UpdatedMaps     int
	SkippedByBudget int
	SkippedByLOD    int
	Occluded        int
	Failed          int
	Released        int

	DrawCalls           int
	PolyCount           int
	RenderTargetChanges int
	PoolTextures        int
	PoolBytes           uint64
	Elapsed             time.Duration
}

func (s PassStats) String() string {
	return fmt.Sprintf("active=%d updated=%d budget=%d lod=%d occluded=%d failed=%d released=%d draws=%d polys=%d rt=%d pool=%d/%dB",
		s.ActiveMaps, s.UpdatedMaps, s.SkippedByBudget, s.SkippedByLOD, s.Occluded, s.Failed, s.Released,
		s.DrawCalls, s.PolyCount, s.RenderTargetChanges, s.PoolTextures, s.PoolBytes)
}

// ShadowMapPass picks which shadow maps to refresh each diffuse frame and
// renders them, most important first, until the time budget runs out.
type ShadowMapPass struct {
	mgr      *ShadowMapManager
	reg      *Registry
	pass     *ShadowRenderPassManager
	settings Settings
	timer    Timer
	log      core.Logger
	metrics  *Metrics

	stats PassStats
	queue []LightShadowMap
}

func newShadowMapPass(mgr *ShadowMapManager) *ShadowMapPass {
	return &ShadowMapPass{
		mgr:      mgr,
		reg:      mgr.reg,
		pass:     NewShadowRenderPassManager(),
		settings: mgr.settings,
		timer:    mgr.timer,
		log:      mgr.log,
		metrics:  mgr.metrics,
	}
}

func (p *ShadowMapPass) Settings() Settings { return p.settings }

func (p *ShadowMapPass) SetSettings(s Settings) { p.settings = s }

func (p *ShadowMapPass) Stats() PassStats { return p.stats }

func (p *ShadowMapPass) RenderPass() *ShadowRenderPassManager { return p.pass }

// Render refreshes shadow maps for the lights of scene as seen from diffuse.
func (p *ShadowMapPass) Render(scene render.SceneManager, diffuse *render.SceneRenderState, objectMask uint32) {
	p.stats = PassStats{}
	if p.settings.DisableShadows {
		return
	}

	start := time.Now()
	dev := diffuse.Device()
	before := dev.Statistics()
	now := p.reg.NowMs()
	s := &p.stats

	p.queue = p.queue[:0]
	for _, light := range scene.LightManager().ActiveLights() {
		if !light.CastShadows || light.Priority <= 0 {
			continue
		}
		params := ParamsFor(light)
		if params == nil {
			continue
		}
		sm := params.GetOrCreateShadowMap()
		if sm == nil {
			continue
		}
		s.ActiveMaps++

		if sm.WasOccluded() {
			s.Occluded++
			continue
		}

		sm.UpdatePriority(diffuse, now)
		if p.skipByLOD(sm, now) {
			s.SkippedByLOD++
			continue
		}
		p.queue = append(p.queue, sm)
	}

	queue := p.queue
	sort.SliceStable(queue, func(i, j int) bool {
		pi, pj := queue[i].LastPriority(), queue[j].LastPriority()
		if pi != pj {
			return pi > pj
		}
		return queue[i].Light().Order() < queue[j].Light().Order()
	})

	p.reg.PushRenderPass(p.pass)
	p.timer.Reset()
	for i, sm := range queue {
		// The first map always renders.
		if i > 0 && p.timer.Elapsed() >= p.settings.RenderBudget {
			s.SkippedByBudget = len(queue) - i
			break
		}
		if err := sm.Render(scene, diffuse); err != nil {
			p.log.Warnf("shadow pass: %v", err)
			sm.ReleaseTextures()
			s.Failed++
			continue
		}
		s.UpdatedMaps++
	}

	s.Released = p.reg.ReleaseUnused(p.reg.NowMs(), uint32(p.settings.PurgeWindow.Milliseconds()))
	p.reg.PopRenderPass()
	if p.mgr != nil {
		p.mgr.SetLightShadowMap(nil)
	}

	gs := dev.Statistics().Sub(before)
	s.DrawCalls = gs.DrawCalls
	s.PolyCount = gs.PolyCount
	s.RenderTargetChanges = gs.RenderTargetChanges
	s.PoolTextures, s.PoolBytes = dev.Textures().PoolStats()
	s.Elapsed = time.Since(start)

	if s.SkippedByBudget > 0 {
		p.log.Debugf("shadow pass: budget spent, %d maps deferred", s.SkippedByBudget)
	}
	p.metrics.observe(*s)
}

// skipByLOD drops small maps entirely and holds back maps that are small
// and were rendered recently. View dependent maps are never skipped.
func (p *ShadowMapPass) skipByLOD(sm LightShadowMap, now uint32) bool {
	if sm.IsViewDependent() {
		return false
	}
	lod := sm.LastScreenSize() / p.settings.LODNormalization
	if lod < p.settings.LODCutoff {
		return true
	}
	if !sm.HasShadowTex() {
		return false
	}
	var since float32
	if now > sm.LastUpdate() {
		since = float32(now - sm.LastUpdate())
	}
	return since*lod*lod < p.settings.LODThreshold
}
