package shadow

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
)

const (
	TapRotationSize = 64
	preRenderOrder  = 0.01
)

type Option func(*ShadowMapManager)

func WithLogger(log core.Logger) Option {
	return func(m *ShadowMapManager) { m.log = log }
}

// WithClock sets the time source for map timestamps and purging.
func WithClock(c core.Clock) Option {
	return func(m *ShadowMapManager) { m.clock = c }
}

func WithSettings(s Settings) Option {
	return func(m *ShadowMapManager) { m.settings = s }
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *ShadowMapManager) { m.metrics = metrics }
}

func WithMaterialManager(mm *render.MaterialManager) Option {
	return func(m *ShadowMapManager) { m.materials = mm }
}

// WithTimer replaces the wall clock timer that enforces the render budget.
func WithTimer(t Timer) Option {
	return func(m *ShadowMapManager) { m.timer = t }
}

// WithSeed makes the tap rotation noise reproducible.
func WithSeed(seed uint64) Option {
	return func(m *ShadowMapManager) { m.seed = seed }
}

// ShadowMapManager owns the shadow pass and the resources every lighting
// shader shares. While active it refreshes shadow maps before each diffuse
// frame of its scene.
type ShadowMapManager struct {
	dev       gfx.Device
	scene     render.SceneManager
	reg       *Registry
	materials *render.MaterialManager
	log       core.Logger
	clock     core.Clock
	timer     Timer
	settings  Settings
	metrics   *Metrics
	seed      uint64

	active      bool
	pass        *ShadowMapPass
	preRenderID core.SignalID
	texEventID  core.SignalID

	current  LightShadowMap
	tapImage *image.RGBA
	tapTex   gfx.Texture
}

func NewShadowMapManager(dev gfx.Device, opts ...Option) *ShadowMapManager {
	m := &ShadowMapManager{
		dev:      dev,
		log:      core.NewNopLogger(),
		settings: DefaultSettings(),
		seed:     1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.timer == nil {
		m.timer = NewWallTimer()
	}
	m.reg = NewRegistry(m.materials, m.log)
	if m.clock != nil {
		m.reg.SetClock(m.clock)
	}
	m.materials = m.reg.Materials()
	return m
}

func (m *ShadowMapManager) Registry() *Registry { return m.reg }

func (m *ShadowMapManager) SetSceneManager(scene render.SceneManager) { m.scene = scene }

func (m *ShadowMapManager) SceneManager() render.SceneManager { return m.scene }

func (m *ShadowMapManager) IsActive() bool { return m.active }

// Pass is nil while inactive.
func (m *ShadowMapManager) Pass() *ShadowMapPass { return m.pass }

// SetSettings updates the scheduler, including a running pass.
func (m *ShadowMapManager) SetSettings(s Settings) {
	m.settings = s
	if m.pass != nil {
		m.pass.SetSettings(s)
	}
}

func (m *ShadowMapManager) Settings() Settings { return m.settings }

// AttachParams gives every light registered afterwards its ShadowMapParams.
// Pass it to SimpleLightManager.AddExtensionFactory.
func (m *ShadowMapManager) AttachParams(l *core.LightInfo) {
	if ParamsFor(l) != nil {
		return
	}
	p := NewShadowMapParams(l, m.reg)
	p.Validate()
	l.AddExtended(p)
}

func (m *ShadowMapManager) Activate() error {
	if m.active {
		return nil
	}
	if m.scene == nil {
		m.log.Errorf("shadow map manager: cannot activate without a scene manager")
		return ErrNoSceneManager
	}

	m.pass = newShadowMapPass(m)
	m.preRenderID = m.scene.PreRenderSignal().Notify(m.onPreRender, preRenderOrder)
	m.texEventID = m.dev.Textures().Events().Notify(m.onTextureEvent, 0)
	m.active = true
	m.log.Infof("shadow map manager activated")
	return nil
}

func (m *ShadowMapManager) Deactivate() {
	if !m.active {
		return
	}
	m.scene.PreRenderSignal().Remove(m.preRenderID)
	m.dev.Textures().Events().Remove(m.texEventID)

	m.reg.ReleaseAll()
	m.dev.Textures().CleanupPool()
	m.pass = nil
	m.current = nil
	if m.tapTex != nil {
		m.tapTex.Release()
		m.tapTex = nil
	}
	m.active = false
	m.log.Infof("shadow map manager deactivated")
}

func (m *ShadowMapManager) onPreRender(state *render.SceneRenderState) {
	if m.pass == nil || !state.IsDiffusePass() {
		return
	}
	m.pass.Render(m.scene, state, ^uint32(0))
}

func (m *ShadowMapManager) onTextureEvent(ev gfx.TextureEvent) {
	if ev != gfx.TextureZombify {
		return
	}
	// The device is gone; the texture objects are dead.
	m.tapTex = nil
	m.reg.ReleaseAll()
}

// SetLightShadowMap sets the map the lighting shaders read from.
func (m *ShadowMapManager) SetLightShadowMap(sm LightShadowMap) { m.current = sm }

// SetLightShadowMapForLight selects light's map, creating it if the light
// casts shadows.
func (m *ShadowMapManager) SetLightShadowMapForLight(l *core.LightInfo) {
	if p := ParamsFor(l); p != nil {
		m.current = p.GetOrCreateShadowMap()
		return
	}
	m.current = nil
}

func (m *ShadowMapManager) CurrentShadowMap() LightShadowMap { return m.current }

// TapRotationImage returns the CPU copy of the tap rotation noise. Each
// texel stores a random rotation as R = sin and G = cos mapped to 0..255.
func (m *ShadowMapManager) TapRotationImage() *image.RGBA {
	if m.tapImage != nil {
		return m.tapImage
	}
	rng := rand.New(rand.NewPCG(m.seed, m.seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, TapRotationSize, TapRotationSize))
	for y := 0; y < TapRotationSize; y++ {
		for x := 0; x < TapRotationSize; x++ {
			a := rng.Float64() * 2 * math.Pi
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(255 * (1 + math.Sin(a)) / 2),
				G: uint8(255 * (1 + math.Cos(a)) / 2),
			})
		}
	}
	m.tapImage = img
	return img
}

// TapRotationTex returns the noise texture, uploading it on first use and
// again after device loss. It returns nil if the upload fails.
func (m *ShadowMapManager) TapRotationTex() gfx.Texture {
	if m.tapTex != nil && !m.tapTex.Released() {
		return m.tapTex
	}
	img := m.TapRotationImage()
	tex, err := m.dev.Textures().Create(gfx.TextureDesc{
		Label:   "tap rotation",
		Width:   TapRotationSize,
		Height:  TapRotationSize,
		Format:  gfx.FormatRGBA8,
		Profile: gfx.PersistentProfile,
	})
	if err != nil {
		m.log.Errorf("tap rotation texture: %v", err)
		return nil
	}
	if err := m.dev.WriteTexture(tex, img.Pix); err != nil {
		tex.Release()
		m.log.Errorf("tap rotation upload: %v", err)
		return nil
	}
	m.tapTex = tex
	return tex
}
