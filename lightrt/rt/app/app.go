package app

import (
	"fmt"
	"time"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/lightbin"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/gekko3d/umbra/lightrt/rt/scene"
	"github.com/gekko3d/umbra/lightrt/rt/shadow"
)

// Profiler scope names.
const (
	ScopeFrame  = "Frame"
	ScopeScene  = "Scene+Shadows"
	ScopeLights = "LightBin"
)

// FrameStats summarizes one rendered frame.
type FrameStats struct {
	Frame   int
	Shadow  shadow.PassStats
	Lights  lightbin.RenderStats
	Device  gfx.Statistics
	Elapsed time.Duration
}

type Option func(*options)

type options struct {
	log       core.Logger
	clock     core.Clock
	settings  *shadow.Settings
	metrics   *shadow.Metrics
	filter    *shadow.FilterMode
	seed      uint64
	pssmDebug bool
}

func WithLogger(log core.Logger) Option { return func(o *options) { o.log = log } }

func WithClock(c core.Clock) Option { return func(o *options) { o.clock = c } }

func WithShadowSettings(s shadow.Settings) Option { return func(o *options) { o.settings = &s } }

func WithMetrics(m *shadow.Metrics) Option { return func(o *options) { o.metrics = m } }

func WithFilterMode(mode shadow.FilterMode) Option { return func(o *options) { o.filter = &mode } }

func WithSeed(seed uint64) Option { return func(o *options) { o.seed = seed } }

func WithPSSMDebugRender(on bool) Option { return func(o *options) { o.pssmDebug = on } }

// App wires the light manager, scene, shadow maps and light bin around one
// device and renders frames through them.
type App struct {
	Device   gfx.Device
	Lights   *core.SimpleLightManager
	Scene    *scene.Manager
	Shadows  *shadow.ShadowMapManager
	LightBin *lightbin.AdvancedLightBinManager
	Camera   *CameraState
	Profiler *Profiler

	Width, Height int
	FrameCount    int

	log  core.Logger
	last FrameStats
}

func New(dev gfx.Device, width, height int, opts ...Option) (*App, error) {
	o := options{log: core.NewNopLogger(), seed: 1}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Device:   dev,
		Lights:   core.NewSimpleLightManager(),
		Camera:   NewCameraState(),
		Profiler: NewProfiler(),
		Width:    width,
		Height:   height,
		log:      o.log,
	}
	a.Scene = scene.NewManager(a.Lights, o.log)

	shadowOpts := []shadow.Option{
		shadow.WithLogger(o.log),
		shadow.WithMetrics(o.metrics),
		shadow.WithSeed(o.seed),
	}
	if o.clock != nil {
		shadowOpts = append(shadowOpts, shadow.WithClock(o.clock))
	}
	if o.settings != nil {
		shadowOpts = append(shadowOpts, shadow.WithSettings(*o.settings))
	}
	a.Shadows = shadow.NewShadowMapManager(dev, shadowOpts...)
	a.Shadows.SetSceneManager(a.Scene)
	a.Lights.AddExtensionFactory(a.Shadows.AttachParams)
	lightbin.RegisterDefaultLightMaterials(a.Shadows.Registry().Materials())

	binOpts := []lightbin.Option{
		lightbin.WithLogger(o.log),
		lightbin.WithPSSMDebugRender(o.pssmDebug),
	}
	if o.filter != nil {
		binOpts = append(binOpts, lightbin.WithFilterMode(*o.filter))
	}
	a.LightBin = lightbin.NewAdvancedLightBinManager(dev, a.Shadows, binOpts...)

	if err := a.Shadows.Activate(); err != nil {
		a.LightBin.Close()
		return nil, fmt.Errorf("failed to activate shadows: %w", err)
	}
	return a, nil
}

// Close releases the light buffer and every shadow map.
func (a *App) Close() {
	a.LightBin.Close()
	a.Shadows.Deactivate()
}

// Resize changes the viewport used by later frames.
func (a *App) Resize(width, height int) {
	a.Width, a.Height = width, height
}

// RenderFrame draws the scene from the camera. The scene's pre-render
// signal runs the shadow pass; the light bin then accumulates every light
// into the light buffer.
func (a *App) RenderFrame() (FrameStats, error) {
	a.Profiler.Reset()
	a.Profiler.BeginScope(ScopeFrame)
	start := time.Now()
	before := a.Device.Statistics()

	a.Camera.Apply(a.Device, a.Width, a.Height)
	state := render.NewSceneRenderState(a.Scene, render.PassDiffuse, a.Device, render.NewPassManager("diffuse", nil))

	a.Profiler.Scope(ScopeScene, func() {
		a.Scene.RenderFrame(state, ^uint32(0))
	})

	var err error
	a.Profiler.Scope(ScopeLights, func() {
		a.LightBin.Clear()
		a.LightBin.CollectLights(a.Lights)
		err = a.LightBin.Render(state)
	})
	a.Profiler.EndScope(ScopeFrame)

	stats := FrameStats{
		Frame:   a.FrameCount,
		Lights:  a.LightBin.Stats(),
		Device:  a.Device.Statistics().Sub(before),
		Elapsed: time.Since(start),
	}
	if pass := a.Shadows.Pass(); pass != nil {
		stats.Shadow = pass.Stats()
	}
	a.FrameCount++
	a.last = stats

	a.Profiler.SetCount("ShadowMaps", stats.Shadow.ActiveMaps)
	a.Profiler.SetCount("ShadowUpdates", stats.Shadow.UpdatedMaps)
	a.Profiler.SetCount("BinnedLights", stats.Lights.Lights)
	a.Profiler.SetCount("DrawCalls", stats.Device.DrawCalls)

	if err != nil {
		return stats, fmt.Errorf("light bin: %w", err)
	}
	return stats, nil
}

func (a *App) LastStats() FrameStats { return a.last }

// SetShadowSettings updates the scheduler of the running pass.
func (a *App) SetShadowSettings(s shadow.Settings) {
	a.Shadows.SetSettings(s)
}

// SetFilterMode rebuilds the light materials for mode.
func (a *App) SetFilterMode(mode shadow.FilterMode) {
	a.LightBin.SetShadowFilterMode(mode)
	a.log.Infof("shadow filter mode set to %s", mode)
}
