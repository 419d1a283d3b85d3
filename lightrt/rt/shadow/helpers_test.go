package shadow

import (
	"testing"
	"time"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/gekko3d/umbra/lightrt/rt/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct{ elapsed time.Duration }

func (t *fakeTimer) Reset()                 { t.elapsed = 0 }
func (t *fakeTimer) Elapsed() time.Duration { return t.elapsed }

type testRig struct {
	dev    *gfx.NullDevice
	lights *core.SimpleLightManager
	scene  *scene.Manager
	mgr    *ShadowMapManager
	clock  *core.ManualClock
	timer  *fakeTimer
	mat    *render.MatInstance
	box    *scene.MeshObject
	ground *scene.MeshObject
}

func newRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	r := &testRig{
		dev:    gfx.NewNullDevice(),
		lights: core.NewSimpleLightManager(),
		clock:  &core.ManualClock{Ms: 10000},
		timer:  &fakeTimer{},
	}
	r.scene = scene.NewManager(r.lights, nil)
	opts = append([]Option{WithClock(r.clock), WithTimer(r.timer), WithSeed(7)}, opts...)
	r.mgr = NewShadowMapManager(r.dev, opts...)
	r.mgr.SetSceneManager(r.scene)
	r.lights.AddExtensionFactory(r.mgr.AttachParams)

	mm := r.mgr.Registry().Materials()
	mm.Register(&render.Definition{Name: "Stone", CastShadows: true})
	mat, err := mm.CreateInstance("Stone", r.dev)
	require.NoError(t, err)
	require.NoError(t, mat.Init(render.NewFeatureSet(render.FeatVertTransform, render.FeatDiffuseMap)))
	r.mat = mat

	r.ground = scene.NewMeshObject("ground", scene.PlaneMesh(100), mat)
	r.ground.TypeMask = render.TerrainObjectType
	r.box = scene.NewMeshObject("box", scene.BoxMesh(mgl32.Vec3{1, 1, 1}), mat)
	r.box.Transform.SetPosition(mgl32.Vec3{0, 5, 1})
	r.scene.AddObject(r.ground)
	r.scene.AddObject(r.box)

	setCamera(r.dev, mgl32.Translate3D(0, -20, 5))
	return r
}

func setCamera(dev *gfx.NullDevice, transform mgl32.Mat4) {
	dev.SetViewport(gfx.Rect{Width: 1280, Height: 720})
	dev.SetFrustum(core.PerspectiveParams(mgl32.DegToRad(60), 1280.0/720.0, 0.1, 500))
	dev.SetViewMatrix(core.ViewFromTransform(transform))
}

func (r *testRig) diffuse() *render.SceneRenderState {
	return render.NewSceneRenderState(r.scene, render.PassDiffuse, r.dev, render.NewPassManager("diffuse", nil))
}

func (r *testRig) addSpot(pos, dir mgl32.Vec3, rng float32) *core.LightInfo {
	l := core.NewLightInfo(core.LightTypeSpot)
	l.CastShadows = true
	l.Range = rng
	l.OuterConeAngle = 60
	l.InnerConeAngle = 45
	l.SetDirection(dir)
	l.SetPosition(pos)
	r.lights.RegisterLight(l)
	return l
}

func (r *testRig) addPoint(pos mgl32.Vec3, rng float32, st ShadowType) *core.LightInfo {
	l := core.NewLightInfo(core.LightTypePoint)
	l.CastShadows = true
	l.Range = rng
	l.SetPosition(pos)
	r.lights.RegisterLight(l)
	ParamsFor(l).SetShadowType(st)
	return l
}

func (r *testRig) addSun(dir mgl32.Vec3) *core.LightInfo {
	l := core.NewLightInfo(core.LightTypeVector)
	l.CastShadows = true
	l.SetDirection(dir)
	r.lights.SetSpecialLight(core.SunLight, l)
	return l
}

func shadowMapOf(t *testing.T, l *core.LightInfo) LightShadowMap {
	t.Helper()
	p := ParamsFor(l)
	require.NotNil(t, p)
	sm := p.GetOrCreateShadowMap()
	require.NotNil(t, sm)
	return sm
}

func base(sm LightShadowMap) *baseShadowMap {
	switch m := sm.(type) {
	case *SingleLightShadowMap:
		return &m.baseShadowMap
	case *ParaboloidLightShadowMap:
		return &m.baseShadowMap
	case *DualParaboloidLightShadowMap:
		return &m.baseShadowMap
	case *CubeLightShadowMap:
		return &m.baseShadowMap
	case *PSSMLightShadowMap:
		return &m.baseShadowMap
	}
	return nil
}

// drawsInto returns the draws recorded against target.
func drawsInto(dev *gfx.NullDevice, target *gfx.TextureTarget) []gfx.DrawRecord {
	var out []gfx.DrawRecord
	for _, d := range dev.Draws {
		if d.Target == target {
			out = append(out, d)
		}
	}
	return out
}
