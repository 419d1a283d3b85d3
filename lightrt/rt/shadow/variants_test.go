package shadow

import (
	"testing"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewportsOf(draws []gfx.DrawRecord) map[gfx.Rect]int {
	out := make(map[gfx.Rect]int)
	for _, d := range draws {
		out[d.Viewport]++
	}
	return out
}

func TestDualParaboloidTwoPass(t *testing.T) {
	r := newRig(t)
	l := r.addPoint(mgl32.Vec3{0, 5, 10}, 20, ShadowTypeDualParaboloid)
	ParamsFor(l).TexSize = 256
	sm := shadowMapOf(t, l)
	require.IsType(t, &DualParaboloidLightShadowMap{}, sm)
	base(sm).lastScreenSize = LODNormalization

	require.NoError(t, sm.Render(r.scene, r.diffuse()))
	assert.Equal(t, uint32(512), sm.Texture().Width())
	assert.Equal(t, uint32(256), sm.Texture().Height())
	assert.Equal(t, uint32(256), sm.TexSize())

	vps := viewportsOf(drawsInto(r.dev, base(sm).target))
	assert.Len(t, vps, 2)
	assert.Contains(t, vps, gfx.Rect{Width: 256, Height: 256})
	assert.Contains(t, vps, gfx.Rect{X: 256, Width: 256, Height: 256})
	assert.Len(t, r.dev.Clears, 1, "both halves share one clear")
	assert.Equal(t, l.Transform.Inv(), sm.WorldToLightProj())
}

func TestDualParaboloidSinglePass(t *testing.T) {
	r := newRig(t)
	l := r.addPoint(mgl32.Vec3{0, 5, 10}, 20, ShadowTypeDualParaboloidSinglePass)
	ParamsFor(l).TexSize = 256
	sm := shadowMapOf(t, l)
	base(sm).lastScreenSize = LODNormalization

	require.NoError(t, sm.Render(r.scene, r.diffuse()))
	draws := drawsInto(r.dev, base(sm).target)
	require.NotEmpty(t, draws)
	for _, d := range draws {
		assert.Equal(t, gfx.Rect{Width: 512, Height: 256}, d.Viewport)
	}
}

func TestDualParaboloidShaderScaleOffset(t *testing.T) {
	r := newRig(t)
	sm := shadowMapOf(t, r.addPoint(mgl32.Vec3{0, 5, 10}, 20, ShadowTypeDualParaboloid))
	require.NoError(t, sm.Render(r.scene, r.diffuse()))

	shader, err := r.dev.CreateShader(gfx.ShaderDesc{Name: "light", Constants: LightingConstantDescs()})
	require.NoError(t, err)
	lsc := r.mgr.Registry().ShaderConstants().Get(shader)
	consts := shader.AllocConstBuffer()
	sm.SetShaderParameters(consts, lsc)

	v, ok := consts.Value(ConstShadowMapScale)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec2{0.5, 1}, v)
	v, ok = consts.Value(ConstShadowMapOffset)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec2{-0.5, 0}, v)
}

func TestCubeShadowMapRendersSixFaces(t *testing.T) {
	r := newRig(t)
	l := r.addPoint(mgl32.Vec3{0, 5, 10}, 20, ShadowTypeCubeMap)
	sm := shadowMapOf(t, l)
	require.IsType(t, &CubeLightShadowMap{}, sm)

	require.NoError(t, sm.Render(r.scene, r.diffuse()))
	b := base(sm)
	assert.Equal(t, gfx.TextureCube, sm.Texture().Desc().Kind)
	assert.Len(t, r.dev.Clears, 6)
	for _, c := range r.dev.Clears {
		assert.Equal(t, b.target, c.Target)
	}
	assert.Equal(t, 6, b.target.ResolveCount())
	assert.Equal(t, 5, b.target.Attachment(gfx.Color0).Face)
	assert.Zero(t, r.dev.TargetDepth())

	for _, d := range drawsInto(r.dev, b.target) {
		assert.Equal(t, core.PerspectiveParams(mgl32.DegToRad(90), 1, 0.1, 20).Projection(), d.Proj)
	}
}

func TestCubeFaceViewLooksDownAxis(t *testing.T) {
	r := newRig(t)
	pos := mgl32.Vec3{0, 5, 10}
	sm := shadowMapOf(t, r.addPoint(pos, 20, ShadowTypeCubeMap)).(*CubeLightShadowMap)

	axes := []mgl32.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	for i, axis := range axes {
		v := mgl32.TransformCoordinate(pos.Add(axis.Mul(5)), sm.FaceView(i))
		assert.InDelta(t, 0, v.X(), 1e-4, "face %d", i)
		assert.InDelta(t, 0, v.Y(), 1e-4, "face %d", i)
		assert.InDelta(t, -5, v.Z(), 1e-4, "face %d", i)
	}
}

func TestParaboloidWorldToLightProj(t *testing.T) {
	r := newRig(t)
	l := r.addPoint(mgl32.Vec3{0, 5, 10}, 20, ShadowTypeParaboloid)
	sm := shadowMapOf(t, l)
	require.IsType(t, &ParaboloidLightShadowMap{}, sm)

	require.NoError(t, sm.Render(r.scene, r.diffuse()))
	assert.Equal(t, l.Transform.Inv(), sm.WorldToLightProj())
	assert.Equal(t, sm.Texture().Width(), sm.Texture().Height())
	for _, d := range drawsInto(r.dev, base(sm).target) {
		assert.Equal(t, core.OrthoParams(-20, 20, -20, 20, 1, 20).Projection(), d.Proj)
	}
}

func TestCalcSplitDistances(t *testing.T) {
	d := CalcSplitDistances(4, 1, 100, 1)
	want := []float32{1, 3.1623, 10, 31.623, 100}
	require.Len(t, d, len(want))
	for i := range want {
		assert.InDelta(t, want[i], d[i], 1e-3, "split %d", i)
	}

	lin := CalcSplitDistances(4, 0, 100, 0)
	assert.InDeltaSlice(t, []float32{0, 25, 50, 75, 100}, lin, 1e-4)

	one := CalcSplitDistances(1, 0.5, 50, 0.9)
	assert.Equal(t, []float32{0.5, 50}, one)
}

func newSunRig(t *testing.T, splits uint32) (*testRig, *core.LightInfo, *PSSMLightShadowMap) {
	t.Helper()
	r := newRig(t)
	l := r.addSun(mgl32.Vec3{0.3, 0.2, -1})
	p := ParamsFor(l)
	p.NumSplits = splits
	p.TexSize = 512
	p.Validate()
	sm, ok := shadowMapOf(t, l).(*PSSMLightShadowMap)
	require.True(t, ok)
	return r, l, sm
}

func TestPSSMFourSplitAtlas(t *testing.T) {
	r, _, sm := newSunRig(t, 4)
	require.NoError(t, sm.Render(r.scene, r.diffuse()))

	assert.Equal(t, uint32(1024), sm.Texture().Width())
	assert.Equal(t, uint32(1024), sm.Texture().Height())
	assert.Equal(t, uint32(512), sm.TexSize())
	assert.Equal(t, 4, sm.NumSplits())

	want := []gfx.Rect{
		{Width: 512, Height: 512},
		{X: 512, Width: 512, Height: 512},
		{Y: 512, Width: 512, Height: 512},
		{X: 512, Y: 512, Width: 512, Height: 512},
	}
	for i, vp := range want {
		assert.Equal(t, vp, sm.SplitViewport(i))
	}

	xOff, yOff, scale := sm.AtlasLayout()
	assert.Equal(t, mgl32.Vec4{0, 0.5, 0, 0.5}, xOff)
	assert.Equal(t, mgl32.Vec4{0, 0, 0.5, 0.5}, yOff)
	assert.Equal(t, mgl32.Vec2{0.5, 0.5}, scale)
}

func TestPSSMThreeSplitRow(t *testing.T) {
	r, _, sm := newSunRig(t, 3)
	require.NoError(t, sm.Render(r.scene, r.diffuse()))

	assert.Equal(t, uint32(1536), sm.Texture().Width())
	assert.Equal(t, uint32(512), sm.Texture().Height())
	assert.Equal(t, gfx.Rect{X: 1024, Width: 512, Height: 512}, sm.SplitViewport(2))

	xOff, yOff, scale := sm.AtlasLayout()
	assert.InDelta(t, 2.0/3, xOff[2], 1e-6)
	assert.Zero(t, yOff)
	assert.InDelta(t, 1.0/3, scale.X(), 1e-6)
	assert.Equal(t, float32(1), scale.Y())
}

func TestPSSMSplitDistancesFollowShadowDistance(t *testing.T) {
	r, _, sm := newSunRig(t, 4)
	require.NoError(t, sm.Render(r.scene, r.diffuse()))

	d := sm.SplitDistances()
	require.Len(t, d, 5)
	assert.InDelta(t, pssmNearDist, d[0], 1e-6)
	assert.InDelta(t, 400, d[4], 1e-3, "camera far 500 is cropped to the shadow distance")
	for i := 1; i < len(d); i++ {
		assert.Greater(t, d[i], d[i-1])
	}
}

func TestPSSMCropCoversSplit(t *testing.T) {
	r, _, sm := newSunRig(t, 4)
	diffuse := r.diffuse()
	require.NoError(t, sm.Render(r.scene, diffuse))

	cam := diffuse.Frustum()
	full := cam
	full.CropNearFar(cam.Near, 400)
	d := sm.SplitDistances()
	eps := float32(2 * 2.0 / 512)

	for i := 0; i < sm.NumSplits(); i++ {
		sub := full
		sub.CropNearFar(d[i], d[i+1])
		scale, offset := sm.SplitCrop(i)
		assert.Equal(t, scale.X(), scale.Y(), "uniform crop scale")

		for _, p := range sub.Points() {
			c := mgl32.TransformCoordinate(p, sm.WorldToLightProj())
			for k := 0; k < 2; k++ {
				v := core.Clamp(c[k], -1, 1)*scale[k] + offset[k]
				assert.GreaterOrEqual(t, v, -1-eps, "split %d axis %d", i, k)
				assert.LessOrEqual(t, v, 1+eps, "split %d axis %d", i, k)
			}

			// The cropped projection matches the crop applied in clip space.
			cropped := mgl32.TransformCoordinate(p, sm.SplitViewProj(i))
			assert.InDelta(t, c.X()*scale.X()+offset.X(), cropped.X(), 1e-3)
			assert.InDelta(t, c.Y()*scale.Y()+offset.Y(), cropped.Y(), 1e-3)
		}
	}
}

func TestPSSMLastSplitTerrainOnly(t *testing.T) {
	r, l, sm := newSunRig(t, 4)
	ParamsFor(l).LastSplitTerrainOnly = true

	far := scene.NewMeshObject("far box", scene.BoxMesh(mgl32.Vec3{2, 2, 2}), r.mat)
	far.Transform.SetPosition(mgl32.Vec3{0, 300, 1})
	r.scene.AddObject(far)

	require.NoError(t, sm.Render(r.scene, r.diffuse()))
	last := sm.SplitViewport(sm.NumSplits() - 1)

	var lastDraws int
	for _, d := range drawsInto(r.dev, base(sm).target) {
		if d.Viewport != last {
			continue
		}
		lastDraws++
		assert.Equal(t, mgl32.Ident4(), d.World, "only the ground is drawn into the last split")
	}
	assert.Positive(t, lastDraws)
}

func TestPSSMMovesSunToFitCamera(t *testing.T) {
	r, l, sm := newSunRig(t, 2)
	require.NoError(t, sm.Render(r.scene, r.diffuse()))

	// The camera sits inside the light volume, in front of the light.
	c := mgl32.TransformCoordinate(mgl32.Vec3{0, -20, 5}, sm.WorldToLightProj())
	for k := 0; k < 3; k++ {
		assert.True(t, c[k] > -1 && c[k] < 1, "axis %d = %f", k, c[k])
	}
	assert.InDelta(t, 0, l.Direction().Sub(mgl32.Vec3{0.3, 0.2, -1}.Normalize()).Len(), 1e-5)
	assert.Greater(t, l.Range, float32(0))
}

func TestPSSMShaderParameters(t *testing.T) {
	r, l, sm := newSunRig(t, 2)
	p := ParamsFor(l)
	p.SplitFadeDistances = mgl32.Vec4{5, 6, 7, 8}
	require.NoError(t, sm.Render(r.scene, r.diffuse()))

	shader, err := r.dev.CreateShader(gfx.ShaderDesc{Name: "light", Constants: LightingConstantDescs()})
	require.NoError(t, err)
	lsc := r.mgr.Registry().ShaderConstants().Get(shader)
	consts := shader.AllocConstBuffer()
	sm.SetShaderParameters(consts, lsc)

	d := sm.SplitDistances()
	v, ok := consts.Value(ConstFarPlaneScalePSSM)
	require.True(t, ok)
	fps := v.(mgl32.Vec4)
	assert.InDelta(t, 500/d[1], fps[0], 1e-3)
	assert.InDelta(t, 500/d[2], fps[1], 1e-3)
	assert.Zero(t, fps[2])

	v, ok = consts.Value(ConstFadeStartLength)
	require.True(t, ok)
	fade := v.(mgl32.Vec2)
	start := (d[1] + d[2]) / 2
	assert.InDelta(t, start, fade.X(), 1e-3)
	assert.InDelta(t, 1/(d[2]-start), fade.Y(), 1e-6)

	v, ok = consts.Value(ConstSplitFade)
	require.True(t, ok)
	assert.Equal(t, p.SplitFadeDistances, v)

	v, ok = consts.Value(ConstAtlasScale)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec2{0.5, 1}, v)

	scale, _ := sm.SplitCrop(1)
	v, ok = consts.Value(ConstScaleX)
	require.True(t, ok)
	assert.Equal(t, scale.X(), v.(mgl32.Vec4)[1])
}

func TestPSSMFadeStartDistOverride(t *testing.T) {
	r, l, sm := newSunRig(t, 2)
	ParamsFor(l).FadeStartDist = 150
	require.NoError(t, sm.Render(r.scene, r.diffuse()))

	fade := sm.FadeStartLength()
	assert.Equal(t, float32(150), fade.X())
	assert.InDelta(t, 1.0/250, fade.Y(), 1e-6)

	ParamsFor(l).FadeStartDist = 1000
	assert.Zero(t, sm.FadeStartLength().Y(), "fade past the last split is disabled")
}
