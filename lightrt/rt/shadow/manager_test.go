package shadow

import (
	"errors"
	"math"
	"testing"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivateNeedsSceneManager(t *testing.T) {
	mgr := NewShadowMapManager(gfx.NewNullDevice())
	err := mgr.Activate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSceneManager))
	assert.False(t, mgr.IsActive())
	assert.Nil(t, mgr.Pass())
}

func TestActivateSubscribesOnce(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.mgr.Activate())
	require.NoError(t, r.mgr.Activate())
	assert.True(t, r.mgr.IsActive())
	assert.Equal(t, 1, r.scene.PreRenderSignal().Len())
	assert.Equal(t, 1, r.dev.Textures().Events().Len())

	r.mgr.Deactivate()
	assert.False(t, r.mgr.IsActive())
	assert.Zero(t, r.scene.PreRenderSignal().Len())
	assert.Zero(t, r.dev.Textures().Events().Len())
	assert.Nil(t, r.mgr.Pass())
	r.mgr.Deactivate()
}

func TestDeactivateReleasesEverything(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.mgr.Activate())
	sm := shadowMapOf(t, r.addNearSpots(1)[0])
	r.scene.RenderFrame(r.diffuse(), ^uint32(0))
	require.True(t, sm.HasShadowTex())
	tap := r.mgr.TapRotationTex()
	require.NotNil(t, tap)

	r.mgr.Deactivate()
	assert.False(t, sm.HasShadowTex())
	assert.True(t, tap.Released())
	pooled, _ := r.dev.Textures().PoolStats()
	assert.Zero(t, pooled)
	assert.Contains(t, r.mgr.Registry().Maps(), sm, "maps outlive the manager's activation")
}

func TestRenderFrameRunsShadowPassForDiffuseOnly(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.mgr.Activate())
	sm := shadowMapOf(t, r.addNearSpots(1)[0])

	reflect := render.NewSceneRenderState(r.scene, render.PassReflect, r.dev, render.NewPassManager("reflect", nil))
	r.scene.RenderFrame(reflect, ^uint32(0))
	assert.False(t, sm.HasShadowTex())

	r.scene.RenderFrame(r.diffuse(), ^uint32(0))
	assert.True(t, sm.HasShadowTex())
	assert.Equal(t, 1, r.mgr.Pass().Stats().UpdatedMaps)
}

func TestSettingsReachRunningPass(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.mgr.Activate())
	s := DefaultSettings()
	s.DisableShadows = true
	r.mgr.SetSettings(s)
	assert.True(t, r.mgr.Pass().Settings().DisableShadows)
	assert.Equal(t, s, r.mgr.Settings())
}

func TestZombifyReleasesShadowTextures(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.mgr.Activate())
	sm := shadowMapOf(t, r.addNearSpots(1)[0])
	r.scene.RenderFrame(r.diffuse(), ^uint32(0))
	require.True(t, sm.HasShadowTex())
	first := r.mgr.TapRotationTex()

	r.dev.Textures().Zombify()
	assert.False(t, sm.HasShadowTex())
	assert.Empty(t, r.mgr.Registry().Used())

	r.dev.Textures().Resurrect()
	second := r.mgr.TapRotationTex()
	require.NotNil(t, second)
	assert.NotSame(t, first, second, "the noise texture is uploaded again")
}

func TestSetLightShadowMapForLight(t *testing.T) {
	r := newRig(t)
	l := r.addNearSpots(1)[0]
	r.mgr.SetLightShadowMapForLight(l)
	assert.Same(t, ParamsFor(l).ShadowMap(), r.mgr.CurrentShadowMap())

	off := core.NewLightInfo(core.LightTypePoint)
	r.mgr.SetLightShadowMapForLight(off)
	assert.Nil(t, r.mgr.CurrentShadowMap(), "lights without params have no map")

	r.mgr.SetLightShadowMap(ParamsFor(l).ShadowMap())
	assert.NotNil(t, r.mgr.CurrentShadowMap())
}

func TestAttachParamsValidates(t *testing.T) {
	r := newRig(t)
	l := r.addPoint(mgl32.Vec3{}, 10, ShadowTypeCubeMap)
	p := ParamsFor(l)
	require.NotNil(t, p)
	assert.Same(t, r.mgr.Registry(), p.reg)

	fresh := core.NewLightInfo(core.LightTypePoint)
	r.mgr.AttachParams(fresh)
	assert.Equal(t, ShadowTypeDualParaboloidSinglePass, ParamsFor(fresh).ShadowType)
	before := ParamsFor(fresh)
	r.mgr.AttachParams(fresh)
	assert.Same(t, before, ParamsFor(fresh))
}

func TestTapRotationImage(t *testing.T) {
	r := newRig(t)
	img := r.mgr.TapRotationImage()
	require.Equal(t, TapRotationSize, img.Bounds().Dx())
	require.Equal(t, TapRotationSize, img.Bounds().Dy())
	assert.Same(t, img, r.mgr.TapRotationImage())

	for y := 0; y < TapRotationSize; y++ {
		for x := 0; x < TapRotationSize; x++ {
			c := img.RGBAAt(x, y)
			require.Zero(t, c.B)
			require.Zero(t, c.A)
			s := float64(c.R)/255*2 - 1
			co := float64(c.G)/255*2 - 1
			require.InDelta(t, 1, s*s+co*co, 0.03, "texel %d,%d", x, y)
		}
	}

	same := newRig(t).mgr.TapRotationImage()
	assert.Equal(t, img.Pix, same.Pix, "same seed, same noise")
	other := newRig(t, WithSeed(8)).mgr.TapRotationImage()
	assert.NotEqual(t, img.Pix, other.Pix)
}

func TestTapRotationTexUpload(t *testing.T) {
	r := newRig(t)
	tex := r.mgr.TapRotationTex()
	require.NotNil(t, tex)
	assert.Equal(t, gfx.FormatRGBA8, tex.Desc().Format)
	assert.Equal(t, r.mgr.TapRotationImage().Pix, r.dev.Uploads[tex])
	assert.Same(t, tex, r.mgr.TapRotationTex())

	r2 := newRig(t)
	r2.dev.FailTextures = true
	assert.Nil(t, r2.mgr.TapRotationTex())
}

func TestTapRotationAngles(t *testing.T) {
	img := newRig(t).mgr.TapRotationImage()
	var minA, maxA float64 = math.Pi, -math.Pi
	for i := 0; i < len(img.Pix); i += 4 {
		a := math.Atan2(float64(img.Pix[i])/255*2-1, float64(img.Pix[i+1])/255*2-1)
		minA = min(minA, a)
		maxA = max(maxA, a)
	}
	// 4096 random angles cover the circle.
	assert.Less(t, minA, -3.0)
	assert.Greater(t, maxA, 3.0)
}
