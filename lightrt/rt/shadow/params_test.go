package shadow

import (
	"testing"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParams(t core.LightType) *ShadowMapParams {
	l := core.NewLightInfo(t)
	l.CastShadows = true
	p := NewShadowMapParams(l, nil)
	l.AddExtended(p)
	return p
}

func TestValidateVectorFourSplitsCapsTexSize(t *testing.T) {
	p := newParams(core.LightTypeVector)
	p.NumSplits = 4
	p.TexSize = 4096
	p.Validate()

	assert.Equal(t, ShadowTypePSSM, p.ShadowType)
	assert.Equal(t, uint32(2048), p.TexSize)

	p.NumSplits = 3
	p.TexSize = 4096
	p.Validate()
	assert.Equal(t, uint32(4096), p.TexSize)
}

func TestValidatePointDefaultsToSinglePassDualParaboloid(t *testing.T) {
	p := newParams(core.LightTypePoint)
	require.Equal(t, ShadowTypeSpot, p.ShadowType)
	p.Validate()
	assert.Equal(t, ShadowTypeDualParaboloidSinglePass, p.ShadowType)
}

func TestValidateShadowTypePerLightType(t *testing.T) {
	tests := []struct {
		name  string
		light core.LightType
		in    ShadowType
		want  ShadowType
	}{
		{"spot keeps spot", core.LightTypeSpot, ShadowTypeSpot, ShadowTypeSpot},
		{"spot rejects cube", core.LightTypeSpot, ShadowTypeCubeMap, ShadowTypeSpot},
		{"vector forces pssm", core.LightTypeVector, ShadowTypeParaboloid, ShadowTypePSSM},
		{"point upgrades pssm", core.LightTypePoint, ShadowTypePSSM, ShadowTypeDualParaboloidSinglePass},
		{"point keeps paraboloid", core.LightTypePoint, ShadowTypeParaboloid, ShadowTypeParaboloid},
		{"point keeps dual", core.LightTypePoint, ShadowTypeDualParaboloid, ShadowTypeDualParaboloid},
		{"point keeps cube", core.LightTypePoint, ShadowTypeCubeMap, ShadowTypeCubeMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParams(tt.light)
			p.ShadowType = tt.in
			p.Validate()
			assert.Equal(t, tt.want, p.ShadowType)
		})
	}
}

func TestValidateClampsSizes(t *testing.T) {
	p := newParams(core.LightTypeSpot)
	p.TexSize = 8
	p.NumSplits = 3
	p.Validate()
	assert.Equal(t, uint32(MinTexSize), p.TexSize)
	assert.Equal(t, uint32(1), p.NumSplits)

	p.TexSize = 1 << 20
	p.Validate()
	assert.Equal(t, uint32(MaxTexSize), p.TexSize)

	v := newParams(core.LightTypeVector)
	v.NumSplits = 9
	v.Validate()
	assert.Equal(t, uint32(MaxSplits), v.NumSplits)
	v.NumSplits = 0
	v.Validate()
	assert.Equal(t, uint32(1), v.NumSplits)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := newParams(core.LightTypeVector)
	src.AttenuationRatio = mgl32.Vec3{0.5, 0.25, 2}
	src.TexSize = 1024
	src.NumSplits = 3
	src.LogWeight = 0.5
	src.OverDarkFactor = mgl32.Vec4{10, 20, 30, 40}
	src.FadeStartDist = 120
	src.LastSplitTerrainOnly = true
	src.SplitFadeDistances = mgl32.Vec4{1, 2, 3, 4}
	src.ShadowDistance = 250
	src.ShadowSoftness = 0.3
	src.Validate()

	bs := core.NewBitStream()
	src.PackUpdate(bs)

	dst := newParams(core.LightTypeVector)
	dst.UnpackUpdate(core.NewBitStreamFrom(bs.Bytes()))

	assert.Equal(t, src.ShadowType, dst.ShadowType)
	assert.Equal(t, src.AttenuationRatio, dst.AttenuationRatio)
	assert.Equal(t, src.TexSize, dst.TexSize)
	assert.Equal(t, src.NumSplits, dst.NumSplits)
	assert.Equal(t, src.LogWeight, dst.LogWeight)
	assert.Equal(t, src.OverDarkFactor, dst.OverDarkFactor)
	assert.Equal(t, src.FadeStartDist, dst.FadeStartDist)
	assert.Equal(t, src.LastSplitTerrainOnly, dst.LastSplitTerrainOnly)
	assert.Equal(t, src.SplitFadeDistances, dst.SplitFadeDistances)
	assert.Equal(t, src.ShadowDistance, dst.ShadowDistance)
	assert.Equal(t, src.ShadowSoftness, dst.ShadowSoftness)
}

func TestPackLayout(t *testing.T) {
	p := newParams(core.LightTypePoint)
	p.ShadowType = ShadowTypeCubeMap
	p.TexSize = 256
	p.LastSplitTerrainOnly = true

	bs := core.NewBitStream()
	p.PackUpdate(bs)

	r := core.NewBitStreamFrom(bs.Bytes())
	assert.Equal(t, uint32(ShadowTypeCubeMap), r.ReadInt(8))
	assert.Equal(t, p.AttenuationRatio, r.ReadVec3())
	assert.Equal(t, uint32(256), r.ReadUint32())
	assert.Equal(t, p.NumSplits, r.ReadUint32())
	assert.Equal(t, p.LogWeight, r.ReadFloat32())
	assert.Equal(t, p.OverDarkFactor, r.ReadVec4())
	assert.Equal(t, p.FadeStartDist, r.ReadFloat32())
	assert.True(t, r.ReadFlag())
	assert.Equal(t, p.SplitFadeDistances, r.ReadVec4())
	assert.Equal(t, p.ShadowDistance, r.ReadFloat32())
	assert.Equal(t, p.ShadowSoftness, r.ReadFloat32())
	assert.NoError(t, r.Err())
}

func TestUnpackTypeChangeDropsShadowMap(t *testing.T) {
	p := newParams(core.LightTypePoint)
	p.ShadowType = ShadowTypeCubeMap
	sm := p.GetOrCreateShadowMap()
	require.IsType(t, &CubeLightShadowMap{}, sm)

	other := newParams(core.LightTypePoint)
	other.ShadowType = ShadowTypeParaboloid
	bs := core.NewBitStream()
	other.PackUpdate(bs)

	p.UnpackUpdate(core.NewBitStreamFrom(bs.Bytes()))
	assert.Nil(t, p.ShadowMap())
	assert.Empty(t, p.reg.Maps())
	assert.IsType(t, &ParaboloidLightShadowMap{}, p.GetOrCreateShadowMap())
}

func TestUnpackTruncatedKeepsValues(t *testing.T) {
	p := newParams(core.LightTypePoint)
	p.ShadowType = ShadowTypeCubeMap
	p.TexSize = 1024
	sm := p.GetOrCreateShadowMap()

	other := newParams(core.LightTypePoint)
	other.ShadowType = ShadowTypeParaboloid
	other.TexSize = 256
	bs := core.NewBitStream()
	other.PackUpdate(bs)

	short := core.NewBitStreamFrom(bs.Bytes()[:6])
	p.UnpackUpdate(short)
	assert.ErrorIs(t, short.Err(), core.ErrStreamUnderflow)
	assert.Equal(t, ShadowTypeCubeMap, p.ShadowType)
	assert.Equal(t, uint32(1024), p.TexSize)
	assert.Same(t, sm, p.ShadowMap())
}

func TestGetOrCreateShadowMapPerType(t *testing.T) {
	spot := newParams(core.LightTypeSpot)
	assert.IsType(t, &SingleLightShadowMap{}, spot.GetOrCreateShadowMap())
	assert.Same(t, spot.ShadowMap(), spot.GetOrCreateShadowMap())

	sun := newParams(core.LightTypeVector)
	assert.IsType(t, &PSSMLightShadowMap{}, sun.GetOrCreateShadowMap())
	assert.True(t, sun.ShadowMap().IsViewDependent())

	point := newParams(core.LightTypePoint)
	sm := point.GetOrCreateShadowMap()
	assert.IsType(t, &DualParaboloidLightShadowMap{}, sm)
	assert.Equal(t, ShadowTypeDualParaboloidSinglePass, sm.ShadowType())

	off := newParams(core.LightTypeSpot)
	off.Light().CastShadows = false
	assert.Nil(t, off.GetOrCreateShadowMap())
}

func TestSetCopiesAndDropsMapOnTypeChange(t *testing.T) {
	a := newParams(core.LightTypePoint)
	a.ShadowType = ShadowTypeCubeMap
	a.GetOrCreateShadowMap()

	b := newParams(core.LightTypePoint)
	b.ShadowType = ShadowTypeDualParaboloid
	b.TexSize = 128
	b.ShadowSoftness = 0.5

	a.Set(b)
	assert.Nil(t, a.ShadowMap())
	assert.Equal(t, ShadowTypeDualParaboloid, a.ShadowType)
	assert.Equal(t, uint32(128), a.TexSize)
	assert.Equal(t, float32(0.5), a.ShadowSoftness)
}

func TestLightDestroyDropsShadowMap(t *testing.T) {
	p := newParams(core.LightTypeSpot)
	reg := p.reg
	p.GetOrCreateShadowMap()
	require.Len(t, reg.Maps(), 1)

	p.Light().Destroy()
	assert.Empty(t, reg.Maps())
}

func TestSetField(t *testing.T) {
	p := newParams(core.LightTypePoint)

	require.NoError(t, p.SetField("texSize", "1024"))
	assert.Equal(t, uint32(1024), p.TexSize)

	require.NoError(t, p.SetField("shadowType", "cubemap"))
	assert.Equal(t, ShadowTypeCubeMap, p.ShadowType)

	require.NoError(t, p.SetField("attenuationRatio", "1 2 3"))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, p.AttenuationRatio)

	require.NoError(t, p.SetField("overDarkFactor", []float64{4, 3, 2, 1}))
	assert.Equal(t, mgl32.Vec4{4, 3, 2, 1}, p.OverDarkFactor)

	require.NoError(t, p.SetField("lastSplitTerrainOnly", "true"))
	assert.True(t, p.LastSplitTerrainOnly)

	assert.Error(t, p.SetField("overDarkFactor", []float64{1, 2, 3}))
	assert.Error(t, p.SetField("texSize", "huge"))
	assert.Error(t, p.SetField("nope", 1))

	require.NoError(t, p.SetField("texSize", 99999))
	assert.Equal(t, uint32(MaxTexSize), p.TexSize, "set re-validates")

	v, err := p.GetField("shadowType")
	require.NoError(t, err)
	assert.Equal(t, "CubeMap", v)

	spot := newParams(core.LightTypeSpot)
	require.NoError(t, spot.SetField("shadowType", "CubeMap"))
	assert.Equal(t, ShadowTypeSpot, spot.ShadowType)
}

func TestFieldsSorted(t *testing.T) {
	fields := Fields()
	require.Len(t, fields, len(paramFields))
	for i := 1; i < len(fields); i++ {
		assert.Less(t, fields[i-1].Name, fields[i].Name)
	}
}
