package gfx

import (
	"testing"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTexturePoolReuse(t *testing.T) {
	dev := NewNullDevice()
	mgr := dev.Textures()
	desc := TextureDesc{Label: "z", Width: 256, Height: 256, Format: FormatD32F, Profile: ShadowMapZProfile}

	a, err := mgr.Create(desc)
	require.NoError(t, err)
	a.Release()
	a.Release()

	b, err := mgr.Create(desc)
	require.NoError(t, err)
	assert.Same(t, a, b, "released pooled texture is handed out again")
	assert.False(t, b.Released())
	assert.Len(t, dev.Created, 1)

	count, size := mgr.PoolStats()
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(256*256*4), size)

	assert.Equal(t, 0, mgr.CleanupPool(), "held textures stay")
	b.Release()
	assert.Equal(t, 1, mgr.CleanupPool())
	assert.True(t, Unwrap(b).Released())
	count, _ = mgr.PoolStats()
	assert.Equal(t, 0, count)
}

func TestTextureAllocFailure(t *testing.T) {
	dev := NewNullDevice()
	dev.FailTextures = true

	_, err := dev.Textures().Create(TextureDesc{Label: "x", Width: 8, Height: 8, Profile: ShadowMapProfile})
	assert.ErrorIs(t, err, ErrTextureAlloc)

	dev.FailTextures = false
	_, err = dev.Textures().Create(TextureDesc{Label: "huge", Width: 16384, Height: 8})
	assert.ErrorIs(t, err, ErrTextureAlloc)
}

func TestTextureEvents(t *testing.T) {
	dev := NewNullDevice()
	var seen []TextureEvent
	id := dev.Textures().Events().Notify(func(e TextureEvent) { seen = append(seen, e) }, 0)

	dev.Textures().Zombify()
	dev.Textures().Resurrect()
	assert.Equal(t, []TextureEvent{TextureZombify, TextureResurrect}, seen)

	dev.Textures().Events().Remove(id)
	dev.Textures().Zombify()
	assert.Len(t, seen, 2)
}

func TestShaderConstHandles(t *testing.T) {
	s := NewShader(ShaderDesc{
		Name: "test",
		Constants: []ConstDesc{
			{Name: "$lightParams", Type: ConstFloat4},
			{Name: "$shadowMap", Type: ConstSampler, Register: 3},
		},
	})

	h := s.ConstHandle("$lightParams")
	require.NotNil(t, h)
	assert.True(t, h.IsValid())
	missing := s.ConstHandle("$nope")
	require.NotNil(t, missing)
	assert.False(t, missing.IsValid())
	assert.Equal(t, 3, s.ConstHandle("$shadowMap").SamplerRegister())

	buf := s.AllocConstBuffer()
	buf.Set(h, mgl32.Vec4{1, 2, 3, 4})
	buf.Set(missing, 1.0)
	buf.Set(nil, 1.0)
	assert.Equal(t, 1, buf.Len())
	v, ok := buf.Value("$lightParams")
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec4{1, 2, 3, 4}, v)

	reloaded := 0
	s.ReloadSignal().Notify(func(*Shader) { reloaded++ }, 0)
	s.Reload(ShaderDesc{Name: "test", Constants: []ConstDesc{{Name: "$other"}}})
	assert.Equal(t, 1, reloaded)
	assert.False(t, h.IsValid(), "handles go stale on reload")
	assert.True(t, s.ConstHandle("$other").IsValid())
}

func TestMacroKeyIsOrderIndependent(t *testing.T) {
	a := MacroKey([]Macro{{Name: "NO_SHADOW"}, {Name: "SOFTSHADOW"}})
	b := MacroKey([]Macro{{Name: "SOFTSHADOW"}, {Name: "NO_SHADOW"}})
	assert.Equal(t, a, b)
	assert.Equal(t, "A=1", Macro{Name: "A", Value: "1"}.String())
}

func TestNullDeviceStateAndDraws(t *testing.T) {
	dev := NewNullDevice()
	restore := SaveState(dev)

	dev.SetWorldMatrix(mgl32.Translate3D(1, 2, 3))
	dev.SetFrustum(core.OrthoParams(-1, 1, -1, 1, 1, 10))
	dev.SetViewport(Rect{X: 4, Width: 10, Height: 10})
	dev.DrawPrimitive(TriangleStrip, 0, 2)
	dev.DrawIndexedPrimitive(TriangleList, 0, 17, 0, 30)

	require.Len(t, dev.Draws, 2)
	assert.Equal(t, mgl32.Translate3D(1, 2, 3), dev.Draws[0].World)
	assert.Equal(t, 4, dev.Draws[0].Viewport.X)
	assert.True(t, dev.Draws[1].Indexed)
	assert.Equal(t, Statistics{DrawCalls: 2, PolyCount: 32}, dev.Statistics())

	restore()
	assert.Equal(t, mgl32.Ident4(), dev.WorldMatrix())
	assert.Equal(t, mgl32.Ident4(), dev.ProjectionMatrix())
	assert.Equal(t, Rect{}, dev.Viewport())
}

func TestNullDeviceTargets(t *testing.T) {
	dev := NewNullDevice()
	tex, err := dev.Textures().Create(TextureDesc{Label: "rt", Width: 64, Height: 32, Format: FormatR32F, Profile: ShadowMapProfile})
	require.NoError(t, err)

	target := NewTextureTarget("shadow")
	target.AttachTexture(Color0, tex, 0)

	dev.PushActiveRenderTarget()
	dev.SetActiveRenderTarget(target)
	assert.Equal(t, Rect{Width: 64, Height: 32}, dev.Viewport())
	dev.Clear(ClearTarget|ClearZBuffer, mgl32.Vec4{1, 1, 1, 1}, 1, 0)
	dev.PopActiveRenderTarget()

	assert.Nil(t, dev.ActiveRenderTarget())
	assert.Equal(t, 0, dev.TargetDepth())
	require.Len(t, dev.Clears, 1)
	assert.Same(t, target, dev.Clears[0].Target)
}

func TestNullQueryStatus(t *testing.T) {
	dev := NewNullDevice()
	q, err := dev.CreateOcclusionQuery()
	require.NoError(t, err)

	assert.Equal(t, QueryUnset, q.Status(false))
	q.Begin()
	q.End()
	assert.Equal(t, QueryNotOccluded, q.Status(false))
	q.(*NullQuery).Result = QueryOccluded
	assert.Equal(t, QueryOccluded, q.Status(true))

	dev.FailQueries = true
	_, err = dev.CreateOcclusionQuery()
	assert.Error(t, err)
}

func TestWriteTextureValidatesSize(t *testing.T) {
	dev := NewNullDevice()
	tex, err := dev.Textures().Create(TextureDesc{Label: "noise", Width: 2, Height: 2, Format: FormatRGBA8, Profile: PersistentProfile})
	require.NoError(t, err)

	assert.Error(t, dev.WriteTexture(tex, make([]byte, 3)))
	require.NoError(t, dev.WriteTexture(tex, make([]byte, 16)))
	assert.Len(t, dev.Uploads[tex], 16)
}

func TestVertexCount(t *testing.T) {
	assert.Equal(t, 4, VertexCount(TriangleStrip, 2))
	assert.Equal(t, 6, VertexCount(TriangleList, 2))
	assert.Equal(t, 0, VertexCount(TriangleFan, 0))
}
