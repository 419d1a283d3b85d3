package scene

import (
	"testing"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMaterial(t *testing.T, dev gfx.Device) *render.MatInstance {
	t.Helper()
	mm := render.NewMaterialManager()
	mm.Register(&render.Definition{Name: "Stone", CastShadows: true})
	mat, err := mm.CreateInstance("Stone", dev)
	require.NoError(t, err)
	require.NoError(t, mat.Init(render.NewFeatureSet(render.FeatVertTransform)))
	return mat
}

func TestObjectAABBSeparation(t *testing.T) {
	mesh := BoxMesh(mgl32.Vec3{1, 1, 1})
	obj1 := NewMeshObject("a", mesh, nil)
	obj2 := NewMeshObject("b", mesh, nil)
	obj2.Transform.SetPosition(mgl32.Vec3{100, 100, 100})

	assert.True(t, obj1.UpdateWorldAABB())
	assert.True(t, obj2.UpdateWorldAABB())
	assert.False(t, obj1.UpdateWorldAABB(), "clean transform keeps cached bounds")

	require.NotNil(t, obj1.WorldAABB)
	require.NotNil(t, obj2.WorldAABB)
	for i := 0; i < 3; i++ {
		assert.Less(t, obj1.WorldAABB.Max[i], obj2.WorldAABB.Min[i])
	}
}

func TestTransformComposition(t *testing.T) {
	tr := NewTransform()
	tr.SetPosition(mgl32.Vec3{10, 0, 0})
	tr.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	tr.SetScale(mgl32.Vec3{2, 2, 2})

	p := tr.ObjectToWorld().Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	assert.InDelta(t, 10, p.X(), 1e-4)
	assert.InDelta(t, 2, p.Y(), 1e-4)

	back := tr.WorldToObject().Mul4x1(p.Vec4(1)).Vec3()
	assert.InDelta(t, 1, back.X(), 1e-4)
	assert.InDelta(t, 0, back.Y(), 1e-4)
}

func TestBoxMeshBounds(t *testing.T) {
	m := BoxMesh(mgl32.Vec3{1, 2, 3})
	assert.Len(t, m.Verts, 24)
	assert.Equal(t, 12, m.PrimCount())
	b := m.LocalBox()
	assert.Equal(t, mgl32.Vec3{-1, -2, -3}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.Max)
}

func TestRenderSceneNoLightsCullsAndMasks(t *testing.T) {
	dev := gfx.NewNullDevice()
	mat := newMaterial(t, dev)

	mgr := NewManager(core.NewSimpleLightManager(), nil)
	front := NewMeshObject("front", BoxMesh(mgl32.Vec3{1, 1, 1}), mat)
	front.Transform.SetPosition(mgl32.Vec3{0, 10, 0})
	behind := NewMeshObject("behind", BoxMesh(mgl32.Vec3{1, 1, 1}), mat)
	behind.Transform.SetPosition(mgl32.Vec3{0, -10, 0})
	ground := NewMeshObject("ground", PlaneMesh(50), mat)
	ground.TypeMask = render.TerrainObjectType
	mgr.AddObject(front)
	mgr.AddObject(behind)
	mgr.AddObject(ground)

	dev.SetViewMatrix(core.ViewFromTransform(mgl32.Translate3D(0, 0, 1)))
	dev.SetFrustum(core.PerspectiveParams(mgl32.DegToRad(90), 1, 0.1, 100))
	dev.SetViewport(gfx.Rect{Width: 100, Height: 100})

	pass := render.NewPassManager("diffuse", nil)
	state := render.NewSceneRenderState(mgr, render.PassDiffuse, dev, pass)

	var fired int
	mgr.PreRenderSignal().Notify(func(*render.SceneRenderState) { fired++ }, 0)
	mgr.RenderFrame(state, render.ShadowTypeMask)

	assert.Equal(t, 1, fired)
	assert.ElementsMatch(t, []*MeshObject{front, ground}, mgr.VisibleObjects)
	assert.Len(t, dev.Draws, 2)
	assert.Equal(t, 0, pass.Len(), "pass cleared after render")

	dev.Reset()
	mgr.RenderSceneNoLights(state, render.TerrainObjectType)
	require.Len(t, dev.Draws, 1)
	assert.Equal(t, 2, dev.Draws[0].PrimCount)

	mgr.RemoveObject(ground)
	assert.Len(t, mgr.Objects, 2)
}

func TestOverrideMaterialSkipsObject(t *testing.T) {
	dev := gfx.NewNullDevice()
	mat := newMaterial(t, dev)
	mgr := NewManager(nil, nil)
	obj := NewMeshObject("box", BoxMesh(mgl32.Vec3{1, 1, 1}), mat)
	obj.Transform.SetPosition(mgl32.Vec3{0, 5, 0})
	mgr.AddObject(obj)

	dev.SetFrustum(core.PerspectiveParams(mgl32.DegToRad(90), 1, 0.1, 100))
	dev.SetViewMatrix(core.ViewFromTransform(mgl32.Ident4()))
	pass := render.NewPassManager("shadow", nil)
	state := render.NewSceneRenderState(mgr, render.PassShadow, dev, pass)
	state.SetMaterialDelegate(func(*render.MatInstance) *render.MatInstance { return nil })

	mgr.RenderSceneNoLights(state, render.ShadowTypeMask)
	assert.Empty(t, dev.Draws)
}
