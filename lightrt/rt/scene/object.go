package scene

import (
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/google/uuid"
)

type MeshObject struct {
	ID        uuid.UUID
	Name      string
	Transform *Transform
	Mesh      *Mesh
	Material  *render.MatInstance
	TypeMask  uint32
	WorldAABB *core.Box3
}

func NewMeshObject(name string, mesh *Mesh, mat *render.MatInstance) *MeshObject {
	return &MeshObject{
		ID:        uuid.New(),
		Name:      name,
		Transform: NewTransform(),
		Mesh:      mesh,
		Material:  mat,
		TypeMask:  render.StaticShapeObjectType,
	}
}

// UpdateWorldAABB recomputes the world bounds when the transform changed.
func (obj *MeshObject) UpdateWorldAABB() bool {
	if !obj.Transform.Dirty && obj.WorldAABB != nil {
		return false
	}

	local := obj.Mesh.LocalBox()
	if local.IsEmpty() {
		obj.WorldAABB = nil
	} else {
		world := local.Transform(obj.Transform.ObjectToWorld())
		obj.WorldAABB = &world
	}

	obj.Transform.Dirty = false
	return true
}

func (obj *MeshObject) instType() render.InstType {
	switch {
	case obj.TypeMask&render.TerrainObjectType != 0:
		return render.InstTerrain
	case obj.TypeMask&render.InteriorObjectType != 0:
		return render.InstInterior
	}
	return render.InstMesh
}

// PrepRenderImage submits the object to the state's render pass.
func (obj *MeshObject) PrepRenderImage(state *render.SceneRenderState) error {
	mat := state.OverrideMaterial(obj.Material)
	if mat == nil {
		return nil
	}
	vb, pb, err := obj.Mesh.Buffers(state.Device())
	if err != nil {
		return err
	}

	world := obj.Transform.ObjectToWorld()
	d := world.Col(3).Vec3().Sub(state.CameraPosition())
	state.RenderPass().AddInst(&render.RenderInst{
		Type:      obj.instType(),
		Material:  mat,
		World:     world,
		VB:        vb,
		PB:        pb,
		PrimType:  gfx.TriangleList,
		NumVerts:  len(obj.Mesh.Verts),
		PrimCount: obj.Mesh.PrimCount(),
		SortDist:  d.Dot(d),
	})
	return nil
}
