package scene

import (
	"fmt"
	"sync"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is indexed triangle-list geometry shared between objects. Device
// buffers are created on first use.
type Mesh struct {
	Name    string
	Verts   []gfx.Vertex
	Indices []uint16

	once sync.Once
	vb   gfx.VertexBuffer
	pb   gfx.PrimitiveBuffer
	err  error
}

func (m *Mesh) LocalBox() core.Box3 {
	b := core.EmptyBox()
	for _, v := range m.Verts {
		b.Extend(v.Point)
	}
	return b
}

func (m *Mesh) PrimCount() int { return len(m.Indices) / 3 }

func (m *Mesh) Buffers(dev gfx.Device) (gfx.VertexBuffer, gfx.PrimitiveBuffer, error) {
	m.once.Do(func() {
		m.vb, m.err = dev.CreateVertexBuffer(m.Verts)
		if m.err != nil {
			m.err = fmt.Errorf("mesh %q: %w", m.Name, m.err)
			return
		}
		m.pb, m.err = dev.CreatePrimitiveBuffer(m.Indices)
		if m.err != nil {
			m.err = fmt.Errorf("mesh %q: %w", m.Name, m.err)
		}
	})
	return m.vb, m.pb, m.err
}

// BoxMesh returns an axis-aligned box centered on the origin.
func BoxMesh(halfExtents mgl32.Vec3) *Mesh {
	hx, hy, hz := halfExtents.X(), halfExtents.Y(), halfExtents.Z()
	faces := []struct {
		n       mgl32.Vec3
		corners [4]mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}, {hx, -hy, hz}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-hx, hy, -hz}, {-hx, -hy, -hz}, {-hx, -hy, hz}, {-hx, hy, hz}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{hx, hy, -hz}, {-hx, hy, -hz}, {-hx, hy, hz}, {hx, hy, hz}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}, {-hx, -hy, hz}}},
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{-hx, hy, -hz}, {hx, hy, -hz}, {hx, -hy, -hz}, {-hx, -hy, -hz}}},
	}
	uvs := [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	m := &Mesh{Name: "box"}
	for _, f := range faces {
		base := uint16(len(m.Verts))
		tangent := f.corners[1].Sub(f.corners[0]).Normalize()
		for i, c := range f.corners {
			m.Verts = append(m.Verts, gfx.Vertex{Point: c, Normal: f.n, TexCoord: uvs[i], Tangent: tangent})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// PlaneMesh returns a flat quad in the XY plane facing +Z.
func PlaneMesh(halfSize float32) *Mesh {
	s := halfSize
	n := mgl32.Vec3{0, 0, 1}
	t := mgl32.Vec3{1, 0, 0}
	return &Mesh{
		Name: "plane",
		Verts: []gfx.Vertex{
			{Point: mgl32.Vec3{-s, -s, 0}, Normal: n, TexCoord: mgl32.Vec2{0, 1}, Tangent: t},
			{Point: mgl32.Vec3{s, -s, 0}, Normal: n, TexCoord: mgl32.Vec2{1, 1}, Tangent: t},
			{Point: mgl32.Vec3{s, s, 0}, Normal: n, TexCoord: mgl32.Vec2{1, 0}, Tangent: t},
			{Point: mgl32.Vec3{-s, s, 0}, Normal: n, TexCoord: mgl32.Vec2{0, 0}, Tangent: t},
		},
		Indices: []uint16{0, 1, 2, 0, 2, 3},
	}
}
