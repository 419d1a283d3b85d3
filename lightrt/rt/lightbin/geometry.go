package lightbin

import (
	"math"

	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/scene"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	sphereSubdivisions = 2
	coneSides          = 16
)

// SphereMesh returns a unit sphere built by subdividing an icosahedron.
// Two subdivisions give 162 vertices and 320 triangles.
func SphereMesh() *scene.Mesh {
	t := float32((1 + math.Sqrt(5)) / 2)
	points := []mgl32.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range points {
		points[i] = points[i].Normalize()
	}
	faces := [][3]uint16{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	for s := 0; s < sphereSubdivisions; s++ {
		mids := make(map[[2]uint16]uint16)
		midpoint := func(a, b uint16) uint16 {
			key := [2]uint16{min(a, b), max(a, b)}
			if idx, ok := mids[key]; ok {
				return idx
			}
			idx := uint16(len(points))
			points = append(points, points[a].Add(points[b]).Normalize())
			mids[key] = idx
			return idx
		}

		next := make([][3]uint16, 0, len(faces)*4)
		for _, f := range faces {
			ab := midpoint(f[0], f[1])
			bc := midpoint(f[1], f[2])
			ca := midpoint(f[2], f[0])
			next = append(next,
				[3]uint16{f[0], ab, ca},
				[3]uint16{f[1], bc, ab},
				[3]uint16{f[2], ca, bc},
				[3]uint16{ab, bc, ca},
			)
		}
		faces = next
	}

	m := &scene.Mesh{Name: "lightSphere"}
	for _, p := range points {
		u := 0.5 + float32(math.Atan2(float64(p.Y()), float64(p.X()))/(2*math.Pi))
		v := 0.5 - float32(math.Asin(float64(p.Z()))/math.Pi)
		m.Verts = append(m.Verts, gfx.Vertex{Point: p, Normal: p, TexCoord: mgl32.Vec2{u, v}})
	}
	for _, f := range faces {
		m.Indices = append(m.Indices, f[0], f[1], f[2])
	}
	return m
}

// ConeMesh returns a unit cone with its apex at the origin opening along
// +Y. The base is a 16-sided ring of radius 1 at y = 1.
func ConeMesh() *scene.Mesh {
	m := &scene.Mesh{Name: "lightCone"}
	m.Verts = append(m.Verts, gfx.Vertex{Normal: mgl32.Vec3{0, -1, 0}})
	for i := 0; i < coneSides; i++ {
		a := 2 * math.Pi * float64(i) / coneSides
		p := mgl32.Vec3{float32(math.Cos(a)), 1, float32(math.Sin(a))}
		m.Verts = append(m.Verts, gfx.Vertex{
			Point:    p,
			Normal:   mgl32.Vec3{p.X(), -1, p.Z()}.Normalize(),
			TexCoord: mgl32.Vec2{float32(i) / coneSides, 1},
		})
	}

	ring := func(i int) uint16 { return uint16(1 + i%coneSides) }
	for i := 0; i < coneSides; i++ {
		m.Indices = append(m.Indices, 0, ring(i+1), ring(i))
	}
	// Cap as a fan around the first ring vertex.
	for i := 1; i < coneSides-1; i++ {
		m.Indices = append(m.Indices, ring(0), ring(i), ring(i+1))
	}
	return m
}

// farFrustumQuad returns the four far plane corners of the camera frustum
// relative to the camera position, in triangle strip order. The lighting
// shaders rebuild world positions from these rays and the depth buffer.
func farFrustumQuad(points [8]mgl32.Vec3, eye mgl32.Vec3) []gfx.Vertex {
	// Far corners: 4 top-left, 5 top-right, 6 bottom-left, 7 bottom-right.
	corners := [4]struct {
		ndc mgl32.Vec3
		uv  mgl32.Vec2
		ray mgl32.Vec3
	}{
		{mgl32.Vec3{-1, 1, 0}, mgl32.Vec2{0, 0}, points[4].Sub(eye)},
		{mgl32.Vec3{1, 1, 0}, mgl32.Vec2{1, 0}, points[5].Sub(eye)},
		{mgl32.Vec3{-1, -1, 0}, mgl32.Vec2{0, 1}, points[6].Sub(eye)},
		{mgl32.Vec3{1, -1, 0}, mgl32.Vec2{1, 1}, points[7].Sub(eye)},
	}
	verts := make([]gfx.Vertex, len(corners))
	for i, c := range corners {
		verts[i] = gfx.Vertex{Point: c.ndc, Normal: c.ray, TexCoord: c.uv}
	}
	return verts
}
