package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestFrustumCulling(t *testing.T) {
	// Camera at origin looking down +Y, 90 deg FOV, near 1, far 100.
	f := NewFrustum(mgl32.Ident4(), PerspectiveParams(mgl32.DegToRad(90), 1.0, 1.0, 100.0))
	planes := f.Planes()

	tests := []struct {
		name     string
		box      Box3
		expected bool
	}{
		{"Inside (center)", Box3{mgl32.Vec3{-1, 5, -1}, mgl32.Vec3{1, 10, 1}}, true},
		{"Outside (Left)", Box3{mgl32.Vec3{-20, 5, -1}, mgl32.Vec3{-15, 10, 1}}, false},
		{"Outside (Right)", Box3{mgl32.Vec3{15, 5, -1}, mgl32.Vec3{20, 10, 1}}, false},
		{"Outside (Behind)", Box3{mgl32.Vec3{-1, -5, -1}, mgl32.Vec3{1, -2, 1}}, false},
		{"Outside (Far)", Box3{mgl32.Vec3{-1, 150, -1}, mgl32.Vec3{1, 200, 1}}, false},
		{"Outside (Above)", Box3{mgl32.Vec3{-1, 5, 15}, mgl32.Vec3{1, 10, 20}}, false},
		{"Intersecting (Left Plane)", Box3{mgl32.Vec3{-15, 5, -1}, mgl32.Vec3{-5, 10, 1}}, true},
		{"Encompassing (Huge box)", Box3{mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{1000, 1000, 1000}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.box.InFrustum(planes))
		})
	}
}

func TestFrustumPointsAndCrop(t *testing.T) {
	f := NewFrustum(mgl32.Translate3D(0, 0, 10), PerspectiveParams(mgl32.DegToRad(90), 1.0, 1.0, 100.0))

	pts := f.Points()
	// 90 deg FOV: the far rectangle half-size equals the far distance.
	assert.InDelta(t, -100, pts[FarTopLeft].X(), 1e-3)
	assert.InDelta(t, 100, pts[FarTopLeft].Y(), 1e-3)
	assert.InDelta(t, 110, pts[FarTopLeft].Z(), 1e-3)
	assert.InDelta(t, 1, pts[NearBottomRight].X(), 1e-3)
	assert.InDelta(t, 9, pts[NearBottomRight].Z(), 1e-3)

	f.CropNearFar(10, 50)
	pts = f.Points()
	assert.InDelta(t, -10, pts[NearTopLeft].X(), 1e-3)
	assert.InDelta(t, 10, pts[NearTopLeft].Y(), 1e-3)
	assert.InDelta(t, 50, pts[FarTopRight].X(), 1e-3)
	assert.InDelta(t, 50, pts[FarTopRight].Y(), 1e-3)
}

func TestViewFromTransformLooksDownY(t *testing.T) {
	view := ViewFromTransform(mgl32.Translate3D(1, 2, 3))
	p := mgl32.TransformCoordinate(mgl32.Vec3{1, 7, 3}, view)
	assert.InDelta(t, 0, p.X(), 1e-5)
	assert.InDelta(t, 0, p.Y(), 1e-5)
	assert.InDelta(t, -5, p.Z(), 1e-5)
}

func TestOrientFromDir(t *testing.T) {
	dirs := []mgl32.Vec3{
		{0, 1, 0},
		{1, 0, 0},
		{0.3, -0.4, -0.8},
		{0, 0, -1},
	}
	for _, d := range dirs {
		m := OrientFromDir(d)
		y := m.Col(1).Vec3()
		assert.InDelta(t, 1, y.Dot(d.Normalize()), 1e-5)
		// Orthonormal basis
		x := m.Col(0).Vec3()
		z := m.Col(2).Vec3()
		assert.InDelta(t, 0, x.Dot(y), 1e-5)
		assert.InDelta(t, 0, y.Dot(z), 1e-5)
		assert.InDelta(t, 1, x.Cross(y).Dot(z), 1e-5)
	}
}

func TestBoxTransform(t *testing.T) {
	b := Box3{mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}}
	moved := b.Transform(mgl32.Translate3D(10, 0, 0).Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(45))))

	assert.InDelta(t, 10, moved.Center().X(), 1e-4)
	assert.InDelta(t, 2*1.41421, moved.Extents().X(), 1e-3)
	assert.InDelta(t, 2, moved.Extents().Z(), 1e-4)
	assert.True(t, EmptyBox().IsEmpty())
}

func TestClosestPointOnSegment(t *testing.T) {
	a := mgl32.Vec3{0, 0, 0}
	b := mgl32.Vec3{0, 10, 0}

	assert.Equal(t, mgl32.Vec3{0, 4, 0}, ClosestPointOnSegment(a, b, mgl32.Vec3{5, 4, 0}))
	assert.Equal(t, a, ClosestPointOnSegment(a, b, mgl32.Vec3{0, -3, 1}))
	assert.Equal(t, b, ClosestPointOnSegment(a, b, mgl32.Vec3{0, 30, 0}))
}

func TestNextPow2(t *testing.T) {
	cases := map[uint32]uint32{0: 0, 1: 1, 2: 2, 3: 4, 31: 32, 32: 32, 33: 64, 1000: 1024, 4096: 4096}
	for in, want := range cases {
		assert.Equal(t, want, NextPow2(in), "NextPow2(%d)", in)
	}
}

func TestTransformFromViewRoundTrip(t *testing.T) {
	m := mgl32.Translate3D(4, -2, 7).Mul4(OrientFromDir(mgl32.Vec3{0.2, 0.7, -0.3}))
	back := TransformFromView(ViewFromTransform(m))
	for i := 0; i < 16; i++ {
		assert.InDelta(t, m[i], back[i], 1e-4)
	}
}
