package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// FrustumParams describes a view volume in camera space: the near-plane
// rectangle plus near/far distances. Left/Right run along X and Bottom/Top
// along Z (up).
type FrustumParams struct {
	Left, Right float32
	Bottom, Top float32
	Near, Far   float32
	Ortho       bool
}

// PerspectiveParams builds a symmetric perspective volume. fovY is in radians.
func PerspectiveParams(fovY, aspect, near, far float32) FrustumParams {
	top := near * float32(math.Tan(float64(fovY)*0.5))
	right := top * aspect
	return FrustumParams{Left: -right, Right: right, Bottom: -top, Top: top, Near: near, Far: far}
}

func OrthoParams(left, right, bottom, top, near, far float32) FrustumParams {
	return FrustumParams{Left: left, Right: right, Bottom: bottom, Top: top, Near: near, Far: far, Ortho: true}
}

// Projection returns the GL-style clip matrix for the volume.
func (p FrustumParams) Projection() mgl32.Mat4 {
	if p.Ortho {
		return mgl32.Ortho(p.Left, p.Right, p.Bottom, p.Top, p.Near, p.Far)
	}
	return mgl32.Frustum(p.Left, p.Right, p.Bottom, p.Top, p.Near, p.Far)
}

// Frustum is a view volume placed in the world by Transform (camera to
// world, Y forward, Z up).
type Frustum struct {
	Transform mgl32.Mat4
	FrustumParams
}

// Corner indices returned by Points.
const (
	NearTopLeft = iota
	NearTopRight
	NearBottomLeft
	NearBottomRight
	FarTopLeft
	FarTopRight
	FarBottomLeft
	FarBottomRight
)

func NewFrustum(transform mgl32.Mat4, params FrustumParams) Frustum {
	return Frustum{Transform: transform, FrustumParams: params}
}

func (f Frustum) Position() mgl32.Vec3 {
	return f.Transform.Col(3).Vec3()
}

func (f Frustum) Forward() mgl32.Vec3 {
	return f.Transform.Col(1).Vec3()
}

// CropNearFar moves the near and far planes, rescaling the near rectangle
// of a perspective volume so the side planes stay put.
func (f *Frustum) CropNearFar(near, far float32) {
	if !f.Ortho && f.Near > 0 {
		s := near / f.Near
		f.Left *= s
		f.Right *= s
		f.Bottom *= s
		f.Top *= s
	}
	f.Near = near
	f.Far = far
}

// CameraPoints returns the 8 corners in camera space.
func (f Frustum) CameraPoints() [8]mgl32.Vec3 {
	farScale := float32(1)
	if !f.Ortho && f.Near > 0 {
		farScale = f.Far / f.Near
	}
	l, r, b, t := f.Left, f.Right, f.Bottom, f.Top
	fl, fr, fb, ft := l*farScale, r*farScale, b*farScale, t*farScale
	return [8]mgl32.Vec3{
		{l, f.Near, t},
		{r, f.Near, t},
		{l, f.Near, b},
		{r, f.Near, b},
		{fl, f.Far, ft},
		{fr, f.Far, ft},
		{fl, f.Far, fb},
		{fr, f.Far, fb},
	}
}

// Points returns the 8 corners in world space.
func (f Frustum) Points() [8]mgl32.Vec3 {
	pts := f.CameraPoints()
	for i, p := range pts {
		pts[i] = mgl32.TransformCoordinate(p, f.Transform)
	}
	return pts
}

func (f Frustum) ViewMatrix() mgl32.Mat4 {
	return ViewFromTransform(f.Transform)
}

func (f Frustum) ViewProjection() mgl32.Mat4 {
	return f.Projection().Mul4(f.ViewMatrix())
}

func (f Frustum) Planes() [6]mgl32.Vec4 {
	return ExtractFrustum(f.ViewProjection())
}

// Bounds returns the world-space AABB of the volume.
func (f Frustum) Bounds() Box3 {
	b := EmptyBox()
	for _, p := range f.Points() {
		b.Extend(p)
	}
	return b
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4

	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[0] = r3.Add(r0) // left
	planes[1] = r3.Sub(r0) // right
	planes[2] = r3.Add(r1) // bottom
	planes[3] = r3.Sub(r1) // top
	planes[4] = r3.Add(r2) // near, GL -1..1 depth
	planes[5] = r3.Sub(r2) // far

	for i := 0; i < 6; i++ {
		length := planes[i].Vec3().Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}

	return planes
}

// yForwardToGL maps camera space (X right, Y forward, Z up) to GL eye space
// (X right, Y up, looking down -Z).
var yForwardToGL = mgl32.Mat4FromRows(
	mgl32.Vec4{1, 0, 0, 0},
	mgl32.Vec4{0, 0, 1, 0},
	mgl32.Vec4{0, -1, 0, 0},
	mgl32.Vec4{0, 0, 0, 1},
)

// ViewFromTransform turns a camera-to-world transform into a GL view matrix.
func ViewFromTransform(m mgl32.Mat4) mgl32.Mat4 {
	return yForwardToGL.Mul4(m.Inv())
}

// TransformFromView inverts ViewFromTransform.
func TransformFromView(view mgl32.Mat4) mgl32.Mat4 {
	return yForwardToGL.Inv().Mul4(view).Inv()
}

// OrientFromDir builds a rotation whose Y axis is dir and whose Z axis is as
// close to world up as possible.
func OrientFromDir(dir mgl32.Vec3) mgl32.Mat4 {
	j := dir.Normalize()
	k := mgl32.Vec3{0, 0, 1}
	if float32(math.Abs(float64(j.Z()))) > 0.999 {
		k = mgl32.Vec3{0, -1, 0}
	}
	i := j.Cross(k).Normalize()
	k = i.Cross(j).Normalize()

	return mgl32.Mat4FromCols(i.Vec4(0), j.Vec4(0), k.Vec4(0), mgl32.Vec4{0, 0, 0, 1})
}
