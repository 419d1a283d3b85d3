package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Box3 struct {
	Min, Max mgl32.Vec3
}

// EmptyBox returns an inverted box that any Extend call will fix up.
func EmptyBox() Box3 {
	inf := float32(1e20)
	return Box3{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func CubeBox(center mgl32.Vec3, halfExtent float32) Box3 {
	e := mgl32.Vec3{halfExtent, halfExtent, halfExtent}
	return Box3{Min: center.Sub(e), Max: center.Add(e)}
}

func (b Box3) IsEmpty() bool {
	return b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() || b.Min.Z() > b.Max.Z()
}

func (b *Box3) Extend(p mgl32.Vec3) {
	b.Min = mgl32.Vec3{min(b.Min.X(), p.X()), min(b.Min.Y(), p.Y()), min(b.Min.Z(), p.Z())}
	b.Max = mgl32.Vec3{max(b.Max.X(), p.X()), max(b.Max.Y(), p.Y()), max(b.Max.Z(), p.Z())}
}

func (b Box3) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box3) Extents() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b Box3) Corners() [8]mgl32.Vec3 {
	return [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}
}

// Transform returns the conservative AABB of the box's corners under m.
func (b Box3) Transform(m mgl32.Mat4) Box3 {
	if b.IsEmpty() {
		return b
	}
	out := EmptyBox()
	for _, c := range b.Corners() {
		out.Extend(m.Mul4x1(c.Vec4(1.0)).Vec3())
	}
	return out
}

// InFrustum checks if the box is visible within the frustum defined by 6 planes.
// Planes are expected to be in Ax+By+Cz+D=0 form, with the normal pointing INSIDE.
func (b Box3) InFrustum(planes [6]mgl32.Vec4) bool {
	for i := 0; i < 6; i++ {
		plane := planes[i]

		// Most-inside corner; if it is behind the plane the whole box is.
		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = b.Max[axis]
			} else {
				p[axis] = b.Min[axis]
			}
		}

		dist := plane[0]*p[0] + plane[1]*p[1] + plane[2]*p[2] + plane[3]
		if dist < 0 {
			return false
		}
	}
	return true
}

// SphereInFrustum reports whether a sphere touches the volume.
func SphereInFrustum(center mgl32.Vec3, radius float32, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		if plane.Vec3().Dot(center)+plane[3] < -radius {
			return false
		}
	}
	return true
}

func ClosestPointOnSegment(a, b, p mgl32.Vec3) mgl32.Vec3 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq < 1e-12 {
		return a
	}
	t := Clamp(p.Sub(a).Dot(ab)/lenSq, 0, 1)
	return a.Add(ab.Mul(t))
}

func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// NextPow2 rounds v up to a power of two. Zero stays zero.
func NextPow2(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

func Sin(deg float32) float32 {
	return float32(math.Sin(float64(mgl32.DegToRad(deg))))
}

func Cos(deg float32) float32 {
	return float32(math.Cos(float64(mgl32.DegToRad(deg))))
}

func Tan(deg float32) float32 {
	return float32(math.Tan(float64(mgl32.DegToRad(deg))))
}
