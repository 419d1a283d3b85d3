package gfx

import (
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the interleaved layout shared by every mesh: position, normal,
// uv and tangent.
type Vertex struct {
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
	Tangent  mgl32.Vec3
}

const VertexStride = 44

type PrimitiveType int

const (
	TriangleList PrimitiveType = iota
	TriangleStrip
	TriangleFan
)

type Rect struct {
	X, Y          int
	Width, Height int
}

type VertexBuffer interface {
	Len() int
	Release()
}

type PrimitiveBuffer interface {
	Len() int
	Release()
}

// ClearFlags selects the buffers Clear touches.
type ClearFlags int

const (
	ClearTarget ClearFlags = 1 << iota
	ClearZBuffer
	ClearStencil
)

// Device is the graphics device the renderer talks to. It is not safe for
// concurrent use; all calls happen on the render goroutine.
type Device interface {
	Textures() *TextureManager

	SetWorldMatrix(m mgl32.Mat4)
	WorldMatrix() mgl32.Mat4
	SetViewMatrix(m mgl32.Mat4)
	ViewMatrix() mgl32.Mat4
	SetProjectionMatrix(m mgl32.Mat4)
	ProjectionMatrix() mgl32.Mat4
	// SetFrustum also replaces the projection matrix.
	SetFrustum(p core.FrustumParams)
	Frustum() core.FrustumParams
	SetViewport(r Rect)
	Viewport() Rect

	PushActiveRenderTarget()
	PopActiveRenderTarget()
	SetActiveRenderTarget(t *TextureTarget)
	ActiveRenderTarget() *TextureTarget
	Clear(flags ClearFlags, color mgl32.Vec4, z float32, stencil uint32)

	WriteTexture(tex Texture, pix []byte) error
	CreateVertexBuffer(verts []Vertex) (VertexBuffer, error)
	CreatePrimitiveBuffer(indices []uint16) (PrimitiveBuffer, error)
	CreateOcclusionQuery() (OcclusionQuery, error)
	CreateShader(desc ShaderDesc) (*Shader, error)

	SetShader(s *Shader, consts *ShaderConstBuffer)
	SetTexture(unit int, tex Texture)
	SetVertexBuffer(vb VertexBuffer)
	SetPrimitiveBuffer(pb PrimitiveBuffer)
	DrawPrimitive(pt PrimitiveType, startVert, primCount int)
	DrawIndexedPrimitive(pt PrimitiveType, startVert, numVerts, startIndex, primCount int)

	Statistics() Statistics
	PixelShaderVersion() float32
	MaxTextureSize() uint32
}

// SaveState snapshots the transform, frustum and viewport state of dev and
// returns a function restoring it.
func SaveState(dev Device) func() {
	world := dev.WorldMatrix()
	view := dev.ViewMatrix()
	proj := dev.ProjectionMatrix()
	frustum := dev.Frustum()
	vp := dev.Viewport()
	return func() {
		dev.SetWorldMatrix(world)
		dev.SetViewMatrix(view)
		dev.SetFrustum(frustum)
		dev.SetProjectionMatrix(proj)
		dev.SetViewport(vp)
	}
}

// VertexCount returns the number of vertices primCount primitives consume.
func VertexCount(pt PrimitiveType, primCount int) int {
	if primCount <= 0 {
		return 0
	}
	if pt == TriangleList {
		return primCount * 3
	}
	return primCount + 2
}
