package gfx

import (
	"fmt"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// DrawRecord is one draw call captured by NullDevice.
type DrawRecord struct {
	Type      PrimitiveType
	PrimCount int
	Indexed   bool
	Target    *TextureTarget
	Viewport  Rect
	World     mgl32.Mat4
	View      mgl32.Mat4
	Proj      mgl32.Mat4
	Shader    *Shader
	Consts    *ShaderConstBuffer
	Textures  map[int]Texture
}

type ClearRecord struct {
	Flags  ClearFlags
	Color  mgl32.Vec4
	Z      float32
	Target *TextureTarget
}

// NullDevice implements Device without a GPU. It keeps enough state to
// inspect what a frame would have drawn.
type NullDevice struct {
	textures *TextureManager

	world, view, proj mgl32.Mat4
	frustum           core.FrustumParams
	viewport          Rect

	target      *TextureTarget
	targetStack []*TextureTarget

	shader  *Shader
	consts  *ShaderConstBuffer
	bound   map[int]Texture
	stats   Statistics
	Draws   []DrawRecord
	Clears  []ClearRecord
	Queries []*NullQuery
	Uploads map[Texture][]byte
	Created []TextureDesc

	// FailTextures makes every texture allocation fail.
	FailTextures bool
	// FailQueries makes CreateOcclusionQuery fail.
	FailQueries bool

	ShaderVersion float32
	MaxTexSize    uint32
}

func NewNullDevice() *NullDevice {
	d := &NullDevice{
		world:         mgl32.Ident4(),
		view:          mgl32.Ident4(),
		proj:          mgl32.Ident4(),
		bound:         make(map[int]Texture),
		Uploads:       make(map[Texture][]byte),
		ShaderVersion: 5.0,
		MaxTexSize:    8192,
	}
	d.textures = NewTextureManager(d.allocTexture)
	return d
}

func (d *NullDevice) allocTexture(desc TextureDesc) (Texture, error) {
	if d.FailTextures {
		return nil, fmt.Errorf("%w: null device refused %dx%d %s", ErrTextureAlloc, desc.Width, desc.Height, desc.Format)
	}
	if desc.Width > d.MaxTexSize || desc.Height > d.MaxTexSize {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrTextureAlloc, desc.Width, desc.Height, d.MaxTexSize)
	}
	d.Created = append(d.Created, desc)
	return &NullTexture{desc: desc}, nil
}

func (d *NullDevice) Textures() *TextureManager { return d.textures }

func (d *NullDevice) SetWorldMatrix(m mgl32.Mat4)      { d.world = m }
func (d *NullDevice) WorldMatrix() mgl32.Mat4          { return d.world }
func (d *NullDevice) SetViewMatrix(m mgl32.Mat4)       { d.view = m }
func (d *NullDevice) ViewMatrix() mgl32.Mat4           { return d.view }
func (d *NullDevice) SetProjectionMatrix(m mgl32.Mat4) { d.proj = m }
func (d *NullDevice) ProjectionMatrix() mgl32.Mat4     { return d.proj }
func (d *NullDevice) Frustum() core.FrustumParams      { return d.frustum }
func (d *NullDevice) SetViewport(r Rect)               { d.viewport = r }
func (d *NullDevice) Viewport() Rect                   { return d.viewport }

func (d *NullDevice) SetFrustum(p core.FrustumParams) {
	d.frustum = p
	d.proj = p.Projection()
}

func (d *NullDevice) PushActiveRenderTarget() {
	d.targetStack = append(d.targetStack, d.target)
}

func (d *NullDevice) PopActiveRenderTarget() {
	if len(d.targetStack) == 0 {
		return
	}
	d.target = d.targetStack[len(d.targetStack)-1]
	d.targetStack = d.targetStack[:len(d.targetStack)-1]
	d.stats.RenderTargetChanges++
}

func (d *NullDevice) SetActiveRenderTarget(t *TextureTarget) {
	d.target = t
	d.stats.RenderTargetChanges++
	if t != nil {
		w, h := t.Size()
		d.viewport = Rect{Width: int(w), Height: int(h)}
	}
}

func (d *NullDevice) ActiveRenderTarget() *TextureTarget { return d.target }

// TargetDepth is the number of pushed render targets.
func (d *NullDevice) TargetDepth() int { return len(d.targetStack) }

func (d *NullDevice) Clear(flags ClearFlags, color mgl32.Vec4, z float32, stencil uint32) {
	d.Clears = append(d.Clears, ClearRecord{Flags: flags, Color: color, Z: z, Target: d.target})
}

func (d *NullDevice) WriteTexture(tex Texture, pix []byte) error {
	if tex == nil || tex.Released() {
		return fmt.Errorf("write to released texture")
	}
	want := int(tex.Desc().SizeBytes())
	if len(pix) != want {
		return fmt.Errorf("texture %q expects %d bytes, got %d", tex.Desc().Label, want, len(pix))
	}
	d.Uploads[tex] = append([]byte(nil), pix...)
	return nil
}

func (d *NullDevice) CreateVertexBuffer(verts []Vertex) (VertexBuffer, error) {
	return &nullBuffer{n: len(verts)}, nil
}

func (d *NullDevice) CreatePrimitiveBuffer(indices []uint16) (PrimitiveBuffer, error) {
	return &nullBuffer{n: len(indices)}, nil
}

func (d *NullDevice) CreateOcclusionQuery() (OcclusionQuery, error) {
	if d.FailQueries {
		return nil, fmt.Errorf("occlusion queries unavailable")
	}
	q := &NullQuery{Result: QueryNotOccluded}
	d.Queries = append(d.Queries, q)
	return q, nil
}

func (d *NullDevice) CreateShader(desc ShaderDesc) (*Shader, error) {
	return NewShader(desc), nil
}

func (d *NullDevice) SetShader(s *Shader, consts *ShaderConstBuffer) {
	d.shader = s
	d.consts = consts
}

func (d *NullDevice) SetTexture(unit int, tex Texture) {
	if tex == nil {
		delete(d.bound, unit)
		return
	}
	d.bound[unit] = tex
}

// BoundTexture returns the texture on a unit.
func (d *NullDevice) BoundTexture(unit int) Texture { return d.bound[unit] }

func (d *NullDevice) SetVertexBuffer(vb VertexBuffer)       {}
func (d *NullDevice) SetPrimitiveBuffer(pb PrimitiveBuffer) {}

func (d *NullDevice) DrawPrimitive(pt PrimitiveType, startVert, primCount int) {
	d.record(pt, primCount, false)
}

func (d *NullDevice) DrawIndexedPrimitive(pt PrimitiveType, startVert, numVerts, startIndex, primCount int) {
	d.record(pt, primCount, true)
}

func (d *NullDevice) record(pt PrimitiveType, primCount int, indexed bool) {
	tex := make(map[int]Texture, len(d.bound))
	for k, v := range d.bound {
		tex[k] = v
	}
	d.Draws = append(d.Draws, DrawRecord{
		Type:      pt,
		PrimCount: primCount,
		Indexed:   indexed,
		Target:    d.target,
		Viewport:  d.viewport,
		World:     d.world,
		View:      d.view,
		Proj:      d.proj,
		Shader:    d.shader,
		Consts:    d.consts,
		Textures:  tex,
	})
	d.stats.DrawCalls++
	d.stats.PolyCount += primCount
}

func (d *NullDevice) Statistics() Statistics      { return d.stats }
func (d *NullDevice) PixelShaderVersion() float32 { return d.ShaderVersion }
func (d *NullDevice) MaxTextureSize() uint32      { return d.MaxTexSize }

// Reset drops recorded draws and clears.
func (d *NullDevice) Reset() {
	d.Draws = nil
	d.Clears = nil
}

type NullTexture struct {
	desc     TextureDesc
	released bool
}

func (t *NullTexture) Desc() TextureDesc { return t.desc }
func (t *NullTexture) Width() uint32     { return t.desc.Width }
func (t *NullTexture) Height() uint32    { return t.desc.Height }
func (t *NullTexture) Release()          { t.released = true }
func (t *NullTexture) Released() bool    { return t.released }

// NullQuery reports Result once it has been ended at least once.
type NullQuery struct {
	Result   QueryStatus
	Begins   int
	Ends     int
	released bool
}

func (q *NullQuery) Begin() { q.Begins++ }
func (q *NullQuery) End()   { q.Ends++ }

func (q *NullQuery) Status(block bool) QueryStatus {
	if q.Ends == 0 {
		return QueryUnset
	}
	return q.Result
}

func (q *NullQuery) Release()       { q.released = true }
func (q *NullQuery) Released() bool { return q.released }

type nullBuffer struct{ n int }

func (b *nullBuffer) Len() int { return b.n }
func (b *nullBuffer) Release() {}
