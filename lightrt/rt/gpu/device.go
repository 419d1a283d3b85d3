package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/shaders"
	"github.com/gekko3d/umbra/lightrt/rt/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// Device implements gfx.Device on WebGPU. Draws are recorded per render
// target and submitted as one render pass when the target changes or on
// Flush.
type Device struct {
	log core.Logger

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	limits   wgpu.Limits

	drawModule *wgpu.ShaderModule
	blitModule *wgpu.ShaderModule
	pipelines  map[pipelineKey]*wgpu.RenderPipeline
	blit       *blitPipeline

	textures *gfx.TextureManager

	world, view, proj mgl32.Mat4
	frustum           core.FrustumParams
	viewport          gfx.Rect

	target      *gfx.TextureTarget
	targetStack []*gfx.TextureTarget
	pending     pendingPass

	consts *gfx.ShaderConstBuffer
	vb     *vertexBuffer
	pb     *indexBuffer
	stats  gfx.Statistics

	// Buffers released while draws still reference them.
	retired []*wgpu.Buffer
}

type Option func(*Device)

func WithLogger(log core.Logger) Option {
	return func(d *Device) { d.log = log }
}

// WithInstance reuses an instance the caller created a surface from.
func WithInstance(inst *wgpu.Instance) Option {
	return func(d *Device) { d.instance = inst }
}

// WithSurface selects an adapter able to present to surface.
func WithSurface(s *wgpu.Surface) Option {
	return func(d *Device) { d.surface = s }
}

func NewDevice(opts ...Option) (*Device, error) {
	d := &Device{
		log:       core.NewNopLogger(),
		world:     mgl32.Ident4(),
		view:      mgl32.Ident4(),
		proj:      mgl32.Ident4(),
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.instance == nil {
		d.instance = wgpu.CreateInstance(nil)
	}
	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = adapter

	d.device, err = adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.queue = d.device.GetQueue()
	d.limits = d.device.GetLimits().Limits

	d.drawModule, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Draw Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.DrawWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create draw shader: %w", err)
	}
	d.blitModule, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BlitWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blit shader: %w", err)
	}

	d.textures = gfx.NewTextureManager(d.allocTexture)
	d.log.Infof("gpu: device ready, max texture size %d", d.MaxTextureSize())
	return d, nil
}

// Close drops every texture handle and releases the device.
func (d *Device) Close() {
	d.Flush()
	d.textures.Zombify()
	for _, p := range d.pipelines {
		p.Release()
	}
	d.pipelines = map[pipelineKey]*wgpu.RenderPipeline{}
	if d.blit != nil {
		d.blit.release()
		d.blit = nil
	}
	if d.drawModule != nil {
		d.drawModule.Release()
	}
	if d.blitModule != nil {
		d.blitModule.Release()
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
}

// WGPU exposes the underlying device and queue.
func (d *Device) WGPU() (*wgpu.Device, *wgpu.Queue) { return d.device, d.queue }

func (d *Device) Adapter() *wgpu.Adapter { return d.adapter }

func (d *Device) Textures() *gfx.TextureManager { return d.textures }

func (d *Device) SetWorldMatrix(m mgl32.Mat4)      { d.world = m }
func (d *Device) WorldMatrix() mgl32.Mat4          { return d.world }
func (d *Device) SetViewMatrix(m mgl32.Mat4)       { d.view = m }
func (d *Device) ViewMatrix() mgl32.Mat4           { return d.view }
func (d *Device) SetProjectionMatrix(m mgl32.Mat4) { d.proj = m }
func (d *Device) ProjectionMatrix() mgl32.Mat4     { return d.proj }
func (d *Device) Frustum() core.FrustumParams      { return d.frustum }
func (d *Device) SetViewport(r gfx.Rect)           { d.viewport = r }
func (d *Device) Viewport() gfx.Rect               { return d.viewport }

func (d *Device) SetFrustum(p core.FrustumParams) {
	d.frustum = p
	d.proj = p.Projection()
}

func (d *Device) PushActiveRenderTarget() {
	d.targetStack = append(d.targetStack, d.target)
}

func (d *Device) PopActiveRenderTarget() {
	if len(d.targetStack) == 0 {
		return
	}
	d.switchTarget(d.targetStack[len(d.targetStack)-1])
	d.targetStack = d.targetStack[:len(d.targetStack)-1]
}

func (d *Device) SetActiveRenderTarget(t *gfx.TextureTarget) {
	d.switchTarget(t)
	if t != nil {
		w, h := t.Size()
		d.viewport = gfx.Rect{Width: int(w), Height: int(h)}
	}
}

func (d *Device) switchTarget(t *gfx.TextureTarget) {
	d.Flush()
	d.target = t
	d.pending = pendingPass{target: t}
	d.stats.RenderTargetChanges++
}

func (d *Device) ActiveRenderTarget() *gfx.TextureTarget { return d.target }

// Clear applies to the next pass on the active target. Draws already
// recorded are submitted first so the clear does not erase them.
func (d *Device) Clear(flags gfx.ClearFlags, color mgl32.Vec4, z float32, stencil uint32) {
	if len(d.pending.draws) > 0 {
		d.Flush()
	}
	d.pending.clear = &clearCmd{flags: flags, color: color, z: z, stencil: stencil}
}

func (d *Device) CreateVertexBuffer(verts []gfx.Vertex) (gfx.VertexBuffer, error) {
	if len(verts) == 0 {
		return nil, fmt.Errorf("empty vertex buffer")
	}
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Vertex Buffer",
		Contents: wgpu.ToBytes(verts),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex buffer: %w", err)
	}
	return &vertexBuffer{dev: d, buf: buf, n: len(verts)}, nil
}

func (d *Device) CreatePrimitiveBuffer(indices []uint16) (gfx.PrimitiveBuffer, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty index buffer")
	}
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Index Buffer",
		Contents: wgpu.ToBytes(padIndices(indices)),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index buffer: %w", err)
	}
	return &indexBuffer{dev: d, buf: buf, n: len(indices)}, nil
}

// CreateOcclusionQuery returns a query that never reports occlusion.
// Results are not read back from the GPU.
func (d *Device) CreateOcclusionQuery() (gfx.OcclusionQuery, error) {
	return &visibleQuery{}, nil
}

// CreateShader keeps the constant layout on the CPU. Every draw goes
// through the fixed draw pipeline.
func (d *Device) CreateShader(desc gfx.ShaderDesc) (*gfx.Shader, error) {
	return gfx.NewShader(desc), nil
}

func (d *Device) SetShader(s *gfx.Shader, consts *gfx.ShaderConstBuffer) {
	d.consts = consts
}

// SetTexture is a no-op: the draw pipeline samples nothing.
func (d *Device) SetTexture(unit int, tex gfx.Texture) {}

func (d *Device) SetVertexBuffer(vb gfx.VertexBuffer) {
	d.vb, _ = vb.(*vertexBuffer)
}

func (d *Device) SetPrimitiveBuffer(pb gfx.PrimitiveBuffer) {
	d.pb, _ = pb.(*indexBuffer)
}

func (d *Device) DrawPrimitive(pt gfx.PrimitiveType, startVert, primCount int) {
	d.record(pt, startVert, gfx.VertexCount(pt, primCount), primCount, false)
}

func (d *Device) DrawIndexedPrimitive(pt gfx.PrimitiveType, startVert, numVerts, startIndex, primCount int) {
	d.record(pt, startIndex, gfx.VertexCount(pt, primCount), primCount, true)
}

func (d *Device) record(pt gfx.PrimitiveType, first, count, primCount int, indexed bool) {
	topo, ok := topology(pt)
	if !ok {
		d.log.Warnf("gpu: primitive type %d not supported, draw dropped", pt)
		return
	}
	if d.target == nil || d.vb == nil || d.vb.buf == nil || count == 0 {
		return
	}
	var ib *wgpu.Buffer
	if indexed {
		if d.pb == nil || d.pb.buf == nil {
			return
		}
		ib = d.pb.buf
	}

	mode := modeColor
	if c := d.target.Attachment(gfx.Color0).Texture; c == nil || !blendable(c.Desc().Format) {
		mode = modeDepth
	}
	d.pending.draws = append(d.pending.draws, drawCmd{
		uniforms: drawUniforms{
			mvp:   d.proj.Mul4(d.view).Mul4(d.world),
			color: drawColor(d.consts, shadow.ConstLightColor, shadow.ConstLightBrightness),
			mode:  mode,
		},
		vb:       d.vb.buf,
		ib:       ib,
		topology: topo,
		first:    uint32(first),
		count:    uint32(count),
		indexed:  indexed,
		viewport: d.viewport,
	})
	d.stats.DrawCalls++
	d.stats.PolyCount += primCount
}

func (d *Device) Statistics() gfx.Statistics { return d.stats }

// PixelShaderVersion reports WGSL as shader model 5 class hardware.
func (d *Device) PixelShaderVersion() float32 { return 5.0 }

func (d *Device) MaxTextureSize() uint32 {
	if d.limits.MaxTextureDimension2D == 0 {
		return 8192
	}
	return d.limits.MaxTextureDimension2D
}

// retire frees buf after the pending pass is submitted.
func (d *Device) retire(buf *wgpu.Buffer) {
	if buf == nil {
		return
	}
	if len(d.pending.draws) == 0 {
		buf.Release()
		return
	}
	d.retired = append(d.retired, buf)
}

type vertexBuffer struct {
	dev *Device
	buf *wgpu.Buffer
	n   int
}

func (b *vertexBuffer) Len() int { return b.n }
func (b *vertexBuffer) Release() {
	b.dev.retire(b.buf)
	b.buf = nil
}

type indexBuffer struct {
	dev *Device
	buf *wgpu.Buffer
	n   int
}

func (b *indexBuffer) Len() int { return b.n }
func (b *indexBuffer) Release() {
	b.dev.retire(b.buf)
	b.buf = nil
}

type visibleQuery struct {
	ended bool
}

func (q *visibleQuery) Begin()   {}
func (q *visibleQuery) End()     { q.ended = true }
func (q *visibleQuery) Release() {}

func (q *visibleQuery) Status(block bool) gfx.QueryStatus {
	if !q.ended {
		return gfx.QueryUnset
	}
	return gfx.QueryNotOccluded
}
