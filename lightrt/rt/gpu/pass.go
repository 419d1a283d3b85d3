package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/go-gl/mathgl/mgl32"
)

type clearCmd struct {
	flags   gfx.ClearFlags
	color   mgl32.Vec4
	z       float32
	stencil uint32
}

type drawCmd struct {
	uniforms drawUniforms
	vb, ib   *wgpu.Buffer
	topology wgpu.PrimitiveTopology
	first    uint32
	count    uint32
	indexed  bool
	viewport gfx.Rect
}

// pendingPass is the work recorded against one render target.
type pendingPass struct {
	target *gfx.TextureTarget
	clear  *clearCmd
	draws  []drawCmd
}

func (p *pendingPass) empty() bool {
	return p.target == nil || (p.clear == nil && len(p.draws) == 0)
}

type pipelineKey struct {
	color    wgpu.TextureFormat
	depth    wgpu.TextureFormat
	topology wgpu.PrimitiveTopology
	blend    bool
}

// Flush submits the work recorded for the active target.
func (d *Device) Flush() {
	p := d.pending
	d.pending = pendingPass{target: d.target}
	defer d.releaseRetired()
	if p.empty() || d.device == nil {
		return
	}
	if err := d.submit(&p); err != nil {
		d.log.Errorf("gpu: pass on %q failed: %v", p.target.Label, err)
	}
}

func (d *Device) releaseRetired() {
	for _, b := range d.retired {
		b.Release()
	}
	d.retired = d.retired[:0]
}

type attachment struct {
	tex  *Texture
	view *wgpu.TextureView
}

func resolveAttachment(t *gfx.TextureTarget, slot gfx.AttachSlot) (attachment, bool) {
	a := t.Attachment(slot)
	tex, ok := deviceTexture(a.Texture)
	if !ok {
		return attachment{}, false
	}
	return attachment{tex: tex, view: tex.faceView(a.Face)}, true
}

func (d *Device) submit(p *pendingPass) error {
	color, hasColor := resolveAttachment(p.target, gfx.Color0)
	depth, hasDepth := resolveAttachment(p.target, gfx.DepthStencil)
	if !hasColor && !hasDepth {
		return fmt.Errorf("target has no live attachments")
	}

	desc := &wgpu.RenderPassDescriptor{Label: p.target.Label}
	key := pipelineKey{}
	if hasColor {
		ca := wgpu.RenderPassColorAttachment{
			View:    color.view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if p.clear != nil && p.clear.flags&gfx.ClearTarget != 0 {
			c := p.clear.color
			ca.LoadOp = wgpu.LoadOpClear
			ca.ClearValue = wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{ca}
		key.color = color.tex.format
		key.blend = blendable(color.tex.desc.Format)
	}
	if hasDepth {
		da := &wgpu.RenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
		if p.clear != nil && p.clear.flags&gfx.ClearZBuffer != 0 {
			da.DepthLoadOp = wgpu.LoadOpClear
			da.DepthClearValue = p.clear.z
		}
		if depth.tex.desc.Format == gfx.FormatD24S8 {
			da.StencilLoadOp = wgpu.LoadOpLoad
			da.StencilStoreOp = wgpu.StoreOpStore
			if p.clear != nil && p.clear.flags&gfx.ClearStencil != 0 {
				da.StencilLoadOp = wgpu.LoadOpClear
				da.StencilClearValue = p.clear.stencil
			}
		}
		desc.DepthStencilAttachment = da
		key.depth = depth.tex.format
	}

	var uniforms *wgpu.Buffer
	if len(p.draws) > 0 {
		data := packUniforms(p.draws)
		var err error
		uniforms, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Draw Uniforms",
			Size:  uint64(len(data)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("failed to create uniform buffer: %w", err)
		}
		defer uniforms.Release()
		d.queue.WriteBuffer(uniforms, 0, data)
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	var groups []*wgpu.BindGroup
	defer func() {
		for _, g := range groups {
			g.Release()
		}
	}()

	pass := encoder.BeginRenderPass(desc)
	w, h := p.target.Size()
	for i, dc := range p.draws {
		key.topology = dc.topology
		pipeline, err := d.pipeline(key)
		if err != nil {
			pass.End()
			return err
		}
		group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: pipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: uniforms, Offset: uint64(i * uniformStride), Size: uniformSize},
			},
		})
		if err != nil {
			pass.End()
			return fmt.Errorf("failed to create bind group: %w", err)
		}
		groups = append(groups, group)

		vp := clampViewport(dc.viewport, w, h)
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, group, nil)
		pass.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), 0, 1)
		pass.SetVertexBuffer(0, dc.vb, 0, wgpu.WholeSize)
		if dc.indexed {
			pass.SetIndexBuffer(dc.ib, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
			pass.DrawIndexed(dc.count, 1, dc.first, 0, 0)
		} else {
			pass.Draw(dc.count, 1, dc.first, 0)
		}
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("render pass end: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish encoder: %w", err)
	}
	defer cmd.Release()
	d.queue.Submit(cmd)
	return nil
}

// clampViewport keeps r inside a w x h target. An empty rect covers it.
func clampViewport(r gfx.Rect, w, h uint32) gfx.Rect {
	if r.Width <= 0 || r.Height <= 0 {
		return gfx.Rect{Width: int(w), Height: int(h)}
	}
	r.X = max(0, min(r.X, int(w)-1))
	r.Y = max(0, min(r.Y, int(h)-1))
	r.Width = min(r.Width, int(w)-r.X)
	r.Height = min(r.Height, int(h)-r.Y)
	return r
}

var vertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: gfx.VertexStride,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 32, ShaderLocation: 3},
	},
}

func (d *Device) pipeline(key pipelineKey) (*wgpu.RenderPipeline, error) {
	if p, ok := d.pipelines[key]; ok {
		return p, nil
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label: "Draw Pipeline",
		Vertex: wgpu.VertexState{
			Module:     d.drawModule,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  key.topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if key.topology == wgpu.PrimitiveTopologyTriangleStrip {
		desc.Primitive.StripIndexFormat = wgpu.IndexFormatUint16
	}
	if key.color != wgpu.TextureFormatUndefined {
		target := wgpu.ColorTargetState{
			Format:    key.color,
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if key.blend {
			add := wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			}
			target.Blend = &wgpu.BlendState{Color: add, Alpha: add}
		}
		desc.Fragment = &wgpu.FragmentState{
			Module:     d.drawModule,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{target},
		}
	}
	if key.depth != wgpu.TextureFormatUndefined {
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            key.depth,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	p, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create draw pipeline: %w", err)
	}
	d.pipelines[key] = p
	return p, nil
}
