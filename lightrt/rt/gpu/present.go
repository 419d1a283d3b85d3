package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
)

type blitPipeline struct {
	format   wgpu.TextureFormat
	pipeline *wgpu.RenderPipeline
	sampler  *wgpu.Sampler
}

func (b *blitPipeline) release() {
	b.pipeline.Release()
	b.sampler.Release()
}

// ConfigureSurface sizes the surface given at construction and returns
// the format it presents in.
func (d *Device) ConfigureSurface(width, height int) (wgpu.TextureFormat, error) {
	if d.surface == nil {
		return wgpu.TextureFormatUndefined, fmt.Errorf("device has no surface")
	}
	caps := d.surface.GetCapabilities(d.adapter)
	if len(caps.Formats) == 0 {
		return wgpu.TextureFormatUndefined, fmt.Errorf("surface reports no formats")
	}
	format := caps.Formats[0]
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	})
	return format, nil
}

func (d *Device) blitFor(format wgpu.TextureFormat) (*blitPipeline, error) {
	if d.blit != nil && d.blit.format == format {
		return d.blit, nil
	}
	if d.blit != nil {
		d.blit.release()
		d.blit = nil
	}

	pipeline, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     d.blitModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     d.blitModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blit pipeline: %w", err)
	}
	sampler, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		pipeline.Release()
		return nil, fmt.Errorf("failed to create blit sampler: %w", err)
	}
	d.blit = &blitPipeline{format: format, pipeline: pipeline, sampler: sampler}
	return d.blit, nil
}

// Present flushes pending work and draws src over the whole surface.
func (d *Device) Present(format wgpu.TextureFormat, src gfx.Texture) error {
	d.Flush()
	tex, ok := deviceTexture(src)
	if !ok {
		return fmt.Errorf("present: source texture is not live")
	}
	if tex.desc.Format.IsDepth() {
		return fmt.Errorf("present: cannot blit depth texture %q", tex.desc.Label)
	}
	blit, err := d.blitFor(format)
	if err != nil {
		return err
	}

	next, err := d.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("GetCurrentTexture failed: %w", err)
	}
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		return fmt.Errorf("CreateView failed: %w", err)
	}
	defer view.Release()

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: blit.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: tex.View()},
			{Binding: 1, Sampler: blit.sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create blit bind group: %w", err)
	}
	defer group.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("CreateCommandEncoder failed: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(blit.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		return fmt.Errorf("blit pass end: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish encoder: %w", err)
	}
	defer cmd.Release()
	d.queue.Submit(cmd)
	d.surface.Present()
	return nil
}
