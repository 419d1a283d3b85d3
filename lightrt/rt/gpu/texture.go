package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
)

// Texture is a device texture with one render view per face.
type Texture struct {
	desc     gfx.TextureDesc
	format   wgpu.TextureFormat
	tex      *wgpu.Texture
	faces    []*wgpu.TextureView
	sampled  *wgpu.TextureView
	released bool
}

func (d *Device) allocTexture(desc gfx.TextureDesc) (gfx.Texture, error) {
	if limit := d.MaxTextureSize(); desc.Width > limit || desc.Height > limit {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", gfx.ErrTextureAlloc, desc.Width, desc.Height, limit)
	}
	format, err := wgpuFormat(desc.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gfx.ErrTextureAlloc, err)
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Faces(),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gfx.ErrTextureAlloc, err)
	}

	t := &Texture{desc: desc, format: format, tex: tex}
	for face := uint32(0); face < desc.Faces(); face++ {
		view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s face %d", desc.Label, face),
			Format:          format,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    0,
			MipLevelCount:   1,
			BaseArrayLayer:  face,
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("%w: face view: %v", gfx.ErrTextureAlloc, err)
		}
		t.faces = append(t.faces, view)
	}

	if desc.Kind == gfx.TextureCube {
		t.sampled, err = tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           desc.Label + " cube",
			Format:          format,
			Dimension:       wgpu.TextureViewDimensionCube,
			MipLevelCount:   1,
			ArrayLayerCount: 6,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("%w: cube view: %v", gfx.ErrTextureAlloc, err)
		}
	} else {
		t.sampled = t.faces[0]
	}

	d.log.Debugf("gpu: created texture %q %dx%d %s", desc.Label, desc.Width, desc.Height, desc.Format)
	return t, nil
}

func (t *Texture) Desc() gfx.TextureDesc { return t.desc }
func (t *Texture) Width() uint32         { return t.desc.Width }
func (t *Texture) Height() uint32        { return t.desc.Height }
func (t *Texture) Released() bool        { return t.released }

// View returns the view shaders sample from.
func (t *Texture) View() *wgpu.TextureView { return t.sampled }

func (t *Texture) faceView(face int) *wgpu.TextureView {
	if face < 0 || face >= len(t.faces) {
		face = 0
	}
	return t.faces[face]
}

func (t *Texture) Release() {
	if t.released {
		return
	}
	t.released = true
	if t.sampled != nil && t.desc.Kind == gfx.TextureCube {
		t.sampled.Release()
	}
	for _, v := range t.faces {
		v.Release()
	}
	t.faces = nil
	t.sampled = nil
	if t.tex != nil {
		t.tex.Release()
	}
}

// deviceTexture resolves pooled handles to the wgpu texture behind them.
func deviceTexture(tex gfx.Texture) (*Texture, bool) {
	if tex == nil {
		return nil, false
	}
	t, ok := gfx.Unwrap(tex).(*Texture)
	if !ok || t.released {
		return nil, false
	}
	return t, true
}

func (d *Device) WriteTexture(tex gfx.Texture, pix []byte) error {
	t, ok := deviceTexture(tex)
	if !ok {
		return fmt.Errorf("write to released or foreign texture")
	}
	want := int(t.desc.SizeBytes())
	if len(pix) != want {
		return fmt.Errorf("texture %q expects %d bytes, got %d", t.desc.Label, want, len(pix))
	}

	extent := wgpu.Extent3D{Width: t.desc.Width, Height: t.desc.Height, DepthOrArrayLayers: t.desc.Faces()}
	return d.queue.WriteTexture(t.tex.AsImageCopy(), pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  t.desc.Width * t.desc.Format.BytesPerPixel(),
		RowsPerImage: t.desc.Height,
	}, &extent)
}
