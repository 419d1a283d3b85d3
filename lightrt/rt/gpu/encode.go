package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// uniformSize is mvp (64) + color (16) + mode (16).
	uniformSize = 96
	// uniformStride keeps every draw's slot on the minimum uniform offset
	// alignment.
	uniformStride = 256
)

type drawMode float32

const (
	modeColor drawMode = 0
	modeDepth drawMode = 1
)

type drawUniforms struct {
	mvp   mgl32.Mat4
	color mgl32.Vec4
	mode  drawMode
}

func (u drawUniforms) put(buf []byte) {
	for i, v := range u.mvp {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for i, v := range u.color {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[80:], math.Float32bits(float32(u.mode)))
}

// packUniforms lays out one uniform slot per draw.
func packUniforms(draws []drawCmd) []byte {
	buf := make([]byte, len(draws)*uniformStride)
	for i := range draws {
		draws[i].uniforms.put(buf[i*uniformStride:])
	}
	return buf
}

func wgpuFormat(f gfx.Format) (wgpu.TextureFormat, error) {
	switch f {
	case gfx.FormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm, nil
	case gfx.FormatBGRA8:
		return wgpu.TextureFormatBGRA8Unorm, nil
	case gfx.FormatR32F:
		return wgpu.TextureFormatR32Float, nil
	case gfx.FormatRG16F:
		return wgpu.TextureFormatRG16Float, nil
	case gfx.FormatD32F:
		return wgpu.TextureFormatDepth32Float, nil
	case gfx.FormatD24S8:
		return wgpu.TextureFormatDepth24PlusStencil8, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("unsupported texture format %s", f)
}

// blendable reports whether additive blending is valid on a color format.
func blendable(f gfx.Format) bool {
	return f == gfx.FormatRGBA8 || f == gfx.FormatBGRA8
}

func textureUsage(desc gfx.TextureDesc) wgpu.TextureUsage {
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if p := desc.Profile; p != nil && (p.RenderTarget || p.ZTarget) {
		usage |= wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc
	}
	if desc.Format.IsDepth() {
		usage = wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	}
	return usage
}

func topology(pt gfx.PrimitiveType) (wgpu.PrimitiveTopology, bool) {
	switch pt {
	case gfx.TriangleList:
		return wgpu.PrimitiveTopologyTriangleList, true
	case gfx.TriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip, true
	}
	// No fan topology in WebGPU.
	return 0, false
}

// drawColor is the light color scaled by brightness when the constants
// carry one, white otherwise.
func drawColor(consts *gfx.ShaderConstBuffer, colorName, brightnessName string) mgl32.Vec4 {
	color := mgl32.Vec4{1, 1, 1, 1}
	if consts == nil {
		return color
	}
	if v, ok := consts.Value(colorName); ok {
		if c, ok := v.(mgl32.Vec4); ok {
			color = c
		}
	}
	if v, ok := consts.Value(brightnessName); ok {
		if b, ok := v.(float32); ok {
			color = mgl32.Vec4{color[0] * b, color[1] * b, color[2] * b, color[3]}
		}
	}
	return color
}

// padIndices rounds the index data up to a 4 byte multiple.
func padIndices(indices []uint16) []uint16 {
	if len(indices)%2 == 0 {
		return indices
	}
	return append(append(make([]uint16, 0, len(indices)+1), indices...), 0)
}
