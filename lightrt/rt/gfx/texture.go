package gfx

import "fmt"

type Format int

const (
	FormatRGBA8 Format = iota
	FormatBGRA8
	FormatR32F
	FormatRG16F
	FormatD32F
	FormatD24S8
)

func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatRGBA8, FormatBGRA8, FormatR32F, FormatRG16F, FormatD32F, FormatD24S8:
		return 4
	}
	return 4
}

func (f Format) IsDepth() bool {
	return f == FormatD32F || f == FormatD24S8
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatR32F:
		return "R32F"
	case FormatRG16F:
		return "RG16F"
	case FormatD32F:
		return "D32F"
	case FormatD24S8:
		return "D24S8"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

type TextureKind int

const (
	Texture2D TextureKind = iota
	TextureCube
)

// TextureProfile groups allocation policy for a class of textures.
type TextureProfile struct {
	Name         string
	RenderTarget bool
	ZTarget      bool
	Pooled       bool
	Persistent   bool
}

var (
	ShadowMapProfile   = &TextureProfile{Name: "ShadowMap", RenderTarget: true}
	ShadowMapZProfile  = &TextureProfile{Name: "ShadowMapZ", ZTarget: true, Pooled: true}
	PersistentProfile  = &TextureProfile{Name: "Persistent", Persistent: true}
	LightBufferProfile = &TextureProfile{Name: "LightBuffer", RenderTarget: true}
)

type TextureDesc struct {
	Label   string
	Width   uint32
	Height  uint32
	Format  Format
	Kind    TextureKind
	Profile *TextureProfile
}

func (d TextureDesc) Faces() uint32 {
	if d.Kind == TextureCube {
		return 6
	}
	return 1
}

func (d TextureDesc) SizeBytes() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel()) * uint64(d.Faces())
}

func (d TextureDesc) poolKey() poolKey {
	return poolKey{w: d.Width, h: d.Height, format: d.Format, kind: d.Kind, profile: d.Profile}
}

type poolKey struct {
	w, h    uint32
	format  Format
	kind    TextureKind
	profile *TextureProfile
}

// Texture is a device texture. Release is idempotent.
type Texture interface {
	Desc() TextureDesc
	Width() uint32
	Height() uint32
	Release()
	Released() bool
}
