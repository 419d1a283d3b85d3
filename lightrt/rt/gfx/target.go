package gfx

type AttachSlot int

const (
	Color0 AttachSlot = iota
	DepthStencil
	numSlots
)

type Attachment struct {
	Texture Texture
	Face    int
}

// TextureTarget is a set of texture attachments drawn into as a unit.
// Face selects the cube face for cube attachments.
type TextureTarget struct {
	Label    string
	attached [numSlots]Attachment
	resolved int
}

func NewTextureTarget(label string) *TextureTarget {
	return &TextureTarget{Label: label}
}

func (t *TextureTarget) AttachTexture(slot AttachSlot, tex Texture, face int) {
	t.attached[slot] = Attachment{Texture: tex, Face: face}
}

func (t *TextureTarget) Attachment(slot AttachSlot) Attachment {
	return t.attached[slot]
}

// Resolve marks the end of rendering into the current attachments.
func (t *TextureTarget) Resolve() { t.resolved++ }

func (t *TextureTarget) ResolveCount() int { return t.resolved }

// Size returns the size of the color attachment, or of the depth attachment
// when no color is bound.
func (t *TextureTarget) Size() (uint32, uint32) {
	for _, a := range t.attached {
		if a.Texture != nil {
			return a.Texture.Width(), a.Texture.Height()
		}
	}
	return 0, 0
}
