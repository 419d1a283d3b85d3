package core

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type LightType uint32

const (
	LightTypePoint LightType = iota
	LightTypeSpot
	LightTypeVector
	LightTypeAmbient
)

func (t LightType) String() string {
	switch t {
	case LightTypePoint:
		return "Point"
	case LightTypeSpot:
		return "Spot"
	case LightTypeVector:
		return "Vector"
	case LightTypeAmbient:
		return "Ambient"
	}
	return "Unknown"
}

// ExType tags a LightInfoEx implementation. A light holds at most one
// extension per tag.
type ExType string

// LightInfoEx is a runtime extension attached to a LightInfo.
type LightInfoEx interface {
	ExType() ExType
}

// ExSetter is implemented by extensions that can copy state from another
// extension of the same tag.
type ExSetter interface {
	Set(other LightInfoEx)
}

// ExReplicator is implemented by extensions replicated over the network.
type ExReplicator interface {
	PackUpdate(bs *BitStream)
	UnpackUpdate(bs *BitStream)
}

// ExDestroyer is implemented by extensions owning resources that must be
// freed together with the light.
type ExDestroyer interface {
	Destroy()
}

// LightInfo describes a light source. The transform maps light space to world
// space; its Y column is the light direction and Z is up.
type LightInfo struct {
	ID             uuid.UUID
	Type           LightType
	Transform      mgl32.Mat4
	Range          float32
	Color          mgl32.Vec4
	Ambient        mgl32.Vec4
	Brightness     float32
	InnerConeAngle float32 // degrees
	OuterConeAngle float32 // degrees
	CastShadows    bool
	Priority       float32

	order    uint64
	extended map[ExType]LightInfoEx
}

func NewLightInfo(t LightType) *LightInfo {
	return &LightInfo{
		ID:             uuid.New(),
		Type:           t,
		Transform:      mgl32.Ident4(),
		Range:          1,
		Color:          mgl32.Vec4{1, 1, 1, 1},
		Ambient:        mgl32.Vec4{0, 0, 0, 1},
		Brightness:     1,
		InnerConeAngle: 90,
		OuterConeAngle: 90,
		Priority:       1,
	}
}

func (l *LightInfo) Position() mgl32.Vec3 {
	return l.Transform.Col(3).Vec3()
}

func (l *LightInfo) SetPosition(p mgl32.Vec3) {
	l.Transform.SetCol(3, p.Vec4(1))
}

func (l *LightInfo) Direction() mgl32.Vec3 {
	return l.Transform.Col(1).Vec3()
}

// SetDirection reorients the light so that its Y axis points along dir,
// keeping the current position.
func (l *LightInfo) SetDirection(dir mgl32.Vec3) {
	pos := l.Position()
	l.Transform = OrientFromDir(dir)
	l.SetPosition(pos)
}

// Order is the registration order assigned by the light manager.
func (l *LightInfo) Order() uint64 { return l.order }

func (l *LightInfo) Extended(t ExType) LightInfoEx {
	if l.extended == nil {
		return nil
	}
	return l.extended[t]
}

// AddExtended attaches ex, replacing and destroying any previous extension
// with the same tag.
func (l *LightInfo) AddExtended(ex LightInfoEx) {
	if l.extended == nil {
		l.extended = make(map[ExType]LightInfoEx)
	}
	if prev, ok := l.extended[ex.ExType()]; ok && prev != ex {
		if d, ok := prev.(ExDestroyer); ok {
			d.Destroy()
		}
	}
	l.extended[ex.ExType()] = ex
}

func (l *LightInfo) RemoveExtended(t ExType) {
	ex, ok := l.extended[t]
	if !ok {
		return
	}
	delete(l.extended, t)
	if d, ok := ex.(ExDestroyer); ok {
		d.Destroy()
	}
}

// ExtendedTypes returns the attached tags in sorted order.
func (l *LightInfo) ExtendedTypes() []ExType {
	types := make([]ExType, 0, len(l.extended))
	for t := range l.extended {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Set copies the light fields and every extension from other. Extensions
// missing on l are not created.
func (l *LightInfo) Set(other *LightInfo) {
	l.Type = other.Type
	l.Transform = other.Transform
	l.Range = other.Range
	l.Color = other.Color
	l.Ambient = other.Ambient
	l.Brightness = other.Brightness
	l.InnerConeAngle = other.InnerConeAngle
	l.OuterConeAngle = other.OuterConeAngle
	l.CastShadows = other.CastShadows
	l.Priority = other.Priority

	for t, ex := range other.extended {
		if mine, ok := l.extended[t].(ExSetter); ok {
			mine.Set(ex)
		}
	}
}

// PackExtended writes every replicated extension in tag order.
func (l *LightInfo) PackExtended(bs *BitStream) {
	for _, t := range l.ExtendedTypes() {
		if r, ok := l.extended[t].(ExReplicator); ok {
			r.PackUpdate(bs)
		}
	}
}

// UnpackExtended reads extensions written by PackExtended. Both sides must
// carry the same set of replicated extensions.
func (l *LightInfo) UnpackExtended(bs *BitStream) {
	for _, t := range l.ExtendedTypes() {
		if r, ok := l.extended[t].(ExReplicator); ok {
			r.UnpackUpdate(bs)
		}
	}
}

// Destroy releases all extensions.
func (l *LightInfo) Destroy() {
	for _, t := range l.ExtendedTypes() {
		l.RemoveExtended(t)
	}
}

// GetExtended returns the extension with tag t cast to T.
func GetExtended[T LightInfoEx](l *LightInfo, t ExType) (T, bool) {
	var zero T
	if l == nil {
		return zero, false
	}
	ex, ok := l.Extended(t).(T)
	if !ok {
		return zero, false
	}
	return ex, true
}
