package shadow

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cast"
)

// Field describes one externally settable shadow parameter.
type Field struct {
	Name string
	Doc  string
	get  func(p *ShadowMapParams) any
	set  func(p *ShadowMapParams, v any) error
}

var paramFields = map[string]Field{
	"shadowType": {
		Name: "shadowType",
		Doc:  "Shadow technique; corrected to one the light type supports.",
		get:  func(p *ShadowMapParams) any { return p.ShadowType.String() },
		set: func(p *ShadowMapParams, v any) error {
			var t ShadowType
			switch x := v.(type) {
			case ShadowType:
				t = x
			case string:
				var err error
				if t, err = ParseShadowType(x); err != nil {
					return err
				}
			default:
				n, err := cast.ToIntE(v)
				if err != nil {
					return err
				}
				t = ShadowType(n)
			}
			p.SetShadowType(t)
			return nil
		},
	},
	"texSize": {
		Name: "texSize",
		Doc:  "Shadow texture size in pixels, 32 to 4096.",
		get:  func(p *ShadowMapParams) any { return p.TexSize },
		set: func(p *ShadowMapParams, v any) error {
			n, err := cast.ToUint32E(v)
			if err == nil {
				p.TexSize = n
			}
			return err
		},
	},
	"numSplits": {
		Name: "numSplits",
		Doc:  "PSSM split count, 1 to 4.",
		get:  func(p *ShadowMapParams) any { return p.NumSplits },
		set: func(p *ShadowMapParams, v any) error {
			n, err := cast.ToUint32E(v)
			if err == nil {
				p.NumSplits = n
			}
			return err
		},
	},
	"logWeight": floatField("logWeight", "Blend between linear and logarithmic PSSM split distances.",
		func(p *ShadowMapParams) *float32 { return &p.LogWeight }),
	"shadowDistance": floatField("shadowDistance", "Maximum distance from the camera covered by PSSM shadows.",
		func(p *ShadowMapParams) *float32 { return &p.ShadowDistance }),
	"shadowSoftness": floatField("shadowSoftness", "Filter radius in texels.",
		func(p *ShadowMapParams) *float32 { return &p.ShadowSoftness }),
	"fadeStartDistance": floatField("fadeStartDistance", "Distance at which PSSM shadows start fading out; 0 disables the fade.",
		func(p *ShadowMapParams) *float32 { return &p.FadeStartDist }),
	"lastSplitTerrainOnly": {
		Name: "lastSplitTerrainOnly",
		Doc:  "Render only terrain into the last PSSM split.",
		get:  func(p *ShadowMapParams) any { return p.LastSplitTerrainOnly },
		set: func(p *ShadowMapParams, v any) error {
			b, err := cast.ToBoolE(v)
			if err == nil {
				p.LastSplitTerrainOnly = b
			}
			return err
		},
	},
	"attenuationRatio": {
		Name: "attenuationRatio",
		Doc:  "Light attenuation coefficients.",
		get:  func(p *ShadowMapParams) any { return p.AttenuationRatio },
		set: func(p *ShadowMapParams, v any) error {
			f, err := toFloats(v, 3)
			if err == nil {
				p.AttenuationRatio = mgl32.Vec3{f[0], f[1], f[2]}
			}
			return err
		},
	},
	"overDarkFactor": {
		Name: "overDarkFactor",
		Doc:  "Per-split darkening factors.",
		get:  func(p *ShadowMapParams) any { return p.OverDarkFactor },
		set: func(p *ShadowMapParams, v any) error {
			f, err := toFloats(v, 4)
			if err == nil {
				p.OverDarkFactor = mgl32.Vec4{f[0], f[1], f[2], f[3]}
			}
			return err
		},
	},
	"splitFadeDistances": {
		Name: "splitFadeDistances",
		Doc:  "Per-split fade distances.",
		get:  func(p *ShadowMapParams) any { return p.SplitFadeDistances },
		set: func(p *ShadowMapParams, v any) error {
			f, err := toFloats(v, 4)
			if err == nil {
				p.SplitFadeDistances = mgl32.Vec4{f[0], f[1], f[2], f[3]}
			}
			return err
		},
	},
}

func floatField(name, doc string, ptr func(p *ShadowMapParams) *float32) Field {
	return Field{
		Name: name,
		Doc:  doc,
		get:  func(p *ShadowMapParams) any { return *ptr(p) },
		set: func(p *ShadowMapParams, v any) error {
			f, err := cast.ToFloat32E(v)
			if err == nil {
				*ptr(p) = f
			}
			return err
		},
	}
}

// toFloats accepts a slice, a vector or a space separated string.
func toFloats(v any, n int) ([]float32, error) {
	var parts []any
	switch x := v.(type) {
	case string:
		for _, s := range strings.Fields(x) {
			parts = append(parts, s)
		}
	case mgl32.Vec3:
		for _, f := range x {
			parts = append(parts, f)
		}
	case mgl32.Vec4:
		for _, f := range x {
			parts = append(parts, f)
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("cannot read %T as a vector", v)
		}
		for i := 0; i < rv.Len(); i++ {
			parts = append(parts, rv.Index(i).Interface())
		}
	}
	if len(parts) != n {
		return nil, fmt.Errorf("want %d components, got %d", n, len(parts))
	}
	out := make([]float32, n)
	for i, part := range parts {
		f, err := cast.ToFloat32E(part)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// Fields lists the settable parameter names in sorted order.
func Fields() []Field {
	out := make([]Field, 0, len(paramFields))
	for _, f := range paramFields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetField sets a parameter by name and revalidates.
func (p *ShadowMapParams) SetField(name string, value any) error {
	f, ok := paramFields[name]
	if !ok {
		return fmt.Errorf("unknown shadow field %q", name)
	}
	if err := f.set(p, value); err != nil {
		return fmt.Errorf("shadow field %s: %w", name, err)
	}
	p.Validate()
	return nil
}

func (p *ShadowMapParams) GetField(name string) (any, error) {
	f, ok := paramFields[name]
	if !ok {
		return nil, fmt.Errorf("unknown shadow field %q", name)
	}
	return f.get(p), nil
}
