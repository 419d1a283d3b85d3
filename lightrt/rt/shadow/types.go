package shadow

import (
	"errors"
	"fmt"
	"strings"
)

type ShadowType int

const (
	ShadowTypeNone ShadowType = -1

	ShadowTypeSpot ShadowType = iota - 1
	ShadowTypePSSM
	ShadowTypeParaboloid
	ShadowTypeDualParaboloidSinglePass
	ShadowTypeDualParaboloid
	ShadowTypeCubeMap

	ShadowTypeCount = int(ShadowTypeCubeMap) + 1
)

var shadowTypeNames = map[ShadowType]string{
	ShadowTypeNone:                     "None",
	ShadowTypeSpot:                     "Spot",
	ShadowTypePSSM:                     "PSSM",
	ShadowTypeParaboloid:               "Paraboloid",
	ShadowTypeDualParaboloidSinglePass: "DualParaboloidSinglePass",
	ShadowTypeDualParaboloid:           "DualParaboloid",
	ShadowTypeCubeMap:                  "CubeMap",
}

func (t ShadowType) String() string {
	if n, ok := shadowTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("ShadowType(%d)", int(t))
}

// ParseShadowType accepts the names returned by String, case-insensitively.
func ParseShadowType(s string) (ShadowType, error) {
	for t, n := range shadowTypeNames {
		if strings.EqualFold(n, s) {
			return t, nil
		}
	}
	return ShadowTypeNone, fmt.Errorf("unknown shadow type %q", s)
}

type FilterMode int

const (
	FilterNone FilterMode = iota
	FilterSoftShadow
	FilterSoftShadowHighQuality
)

func (m FilterMode) String() string {
	switch m {
	case FilterNone:
		return "None"
	case FilterSoftShadow:
		return "SoftShadow"
	case FilterSoftShadowHighQuality:
		return "SoftShadowHighQuality"
	}
	return fmt.Sprintf("FilterMode(%d)", int(m))
}

func ParseFilterMode(s string) (FilterMode, error) {
	for _, m := range []FilterMode{FilterNone, FilterSoftShadow, FilterSoftShadowHighQuality} {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return FilterNone, fmt.Errorf("unknown shadow filter mode %q", s)
}

// TextureFlag names the texture a material stage wants bound.
type TextureFlag int

const (
	TexStandard TextureFlag = iota
	TexDynamicLight
	TexDynamicLightMask
	TexLightInfoBuffer
)

var (
	ErrNoSceneManager = errors.New("shadow: no scene manager")
	ErrNoShadowMap    = errors.New("shadow: light has no shadow map")
)
