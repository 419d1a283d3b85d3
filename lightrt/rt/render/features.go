package render

import (
	"sort"
	"strings"
)

type FeatureType string

const (
	FeatVertTransform           FeatureType = "VertTransform"
	FeatDiffuseMap              FeatureType = "DiffuseMap"
	FeatTexAnim                 FeatureType = "TexAnim"
	FeatAlphaTest               FeatureType = "AlphaTest"
	FeatVisibility              FeatureType = "Visibility"
	FeatInstancing              FeatureType = "Instancing"
	FeatNormalMap               FeatureType = "NormalMap"
	FeatSpecularMap             FeatureType = "SpecularMap"
	FeatHardwareSkinning        FeatureType = "HardwareSkinning"
	FeatWind                    FeatureType = "Wind"
	FeatParaboloidVertTransform FeatureType = "ParaboloidVertTransform"
	FeatIsSinglePassParaboloid  FeatureType = "IsSinglePassParaboloid"
	FeatEyeSpaceDepthOut        FeatureType = "EyeSpaceDepthOut"
)

type FeatureGroup int

const (
	GroupMisc FeatureGroup = iota
	// GroupPreTransform features modify vertices before the world transform.
	GroupPreTransform
	GroupTransform
	GroupTexture
)

var featureGroups = map[FeatureType]FeatureGroup{
	FeatHardwareSkinning:        GroupPreTransform,
	FeatWind:                    GroupPreTransform,
	FeatVertTransform:           GroupTransform,
	FeatParaboloidVertTransform: GroupTransform,
	FeatDiffuseMap:              GroupTexture,
	FeatNormalMap:               GroupTexture,
	FeatSpecularMap:             GroupTexture,
}

func (f FeatureType) Group() FeatureGroup {
	return featureGroups[f]
}

// FeatureSet is an ordered set of material features.
type FeatureSet struct {
	list []FeatureType
}

func NewFeatureSet(feats ...FeatureType) FeatureSet {
	var fs FeatureSet
	for _, f := range feats {
		fs.Add(f)
	}
	return fs
}

func (fs *FeatureSet) Add(f FeatureType) {
	if fs.Has(f) {
		return
	}
	fs.list = append(fs.list[:len(fs.list):len(fs.list)], f)
}

func (fs *FeatureSet) Remove(f FeatureType) {
	out := make([]FeatureType, 0, len(fs.list))
	for _, x := range fs.list {
		if x != f {
			out = append(out, x)
		}
	}
	fs.list = out
}

func (fs FeatureSet) Has(f FeatureType) bool {
	for _, x := range fs.list {
		if x == f {
			return true
		}
	}
	return false
}

func (fs FeatureSet) Len() int { return len(fs.list) }

func (fs FeatureSet) List() []FeatureType {
	return append([]FeatureType(nil), fs.list...)
}

// FilterGroup returns the features of fs that belong to group.
func (fs FeatureSet) FilterGroup(group FeatureGroup) []FeatureType {
	var out []FeatureType
	for _, f := range fs.list {
		if f.Group() == group {
			out = append(out, f)
		}
	}
	return out
}

// Key is independent of insertion order.
func (fs FeatureSet) Key() string {
	names := make([]string, len(fs.list))
	for i, f := range fs.list {
		names[i] = string(f)
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}
