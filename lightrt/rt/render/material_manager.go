package render

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gekko3d/umbra/lightrt/rt/gfx"
)

const WarningMaterialName = "WarningMaterial"

// MaterialManager maps material names to definitions and creates instances.
type MaterialManager struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

func NewMaterialManager() *MaterialManager {
	m := &MaterialManager{defs: make(map[string]*Definition)}
	m.Register(&Definition{
		Name:        WarningMaterialName,
		CastShadows: true,
		Features:    NewFeatureSet(FeatVertTransform),
	})
	return m
}

func (m *MaterialManager) Register(def *Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.Name] = def
}

func (m *MaterialManager) Definition(name string) (*Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.defs[name]
	return d, ok
}

func (m *MaterialManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.defs))
	for n := range m.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CreateInstance returns an uninitialized instance of the named material.
func (m *MaterialManager) CreateInstance(name string, dev gfx.Device) (*MatInstance, error) {
	def, ok := m.Definition(name)
	if !ok {
		return nil, fmt.Errorf("material %q not found", name)
	}
	return NewMatInstance(def, dev), nil
}

// WarningMaterial returns an initialized instance of the fallback material.
func (m *MaterialManager) WarningMaterial(dev gfx.Device, features FeatureSet) *MatInstance {
	def, _ := m.Definition(WarningMaterialName)
	inst := NewMatInstance(def, dev)
	if err := inst.Init(features); err != nil {
		return nil
	}
	return inst
}
