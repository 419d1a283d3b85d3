package core

import "sync"

type SpecialLightType int

const (
	SunLight SpecialLightType = iota
	specialLightCount
)

// LightManager is what the shadow and light-bin code needs from the owner of
// the scene's lights.
type LightManager interface {
	// ActiveLights returns a snapshot of the registered lights in
	// registration order.
	ActiveLights() []*LightInfo
	SpecialLight(t SpecialLightType) *LightInfo
}

// ExtensionFactory decorates a newly registered light, typically by
// attaching LightInfoEx instances.
type ExtensionFactory func(l *LightInfo)

// SimpleLightManager keeps a flat list of registered lights.
type SimpleLightManager struct {
	mu        sync.Mutex
	lights    []*LightInfo
	special   [specialLightCount]*LightInfo
	factories []ExtensionFactory
	nextOrder uint64
}

func NewSimpleLightManager() *SimpleLightManager {
	return &SimpleLightManager{}
}

// AddExtensionFactory registers f; it runs for every light registered later.
func (m *SimpleLightManager) AddExtensionFactory(f ExtensionFactory) {
	m.mu.Lock()
	m.factories = append(m.factories, f)
	m.mu.Unlock()
}

func (m *SimpleLightManager) RegisterLight(l *LightInfo) {
	m.mu.Lock()
	for _, existing := range m.lights {
		if existing == l {
			m.mu.Unlock()
			return
		}
	}
	m.nextOrder++
	l.order = m.nextOrder
	m.lights = append(m.lights, l)
	factories := append([]ExtensionFactory(nil), m.factories...)
	m.mu.Unlock()

	for _, f := range factories {
		f(l)
	}
}

// UnregisterLight stops reporting l as active. Its extensions survive so the
// light can be registered again later.
func (m *SimpleLightManager) UnregisterLight(l *LightInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.lights {
		if existing == l {
			m.lights = append(m.lights[:i], m.lights[i+1:]...)
			break
		}
	}
	for i, s := range m.special {
		if s == l {
			m.special[i] = nil
		}
	}
}

// RemoveLight unregisters l and destroys its extensions.
func (m *SimpleLightManager) RemoveLight(l *LightInfo) {
	m.UnregisterLight(l)
	l.Destroy()
}

func (m *SimpleLightManager) SetSpecialLight(t SpecialLightType, l *LightInfo) {
	if l != nil {
		m.RegisterLight(l)
	}
	m.mu.Lock()
	m.special[t] = l
	m.mu.Unlock()
}

func (m *SimpleLightManager) SpecialLight(t SpecialLightType) *LightInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.special[t]
}

func (m *SimpleLightManager) ActiveLights() []*LightInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*LightInfo, len(m.lights))
	copy(out, m.lights)
	return out
}
