package gfx

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/umbra/lightrt/rt/core"
)

var ErrTextureAlloc = errors.New("gfx: texture allocation failed")

type TextureEvent int

const (
	// TextureZombify is sent when the device is lost; every texture handle
	// must be dropped.
	TextureZombify TextureEvent = iota
	// TextureResurrect is sent once the device is usable again.
	TextureResurrect
)

func (e TextureEvent) String() string {
	if e == TextureZombify {
		return "zombify"
	}
	return "resurrect"
}

// AllocFunc creates a raw device texture.
type AllocFunc func(desc TextureDesc) (Texture, error)

// TextureManager owns texture pooling and the device-loss signal. Textures
// created with a pooled profile go back to the pool on Release and are
// reused by later requests with the same description.
type TextureManager struct {
	mu     sync.Mutex
	alloc  AllocFunc
	events core.Signal[TextureEvent]

	free     map[poolKey][]Texture
	pooled   int
	poolSize uint64
}

func NewTextureManager(alloc AllocFunc) *TextureManager {
	return &TextureManager{
		alloc: alloc,
		free:  make(map[poolKey][]Texture),
	}
}

// Events is the device-loss notification channel. Handlers run on the
// goroutine that called Zombify or Resurrect, never during a draw.
func (m *TextureManager) Events() *core.Signal[TextureEvent] { return &m.events }

func (m *TextureManager) Create(desc TextureDesc) (Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: %q has zero size", ErrTextureAlloc, desc.Label)
	}
	if desc.Profile == nil || !desc.Profile.Pooled {
		tex, err := m.alloc(desc)
		if err != nil {
			return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
		}
		return tex, nil
	}

	key := desc.poolKey()
	m.mu.Lock()
	if list := m.free[key]; len(list) > 0 {
		tex := list[len(list)-1]
		m.free[key] = list[:len(list)-1]
		m.mu.Unlock()
		pt := tex.(*pooledTexture)
		pt.released = false
		return pt, nil
	}
	m.mu.Unlock()

	raw, err := m.alloc(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pooled texture %q: %w", desc.Label, err)
	}

	m.mu.Lock()
	m.pooled++
	m.poolSize += desc.SizeBytes()
	m.mu.Unlock()

	return &pooledTexture{Texture: raw, mgr: m}, nil
}

func (m *TextureManager) giveBack(pt *pooledTexture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pt.Desc().poolKey()
	m.free[key] = append(m.free[key], pt)
}

// CleanupPool frees pooled textures nobody holds.
func (m *TextureManager) CleanupPool() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	freed := 0
	for key, list := range m.free {
		for _, tex := range list {
			pt := tex.(*pooledTexture)
			m.pooled--
			m.poolSize -= pt.Desc().SizeBytes()
			pt.Texture.Release()
			freed++
		}
		delete(m.free, key)
	}
	return freed
}

// PoolStats reports the number of pooled textures alive and their memory.
func (m *TextureManager) PoolStats() (count int, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pooled, m.poolSize
}

// Zombify signals device loss, then drops the free pool.
func (m *TextureManager) Zombify() {
	m.events.Trigger(TextureZombify)
	m.CleanupPool()
}

func (m *TextureManager) Resurrect() {
	m.events.Trigger(TextureResurrect)
}

type pooledTexture struct {
	Texture
	mgr      *TextureManager
	released bool
}

func (p *pooledTexture) Release() {
	if p.released {
		return
	}
	p.released = true
	p.mgr.giveBack(p)
}

func (p *pooledTexture) Released() bool { return p.released }

// Unwrap returns the device texture behind a pooled handle.
func Unwrap(tex Texture) Texture {
	if pt, ok := tex.(*pooledTexture); ok {
		return pt.Texture
	}
	return tex
}
