package gfx

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gekko3d/umbra/lightrt/rt/core"
)

type Macro struct {
	Name  string
	Value string
}

func (m Macro) String() string {
	if m.Value == "" {
		return m.Name
	}
	return m.Name + "=" + m.Value
}

// MacroKey returns a stable key for a macro set.
func MacroKey(macros []Macro) string {
	parts := make([]string, len(macros))
	for i, m := range macros {
		parts[i] = m.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

type ConstType int

const (
	ConstFloat ConstType = iota
	ConstFloat2
	ConstFloat3
	ConstFloat4
	ConstFloat4Array
	ConstMat4
	ConstMat4Array
	ConstSampler
)

type ConstDesc struct {
	Name string
	Type ConstType
	// Register is the texture unit for samplers.
	Register int
}

type ShaderDesc struct {
	Name      string
	Macros    []Macro
	Constants []ConstDesc
}

// ShaderConstHandle names a constant in a shader. Handles for names the
// shader does not declare are invalid and writes through them are dropped.
type ShaderConstHandle struct {
	name     string
	index    int
	register int
	valid    bool
}

func (h *ShaderConstHandle) IsValid() bool { return h != nil && h.valid }

func (h *ShaderConstHandle) Name() string {
	if h == nil {
		return ""
	}
	return h.name
}

// SamplerRegister returns the texture unit bound to a sampler constant.
func (h *ShaderConstHandle) SamplerRegister() int {
	if !h.IsValid() {
		return -1
	}
	return h.register
}

// Shader holds the constant layout of a compiled shader. The device-side
// program lives in the device.
type Shader struct {
	mu      sync.RWMutex
	desc    ShaderDesc
	handles map[string]*ShaderConstHandle
	reload  core.Signal[*Shader]
}

func NewShader(desc ShaderDesc) *Shader {
	s := &Shader{}
	s.setDesc(desc)
	return s
}

func (s *Shader) setDesc(desc ShaderDesc) {
	s.desc = desc
	s.handles = make(map[string]*ShaderConstHandle, len(desc.Constants))
	for i, c := range desc.Constants {
		s.handles[c.Name] = &ShaderConstHandle{name: c.Name, index: i, register: c.Register, valid: true}
	}
}

func (s *Shader) Desc() ShaderDesc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.desc
}

func (s *Shader) Name() string { return s.Desc().Name }

// ConstHandle never returns nil.
func (s *Shader) ConstHandle(name string) *ShaderConstHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.handles[name]; ok {
		return h
	}
	return &ShaderConstHandle{name: name, index: -1}
}

// ReloadSignal fires after the constant layout changed. Handles taken
// before a reload are stale.
func (s *Shader) ReloadSignal() *core.Signal[*Shader] { return &s.reload }

func (s *Shader) Reload(desc ShaderDesc) {
	s.mu.Lock()
	for _, h := range s.handles {
		h.valid = false
	}
	s.setDesc(desc)
	s.mu.Unlock()
	s.reload.Trigger(s)
}

func (s *Shader) AllocConstBuffer() *ShaderConstBuffer {
	return &ShaderConstBuffer{shader: s, values: make(map[string]any)}
}

// ShaderConstBuffer stores constant values for one draw.
type ShaderConstBuffer struct {
	shader *Shader
	values map[string]any
}

func (b *ShaderConstBuffer) Shader() *Shader { return b.shader }

// Set ignores nil and invalid handles.
func (b *ShaderConstBuffer) Set(h *ShaderConstHandle, v any) {
	if !h.IsValid() {
		return
	}
	b.values[h.name] = v
}

func (b *ShaderConstBuffer) Value(name string) (any, bool) {
	v, ok := b.values[name]
	return v, ok
}

func (b *ShaderConstBuffer) Len() int { return len(b.values) }

func (b *ShaderConstBuffer) String() string {
	names := make([]string, 0, len(b.values))
	for n := range b.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Sprintf("consts%v", names)
}
