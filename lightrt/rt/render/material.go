package render

import (
	"fmt"
	"sync"

	"github.com/gekko3d/umbra/lightrt/rt/gfx"
)

type CullMode int

const (
	CullCCW CullMode = iota
	CullCW
	CullNone
)

func (c CullMode) String() string {
	switch c {
	case CullCW:
		return "cw"
	case CullNone:
		return "none"
	}
	return "ccw"
}

// Definition is the authored description of a material.
type Definition struct {
	Name        string
	CastShadows bool
	Translucent bool
	// Custom materials bring their own shaders and cannot be rebuilt with
	// a different feature set.
	Custom    bool
	Features  FeatureSet
	Constants []gfx.ConstDesc
	Passes    int
	CullMode  CullMode
}

const (
	ConstWorldViewProj = "$modelview"
	ConstObjTrans      = "$objTrans"
	ConstWorldToCamera = "$worldToCamera"
	ConstEyePosWorld   = "$eyePosWorld"
)

// TransformConstants are declared by every generated shader.
var TransformConstants = []gfx.ConstDesc{
	{Name: ConstWorldViewProj, Type: gfx.ConstMat4},
	{Name: ConstObjTrans, Type: gfx.ConstMat4},
	{Name: ConstWorldToCamera, Type: gfx.ConstMat4},
	{Name: ConstEyePosWorld, Type: gfx.ConstFloat3},
}

// MatHook is state another subsystem attaches to a material instance.
type MatHook interface {
	HookType() string
}

// MatInstance is a material definition compiled for one feature set and
// macro set. Drawing with it follows the SetupPass loop:
//
//	for mat.SetupPass(state, sg) {
//		mat.SetTransforms(matrices, state)
//		mat.SetSceneInfo(state, sg)
//		mat.SetTextureStages(state, sg)
//		draw...
//	}
type MatInstance struct {
	def      *Definition
	dev      gfx.Device
	features FeatureSet
	macros   []gfx.Macro
	cull     CullMode

	shader  *gfx.Shader
	consts  *gfx.ShaderConstBuffer
	curPass int
	inited  bool

	hookMu sync.Mutex
	hooks  map[string]MatHook
}

func NewMatInstance(def *Definition, dev gfx.Device) *MatInstance {
	return &MatInstance{def: def, dev: dev, cull: def.CullMode}
}

func (m *MatInstance) Definition() *Definition { return m.def }

func (m *MatInstance) Device() gfx.Device { return m.dev }

func (m *MatInstance) AddShaderMacro(name, value string) {
	m.macros = append(m.macros, gfx.Macro{Name: name, Value: value})
}

func (m *MatInstance) Macros() []gfx.Macro { return append([]gfx.Macro(nil), m.macros...) }

func (m *MatInstance) SetCullMode(c CullMode) { m.cull = c }
func (m *MatInstance) CullMode() CullMode     { return m.cull }

// Init compiles the shader for features. Calling it again recompiles.
func (m *MatInstance) Init(features FeatureSet) error {
	m.features = features
	consts := append(append([]gfx.ConstDesc(nil), TransformConstants...), m.def.Constants...)
	shader, err := m.dev.CreateShader(gfx.ShaderDesc{
		Name:      m.def.Name,
		Macros:    m.macros,
		Constants: consts,
	})
	if err != nil {
		m.inited = false
		return fmt.Errorf("failed to init material %q: %w", m.def.Name, err)
	}
	m.shader = shader
	m.consts = shader.AllocConstBuffer()
	m.inited = true
	return nil
}

func (m *MatInstance) IsValid() bool { return m.inited }

func (m *MatInstance) Features() FeatureSet { return m.features }

func (m *MatInstance) Shader() *gfx.Shader { return m.shader }

func (m *MatInstance) ConstBuffer() *gfx.ShaderConstBuffer { return m.consts }

// ShaderConstHandle returns an invalid handle before Init.
func (m *MatInstance) ShaderConstHandle(name string) *gfx.ShaderConstHandle {
	if m.shader == nil {
		return &gfx.ShaderConstHandle{}
	}
	return m.shader.ConstHandle(name)
}

func (m *MatInstance) NumPasses() int {
	if m.def.Passes <= 0 {
		return 1
	}
	return m.def.Passes
}

// SetupPass binds the next pass and returns false once all passes ran.
func (m *MatInstance) SetupPass(state *SceneRenderState, sg *SceneData) bool {
	if !m.inited || m.curPass >= m.NumPasses() {
		m.curPass = 0
		return false
	}
	m.curPass++
	state.Device().SetShader(m.shader, m.consts)
	return true
}

func (m *MatInstance) SetTransforms(ms *MatrixSet, state *SceneRenderState) {
	m.consts.Set(m.shader.ConstHandle(ConstWorldViewProj), ms.WorldViewProj())
	m.consts.Set(m.shader.ConstHandle(ConstObjTrans), ms.World)
	m.consts.Set(m.shader.ConstHandle(ConstWorldToCamera), ms.View)
}

func (m *MatInstance) SetSceneInfo(state *SceneRenderState, sg *SceneData) {
	m.consts.Set(m.shader.ConstHandle(ConstEyePosWorld), state.CameraPosition())
}

// SetTextureStages binds the textures in sg to consecutive units.
func (m *MatInstance) SetTextureStages(state *SceneRenderState, sg *SceneData) {
	for unit, tex := range sg.Textures {
		state.Device().SetTexture(unit, tex)
	}
}

func (m *MatInstance) Hook(kind string) MatHook {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	return m.hooks[kind]
}

func (m *MatInstance) AddHook(h MatHook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	if m.hooks == nil {
		m.hooks = make(map[string]MatHook)
	}
	m.hooks[h.HookType()] = h
}

func (m *MatInstance) String() string {
	return fmt.Sprintf("%s[%s|%s]", m.def.Name, m.features.Key(), gfx.MacroKey(m.macros))
}
