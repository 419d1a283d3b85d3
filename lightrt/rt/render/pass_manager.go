package render

import (
	"sort"

	"github.com/gekko3d/umbra/lightrt/rt/gfx"
)

// InstFilter decides whether an instance enters a pass.
type InstFilter func(inst *RenderInst) bool

// PassManager bins render instances by type and draws them front to back
// with the material SetupPass loop.
type PassManager struct {
	Name   string
	filter InstFilter
	bins   map[InstType][]*RenderInst

	// Dropped counts instances rejected by the filter since the last Clear.
	Dropped int
}

func NewPassManager(name string, filter InstFilter) *PassManager {
	return &PassManager{
		Name:   name,
		filter: filter,
		bins:   make(map[InstType][]*RenderInst),
	}
}

func (p *PassManager) AddInst(inst *RenderInst) {
	if inst == nil || inst.Material == nil {
		p.Dropped++
		return
	}
	if p.filter != nil && !p.filter(inst) {
		p.Dropped++
		return
	}
	p.bins[inst.Type] = append(p.bins[inst.Type], inst)
}

// Bin returns the instances queued for one type.
func (p *PassManager) Bin(t InstType) []*RenderInst {
	return p.bins[t]
}

func (p *PassManager) Len() int {
	n := 0
	for _, b := range p.bins {
		n += len(b)
	}
	return n
}

func (p *PassManager) Render(state *SceneRenderState) {
	dev := state.Device()
	restore := gfx.SaveState(dev)
	defer restore()

	for _, t := range []InstType{InstTerrain, InstInterior, InstMesh} {
		bin := p.bins[t]
		sort.SliceStable(bin, func(i, j int) bool { return bin[i].SortDist < bin[j].SortDist })
		for _, inst := range bin {
			p.renderInst(state, inst)
		}
	}
}

func (p *PassManager) renderInst(state *SceneRenderState, inst *RenderInst) {
	dev := state.Device()
	mat := inst.Material

	dev.SetWorldMatrix(inst.World)
	matrices := MatrixSetFromDevice(dev)
	sg := NewSceneData(BinRegular)
	sg.ObjTrans = inst.World

	for mat.SetupPass(state, sg) {
		mat.SetTransforms(matrices, state)
		mat.SetSceneInfo(state, sg)
		mat.SetTextureStages(state, sg)

		dev.SetVertexBuffer(inst.VB)
		if inst.PB != nil {
			dev.SetPrimitiveBuffer(inst.PB)
			dev.DrawIndexedPrimitive(inst.PrimType, 0, inst.NumVerts, 0, inst.PrimCount)
		} else {
			dev.DrawPrimitive(inst.PrimType, 0, inst.PrimCount)
		}
	}
}

func (p *PassManager) Clear() {
	for t := range p.bins {
		p.bins[t] = p.bins[t][:0]
	}
	p.Dropped = 0
}
