package scene

import (
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/render"
)

// Manager owns the scene objects and renders them into a SceneRenderState.
type Manager struct {
	lights    core.LightManager
	log       core.Logger
	preRender core.Signal[*render.SceneRenderState]

	Objects        []*MeshObject
	VisibleObjects []*MeshObject

	grid *SpatialHashGrid

	// BeforeRender runs at the start of every RenderSceneNoLights.
	BeforeRender func(state *render.SceneRenderState)
}

func NewManager(lights core.LightManager, log core.Logger) *Manager {
	if log == nil {
		log = core.NewNopLogger()
	}
	return &Manager{lights: lights, log: log, grid: NewSpatialHashGrid(DefaultCellSize)}
}

func (s *Manager) LightManager() core.LightManager { return s.lights }

func (s *Manager) PreRenderSignal() *core.Signal[*render.SceneRenderState] { return &s.preRender }

func (s *Manager) AddObject(obj *MeshObject) {
	s.Objects = append(s.Objects, obj)
}

func (s *Manager) RemoveObject(obj *MeshObject) {
	for i, o := range s.Objects {
		if o == obj {
			s.Objects = append(s.Objects[:i], s.Objects[i+1:]...)
			return
		}
	}
}

// Cull refreshes bounds and collects the objects matching mask inside f.
// The grid narrows the candidates to the frustum's bounding box before the
// plane test; results keep the order of Objects.
func (s *Manager) Cull(f core.Frustum, mask uint32) []*MeshObject {
	s.grid.Clear()
	for i, obj := range s.Objects {
		obj.UpdateWorldAABB()
		if obj.WorldAABB != nil {
			s.grid.Insert(i, *obj.WorldAABB)
		}
	}

	planes := f.Planes()
	s.VisibleObjects = s.VisibleObjects[:0]
	for _, i := range s.grid.QueryBox(f.Bounds(), len(s.Objects)) {
		obj := s.Objects[i]
		if obj.TypeMask&mask == 0 {
			continue
		}
		if obj.WorldAABB.InFrustum(planes) {
			s.VisibleObjects = append(s.VisibleObjects, obj)
		}
	}
	return s.VisibleObjects
}

// RenderFrame fires the pre-render signal and draws the scene.
func (s *Manager) RenderFrame(state *render.SceneRenderState, mask uint32) {
	s.preRender.Trigger(state)
	s.RenderSceneNoLights(state, mask)
}

func (s *Manager) RenderSceneNoLights(state *render.SceneRenderState, mask uint32) {
	if s.BeforeRender != nil {
		s.BeforeRender(state)
	}
	pass := state.RenderPass()
	if pass == nil {
		return
	}

	for _, obj := range s.Cull(state.Frustum(), mask) {
		if err := obj.PrepRenderImage(state); err != nil {
			s.log.Warnf("skipping %s: %v", obj.Name, err)
		}
	}
	pass.Render(state)
	pass.Clear()
}
