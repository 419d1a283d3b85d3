package app

import (
	"fmt"
	"math/rand/v2"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/gekko3d/umbra/lightrt/rt/scene"
	"github.com/go-gl/mathgl/mgl32"
)

const demoMaterial = "DemoStone"

// PopulateDemo fills the scene with a ground plane, a grid of boxes, a
// shadowed sun and n local lights placed by rng. Two out of three local
// lights cast shadows.
func (a *App) PopulateDemo(rng *rand.Rand, n int) error {
	mm := a.Shadows.Registry().Materials()
	if _, ok := mm.Definition(demoMaterial); !ok {
		mm.Register(&render.Definition{Name: demoMaterial, CastShadows: true})
	}
	mat, err := mm.CreateInstance(demoMaterial, a.Device)
	if err != nil {
		return err
	}
	if err := mat.Init(render.NewFeatureSet(render.FeatVertTransform)); err != nil {
		return fmt.Errorf("demo material: %w", err)
	}

	a.Scene.AddObject(scene.NewMeshObject("ground", scene.PlaneMesh(60), mat))
	for x := -2; x <= 2; x++ {
		for y := -2; y <= 2; y++ {
			h := 1 + rng.Float32()*3
			box := scene.NewMeshObject(fmt.Sprintf("box_%d_%d", x, y), scene.BoxMesh(mgl32.Vec3{1.5, 1.5, h}), mat)
			box.Transform.SetPosition(mgl32.Vec3{float32(x) * 10, float32(y) * 10, h})
			a.Scene.AddObject(box)
		}
	}

	sun := core.NewLightInfo(core.LightTypeVector)
	sun.CastShadows = true
	sun.Color = mgl32.Vec4{1, 0.95, 0.85, 1}
	sun.Ambient = mgl32.Vec4{0.15, 0.15, 0.2, 1}
	sun.SetDirection(mgl32.Vec3{0.4, 0.3, -1})
	a.Lights.SetSpecialLight(core.SunLight, sun)

	for i := 0; i < n; i++ {
		lt := core.LightTypePoint
		if i%2 == 1 {
			lt = core.LightTypeSpot
		}
		l := core.NewLightInfo(lt)
		l.CastShadows = i%3 != 2
		l.Range = 8 + rng.Float32()*12
		l.Color = mgl32.Vec4{0.5 + rng.Float32()*0.5, 0.5 + rng.Float32()*0.5, 0.5 + rng.Float32()*0.5, 1}
		l.Brightness = 0.5 + rng.Float32()
		if lt == core.LightTypeSpot {
			l.OuterConeAngle = 60 + rng.Float32()*40
			l.InnerConeAngle = l.OuterConeAngle * 0.6
			l.SetDirection(mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, -1})
		}
		l.SetPosition(mgl32.Vec3{rng.Float32()*80 - 40, rng.Float32()*80 - 40, 3 + rng.Float32()*7})
		a.Lights.RegisterLight(l)
	}
	a.log.Infof("demo scene: %d objects, %d lights", len(a.Scene.Objects), len(a.Lights.ActiveLights()))
	return nil
}

// Animate orbits every local light around the scene origin by angle
// radians, so shadow maps keep changing between frames.
func (a *App) Animate(angle float32) {
	rot := mgl32.HomogRotate3DZ(angle)
	for _, l := range a.Lights.ActiveLights() {
		if l.Type != core.LightTypePoint && l.Type != core.LightTypeSpot {
			continue
		}
		pos := rot.Mul4x1(l.Position().Vec4(1)).Vec3()
		if l.Type == core.LightTypeSpot {
			l.SetDirection(rot.Mul4x1(l.Direction().Vec4(0)).Vec3())
		}
		l.SetPosition(pos)
	}
}
