package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/gekko3d/umbra"
	"github.com/gekko3d/umbra/lightrt/rt/app"
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/go-gl/mathgl/mgl32"
)

// newApp builds the frame driver for cfg on dev, populates the demo scene
// with n random lights and adds the lights declared in cfg.
func newApp(dev gfx.Device, cfg *umbra.Config, log core.Logger, n int, extra ...app.Option) (*app.App, error) {
	mode, err := cfg.FilterMode()
	if err != nil {
		return nil, err
	}
	opts := append([]app.Option{
		app.WithLogger(log),
		app.WithShadowSettings(cfg.Shadow),
		app.WithFilterMode(mode),
		app.WithSeed(cfg.Simulate.Seed),
		app.WithPSSMDebugRender(cfg.Lighting.PSSMDebugRender),
	}, extra...)

	a, err := app.New(dev, cfg.Render.Width, cfg.Render.Height, opts...)
	if err != nil {
		return nil, err
	}
	a.Camera.FovY = mgl32.DegToRad(cfg.Render.FovY)
	a.Camera.Near = cfg.Render.Near
	a.Camera.Far = cfg.Render.Far

	rng := rand.New(rand.NewPCG(cfg.Simulate.Seed, cfg.Simulate.Seed+1))
	if err := a.PopulateDemo(rng, n); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to populate scene: %w", err)
	}
	if err := addConfigLights(a, cfg.Lights); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// addConfigLights registers each configured light and applies its shadow
// overrides. A configured vector light replaces the demo sun.
func addConfigLights(a *app.App, lights []umbra.LightConfig) error {
	for i, lc := range lights {
		l, err := lc.Build()
		if err != nil {
			return fmt.Errorf("lights[%d]: %w", i, err)
		}
		if l.Type == core.LightTypeVector {
			if old := a.Lights.SpecialLight(core.SunLight); old != nil {
				a.Lights.RemoveLight(old)
			}
			a.Lights.SetSpecialLight(core.SunLight, l)
		} else {
			a.Lights.RegisterLight(l)
		}
		if err := lc.ApplyShadowOverrides(l); err != nil {
			return err
		}
	}
	return nil
}

// reloader moves watched config changes onto the render loop's goroutine.
type reloader chan *umbra.Config

func watchConfig(loader *umbra.ConfigLoader) reloader {
	ch := make(reloader, 1)
	loader.Watch(func(_, updated *umbra.Config) {
		select {
		case ch <- updated:
		default:
			// A newer config replaces one the loop has not picked up yet.
			select {
			case <-ch:
			default:
			}
			ch <- updated
		}
	})
	return ch
}

// apply hands the latest pending config, if any, to a.
func (r reloader) apply(a *app.App, log core.Logger) {
	select {
	case cfg := <-r:
		a.SetShadowSettings(cfg.Shadow)
		mode, err := cfg.FilterMode()
		if err != nil {
			log.Warnf("ignoring filter mode: %v", err)
			return
		}
		a.SetFilterMode(mode)
	default:
	}
}
