package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/umbra/lightrt/rt/app"
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"
)

func init() {
	runtime.LockOSThread()
}

func newViewCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open a window and render the light buffer live",
		Long: `view renders the demo scene with the gpu device and presents the
light buffer. WASD/QE move, Tab captures the mouse for looking around,
Space pauses the light animation, Esc quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view()
		},
	}
	cmd.Flags().Int("lights", 16, "random local lights in the demo scene")
	cmd.Flags().Int("width", 1280, "window width")
	cmd.Flags().Int("height", 720, "window height")
	bindKey(cmd, "lights", "simulate.lights")
	bindKey(cmd, "width", "render.width")
	bindKey(cmd, "height", "render.height")
	return cmd
}

type viewInput struct {
	captured bool
	paused   bool
	lastX    float64
	lastY    float64
	hasLast  bool
}

func (c *cli) view() error {
	cfg := c.cfg
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Render.Width, cfg.Render.Height, "umbra", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer window.Destroy()

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	dev, err := gpu.NewDevice(gpu.WithLogger(c.log), gpu.WithInstance(instance), gpu.WithSurface(surface))
	if err != nil {
		return err
	}
	defer dev.Close()

	width, height := window.GetFramebufferSize()
	format, err := dev.ConfigureSurface(width, height)
	if err != nil {
		return err
	}

	a, err := newApp(dev, cfg, c.log, cfg.Simulate.Lights, app.WithClock(core.NewSystemClock()))
	if err != nil {
		return err
	}
	defer a.Close()
	a.Resize(width, height)

	var reload reloader
	if c.loader.Viper().ConfigFileUsed() != "" {
		reload = watchConfig(c.loader)
	}

	in := &viewInput{}
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		if format, err = dev.ConfigureSurface(width, height); err != nil {
			c.log.Errorf("resize: %v", err)
			return
		}
		a.Resize(width, height)
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if in.captured && in.hasLast {
			a.Camera.Look(float32(xpos-in.lastX), float32(ypos-in.lastY))
		}
		in.lastX, in.lastY, in.hasLast = xpos, ypos, true
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyTab:
			in.captured = !in.captured
			if in.captured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
			in.hasLast = false
		case glfw.KeySpace:
			in.paused = !in.paused
		case glfw.KeyF1:
			c.log.Infof("%s", a.Profiler.GetStatsString())
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		}
	})

	axis := func(pos, neg glfw.Key) float32 {
		var v float32
		if window.GetKey(pos) == glfw.Press {
			v++
		}
		if window.GetKey(neg) == glfw.Press {
			v--
		}
		return v
	}

	last := time.Now()
	for !window.ShouldClose() {
		glfw.PollEvents()
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		if reload != nil {
			reload.apply(a, c.log)
		}
		a.Camera.Move(axis(glfw.KeyW, glfw.KeyS), axis(glfw.KeyD, glfw.KeyA), axis(glfw.KeyE, glfw.KeyQ), dt)
		if !in.paused {
			a.Animate(dt * 0.5)
		}
		if _, err := a.RenderFrame(); err != nil {
			return err
		}
		if buf := a.LightBin.LightBuffer(); buf != nil {
			if err := dev.Present(format, buf); err != nil {
				c.log.Warnf("present: %v", err)
			}
		}
	}
	return nil
}
