package app

import (
	"math"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is a yaw/pitch fly camera. Z is up; yaw 0 looks down -Y.
type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32

	FovY      float32 // radians
	Near, Far float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 20, 8},
		Pitch:       -0.3,
		Speed:       10.0,
		Sensitivity: 0.003,
		FovY:        mgl32.DegToRad(60),
		Near:        0.1,
		Far:         500,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(-math.Cos(float64(c.Yaw))),
		float32(-math.Sin(float64(c.Yaw))),
		0,
	}
}

// Transform is the camera-to-world matrix with +Y along the view direction.
func (c *CameraState) Transform() mgl32.Mat4 {
	m := core.OrientFromDir(c.GetForward())
	m.SetCol(3, c.Position.Vec4(1))
	return m
}

// Move translates the camera in its own frame.
func (c *CameraState) Move(forward, right, up float32, dt float32) {
	step := c.Speed * dt
	c.Position = c.Position.
		Add(c.GetForward().Mul(forward * step)).
		Add(c.GetRight().Mul(right * step)).
		Add(mgl32.Vec3{0, 0, up * step})
}

// Look applies a mouse delta. Pitch is clamped short of straight up/down.
func (c *CameraState) Look(dx, dy float32) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch -= dy * c.Sensitivity
	const limit = math.Pi/2 - 0.01
	c.Pitch = mgl32.Clamp(c.Pitch, -limit, limit)
}

// Apply loads the camera view, projection and a full-size viewport.
func (c *CameraState) Apply(dev gfx.Device, width, height int) {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	dev.SetViewport(gfx.Rect{Width: width, Height: height})
	dev.SetFrustum(core.PerspectiveParams(c.FovY, aspect, c.Near, c.Far))
	dev.SetViewMatrix(core.ViewFromTransform(c.Transform()))
}
