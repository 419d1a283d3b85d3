package shadow

import (
	"math"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/render"
	"github.com/go-gl/mathgl/mgl32"
)

// pssmNearDist is where the first split starts, independent of the camera.
const pssmNearDist = 0.01

// PSSMLightShadowMap splits the camera frustum along its depth and gives
// each split a tight orthographic projection from the sun. Splits share one
// atlas texture: a row for up to three splits, a 2x2 grid for four.
type PSSMLightShadowMap struct {
	baseShadowMap

	numSplits     int
	splitSize     uint32
	splitDist     [MaxSplits + 1]float32
	scaleProj     [MaxSplits]mgl32.Vec2
	offsetProj    [MaxSplits]mgl32.Vec2
	splitParams   [MaxSplits]core.FrustumParams
	viewports     [MaxSplits]gfx.Rect
	farPlaneScale mgl32.Vec4
	lightView     mgl32.Mat4
}

func NewPSSMLightShadowMap(light *core.LightInfo, params *ShadowMapParams, reg *Registry) *PSSMLightShadowMap {
	m := &PSSMLightShadowMap{}
	m.init(m, m, light, params, reg)
	m.viewDependent = true
	return m
}

func (m *PSSMLightShadowMap) NumSplits() int { return m.numSplits }

// SplitDistances returns the numSplits+1 split boundaries of the last render.
func (m *PSSMLightShadowMap) SplitDistances() []float32 {
	return append([]float32(nil), m.splitDist[:m.numSplits+1]...)
}

func (m *PSSMLightShadowMap) SplitViewport(i int) gfx.Rect { return m.viewports[i] }

// SplitCrop returns the clip-space scale and offset applied to split i.
func (m *PSSMLightShadowMap) SplitCrop(i int) (scale, offset mgl32.Vec2) {
	return m.scaleProj[i], m.offsetProj[i]
}

// SplitViewProj is the cropped world to clip transform of split i.
func (m *PSSMLightShadowMap) SplitViewProj(i int) mgl32.Mat4 {
	return m.splitParams[i].Projection().Mul4(m.lightView)
}

// CalcSplitDistances blends linear and logarithmic split positions between
// near and far. logWeight 0 is fully linear, 1 fully logarithmic.
func CalcSplitDistances(numSplits int, near, far, logWeight float32) []float32 {
	d := make([]float32, numSplits+1)
	w := core.Clamp(logWeight, 0, 1)
	for i := 1; i < numSplits; i++ {
		step := float32(i) / float32(numSplits)
		logSplit := near * float32(math.Pow(float64(far/near), float64(step)))
		linearSplit := near + (far-near)*step
		d[i] = core.Lerp(linearSplit, logSplit, w)
	}
	d[0] = near
	d[numSplits] = far
	return d
}

// calcLightMatrices fits an orthographic volume around a cube of
// shadowDistance centered on the camera, looking down the sun direction.
// It moves the light to the volume's origin.
func (m *PSSMLightShadowMap) calcLightMatrices(camPos mgl32.Vec3) (mgl32.Mat4, core.FrustumParams) {
	viewBB := core.CubeBox(camPos, m.params.ShadowDistance)
	orient := core.OrientFromDir(m.light.Direction())
	lightBox := viewBB.Transform(orient.Inv())

	ext := lightBox.Extents()
	depth := ext.Y()
	w, h := ext.X()/2, ext.Z()/2

	worldCenter := mgl32.TransformCoordinate(lightBox.Center(), orient)
	dir := orient.Col(1).Vec3()
	pos := worldCenter.Sub(dir.Mul(depth/2 + 1))
	orient.SetCol(3, pos.Vec4(1))

	m.light.SetPosition(pos)
	m.light.Range = depth
	return orient, core.OrthoParams(-w, w, -h, h, 1, depth+1)
}

// clipCrop returns the scale and offset mapping the clip-space bounds of
// pts under viewProj onto the full -1..1 square. Scale is uniform.
func clipCrop(pts [8]mgl32.Vec3, viewProj mgl32.Mat4) (mgl32.Vec2, mgl32.Vec2) {
	lo := mgl32.Vec2{math.MaxFloat32, math.MaxFloat32}
	hi := mgl32.Vec2{-math.MaxFloat32, -math.MaxFloat32}
	for _, p := range pts {
		c := mgl32.TransformCoordinate(p, viewProj)
		for k := 0; k < 2; k++ {
			v := core.Clamp(c[k], -1, 1)
			lo[k] = min(lo[k], v)
			hi[k] = max(hi[k], v)
		}
	}

	s := float32(1)
	dx, dy := hi.X()-lo.X(), hi.Y()-lo.Y()
	if dx > 0 && dy > 0 {
		s = min(2/dx, 2/dy)
	}
	offset := mgl32.Vec2{
		-0.5 * (hi.X() + lo.X()) * s,
		-0.5 * (hi.Y() + lo.Y()) * s,
	}
	return mgl32.Vec2{s, s}, offset
}

// snapOffset shifts offset so the world origin lands on a texel corner,
// which keeps the shadow from shimmering as the camera moves.
func snapOffset(scale, offset mgl32.Vec2, viewProj mgl32.Mat4, texSize uint32) mgl32.Vec2 {
	o := mgl32.TransformCoordinate(mgl32.Vec3{}, viewProj)
	half := float32(texSize) * 0.5
	x := (o.X()*scale.X() + offset.X()) * half
	y := (o.Y()*scale.Y() + offset.Y()) * half
	dx := (float32(math.Floor(float64(x+0.5))) - x) / half
	dy := (float32(math.Floor(float64(y+0.5))) - y) / half
	return mgl32.Vec2{offset.X() + dx, offset.Y() + dy}
}

// cropOrtho narrows an orthographic volume so its projection equals the
// original projection followed by the crop.
func cropOrtho(p core.FrustumParams, scale, offset mgl32.Vec2) core.FrustumParams {
	remap := func(lo, hi, s, o, c float32) float32 {
		return lo + ((c-o)/s+1)/2*(hi-lo)
	}
	out := p
	out.Left = remap(p.Left, p.Right, scale.X(), offset.X(), -1)
	out.Right = remap(p.Left, p.Right, scale.X(), offset.X(), 1)
	out.Bottom = remap(p.Bottom, p.Top, scale.Y(), offset.Y(), -1)
	out.Top = remap(p.Bottom, p.Top, scale.Y(), offset.Y(), 1)
	return out
}

func splitViewport(i, numSplits int, size uint32) gfx.Rect {
	s := int(size)
	if numSplits < MaxSplits {
		return gfx.Rect{X: i * s, Width: s, Height: s}
	}
	return gfx.Rect{X: (i % 2) * s, Y: (i / 2) * s, Width: s, Height: s}
}

func (m *PSSMLightShadowMap) renderMap(scene render.SceneManager, diffuse *render.SceneRenderState) error {
	dev := diffuse.Device()
	n := max(int(m.params.NumSplits), 1)
	m.numSplits = n

	var size, w, h uint32
	if n < MaxSplits {
		size = m.BestTexSize(dev, uint32(n))
		w, h = size*uint32(n), size
	} else {
		size = m.BestTexSize(dev, 2)
		w, h = size*2, size*2
	}
	if err := m.allocTexture(dev, w, h, gfx.Texture2D); err != nil {
		return err
	}
	m.texSize = size
	m.splitSize = size

	cam := diffuse.Frustum()
	cameraFar := cam.Far
	full := cam
	full.CropNearFar(cam.Near, min(m.params.ShadowDistance, cam.Far))
	dists := CalcSplitDistances(n, pssmNearDist, full.Far, m.params.LogWeight)
	copy(m.splitDist[:], dists)

	lightTransform, lightParams := m.calcLightMatrices(cam.Position())
	m.lightView = core.ViewFromTransform(lightTransform)
	lightViewProj := lightParams.Projection().Mul4(m.lightView)
	m.worldToLightProj = lightViewProj

	restore := gfx.SaveState(dev)
	defer restore()
	if err := m.beginTarget(dev, 0); err != nil {
		return err
	}
	defer m.endTarget(dev)

	m.farPlaneScale = mgl32.Vec4{}
	for i := 0; i < n; i++ {
		sub := full
		sub.CropNearFar(dists[i], dists[i+1])

		scale, offset := clipCrop(sub.Points(), lightViewProj)
		offset = snapOffset(scale, offset, lightViewProj, size)
		m.scaleProj[i] = scale
		m.offsetProj[i] = offset
		m.splitParams[i] = cropOrtho(lightParams, scale, offset)
		m.viewports[i] = splitViewport(i, n, size)
		m.farPlaneScale[i] = cameraFar / dists[i+1]

		mask := render.ShadowTypeMask
		if i == n-1 && m.params.LastSplitTerrainOnly {
			mask = render.TerrainObjectType
		}
		m.drawView(scene, diffuse, m.splitParams[i], m.lightView, m.viewports[i], mask)
	}
	return nil
}

// AtlasLayout returns the per-split texture offsets and the atlas scale.
func (m *PSSMLightShadowMap) AtlasLayout() (xOff, yOff mgl32.Vec4, scale mgl32.Vec2) {
	n := m.numSplits
	if n < MaxSplits {
		scale = mgl32.Vec2{1 / float32(n), 1}
		for i := 0; i < n; i++ {
			xOff[i] = float32(i) * scale.X()
		}
		return xOff, yOff, scale
	}
	scale = mgl32.Vec2{0.5, 0.5}
	for i := 0; i < n; i++ {
		if i == 1 || i == 3 {
			xOff[i] = 0.5
		}
		if i > 1 {
			yOff[i] = 0.5
		}
	}
	return xOff, yOff, scale
}

// FadeStartLength returns where the shadow starts fading and the inverse
// fade length. With no fade distance set, the second half of the last split
// fades.
func (m *PSSMLightShadowMap) FadeStartLength() mgl32.Vec2 {
	n := m.numSplits
	start := m.params.FadeStartDist
	if start == 0 {
		start = (m.splitDist[n-1] + m.splitDist[n]) / 2
	}
	var inv float32
	if l := m.splitDist[n] - start; l > 0 {
		inv = 1 / l
	}
	return mgl32.Vec2{start, inv}
}

func (m *PSSMLightShadowMap) setMapParameters(params *gfx.ShaderConstBuffer, lsc *LightingShaderConstants) {
	if m.numSplits == 0 {
		return
	}
	var sx, sy, ox, oy mgl32.Vec4
	for i := 0; i < m.numSplits; i++ {
		sx[i] = m.scaleProj[i].X()
		sy[i] = m.scaleProj[i].Y()
		ox[i] = m.offsetProj[i].X()
		oy[i] = m.offsetProj[i].Y()
	}
	xOff, yOff, atlas := m.AtlasLayout()

	params.Set(lsc.ScaleXSC, sx)
	params.Set(lsc.ScaleYSC, sy)
	params.Set(lsc.OffsetXSC, ox)
	params.Set(lsc.OffsetYSC, oy)
	params.Set(lsc.AtlasXOffsetSC, xOff)
	params.Set(lsc.AtlasYOffsetSC, yOff)
	params.Set(lsc.AtlasScaleSC, atlas)
	params.Set(lsc.FarPlaneScalePSSMSC, m.farPlaneScale)
	params.Set(lsc.FadeStartLengthSC, m.FadeStartLength())
	params.Set(lsc.OverDarkFactorPSSM, m.params.OverDarkFactor)
	params.Set(lsc.SplitFadeSC, m.params.SplitFadeDistances)
}
