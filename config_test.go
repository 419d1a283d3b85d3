package umbra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/shadow"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "umbra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := NewConfigLoader("", nil).Load()
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Shadow, cfg.Shadow)
	assert.Equal(t, def.Render, cfg.Render)
	mode, err := cfg.FilterMode()
	require.NoError(t, err)
	assert.Equal(t, shadow.FilterSoftShadow, mode)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
shadow:
  render_budget: 4ms
  lod_cutoff: 0.5
lighting:
  shadow_filter_mode: SoftShadowHighQuality
lights:
  - name: lamp
    type: point
    position: [1, 2, 3]
    range: 12
    cast_shadows: true
    shadow:
      texSize: 1024
      shadowType: Paraboloid
`)
	t.Setenv("UMBRA_RENDER_WIDTH", "1920")

	cfg, err := NewConfigLoader(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Millisecond, cfg.Shadow.RenderBudget)
	assert.Equal(t, float32(0.5), cfg.Shadow.LODCutoff)
	assert.Equal(t, 1000*time.Millisecond, cfg.Shadow.PurgeWindow)
	assert.Equal(t, 1920, cfg.Render.Width)

	mode, err := cfg.FilterMode()
	require.NoError(t, err)
	assert.Equal(t, shadow.FilterSoftShadowHighQuality, mode)

	require.Len(t, cfg.Lights, 1)
	lc := cfg.Lights[0]
	l, err := lc.Build()
	require.NoError(t, err)
	assert.Equal(t, core.LightTypePoint, l.Type)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, l.Position())
	assert.Equal(t, float32(12), l.Range)
	assert.True(t, l.CastShadows)

	lights := core.NewSimpleLightManager()
	lights.AddExtensionFactory(shadow.NewShadowMapManager(gfx.NewNullDevice()).AttachParams)
	lights.RegisterLight(l)
	require.NoError(t, lc.ApplyShadowOverrides(l))
	p := shadow.ParamsFor(l)
	assert.Equal(t, uint32(1024), p.TexSize)
	assert.Equal(t, shadow.ShadowTypeParaboloid, p.ShadowType)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
lighting:
  shadow_filter_mode: blurry
render:
  near: 10
  far: 1
lights:
  - type: laser
`)
	_, err := NewConfigLoader(path, nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blurry")
	assert.Contains(t, err.Error(), "near/far")
	assert.Contains(t, err.Error(), "laser")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := NewConfigLoader(filepath.Join(t.TempDir(), "absent.yaml"), nil).Load()
	assert.Error(t, err)
}

func TestApplyShadowOverridesReportsUnknownField(t *testing.T) {
	l := core.NewLightInfo(core.LightTypeSpot)
	shadow.NewShadowMapManager(gfx.NewNullDevice()).AttachParams(l)

	lc := LightConfig{Name: "s", Shadow: map[string]any{"texsize": 256, "bogus": 1}}
	err := lc.ApplyShadowOverrides(l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
	assert.Equal(t, uint32(256), shadow.ParamsFor(l).TexSize)

	bare := core.NewLightInfo(core.LightTypeSpot)
	assert.Error(t, lc.ApplyShadowOverrides(bare))
}

func TestDumpYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	loader := NewConfigLoader("", nil)
	_, err := loader.Load()
	require.NoError(t, err)

	out, err := loader.DumpYAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "shadow_filter_mode: SoftShadow")
	assert.Contains(t, string(out), "render_budget:")
}

func TestWatchReloads(t *testing.T) {
	path := writeConfig(t, "lighting:\n  shadow_filter_mode: None\n")
	loader := NewConfigLoader(path, nil)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 4)
	loader.Watch(func(old, updated *Config) { changed <- updated })

	require.NoError(t, os.WriteFile(path, []byte("lighting:\n  shadow_filter_mode: SoftShadow\n"), 0o644))
	select {
	case cfg := <-changed:
		assert.Equal(t, "SoftShadow", cfg.Lighting.ShadowFilterMode)
		assert.Equal(t, cfg, loader.Current())
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
