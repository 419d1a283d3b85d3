package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/umbra/lightrt/rt/shadow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestSimulate(t *testing.T) {
	t.Chdir(t.TempDir())
	out := run(t, "simulate", "--frames", "3", "--lights", "4", "--seed", "7")
	assert.Contains(t, out, "frames:            3")
	assert.Contains(t, out, "shadow maps:")
	assert.Contains(t, out, "Frame")
}

func TestSimulateWithConfigLights(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := `
lighting:
  shadow_filter_mode: None
lights:
  - name: lamp
    type: point
    position: [0, 0, 5]
    range: 10
    cast_shadows: true
    shadow:
      shadowType: CubeMap
      texSize: 256
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "umbra.yaml"), []byte(cfg), 0o644))
	out := run(t, "simulate", "--frames", "2", "--lights", "0")
	assert.Contains(t, out, "frames:            2")
	assert.Contains(t, out, "shadow maps:       2")
}

func TestSimulateRejectsUnknownDevice(t *testing.T) {
	t.Chdir(t.TempDir())
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"simulate", "--device", "vulkan"})
	assert.ErrorContains(t, cmd.Execute(), "unknown device")
}

func TestNoise(t *testing.T) {
	t.Chdir(t.TempDir())
	out := filepath.Join(t.TempDir(), "noise.png")
	run(t, "noise", "--out", out, "--scale", "2")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2*shadow.TapRotationSize, img.Bounds().Dx())
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestConfigDump(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UMBRA_LIGHTING_SHADOW_FILTER_MODE", "None")
	out := run(t, "config")
	assert.Contains(t, out, "shadow_filter_mode: None")
	assert.Contains(t, out, "lod_cutoff:")
}
