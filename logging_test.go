package umbra

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.Logger = (*DefaultLogger)(nil)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, "shadow", false)

	log.Infof("rendered %d maps", 3)
	log.Warnf("budget spent")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "rendered 3 maps", lines[0]["message"])
	assert.Equal(t, "shadow", lines[0]["component"])
	assert.Equal(t, "warn", lines[1]["level"])
}

func TestDebugGate(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, "", false)

	log.Debugf("hidden")
	assert.Zero(t, buf.Len())

	log.SetDebug(true)
	assert.True(t, log.DebugEnabled())
	log.Debugf("shown")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.NotContains(t, lines[0], "component")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	root := NewJSONLogger(&buf, "umbra", true)
	child := root.With("lightbin")

	child.Errorf("boom")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "lightbin", lines[0]["component"])
	assert.True(t, child.DebugEnabled())
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.SetDebug(true)
	assert.False(t, log.DebugEnabled())
	log.Errorf("ignored %d", 1)
}
