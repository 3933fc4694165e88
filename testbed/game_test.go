package testbed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/strata/engine"
	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer/headless"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

const testScene = `
[[mesh]]
name = "cube"
primitive = "cube"

[[mesh]]
name = "tri"
vertices = [0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 1.0, 0.0]
indices = [0, 1, 2]

[[mesh]]
name = "broken"
primitive = "sphere"

[[object]]
mesh = "tri"
position = [0.0, 1.0, 0.0]

[[object]]
mesh = "ghost"

[[grid]]
mesh = "cube"
count = [2, 2, 1]
spacing = 3.0
`

func writeScene(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scene.toml")
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	return path
}

func testConfig(t *testing.T, watch bool, frames uint64) *core.Config {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Log.Level = "error"
	cfg.Renderer.Backend = core.BackendHeadless
	cfg.Renderer.HeadlessFrames = frames
	cfg.Renderer.HeadlessLatency = 1
	cfg.Renderer.VertexBufferSize = 1024 * metadata.VertexStride
	cfg.Renderer.IndexBufferSize = 4096 * metadata.IndexSize
	cfg.Renderer.InstanceBufferSize = 64 * metadata.InstanceStride
	cfg.Renderer.MaxDrawCommands = 8
	cfg.Scene.Path = writeScene(t, t.TempDir(), testScene)
	cfg.Scene.Watch = watch
	return cfg
}

func TestTestbedDrawsScene(t *testing.T) {
	tb := NewTestGame(testConfig(t, false, 2))
	e, err := engine.New(tb.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	hb := e.Backend().(*headless.Backend)

	state := tb.state()
	// the ghost object is dropped, the broken mesh never uploaded
	assert.Len(t, state.objects, 5)

	require.NoError(t, e.Run())

	draws := hb.Completed()
	require.Len(t, draws, 2)
	for _, d := range draws {
		// one command per distinct mesh, in first submission order: tri then cube
		require.Len(t, d.Commands, 2)
		assert.Equal(t, uint32(1), d.Commands[0].InstanceCount)
		assert.Equal(t, uint32(4), d.Commands[1].InstanceCount)
		assert.Equal(t, uint32(1), d.Commands[1].BaseInstance)
		assert.Equal(t, uint32(3), d.Commands[0].IndexCount)
	}
	assert.Empty(t, hb.Hazards())
}

func TestTestbedReloadsScene(t *testing.T) {
	cfg := testConfig(t, true, 1)
	tb := NewTestGame(cfg)
	e, err := engine.New(tb.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer func() { assert.NoError(t, e.Shutdown()) }()

	state := tb.state()
	reloaded := 0
	state.ctx.Events.Register(core.EVENT_CODE_SCENE_RELOADED, func(context core.EventContext) bool {
		reloaded++
		return true
	})

	updated := testScene + `
[[object]]
mesh = "cube"
position = [0.0, 0.0, -5.0]

[[object]]
mesh = "new_mesh"
`
	writeScene(t, filepath.Dir(cfg.Scene.Path), updated)

	deadline := time.Now().Add(5 * time.Second)
	for len(state.objects) != 6 && time.Now().Before(deadline) {
		require.NoError(t, tb.Update(0.01))
		time.Sleep(20 * time.Millisecond)
	}
	require.Len(t, state.objects, 6)
	assert.GreaterOrEqual(t, reloaded, 1)
}

func TestTestbedFailsOnMissingScene(t *testing.T) {
	cfg := testConfig(t, false, 1)
	cfg.Scene.Path = filepath.Join(t.TempDir(), "missing.toml")
	tb := NewTestGame(cfg)
	e, err := engine.New(tb.Game)
	require.NoError(t, err)
	assert.Error(t, e.Initialize())
	assert.NoError(t, e.Shutdown())
}
