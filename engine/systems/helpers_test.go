package systems

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/headless"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

type testStack struct {
	backend  *headless.Backend
	renderer *renderer.Renderer
	manager  *SystemManager
}

func testRendererConfig(regions uint32) *core.RendererSection {
	cfg := core.DefaultConfig().Renderer
	cfg.Backend = core.BackendHeadless
	cfg.VertexBufferSize = 1024 * metadata.VertexStride
	cfg.IndexBufferSize = 4096 * metadata.IndexSize
	cfg.InstanceBufferSize = 64 * metadata.InstanceStride * uint64(regions)
	cfg.MaxDrawCommands = 16
	cfg.StreamingRegions = regions
	cfg.FencePollTimeoutNs = 1000
	return &cfg
}

func newTestStack(t *testing.T, backend *headless.Backend, cfg *core.RendererSection) *testStack {
	t.Helper()
	r := renderer.New(backend)
	require.NoError(t, r.Initialize(&metadata.RendererBackendConfig{ApplicationName: "test", Width: 800, Height: 600}))
	sm, err := NewSystemManager(r, cfg)
	require.NoError(t, err)
	return &testStack{backend: backend, renderer: r, manager: sm}
}

func newTestArena(t *testing.T, vertexBytes, indexBytes uint64) (*GeometryArena, *headless.Backend) {
	t.Helper()
	backend := headless.New(0)
	require.NoError(t, backend.Initialize(&metadata.RendererBackendConfig{Width: 1, Height: 1}))
	arena, err := NewGeometryArena(backend, GeometryArenaConfig{VertexBufferSize: vertexBytes, IndexBufferSize: indexBytes})
	require.NoError(t, err)
	return arena, backend
}

func triangle() ([]float32, []uint32) {
	return []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, []uint32{0, 1, 2}
}

func square() ([]float32, []uint32) {
	return []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, []uint32{0, 1, 2, 2, 3, 0}
}

func translation(x float32) math.Mat4 {
	return math.NewMat4Translation(math.NewVec3(x, 0, 0))
}
