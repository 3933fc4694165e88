package headless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

type fixture struct {
	backend   *Backend
	vertices  renderer.RenderBuffer
	indices   renderer.RenderBuffer
	instances renderer.RenderBuffer
	commands  renderer.RenderBuffer
}

func newFixture(t *testing.T, latency uint32) *fixture {
	t.Helper()
	b := New(latency)
	require.NoError(t, b.Initialize(&metadata.RendererBackendConfig{Width: 8, Height: 8}))
	f := &fixture{backend: b}
	var err error
	f.vertices, err = b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, 3*metadata.VertexStride)
	require.NoError(t, err)
	f.indices, err = b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDEX, 3*metadata.IndexSize)
	require.NoError(t, err)
	f.instances, err = b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INSTANCE, 2*metadata.InstanceStride)
	require.NoError(t, err)
	f.commands, err = b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDIRECT, 2*metadata.IndirectCommandStride)
	require.NoError(t, err)
	require.NoError(t, b.BindVertexLayout(metadata.NewInstancedVertexLayout()))
	return f
}

func (f *fixture) draw(t *testing.T, cmd metadata.IndirectDrawCommand) error {
	t.Helper()
	require.NoError(t, f.commands.LoadRange(0, metadata.EncodeIndirectCommands([]metadata.IndirectDrawCommand{cmd})))
	return f.backend.DrawIndexedIndirect(&renderer.DrawIndirectCall{
		Vertices:  f.vertices,
		Indices:   f.indices,
		Instances: f.instances,
		Commands:  f.commands,
		DrawCount: 1,
		Stride:    uint32(metadata.IndirectCommandStride),
	})
}

func TestDrawStaysPendingUntilFenceSignals(t *testing.T) {
	f := newFixture(t, 2)
	m := math.NewMat4Translation(math.NewVec3(4, 5, 6))
	require.NoError(t, f.instances.LoadRange(0, metadata.EncodeInstances([]math.Mat4{m})))
	require.NoError(t, f.draw(t, metadata.IndirectDrawCommand{IndexCount: 3, InstanceCount: 1}))

	fence, err := f.backend.FenceInsert()
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.PendingCount())

	for i := 0; i < 2; i++ {
		ok, err := fence.Wait(0)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := fence.Wait(0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, f.backend.PendingCount())

	require.Len(t, f.backend.Completed(), 1)
	assert.Equal(t, [][]math.Mat4{{m}}, f.backend.Completed()[0].Instances)

	fence.Destroy()
	_, err = fence.Wait(0)
	assert.Error(t, err)
}

func TestWriteIntoInFlightRangeIsAHazard(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.draw(t, metadata.IndirectDrawCommand{IndexCount: 3, InstanceCount: 1}))

	// the second instance slot is not read by the pending draw
	require.NoError(t, f.instances.LoadRange(metadata.InstanceStride, make([]byte, metadata.InstanceStride)))
	assert.Empty(t, f.backend.Hazards())

	require.NoError(t, f.instances.LoadRange(0, make([]byte, 4)))
	require.Len(t, f.backend.Hazards(), 1)
	h := f.backend.Hazards()[0]
	assert.Equal(t, uint64(1), h.Sequence)
	assert.Equal(t, metadata.RENDERBUFFER_TYPE_INSTANCE, h.Buffer)
}

func TestDrawValidatesCommands(t *testing.T) {
	f := newFixture(t, 0)
	assert.Error(t, f.draw(t, metadata.IndirectDrawCommand{IndexCount: 3, InstanceCount: 3}))
	assert.Error(t, f.draw(t, metadata.IndirectDrawCommand{IndexCount: 6, InstanceCount: 1}))
	assert.Error(t, f.draw(t, metadata.IndirectDrawCommand{IndexCount: 3, InstanceCount: 1, BaseVertex: 3}))
	assert.Zero(t, f.backend.Submitted())
}

func TestDrawRejectsDestroyedBuffers(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.backend.RenderBufferDestroy(f.vertices))
	assert.Error(t, f.draw(t, metadata.IndirectDrawCommand{IndexCount: 3, InstanceCount: 1}))
	assert.Equal(t, 3, f.backend.LiveBuffers())
}

func TestBufferBounds(t *testing.T) {
	f := newFixture(t, 0)
	assert.Error(t, f.vertices.LoadRange(30, make([]byte, 8)))
	assert.NoError(t, f.vertices.LoadRange(28, make([]byte, 8)))
	_, err := f.backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, 0)
	assert.Error(t, err)
}

func TestFrameLifecycle(t *testing.T) {
	b := New(0)
	assert.ErrorIs(t, b.BeginFrame(0), core.ErrBackendNotInitialized)
	require.NoError(t, b.Initialize(&metadata.RendererBackendConfig{Width: 8, Height: 8}))

	assert.Error(t, b.EndFrame(0))
	require.NoError(t, b.BeginFrame(0))
	require.NoError(t, b.EndFrame(0))
	assert.Equal(t, uint64(1), b.FrameCount())

	require.NoError(t, b.Resized(0, 0))
	assert.ErrorIs(t, b.BeginFrame(0), core.ErrSwapchainBooting)
}
