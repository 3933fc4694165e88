package renderer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/headless"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

type geometry struct {
	vertices renderer.RenderBuffer
	indices  renderer.RenderBuffer
}

func (g *geometry) VertexBuffer() renderer.RenderBuffer { return g.vertices }
func (g *geometry) IndexBuffer() renderer.RenderBuffer  { return g.indices }

type executorFixture struct {
	backend  *headless.Backend
	uploader *renderer.StreamingUploader
	executor *renderer.FrameExecutor
}

func newExecutorFixture(t *testing.T, maxDraws, regions uint32) *executorFixture {
	t.Helper()
	b := newBackend(t, 0)
	vertices, err := b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, 64*metadata.VertexStride)
	require.NoError(t, err)
	indices, err := b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDEX, 64*metadata.IndexSize)
	require.NoError(t, err)
	u, err := renderer.NewStreamingUploader(b, uint64(regions)*8*metadata.InstanceStride, regions, 1000)
	require.NoError(t, err)
	e, err := renderer.NewFrameExecutor(b, &geometry{vertices: vertices, indices: indices}, u.Buffer(), maxDraws, regions)
	require.NoError(t, err)
	return &executorFixture{backend: b, uploader: u, executor: e}
}

func TestNewFrameExecutorRejectsZeroSizes(t *testing.T) {
	b := newBackend(t, 0)
	_, err := renderer.NewFrameExecutor(b, &geometry{}, nil, 0, 1)
	assert.Error(t, err)
	_, err = renderer.NewFrameExecutor(b, &geometry{}, nil, 4, 0)
	assert.Error(t, err)
}

func TestExecuteIssuesSingleMultiDraw(t *testing.T) {
	f := newExecutorFixture(t, 4, 1)
	require.NoError(t, f.uploader.WaitForPrevious())
	transforms := []math.Mat4{math.NewMat4Identity(), math.NewMat4Translation(math.NewVec3(1, 2, 3))}
	require.NoError(t, f.uploader.Write(0, metadata.EncodeInstances(transforms)))

	commands := []metadata.IndirectDrawCommand{
		{IndexCount: 3, InstanceCount: 1, FirstIndex: 0, BaseVertex: 0, BaseInstance: 0},
		{IndexCount: 6, InstanceCount: 1, FirstIndex: 3, BaseVertex: 3, BaseInstance: 1},
	}
	uniforms := metadata.FrameUniforms{View: math.NewMat4Identity(), Projection: math.NewMat4Identity()}
	require.NoError(t, f.executor.Execute(commands, f.uploader.Region(), uniforms))
	require.NoError(t, f.uploader.Rearm())
	assert.Equal(t, uint64(1), f.backend.Submitted())

	require.NoError(t, f.uploader.WaitForPrevious())
	require.Len(t, f.backend.Completed(), 1)
	draw := f.backend.Completed()[0]
	assert.Equal(t, commands, draw.Commands)
	assert.Equal(t, [][]math.Mat4{transforms[:1], transforms[1:]}, draw.Instances)
}

func TestExecuteTooManyCommands(t *testing.T) {
	f := newExecutorFixture(t, 1, 1)
	commands := make([]metadata.IndirectDrawCommand, 2)
	err := f.executor.Execute(commands, f.uploader.Region(), metadata.FrameUniforms{})
	var capErr *core.CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, uint64(2), capErr.Requested)
	assert.Equal(t, uint64(1), capErr.Available)
	assert.Zero(t, f.backend.Submitted())
}

func TestExecuteRejectsOutOfRangeCommands(t *testing.T) {
	f := newExecutorFixture(t, 4, 1)
	commands := []metadata.IndirectDrawCommand{{IndexCount: 3, InstanceCount: 9}}
	assert.Error(t, f.executor.Execute(commands, f.uploader.Region(), metadata.FrameUniforms{}))
	assert.Zero(t, f.backend.Submitted())
}

func TestExecuteUsesRegionCommandSlice(t *testing.T) {
	f := newExecutorFixture(t, 2, 2)
	cmd := []metadata.IndirectDrawCommand{{IndexCount: 3, InstanceCount: 1}}

	for frame := 0; frame < 2; frame++ {
		require.NoError(t, f.uploader.WaitForPrevious())
		require.NoError(t, f.executor.Execute(cmd, f.uploader.Region(), metadata.FrameUniforms{}))
		require.NoError(t, f.uploader.Rearm())
	}
	// two frames in flight, each reading its own table and instance region
	assert.Equal(t, 2, f.backend.PendingCount())
	assert.Empty(t, f.backend.Hazards())
	assert.Equal(t, uint32(2), f.executor.MaxDrawCommands())
}
