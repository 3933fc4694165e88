package renderer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/headless"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

func newBackend(t *testing.T, latency uint32) *headless.Backend {
	t.Helper()
	b := headless.New(latency)
	require.NoError(t, b.Initialize(&metadata.RendererBackendConfig{Width: 640, Height: 480}))
	return b
}

func TestNewStreamingUploaderValidatesSizes(t *testing.T) {
	b := newBackend(t, 0)

	_, err := renderer.NewStreamingUploader(b, 1024, 0, 1000)
	assert.Error(t, err)
	_, err = renderer.NewStreamingUploader(b, 100, 1, 1000)
	assert.Error(t, err)
	_, err = renderer.NewStreamingUploader(b, 64, 2, 1000)
	assert.Error(t, err)

	u, err := renderer.NewStreamingUploader(b, 4*64, 2, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*64), u.Capacity())
	assert.Equal(t, uint32(2), u.RegionCount())
	assert.Equal(t, metadata.RENDERBUFFER_TYPE_INSTANCE, u.Buffer().Type())
	assert.Equal(t, uint64(4*64), u.Buffer().Size())
}

func TestWriteRequiresObservedFence(t *testing.T) {
	b := newBackend(t, 2)
	u, err := renderer.NewStreamingUploader(b, 4*64, 1, 1000)
	require.NoError(t, err)
	data := make([]byte, 64)

	assert.ErrorIs(t, u.Write(0, data), core.ErrFenceNotObserved)

	require.NoError(t, u.WaitForPrevious())
	require.NoError(t, u.Write(0, data))
	require.NoError(t, u.Rearm())

	// a new frame must wait again
	assert.ErrorIs(t, u.Write(0, data), core.ErrFenceNotObserved)
	require.NoError(t, u.WaitForPrevious())
	assert.NoError(t, u.Write(0, data))
}

func TestWaitPollsUntilSignaled(t *testing.T) {
	b := newBackend(t, 4)
	u, err := renderer.NewStreamingUploader(b, 64, 1, 1000)
	require.NoError(t, err)

	require.NoError(t, u.WaitForPrevious())
	assert.Zero(t, b.FenceWaits(), "a region never submitted needs no wait")
	require.NoError(t, u.Rearm())

	require.NoError(t, u.WaitForPrevious())
	assert.Equal(t, uint64(5), b.FenceWaits())
}

func TestWriteBeyondRegion(t *testing.T) {
	b := newBackend(t, 0)
	u, err := renderer.NewStreamingUploader(b, 4*64, 2, 1000)
	require.NoError(t, err)
	require.NoError(t, u.WaitForPrevious())

	err = u.Write(64, make([]byte, 128))
	var capErr *core.CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, uint64(192), capErr.Requested)
	assert.Equal(t, uint64(128), capErr.Available)
}

func TestRegionsRotate(t *testing.T) {
	b := newBackend(t, 0)
	u, err := renderer.NewStreamingUploader(b, 4*64, 2, 1000)
	require.NoError(t, err)

	var seen []renderer.StreamRegion
	for i := 0; i < 3; i++ {
		require.NoError(t, u.WaitForPrevious())
		seen = append(seen, u.Region())
		require.NoError(t, u.Write(0, []byte{byte(i + 1)}))
		require.NoError(t, u.Rearm())
	}
	assert.Equal(t, []renderer.StreamRegion{
		{Index: 0, Offset: 0, Size: 128},
		{Index: 1, Offset: 128, Size: 128},
		{Index: 0, Offset: 0, Size: 128},
	}, seen)

	data := u.Buffer().(*headless.Buffer).Bytes()
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, byte(2), data[128])
}

func TestUploaderShutdownDrains(t *testing.T) {
	b := newBackend(t, 3)
	u, err := renderer.NewStreamingUploader(b, 2*64, 2, 1000)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, u.WaitForPrevious())
		require.NoError(t, u.Rearm())
	}
	require.NoError(t, u.Shutdown())
	assert.Zero(t, b.LiveBuffers())
}
