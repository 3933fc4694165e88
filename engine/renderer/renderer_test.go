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

func TestDrawFrameSkipsWhileMinimized(t *testing.T) {
	b := headless.New(0)
	r := renderer.New(b)
	require.NoError(t, r.Initialize(&metadata.RendererBackendConfig{Width: 640, Height: 480}))

	calls := 0
	draw := func() error { calls++; return nil }

	skipped, err := r.DrawFrame(0.016, draw)
	require.NoError(t, err)
	assert.False(t, skipped)

	require.NoError(t, r.OnResize(0, 480))
	skipped, err = r.DrawFrame(0.016, draw)
	require.NoError(t, err)
	assert.True(t, skipped)

	require.NoError(t, r.OnResize(800, 600))
	_, err = r.DrawFrame(0.016, draw)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(2), r.FrameNumber())
	assert.Equal(t, uint64(2), b.FrameCount())
}

func TestDrawFramePropagatesErrors(t *testing.T) {
	b := headless.New(0)
	r := renderer.New(b)

	_, err := r.DrawFrame(0.016, func() error { return nil })
	assert.ErrorIs(t, err, core.ErrBackendNotInitialized)

	require.NoError(t, r.Initialize(&metadata.RendererBackendConfig{Width: 1, Height: 1}))
	boom := errors.New("boom")
	_, err = r.DrawFrame(0.016, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, r.FrameNumber())
	// the backend frame was still closed
	assert.Equal(t, uint64(1), b.FrameCount())
}

func TestFrameResourcesLifecycle(t *testing.T) {
	b := newBackend(t, 1)
	r := renderer.New(b)
	cfg := core.DefaultConfig().Renderer
	cfg.InstanceBufferSize = 2 * 16 * metadata.InstanceStride
	cfg.StreamingRegions = 2
	cfg.MaxDrawCommands = 8

	vertices, err := b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, 12)
	require.NoError(t, err)
	indices, err := b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDEX, 12)
	require.NoError(t, err)

	require.NoError(t, r.CreateFrameResources(&geometry{vertices: vertices, indices: indices}, &cfg))
	require.NotNil(t, r.Uploader())
	require.NotNil(t, r.Executor())
	assert.Equal(t, uint64(16*metadata.InstanceStride), r.Uploader().Capacity())
	assert.Equal(t, 4, b.LiveBuffers())

	require.NoError(t, r.ShutdownFrameResources())
	assert.Nil(t, r.Uploader())
	assert.Nil(t, r.Executor())
	assert.Equal(t, 2, b.LiveBuffers())
}
