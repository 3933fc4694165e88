package systems

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/headless"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

// recordingUploader logs the order in which the batcher drives the stream.
type recordingUploader struct {
	inner  InstanceUploader
	events []string
}

func (u *recordingUploader) WaitForPrevious() error {
	u.events = append(u.events, "wait")
	return u.inner.WaitForPrevious()
}

func (u *recordingUploader) Write(offset uint64, data []byte) error {
	u.events = append(u.events, "write")
	return u.inner.Write(offset, data)
}

func (u *recordingUploader) Rearm() error {
	u.events = append(u.events, "rearm")
	return u.inner.Rearm()
}

func (u *recordingUploader) Region() renderer.StreamRegion {
	return u.inner.Region()
}

func uploadDemoMeshes(t *testing.T, arena *GeometryArena) (metadata.MeshHandle, metadata.MeshHandle) {
	t.Helper()
	v, i := triangle()
	tri, err := arena.Upload("triangle", v, i)
	require.NoError(t, err)
	v, i = square()
	sq, err := arena.Upload("square", v, i)
	require.NoError(t, err)
	return tri, sq
}

func instanceBytes(t *testing.T, s *testStack) []byte {
	t.Helper()
	buf, ok := s.renderer.Uploader().Buffer().(*headless.Buffer)
	require.True(t, ok)
	return buf.Bytes()
}

func TestFlushBuildsOneCommandPerMesh(t *testing.T) {
	s := newTestStack(t, headless.New(0), testRendererConfig(1))
	tri, sq := uploadDemoMeshes(t, s.manager.GeometryArena)
	batcher := s.manager.FrameBatcher

	t1, t2, t3 := translation(1), translation(2), translation(3)
	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: t1})
	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: t2})
	batcher.Submit(metadata.Renderable{Mesh: sq, Transform: t3})
	assert.Equal(t, uint32(3), batcher.Pending())

	uniforms := metadata.FrameUniforms{View: math.NewMat4Identity(), Projection: translation(9)}
	stats, err := batcher.Flush(uniforms)
	require.NoError(t, err)

	assert.Equal(t, []metadata.IndirectDrawCommand{
		{IndexCount: 3, InstanceCount: 2, FirstIndex: 0, BaseVertex: 0, BaseInstance: 0},
		{IndexCount: 6, InstanceCount: 1, FirstIndex: 3, BaseVertex: 3, BaseInstance: 2},
	}, batcher.Commands())
	assert.Equal(t, uint32(2), stats.DrawCount)
	assert.Equal(t, uint32(3), stats.InstanceCount)
	assert.Equal(t, uint64(3*64), stats.InstanceBytes)
	assert.Zero(t, batcher.Pending())

	stream := instanceBytes(t, s)
	assert.Equal(t, metadata.EncodeInstances([]math.Mat4{t1, t2, t3}), stream[:3*64])

	// one multi-draw per frame
	assert.Equal(t, uint64(1), s.backend.Submitted())

	// the next frame's wait retires the draw
	_, err = batcher.Flush(uniforms)
	require.NoError(t, err)
	require.NotEmpty(t, s.backend.Completed())
	draw := s.backend.Completed()[0]
	assert.Equal(t, [][]math.Mat4{{t1, t2}, {t3}}, draw.Instances)
	assert.Equal(t, uniforms, draw.Uniforms)
	assert.Empty(t, s.backend.Hazards())
}

func TestFlushKeepsFirstSubmissionOrder(t *testing.T) {
	s := newTestStack(t, headless.New(0), testRendererConfig(1))
	tri, sq := uploadDemoMeshes(t, s.manager.GeometryArena)
	batcher := s.manager.FrameBatcher

	batcher.Submit(metadata.Renderable{Mesh: sq, Transform: translation(1)})
	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(2)})
	batcher.Submit(metadata.Renderable{Mesh: sq, Transform: translation(3)})

	_, err := batcher.Flush(metadata.FrameUniforms{})
	require.NoError(t, err)
	cmds := batcher.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, uint32(6), cmds[0].IndexCount)
	assert.Equal(t, uint32(2), cmds[0].InstanceCount)
	assert.Equal(t, uint32(0), cmds[0].BaseInstance)
	assert.Equal(t, uint32(3), cmds[1].IndexCount)
	assert.Equal(t, uint32(2), cmds[1].BaseInstance)

	stream := instanceBytes(t, s)
	want := metadata.EncodeInstances([]math.Mat4{translation(1), translation(3), translation(2)})
	assert.Equal(t, want, stream[:len(want)])
}

func TestFlushEmptyFrame(t *testing.T) {
	s := newTestStack(t, headless.New(0), testRendererConfig(1))
	batcher := s.manager.FrameBatcher

	stats, err := batcher.Flush(metadata.FrameUniforms{})
	require.NoError(t, err)
	assert.Zero(t, stats.DrawCount)
	assert.Zero(t, stats.InstanceCount)
	assert.Empty(t, batcher.Commands())
	assert.Equal(t, uint64(1), s.backend.Submitted())

	_, err = batcher.Flush(metadata.FrameUniforms{})
	require.NoError(t, err)
	require.Len(t, s.backend.Completed(), 1)
	assert.Empty(t, s.backend.Completed()[0].Commands)
}

func TestFlushUnknownHandle(t *testing.T) {
	s := newTestStack(t, headless.New(0), testRendererConfig(1))
	tri, _ := uploadDemoMeshes(t, s.manager.GeometryArena)
	batcher := s.manager.FrameBatcher

	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(1)})
	batcher.Submit(metadata.Renderable{Mesh: 9, Transform: translation(2)})

	_, err := batcher.Flush(metadata.FrameUniforms{})
	assert.ErrorIs(t, err, core.ErrUnknownMeshHandle)
	var unknown *core.UnknownMeshHandleError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, uint32(9), unknown.Handle)
	assert.Zero(t, batcher.Pending())
	assert.Zero(t, s.backend.Submitted())

	// the batcher recovers on the next frame
	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(1)})
	stats, err := batcher.Flush(metadata.FrameUniforms{})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.DrawCount)
}

func TestFlushInstanceCapacityExceeded(t *testing.T) {
	cfg := testRendererConfig(1)
	cfg.InstanceBufferSize = 2 * metadata.InstanceStride
	s := newTestStack(t, headless.New(0), cfg)
	tri, _ := uploadDemoMeshes(t, s.manager.GeometryArena)
	batcher := s.manager.FrameBatcher

	for k := 0; k < 3; k++ {
		batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(float32(k))})
	}
	_, err := batcher.Flush(metadata.FrameUniforms{})
	var capErr *core.CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "instance stream", capErr.Resource)
	assert.Equal(t, uint64(3*64), capErr.Requested)
	assert.Equal(t, uint64(2*64), capErr.Available)
	assert.Zero(t, s.backend.Submitted())

	// a frame that fits still goes through
	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(0)})
	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(1)})
	_, err = batcher.Flush(metadata.FrameUniforms{})
	require.NoError(t, err)
}

func TestFlushDrawCommandCapacityExceeded(t *testing.T) {
	cfg := testRendererConfig(1)
	cfg.MaxDrawCommands = 1
	s := newTestStack(t, headless.New(0), cfg)
	tri, sq := uploadDemoMeshes(t, s.manager.GeometryArena)
	batcher := s.manager.FrameBatcher

	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(0)})
	batcher.Submit(metadata.Renderable{Mesh: sq, Transform: translation(1)})
	_, err := batcher.Flush(metadata.FrameUniforms{})
	var capErr *core.CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "indirect command table", capErr.Resource)
	assert.Zero(t, s.backend.Submitted())
}

func TestResetDropsSubmissions(t *testing.T) {
	s := newTestStack(t, headless.New(0), testRendererConfig(1))
	tri, _ := uploadDemoMeshes(t, s.manager.GeometryArena)
	batcher := s.manager.FrameBatcher

	batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(0)})
	batcher.Reset()
	assert.Zero(t, batcher.Pending())

	stats, err := batcher.Flush(metadata.FrameUniforms{})
	require.NoError(t, err)
	assert.Zero(t, stats.DrawCount)
}

func TestFlushAlternatesStreamingRegions(t *testing.T) {
	s := newTestStack(t, headless.New(1), testRendererConfig(2))
	tri, _ := uploadDemoMeshes(t, s.manager.GeometryArena)
	batcher := s.manager.FrameBatcher
	regionSize := s.renderer.Uploader().Capacity()

	for frame := 0; frame < 4; frame++ {
		batcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(float32(frame))})
		stats, err := batcher.Flush(metadata.FrameUniforms{})
		require.NoError(t, err)
		assert.Equal(t, uint32(frame%2), stats.Region)

		stream := instanceBytes(t, s)
		offset := uint64(frame%2) * regionSize
		assert.Equal(t, metadata.EncodeInstances([]math.Mat4{translation(float32(frame))}), stream[offset:offset+64])
	}
	assert.Empty(t, s.backend.Hazards())
}

type submission struct {
	mesh      metadata.MeshHandle
	transform math.Mat4
}

// expectedGroups buckets submissions per mesh in first-seen order.
func expectedGroups(subs []submission) ([]metadata.MeshHandle, [][]math.Mat4) {
	index := map[metadata.MeshHandle]int{}
	var meshes []metadata.MeshHandle
	var groups [][]math.Mat4
	for _, s := range subs {
		i, ok := index[s.mesh]
		if !ok {
			i = len(meshes)
			index[s.mesh] = i
			meshes = append(meshes, s.mesh)
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s.transform)
	}
	return meshes, groups
}

func TestFrameStreamNeverRacesTheDevice(t *testing.T) {
	for _, regions := range []uint32{1, 2} {
		for seed := int64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("regions=%d/seed=%d", regions, seed), func(t *testing.T) {
				rng := rand.New(rand.NewSource(seed))
				backend := headless.NewWithLatency(func() uint32 { return uint32(rng.Intn(6)) })
				s := newTestStack(t, backend, testRendererConfig(regions))
				arena := s.manager.GeometryArena

				var handles []metadata.MeshHandle
				for m := 0; m < 5; m++ {
					v, i := triangle()
					h, err := arena.Upload(fmt.Sprintf("mesh-%d", m), v, i)
					require.NoError(t, err)
					handles = append(handles, h)
				}

				spy := &recordingUploader{inner: s.renderer.Uploader()}
				batcher := NewFrameBatcher(arena, spy, s.renderer.Executor())

				const frames = 40
				var expected [][]submission
				for frame := 0; frame < frames; frame++ {
					var subs []submission
					for k := rng.Intn(20); k > 0; k-- {
						sub := submission{
							mesh:      handles[rng.Intn(len(handles))],
							transform: translation(float32(frame*100 + k)),
						}
						subs = append(subs, sub)
						batcher.Submit(metadata.Renderable{Mesh: sub.mesh, Transform: sub.transform})
					}
					expected = append(expected, subs)

					spy.events = spy.events[:0]
					skipped, err := s.renderer.DrawFrame(0.016, func() error {
						stats, err := batcher.Flush(metadata.FrameUniforms{})
						if err == nil && stats.InstanceCount != uint32(len(subs)) {
							return fmt.Errorf("frame %d flushed %d instances, submitted %d", frame, stats.InstanceCount, len(subs))
						}
						return err
					})
					require.NoError(t, err)
					require.False(t, skipped)

					// every write of the frame sits between its wait and its rearm
					require.GreaterOrEqual(t, len(spy.events), 2)
					assert.Equal(t, "wait", spy.events[0])
					assert.Equal(t, "rearm", spy.events[len(spy.events)-1])
					for _, e := range spy.events[1 : len(spy.events)-1] {
						assert.Equal(t, "write", e)
					}

					var base uint32
					for _, cmd := range batcher.Commands() {
						require.Equal(t, base, cmd.BaseInstance)
						base += cmd.InstanceCount
					}
					require.Equal(t, uint32(len(subs)), base)
				}

				require.NoError(t, s.renderer.ShutdownFrameResources())
				assert.Empty(t, backend.Hazards())
				assert.Zero(t, backend.PendingCount())

				completed := backend.Completed()
				require.Len(t, completed, frames)
				for frame, draw := range completed {
					meshes, groups := expectedGroups(expected[frame])
					require.Len(t, draw.Commands, len(meshes), "frame %d", frame)
					for g := range meshes {
						p, err := arena.GetPlacement(meshes[g])
						require.NoError(t, err)
						assert.Equal(t, p.FirstIndex, draw.Commands[g].FirstIndex)
						assert.Equal(t, p.BaseVertex, draw.Commands[g].BaseVertex)
						assert.Equal(t, groups[g], draw.Instances[g], "frame %d group %d", frame, g)
					}
				}
			})
		}
	}
}

func TestSystemManagerShutdownReleasesBuffers(t *testing.T) {
	backend := headless.New(3)
	s := newTestStack(t, backend, testRendererConfig(2))
	tri, _ := uploadDemoMeshes(t, s.manager.GeometryArena)

	s.manager.FrameBatcher.Submit(metadata.Renderable{Mesh: tri, Transform: translation(1)})
	_, err := s.manager.FrameBatcher.Flush(metadata.FrameUniforms{})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.PendingCount())

	require.NoError(t, s.manager.Shutdown())
	assert.Zero(t, backend.PendingCount())
	assert.Zero(t, backend.LiveBuffers())
	assert.Empty(t, backend.Hazards())
	require.NoError(t, s.renderer.Shutdown())
}
