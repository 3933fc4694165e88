package renderer

import (
	"fmt"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

// Number of timed-out polls between two "still waiting" warnings.
const fenceWarnEvery = 1000

/**
 * @brief The slice of the instance buffer the current frame writes to.
 */
type StreamRegion struct {
	Index  uint32
	Offset uint64
	Size   uint64
}

/**
 * @brief Publishes the per-frame instance stream through a persistently
 * mapped buffer. The buffer is split into one or more regions; each region
 * is guarded by the fence inserted the last time it was submitted, and a
 * frame may only write after WaitForPrevious observed that fence.
 */
type StreamingUploader struct {
	backend       RendererBackend
	buffer        RenderBuffer
	regionSize    uint64
	fences        []Fence
	current       uint32
	waited        bool
	pollTimeoutNs uint64
}

func NewStreamingUploader(backend RendererBackend, totalSize uint64, regionCount uint32, pollTimeoutNs uint64) (*StreamingUploader, error) {
	if regionCount == 0 {
		err := fmt.Errorf("func NewStreamingUploader - regionCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	regionSize := totalSize / uint64(regionCount)
	if regionSize == 0 || regionSize%metadata.InstanceStride != 0 {
		err := fmt.Errorf("func NewStreamingUploader - region size %d must be a non-zero multiple of %d", regionSize, metadata.InstanceStride)
		core.LogError(err.Error())
		return nil, err
	}
	buffer, err := backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INSTANCE, regionSize*uint64(regionCount))
	if err != nil {
		return nil, err
	}
	return &StreamingUploader{
		backend:       backend,
		buffer:        buffer,
		regionSize:    regionSize,
		fences:        make([]Fence, regionCount),
		pollTimeoutNs: pollTimeoutNs,
	}, nil
}

/**
 * @brief Blocks until the device finished reading the current region.
 * Polls the fence with a short timeout until it reports completion; a lost
 * device is returned as an error.
 */
func (u *StreamingUploader) WaitForPrevious() error {
	fence := u.fences[u.current]
	if fence == nil {
		// Region never submitted.
		u.waited = true
		return nil
	}
	for polls := 1; ; polls++ {
		signaled, err := fence.Wait(u.pollTimeoutNs)
		if err != nil {
			core.LogError("waiting on streaming region %d failed: %s", u.current, err)
			return err
		}
		if signaled {
			break
		}
		if polls%fenceWarnEvery == 0 {
			core.LogWarn("streaming region %d still in use after %d polls", u.current, polls)
		}
	}
	u.waited = true
	return nil
}

/**
 * @brief Copies data into the current region at offset (relative to the
 * region start).
 */
func (u *StreamingUploader) Write(offset uint64, data []byte) error {
	if !u.waited {
		core.LogError("write of %d bytes into streaming region %d before its fence was observed", len(data), u.current)
		return core.ErrFenceNotObserved
	}
	end := offset + uint64(len(data))
	if end > u.regionSize {
		err := &core.CapacityExceededError{
			Resource:  "instance stream",
			Requested: end,
			Available: u.regionSize,
		}
		core.LogError(err.Error())
		return err
	}
	return u.buffer.LoadRange(uint64(u.current)*u.regionSize+offset, data)
}

/**
 * @brief Replaces the current region's fence with a new one covering the
 * work just issued, then moves to the next region. Must be called once per
 * frame, after the draw was issued.
 */
func (u *StreamingUploader) Rearm() error {
	fence, err := u.backend.FenceInsert()
	if err != nil {
		core.LogError("failed to insert streaming fence: %s", err)
		return err
	}
	if old := u.fences[u.current]; old != nil {
		old.Destroy()
	}
	u.fences[u.current] = fence
	u.current = (u.current + 1) % uint32(len(u.fences))
	u.waited = false
	return nil
}

// Region describes where the current frame's instances live.
func (u *StreamingUploader) Region() StreamRegion {
	return StreamRegion{
		Index:  u.current,
		Offset: uint64(u.current) * u.regionSize,
		Size:   u.regionSize,
	}
}

// Capacity is the number of bytes one frame may write.
func (u *StreamingUploader) Capacity() uint64 {
	return u.regionSize
}

func (u *StreamingUploader) RegionCount() uint32 {
	return uint32(len(u.fences))
}

func (u *StreamingUploader) Buffer() RenderBuffer {
	return u.buffer
}

// Shutdown waits for every region to drain and releases the fences and the buffer.
func (u *StreamingUploader) Shutdown() error {
	for i, fence := range u.fences {
		if fence == nil {
			continue
		}
		for {
			signaled, err := fence.Wait(u.pollTimeoutNs)
			if err != nil {
				core.LogWarn("streaming region %d did not drain: %s", i, err)
				break
			}
			if signaled {
				break
			}
		}
		fence.Destroy()
		u.fences[i] = nil
	}
	return u.backend.RenderBufferDestroy(u.buffer)
}
