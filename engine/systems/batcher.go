package systems

import (
	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

// PlacementResolver maps mesh handles to their place in the geometry buffers.
type PlacementResolver interface {
	GetPlacement(handle metadata.MeshHandle) (metadata.MeshPlacement, error)
}

// InstanceUploader is the fenced, persistently mapped instance stream.
type InstanceUploader interface {
	WaitForPrevious() error
	Write(offset uint64, data []byte) error
	Rearm() error
	Region() renderer.StreamRegion
}

// DrawExecutor issues the frame's multi-draw.
type DrawExecutor interface {
	Execute(commands []metadata.IndirectDrawCommand, region renderer.StreamRegion, uniforms metadata.FrameUniforms) error
}

/**
 * @brief Collects the frame's draw requests, one group per mesh, and turns
 * them into an instance stream plus one indirect command per group.
 *
 * Groups keep the order in which their mesh was first submitted this frame,
 * and instances keep submission order inside a group.
 */
type FrameBatcher struct {
	geometry PlacementResolver
	uploader InstanceUploader
	executor DrawExecutor

	groups     []metadata.DrawBatch
	groupIndex map[metadata.MeshHandle]int
	submitted  uint32
	frame      uint64

	// reused between frames
	commands []metadata.IndirectDrawCommand
	scratch  []byte
}

func NewFrameBatcher(geometry PlacementResolver, uploader InstanceUploader, executor DrawExecutor) *FrameBatcher {
	return &FrameBatcher{
		geometry:   geometry,
		uploader:   uploader,
		executor:   executor,
		groupIndex: make(map[metadata.MeshHandle]int),
	}
}

// Submit queues one instance of r.Mesh for the next Flush.
func (b *FrameBatcher) Submit(r metadata.Renderable) {
	idx, ok := b.groupIndex[r.Mesh]
	if !ok {
		idx = len(b.groups)
		b.groupIndex[r.Mesh] = idx
		if idx < cap(b.groups) {
			// reuse the transform storage of a previous frame
			b.groups = b.groups[:idx+1]
			b.groups[idx].Mesh = r.Mesh
			b.groups[idx].Transforms = b.groups[idx].Transforms[:0]
		} else {
			b.groups = append(b.groups, metadata.DrawBatch{Mesh: r.Mesh})
		}
	}
	b.groups[idx].Transforms = append(b.groups[idx].Transforms, r.Transform)
	b.submitted++
}

// Pending is the number of Submit calls since the last Flush.
func (b *FrameBatcher) Pending() uint32 {
	return b.submitted
}

/**
 * @brief Publishes the queued instances and draws them.
 *
 * Waits for the instance region to be released by the device, writes each
 * group's transforms contiguously, builds one command per group with
 * BaseInstance set to the number of instances written before it, issues
 * the draw and re-arms the region's fence. The queue is emptied whether or
 * not the flush succeeds.
 */
func (b *FrameBatcher) Flush(uniforms metadata.FrameUniforms) (metadata.FrameStats, error) {
	defer b.Reset()

	stats := metadata.FrameStats{Frame: b.frame}

	if err := b.uploader.WaitForPrevious(); err != nil {
		return stats, err
	}
	region := b.uploader.Region()
	stats.Region = region.Index

	b.commands = b.commands[:0]
	var baseInstance uint32
	for i := range b.groups {
		group := &b.groups[i]
		placement, err := b.geometry.GetPlacement(group.Mesh)
		if err != nil {
			core.LogError("flush: %s", err)
			return stats, err
		}

		count := group.InstanceCount()
		size := uint64(count) * metadata.InstanceStride
		if uint64(cap(b.scratch)) < size {
			b.scratch = make([]byte, size)
		}
		data := b.scratch[:size]
		for j, m := range group.Transforms {
			metadata.EncodeMat4(data[uint64(j)*metadata.InstanceStride:], m)
		}
		if err := b.uploader.Write(uint64(baseInstance)*metadata.InstanceStride, data); err != nil {
			return stats, err
		}

		b.commands = append(b.commands, metadata.IndirectDrawCommand{
			IndexCount:    placement.IndexCount,
			InstanceCount: count,
			FirstIndex:    placement.FirstIndex,
			BaseVertex:    placement.BaseVertex,
			BaseInstance:  baseInstance,
		})
		baseInstance += count
	}

	if err := b.executor.Execute(b.commands, region, uniforms); err != nil {
		return stats, err
	}
	if err := b.uploader.Rearm(); err != nil {
		return stats, err
	}

	stats.DrawCount = uint32(len(b.commands))
	stats.InstanceCount = baseInstance
	stats.InstanceBytes = uint64(baseInstance) * metadata.InstanceStride
	b.frame++
	return stats, nil
}

// Commands returns the command table built by the last Flush.
func (b *FrameBatcher) Commands() []metadata.IndirectDrawCommand {
	return b.commands
}

// Reset drops everything submitted since the last Flush.
func (b *FrameBatcher) Reset() {
	b.groups = b.groups[:0]
	clear(b.groupIndex)
	b.submitted = 0
}
