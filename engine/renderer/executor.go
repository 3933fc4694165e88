package renderer

import (
	"fmt"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

// GeometryBuffers exposes the shared vertex and index storage.
type GeometryBuffers interface {
	VertexBuffer() RenderBuffer
	IndexBuffer() RenderBuffer
}

/**
 * @brief Issues the frame's single multi-draw-indirect call. Owns the
 * indirect command table, split into one slice per streaming region so a
 * frame never rewrites commands the device may still be reading.
 */
type FrameExecutor struct {
	backend         RendererBackend
	geometry        GeometryBuffers
	instances       RenderBuffer
	commands        RenderBuffer
	layout          *metadata.VertexLayout
	maxDrawCommands uint32
	tableSize       uint64
}

func NewFrameExecutor(backend RendererBackend, geometry GeometryBuffers, instances RenderBuffer, maxDrawCommands, regionCount uint32) (*FrameExecutor, error) {
	if maxDrawCommands == 0 || regionCount == 0 {
		err := fmt.Errorf("func NewFrameExecutor - maxDrawCommands (%d) and regionCount (%d) must be > 0", maxDrawCommands, regionCount)
		core.LogError(err.Error())
		return nil, err
	}
	tableSize := uint64(maxDrawCommands) * metadata.IndirectCommandStride
	commands, err := backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDIRECT, tableSize*uint64(regionCount))
	if err != nil {
		return nil, err
	}
	return &FrameExecutor{
		backend:         backend,
		geometry:        geometry,
		instances:       instances,
		commands:        commands,
		layout:          metadata.NewInstancedVertexLayout(),
		maxDrawCommands: maxDrawCommands,
		tableSize:       tableSize,
	}, nil
}

/**
 * @brief Uploads the command table into the region's slice, binds the
 * instanced vertex layout and issues one draw with len(commands) sub-draws.
 * An empty table still goes through so the frame is cleared and fenced.
 */
func (e *FrameExecutor) Execute(commands []metadata.IndirectDrawCommand, region StreamRegion, uniforms metadata.FrameUniforms) error {
	if uint32(len(commands)) > e.maxDrawCommands {
		err := &core.CapacityExceededError{
			Resource:  "indirect command table",
			Requested: uint64(len(commands)),
			Available: uint64(e.maxDrawCommands),
		}
		core.LogError(err.Error())
		return err
	}

	tableOffset := uint64(region.Index) * e.tableSize
	if len(commands) > 0 {
		if err := e.commands.LoadRange(tableOffset, metadata.EncodeIndirectCommands(commands)); err != nil {
			core.LogError("failed to upload indirect commands: %s", err)
			return err
		}
	}

	if err := e.backend.BindVertexLayout(e.layout); err != nil {
		return err
	}

	call := &DrawIndirectCall{
		Vertices:       e.geometry.VertexBuffer(),
		Indices:        e.geometry.IndexBuffer(),
		Instances:      e.instances,
		InstanceOffset: region.Offset,
		Commands:       e.commands,
		CommandOffset:  tableOffset,
		DrawCount:      uint32(len(commands)),
		Stride:         uint32(metadata.IndirectCommandStride),
		Uniforms:       uniforms,
	}
	if err := e.backend.DrawIndexedIndirect(call); err != nil {
		core.LogError("multi-draw of %d commands failed: %s", len(commands), err)
		return err
	}
	return nil
}

func (e *FrameExecutor) MaxDrawCommands() uint32 {
	return e.maxDrawCommands
}

func (e *FrameExecutor) Shutdown() error {
	return e.backend.RenderBufferDestroy(e.commands)
}
