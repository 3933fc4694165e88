package renderer

import "github.com/spaghettifunk/strata/engine/renderer/metadata"

/**
 * @brief A GPU buffer that stays mapped into host memory for its whole
 * lifetime. Writes through LoadRange are visible to the device without an
 * explicit flush; ordering against device reads is the caller's job.
 */
type RenderBuffer interface {
	Type() metadata.RenderBufferType
	// Size in bytes.
	Size() uint64
	// LoadRange copies data into the buffer starting at offset.
	LoadRange(offset uint64, data []byte) error
}

/**
 * @brief A device completion token. It signals once every piece of device
 * work submitted before it was inserted has finished.
 */
type Fence interface {
	// Wait blocks for up to timeoutNs and reports whether the fence signaled.
	Wait(timeoutNs uint64) (bool, error)
	Destroy()
}

/**
 * @brief Everything one multi-draw-indirect call reads.
 */
type DrawIndirectCall struct {
	Vertices  RenderBuffer
	Indices   RenderBuffer
	Instances RenderBuffer
	// Byte offset of instance 0 inside Instances.
	InstanceOffset uint64
	Commands       RenderBuffer
	// Byte offset of the first command inside Commands.
	CommandOffset uint64
	DrawCount     uint32
	Stride        uint32
	Uniforms      metadata.FrameUniforms
}

type RendererBackend interface {
	Initialize(config *metadata.RendererBackendConfig) error
	Shutdown() error
	Resized(width, height uint32) error
	// BeginFrame returns core.ErrSwapchainBooting when the frame has to be skipped.
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
	RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (RenderBuffer, error)
	RenderBufferDestroy(buffer RenderBuffer) error
	BindVertexLayout(layout *metadata.VertexLayout) error
	DrawIndexedIndirect(call *DrawIndirectCall) error
	// FenceInsert returns a fence covering all work issued so far, including
	// work recorded in the current frame.
	FenceInsert() (Fence, error)
}
