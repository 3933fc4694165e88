package metadata

import (
	"github.com/spaghettifunk/strata/engine/math"
)

type RendererBackendConfig struct {
	/** @brief The name of the application */
	ApplicationName string
	Width           uint32
	Height          uint32
	/** @brief The colour the swapchain image is cleared to every frame. */
	ClearColour math.Vec4
	/** @brief Enables the validation layers, if available. */
	Validation bool
	/** @brief Paths of the compiled SPIR-V stages of the instanced pipeline. */
	VertexShader   string
	FragmentShader string
	/** @brief Bytes of push constant data reserved for FrameUniforms. */
	PushConstantSize uint32
}

type RenderBufferType int

const (
	/** @brief Buffer is use is unknown. Default, but usually invalid. */
	RENDERBUFFER_TYPE_UNKNOWN RenderBufferType = iota
	/** @brief Buffer is used for vertex data. */
	RENDERBUFFER_TYPE_VERTEX
	/** @brief Buffer is used for index data. */
	RENDERBUFFER_TYPE_INDEX
	/** @brief Buffer holds per-instance data streamed every frame. */
	RENDERBUFFER_TYPE_INSTANCE
	/** @brief Buffer holds indirect draw command tables. */
	RENDERBUFFER_TYPE_INDIRECT
)

func (t RenderBufferType) String() string {
	switch t {
	case RENDERBUFFER_TYPE_VERTEX:
		return "vertex"
	case RENDERBUFFER_TYPE_INDEX:
		return "index"
	case RENDERBUFFER_TYPE_INSTANCE:
		return "instance"
	case RENDERBUFFER_TYPE_INDIRECT:
		return "indirect"
	default:
		return "unknown"
	}
}

/**
 * @brief Per-frame camera matrices, pushed to the vertex stage as two
 * column-major mat4 (view first).
 */
type FrameUniforms struct {
	View       math.Mat4
	Projection math.Mat4
}

// FrameUniformsSize is the push constant footprint of FrameUniforms.
const FrameUniformsSize = 2 * Mat4Size

/** @brief Summary of one flushed frame. */
type FrameStats struct {
	Frame uint64
	// Number of indirect commands issued, one per distinct mesh.
	DrawCount uint32
	// Number of Submit calls that went into the frame.
	InstanceCount uint32
	// Bytes written into the instance stream.
	InstanceBytes uint64
	// Streaming region the frame was written to.
	Region uint32
}

/** @brief A range, typically of memory */
type MemoryRange struct {
	/** @brief The Offset in bytes. */
	Offset uint64
	/** @brief The size in bytes. */
	Size uint64
}

// End returns the first byte after the range.
func (r MemoryRange) End() uint64 {
	return r.Offset + r.Size
}

// Overlaps reports whether r and other share at least one byte.
func (r MemoryRange) Overlaps(other MemoryRange) bool {
	if r.Size == 0 || other.Size == 0 {
		return false
	}
	return r.Offset < other.End() && other.Offset < r.End()
}
