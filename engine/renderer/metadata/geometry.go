package metadata

import "fmt"

// Byte sizes of the position-only geometry the arena stores.
const (
	// One vertex: three float32 position components.
	VertexStride uint64 = 3 * 4
	// One index: a uint32.
	IndexSize uint64 = 4
)

/**
 * @brief Identifies an uploaded mesh. Handles start at 1 and are never
 * reused; InvalidMeshHandle is returned by lookups that find nothing.
 */
type MeshHandle uint32

const InvalidMeshHandle MeshHandle = 0

func (h MeshHandle) IsValid() bool {
	return h != InvalidMeshHandle
}

/**
 * @brief Where a mesh lives inside the shared geometry buffers.
 */
type MeshPlacement struct {
	/** @brief Number of indices to draw. */
	IndexCount uint32
	/** @brief Offset into the shared index buffer, in indices. */
	FirstIndex uint32
	/** @brief Offset into the shared vertex buffer, in vertices. */
	BaseVertex int32
	/** @brief Number of vertices the mesh owns. */
	VertexCount uint32
}

// VertexRange is the byte range the mesh's vertices occupy.
func (p MeshPlacement) VertexRange() MemoryRange {
	return MemoryRange{
		Offset: uint64(p.BaseVertex) * VertexStride,
		Size:   uint64(p.VertexCount) * VertexStride,
	}
}

// IndexRange is the byte range the mesh's indices occupy.
func (p MeshPlacement) IndexRange() MemoryRange {
	return MemoryRange{
		Offset: uint64(p.FirstIndex) * IndexSize,
		Size:   uint64(p.IndexCount) * IndexSize,
	}
}

func (p MeshPlacement) String() string {
	return fmt.Sprintf("{indices=%d firstIndex=%d baseVertex=%d vertices=%d}", p.IndexCount, p.FirstIndex, p.BaseVertex, p.VertexCount)
}

/** @brief Occupancy of the geometry arena. */
type GeometryStats struct {
	MeshCount      uint32
	VertexBytes    uint64
	VertexCapacity uint64
	IndexBytes     uint64
	IndexCapacity  uint64
}
