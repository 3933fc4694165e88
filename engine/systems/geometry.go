package systems

import (
	"fmt"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

type GeometryArenaConfig struct {
	// Capacity of the shared vertex buffer, in bytes.
	VertexBufferSize uint64
	// Capacity of the shared index buffer, in bytes.
	IndexBufferSize uint64
}

/**
 * @brief Packs the vertices and indices of every mesh into two shared,
 * fixed-size buffers. Storage is handed out by bumping a write cursor in
 * each buffer; nothing is ever freed or moved, so a placement stays valid
 * for the arena's lifetime.
 *
 * Not safe for concurrent use. Meshes are expected to be uploaded during
 * start-up, before frames are drawn.
 */
type GeometryArena struct {
	backend renderer.RendererBackend
	vertices renderer.RenderBuffer
	indices  renderer.RenderBuffer

	vertexBytesWritten uint64
	indicesWritten     uint64

	lookup map[string]metadata.MeshHandle
	// placements[h-1] belongs to handle h.
	placements []metadata.MeshPlacement
}

func NewGeometryArena(backend renderer.RendererBackend, config GeometryArenaConfig) (*GeometryArena, error) {
	if config.VertexBufferSize < metadata.VertexStride || config.IndexBufferSize < metadata.IndexSize {
		err := fmt.Errorf("func NewGeometryArena - buffer sizes must hold at least one vertex and one index, got %d and %d bytes", config.VertexBufferSize, config.IndexBufferSize)
		core.LogError(err.Error())
		return nil, err
	}
	vertices, err := backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, config.VertexBufferSize)
	if err != nil {
		core.LogError("failed to create the shared vertex buffer: %s", err)
		return nil, err
	}
	indices, err := backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDEX, config.IndexBufferSize)
	if err != nil {
		core.LogError("failed to create the shared index buffer: %s", err)
		_ = backend.RenderBufferDestroy(vertices)
		return nil, err
	}
	return &GeometryArena{
		backend:  backend,
		vertices: vertices,
		indices:  indices,
		lookup:   make(map[string]metadata.MeshHandle),
	}, nil
}

/**
 * @brief Copies a mesh into the shared buffers and registers it under name.
 *
 * @param name Unique, non-empty mesh name.
 * @param vertices Packed float triples (x, y, z).
 * @param indices Triangle list; every index must address one of the mesh's own vertices.
 * @return The handle of the new mesh. The caller may reuse both slices once this returns.
 */
func (a *GeometryArena) Upload(name string, vertices []float32, indices []uint32) (metadata.MeshHandle, error) {
	if name == "" {
		err := fmt.Errorf("%w: mesh name must not be empty", core.ErrInvalidGeometry)
		core.LogError(err.Error())
		return metadata.InvalidMeshHandle, err
	}
	if existing, ok := a.lookup[name]; ok {
		err := &core.DuplicateNameError{Name: name, Handle: uint32(existing)}
		core.LogError(err.Error())
		return metadata.InvalidMeshHandle, err
	}
	if err := validateGeometry(name, vertices, indices); err != nil {
		core.LogError(err.Error())
		return metadata.InvalidMeshHandle, err
	}

	vertexCount := uint64(len(vertices) / 3)
	vertexBytes := vertexCount * metadata.VertexStride
	indexBytes := uint64(len(indices)) * metadata.IndexSize
	indexOffset := a.indicesWritten * metadata.IndexSize

	// Both checks happen before either buffer is touched.
	if available := a.vertices.Size() - a.vertexBytesWritten; vertexBytes > available {
		err := &core.CapacityExceededError{Resource: "vertex buffer", Requested: vertexBytes, Available: available}
		core.LogError("cannot upload mesh '%s': %s", name, err)
		return metadata.InvalidMeshHandle, err
	}
	if available := a.indices.Size() - indexOffset; indexBytes > available {
		err := &core.CapacityExceededError{Resource: "index buffer", Requested: indexBytes, Available: available}
		core.LogError("cannot upload mesh '%s': %s", name, err)
		return metadata.InvalidMeshHandle, err
	}

	if err := a.vertices.LoadRange(a.vertexBytesWritten, metadata.EncodeFloat32s(vertices)); err != nil {
		core.LogError("failed to write vertices of mesh '%s': %s", name, err)
		return metadata.InvalidMeshHandle, err
	}
	if err := a.indices.LoadRange(indexOffset, metadata.EncodeUint32s(indices)); err != nil {
		core.LogError("failed to write indices of mesh '%s': %s", name, err)
		return metadata.InvalidMeshHandle, err
	}

	placement := metadata.MeshPlacement{
		IndexCount:  uint32(len(indices)),
		FirstIndex:  uint32(a.indicesWritten),
		BaseVertex:  int32(a.vertexBytesWritten / metadata.VertexStride),
		VertexCount: uint32(vertexCount),
	}
	a.vertexBytesWritten += vertexBytes
	a.indicesWritten += uint64(len(indices))

	a.placements = append(a.placements, placement)
	handle := metadata.MeshHandle(len(a.placements))
	a.lookup[name] = handle

	core.LogDebug("mesh '%s' uploaded as handle %d at %s", name, handle, placement)
	return handle, nil
}

func validateGeometry(name string, vertices []float32, indices []uint32) error {
	if len(vertices) == 0 || len(vertices)%3 != 0 {
		return fmt.Errorf("%w: mesh '%s' has %d vertex floats, want a non-zero multiple of 3", core.ErrInvalidGeometry, name, len(vertices))
	}
	if len(indices) == 0 || len(indices)%3 != 0 {
		return fmt.Errorf("%w: mesh '%s' has %d indices, want a non-zero multiple of 3", core.ErrInvalidGeometry, name, len(indices))
	}
	vertexCount := uint32(len(vertices) / 3)
	for i, idx := range indices {
		if idx >= vertexCount {
			return fmt.Errorf("%w: mesh '%s' index %d is %d, mesh has %d vertices", core.ErrInvalidGeometry, name, i, idx, vertexCount)
		}
	}
	return nil
}

// Lookup returns the handle registered for name, or InvalidMeshHandle.
func (a *GeometryArena) Lookup(name string) metadata.MeshHandle {
	return a.lookup[name]
}

func (a *GeometryArena) GetPlacement(handle metadata.MeshHandle) (metadata.MeshPlacement, error) {
	if !handle.IsValid() || int(handle) > len(a.placements) {
		return metadata.MeshPlacement{}, &core.UnknownMeshHandleError{Handle: uint32(handle)}
	}
	return a.placements[handle-1], nil
}

func (a *GeometryArena) VertexBuffer() renderer.RenderBuffer {
	return a.vertices
}

func (a *GeometryArena) IndexBuffer() renderer.RenderBuffer {
	return a.indices
}

func (a *GeometryArena) Stats() metadata.GeometryStats {
	return metadata.GeometryStats{
		MeshCount:      uint32(len(a.placements)),
		VertexBytes:    a.vertexBytesWritten,
		VertexCapacity: a.vertices.Size(),
		IndexBytes:     a.indicesWritten * metadata.IndexSize,
		IndexCapacity:  a.indices.Size(),
	}
}

func (a *GeometryArena) Shutdown() error {
	if err := a.backend.RenderBufferDestroy(a.vertices); err != nil {
		return err
	}
	return a.backend.RenderBufferDestroy(a.indices)
}
