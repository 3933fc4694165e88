package systems

import (
	"errors"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer"
)

// SystemManager owns the geometry arena and the frame batcher built on top
// of a renderer.
type SystemManager struct {
	renderer      *renderer.Renderer
	GeometryArena *GeometryArena
	FrameBatcher  *FrameBatcher
}

/**
 * @brief Creates the shared geometry buffers, then the renderer's frame
 * resources, then the batcher wired to all three.
 */
func NewSystemManager(r *renderer.Renderer, cfg *core.RendererSection) (*SystemManager, error) {
	arena, err := NewGeometryArena(r.Backend(), GeometryArenaConfig{
		VertexBufferSize: cfg.VertexBufferSize,
		IndexBufferSize:  cfg.IndexBufferSize,
	})
	if err != nil {
		return nil, err
	}
	if err := r.CreateFrameResources(arena, cfg); err != nil {
		_ = arena.Shutdown()
		return nil, err
	}
	return &SystemManager{
		renderer:      r,
		GeometryArena: arena,
		FrameBatcher:  NewFrameBatcher(arena, r.Uploader(), r.Executor()),
	}, nil
}

// Shutdown releases the arena after the renderer drained its in-flight
// work. The backend itself stays up.
func (sm *SystemManager) Shutdown() error {
	sm.FrameBatcher.Reset()
	rerr := sm.renderer.ShutdownFrameResources()
	aerr := sm.GeometryArena.Shutdown()
	return errors.Join(rerr, aerr)
}
