package renderer

import (
	"errors"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

/**
 * @brief Owns the backend together with the streaming uploader and the
 * frame executor that sit on top of it.
 */
type Renderer struct {
	backend  RendererBackend
	uploader *StreamingUploader
	executor *FrameExecutor
	frame    uint64
}

func New(backend RendererBackend) *Renderer {
	return &Renderer{backend: backend}
}

func (r *Renderer) Initialize(config *metadata.RendererBackendConfig) error {
	if err := r.backend.Initialize(config); err != nil {
		core.LogError("renderer backend failed to initialize: %s", err)
		return err
	}
	return nil
}

/**
 * @brief Creates the instance stream and the command table once the shared
 * geometry buffers exist.
 */
func (r *Renderer) CreateFrameResources(geometry GeometryBuffers, cfg *core.RendererSection) error {
	uploader, err := NewStreamingUploader(r.backend, cfg.InstanceBufferSize, cfg.StreamingRegions, cfg.FencePollTimeoutNs)
	if err != nil {
		return err
	}
	executor, err := NewFrameExecutor(r.backend, geometry, uploader.Buffer(), cfg.MaxDrawCommands, cfg.StreamingRegions)
	if err != nil {
		return err
	}
	r.uploader = uploader
	r.executor = executor
	core.LogInfo("frame resources ready: %d streaming region(s) of %d bytes, %d draw commands", uploader.RegionCount(), uploader.Capacity(), cfg.MaxDrawCommands)
	return nil
}

func (r *Renderer) Backend() RendererBackend {
	return r.backend
}

func (r *Renderer) Uploader() *StreamingUploader {
	return r.uploader
}

func (r *Renderer) Executor() *FrameExecutor {
	return r.executor
}

/**
 * @brief Runs draw between BeginFrame and EndFrame. When the backend asks
 * to skip the frame, draw is not called and skipped is true. A failed draw
 * still ends the frame but does not count it.
 */
func (r *Renderer) DrawFrame(deltaTime float64, draw func() error) (skipped bool, err error) {
	if err := r.backend.BeginFrame(deltaTime); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return true, nil
		}
		core.LogError(err.Error())
		return false, err
	}
	if err := draw(); err != nil {
		// Close the frame so work and fences recorded so far still reach the device.
		return false, errors.Join(err, r.backend.EndFrame(deltaTime))
	}
	if err := r.backend.EndFrame(deltaTime); err != nil {
		core.LogError("RendererEndFrame failed. Application shutting down...")
		return false, err
	}
	r.frame++
	return false, nil
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frame
}

func (r *Renderer) OnResize(width, height uint32) error {
	return r.backend.Resized(width, height)
}

// ShutdownFrameResources drains the streaming regions and frees the
// instance stream and the command table.
func (r *Renderer) ShutdownFrameResources() error {
	var errs []error
	if r.uploader != nil {
		errs = append(errs, r.uploader.Shutdown())
		r.uploader = nil
	}
	if r.executor != nil {
		errs = append(errs, r.executor.Shutdown())
		r.executor = nil
	}
	return errors.Join(errs...)
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}
