package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
	"github.com/spaghettifunk/strata/engine/platform"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/components"
	"github.com/spaghettifunk/strata/engine/renderer/headless"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
	"github.com/spaghettifunk/strata/engine/renderer/vulkan"
	"github.com/spaghettifunk/strata/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every subsystem
	EngineStageShutdown
)

// Frames between two metrics lines in the debug log.
const metricsLogInterval = 120

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.Config
	sessionID     uuid.UUID
	isRunning     atomic.Bool
	isSuspended   bool
	events        *core.EventBus
	input         *core.Input
	platform      *platform.Platform
	renderer      *renderer.Renderer
	systemManager *systems.SystemManager
	camera        *components.Camera
	clock         *core.Clock
	metrics       *core.Metrics
	width         uint32
	height        uint32
	lastTime      float64
	// Frames to run before stopping, 0 for no limit.
	frameLimit uint64
}

/**
 * @brief Builds an engine for the game. The backend named by the
 * configuration decides whether a window is opened at all.
 */
func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil || g.ApplicationConfig.Config == nil {
		return nil, fmt.Errorf("game has no application config")
	}
	cfg := g.ApplicationConfig.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(g.ApplicationConfig.LogLevel); err != nil {
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		sessionID:    uuid.New(),
		events:       core.NewEventBus(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}
	e.input = core.NewInput(e.events)
	core.SetLogPrefix(fmt.Sprintf("strata %s", e.sessionID.String()[:8]))

	var backend renderer.RendererBackend
	switch cfg.Renderer.Backend {
	case core.BackendHeadless:
		backend = headless.New(cfg.Renderer.HeadlessLatency)
		e.frameLimit = cfg.Renderer.HeadlessFrames
	default:
		e.platform = platform.New(e.input, e.events)
		backend = vulkan.New(e.platform)
	}
	e.renderer = renderer.New(backend)

	core.LogInfo("session %s using the %s backend", e.sessionID, cfg.Renderer.Backend)
	return e, nil
}

func (e *Engine) SessionID() uuid.UUID {
	return e.sessionID
}

// Backend returns the renderer backend the engine draws with.
func (e *Engine) Backend() renderer.RendererBackend {
	return e.renderer.Backend()
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.config

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)

	if e.platform != nil {
		if err := e.platform.Startup(e.gameInstance.ApplicationConfig.Name,
			e.gameInstance.ApplicationConfig.StartPosX,
			e.gameInstance.ApplicationConfig.StartPosY,
			e.width,
			e.height); err != nil {
			return err
		}
		// The drawable area can differ from the requested window size.
		e.width, e.height = e.platform.FramebufferSize()
	}

	rc := cfg.Renderer.ClearColour
	if err := e.renderer.Initialize(&metadata.RendererBackendConfig{
		ApplicationName:  e.gameInstance.ApplicationConfig.Name,
		Width:            e.width,
		Height:           e.height,
		ClearColour:      math.Vec4{X: rc[0], Y: rc[1], Z: rc[2], W: rc[3]},
		Validation:       cfg.Renderer.Validation,
		VertexShader:     cfg.Renderer.VertexShader,
		FragmentShader:   cfg.Renderer.FragmentShader,
		PushConstantSize: uint32(metadata.FrameUniformsSize),
	}); err != nil {
		return err
	}

	sm, err := systems.NewSystemManager(e.renderer, &cfg.Renderer)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	e.systemManager = sm

	e.camera = components.NewCameraFromConfig(cfg.Camera, aspectRatio(e.width, e.height))

	if e.gameInstance.FnInitialize != nil {
		ctx := &Context{
			Config:  cfg,
			Arena:   sm.GeometryArena,
			Batcher: sm.FrameBatcher,
			Camera:  e.camera,
			Input:   e.input,
			Events:  e.events,
		}
		if err := e.gameInstance.FnInitialize(ctx); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

/**
 * @brief Runs the frame loop until Stop is called, the window closes or
 * the frame limit is reached, then shuts every subsystem down. The first
 * error of the loop stops it and is returned together with any shutdown
 * error.
 */
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine must be initialized before running")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	loopErr := e.loop()
	if loopErr != nil {
		core.LogError("frame loop stopped: %s", loopErr)
	}
	return errors.Join(loopErr, e.shutdown())
}

func (e *Engine) loop() error {
	var frames uint64
	for e.isRunning.Load() {
		if e.platform != nil && !e.platform.PumpMessages() {
			break
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		e.lastTime = currentTime

		if !e.isSuspended {
			if err := e.frame(delta); err != nil {
				return err
			}
			frames++
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - currentTime)
		if e.metrics.FrameNumber%metricsLogInterval == 0 {
			fps, frameTime := e.metrics.Frame()
			core.LogDebug("session %s: %.1f fps, %.3f ms, %d draws, %d instances",
				e.sessionID, fps, frameTime, e.metrics.DrawCount, e.metrics.InstanceCount)
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		e.input.Update()

		if e.frameLimit > 0 && frames >= e.frameLimit {
			core.LogInfo("frame limit of %d reached", e.frameLimit)
			break
		}
	}
	return nil
}

func (e *Engine) frame(delta float64) error {
	e.camera.Update(float32(delta), e.input)

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down.")
			return err
		}
	}

	batcher := e.systemManager.FrameBatcher
	skipped, err := e.renderer.DrawFrame(delta, func() error {
		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(batcher, delta); err != nil {
				core.LogError("Game render failed, shutting down.")
				return err
			}
		}
		stats, err := batcher.Flush(metadata.FrameUniforms{
			View:       e.camera.GetView(),
			Projection: e.camera.GetProjection(),
		})
		if err != nil {
			return err
		}
		e.metrics.RecordDraws(stats.DrawCount, stats.InstanceCount)
		return nil
	})
	if err != nil {
		batcher.Reset()
		return err
	}
	if skipped {
		batcher.Reset()
	}
	return nil
}

// Stop asks the frame loop to finish after the current frame. Safe to call
// from another goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown releases whatever Initialize managed to create. Run calls it on
// its way out, so it is only needed when Run never started.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageRunning {
		return fmt.Errorf("engine is running, call Stop instead")
	}
	return e.shutdown()
}

func (e *Engine) shutdown() error {
	if e.currentStage == EngineStageShutdown || e.currentStage == EngineStageUninitialized {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	var errs []error

	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.systemManager != nil {
		errs = append(errs, e.systemManager.Shutdown())
	}
	if hb, ok := e.renderer.Backend().(*headless.Backend); ok {
		reportHeadless(hb)
	}
	errs = append(errs, e.renderer.Shutdown())
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	e.events.Shutdown()

	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}

func reportHeadless(hb *headless.Backend) {
	core.LogInfo("headless run: %d frames, %d submissions, %d draws executed, %d fence polls",
		hb.FrameCount(), hb.Submitted(), len(hb.Completed()), hb.FenceWaits())
	for _, h := range hb.Hazards() {
		core.LogWarn("write hazard: %+v", h)
	}
}

func (e *Engine) onEvent(context core.EventContext) bool {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		return false
	}
	// Check if different. If so, trigger a resize event.
	if se.WindowWidth == e.width && se.WindowHeight == e.height {
		return false
	}
	e.width, e.height = se.WindowWidth, se.WindowHeight
	core.LogDebug("Window resize: %d, %d", e.width, e.height)

	// Handle minimization
	if e.width == 0 || e.height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.camera != nil {
		e.camera.SetAspectRatio(aspectRatio(e.width, e.height))
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			core.LogError("game resize failed: %s", err)
		}
	}
	if err := e.renderer.OnResize(e.width, e.height); err != nil {
		core.LogError("renderer resize failed: %s", err)
	}
	// Other listeners may need the event too.
	return false
}

func aspectRatio(width, height uint32) float32 {
	if height == 0 {
		return 1
	}
	return float32(width) / float32(height)
}
