package engine

import (
	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer/components"
	"github.com/spaghettifunk/strata/engine/systems"
)

/**
 * @brief What the engine hands to a game once its subsystems are up. The
 * arena accepts geometry uploads, the batcher accepts renderables inside
 * the Render callback.
 */
type Context struct {
	Config  *core.Config
	Arena   *systems.GeometryArena
	Batcher *systems.FrameBatcher
	Camera  *components.Camera
	Input   *core.Input
	Events  *core.EventBus
}

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func(ctx *Context) error
type Update func(deltaTime float64) error

// Render submits the frame's renderables to the batcher. It only runs for
// frames the backend did not skip.
type Render func(batcher *systems.FrameBatcher, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
