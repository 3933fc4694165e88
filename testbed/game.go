package testbed

import (
	"github.com/spaghettifunk/strata/engine"
	"github.com/spaghettifunk/strata/engine/assets"
	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
	"github.com/spaghettifunk/strata/engine/systems"
)

type TestGame struct {
	*engine.Game
}

// An object of the scene whose mesh is resident in the arena.
type placedObject struct {
	handle metadata.MeshHandle
	object assets.SceneObject
}

type gameState struct {
	ctx     *engine.Context
	watcher *assets.SceneWatcher
	objects []placedObject
	elapsed float64

	width  uint32
	height uint32
}

func NewTestGame(cfg *core.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: engine.NewApplicationConfig(cfg),
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

/**
 * @brief Loads the scene, uploads every mesh it declares and starts
 * watching the file when configured to. Meshes are uploaded once: the
 * arena has no way to free them.
 */
func (g *TestGame) Initialize(ctx *engine.Context) error {
	core.LogInfo("initializing testbed...")
	state := g.state()
	state.ctx = ctx

	path := ctx.Config.Scene.Path
	var scene *assets.Scene
	if ctx.Config.Scene.Watch {
		w, err := assets.NewSceneWatcher(path)
		if err != nil {
			core.LogError("failed to watch scene %s: %s", path, err)
			return err
		}
		state.watcher = w
		scene = w.Current()
	} else {
		s, err := assets.LoadScene(path)
		if err != nil {
			core.LogError("failed to load scene %s: %s", path, err)
			return err
		}
		scene = s
	}

	for i := range scene.Meshes {
		mesh := &scene.Meshes[i]
		vertices, indices, err := mesh.Geometry()
		if err != nil {
			core.LogWarn("skipping mesh: %s", err)
			continue
		}
		handle, err := ctx.Arena.Upload(mesh.Name, vertices, indices)
		if err != nil {
			return err
		}
		core.LogDebug("mesh '%s' uploaded as handle %d", mesh.Name, handle)
	}

	g.applyScene(scene)
	stats := ctx.Arena.Stats()
	core.LogInfo("testbed ready: %d meshes, %d objects, %+v", stats.MeshCount, len(state.objects), stats)
	return nil
}

// applyScene resolves every object's mesh. Objects naming a mesh the arena
// does not hold are dropped.
func (g *TestGame) applyScene(scene *assets.Scene) {
	state := g.state()
	instances := scene.Instances()
	objects := make([]placedObject, 0, len(instances))
	missing := map[string]int{}
	for _, o := range instances {
		handle := state.ctx.Arena.Lookup(o.Mesh)
		if handle == metadata.InvalidMeshHandle {
			missing[o.Mesh]++
			continue
		}
		objects = append(objects, placedObject{handle: handle, object: o})
	}
	for name, count := range missing {
		core.LogWarn("skipping %d object(s) of unknown mesh '%s'", count, name)
	}
	state.objects = objects
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.elapsed += deltaTime

	if state.watcher == nil {
		return nil
	}
	select {
	case scene := <-state.watcher.Updates():
		g.applyScene(scene)
		core.LogInfo("scene reloaded: %d objects", len(state.objects))
		state.ctx.Events.Fire(core.EventContext{Type: core.EVENT_CODE_SCENE_RELOADED})
	case err := <-state.watcher.Errors():
		core.LogWarn("scene reload failed, keeping the previous scene: %s", err)
	default:
	}
	return nil
}

func (g *TestGame) Render(batcher *systems.FrameBatcher, deltaTime float64) error {
	state := g.state()
	elapsed := float32(state.elapsed)
	for i := range state.objects {
		p := &state.objects[i]
		batcher.Submit(metadata.Renderable{
			Mesh:      p.handle,
			Transform: p.object.Model(elapsed),
		})
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	if state.watcher != nil {
		err := state.watcher.Close()
		state.watcher = nil
		return err
	}
	return nil
}
