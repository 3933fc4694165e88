package assets

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/strata/engine/core"
)

/**
 * @brief Reloads a scene file whenever it changes on disk.
 *
 * The parent directory is watched rather than the file itself, so editors
 * that save by replacing the file keep being tracked. Only the newest
 * parsed scene is kept for the consumer.
 */
type SceneWatcher struct {
	path string

	mutex   sync.RWMutex
	current *Scene

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	updates  chan *Scene
	errors   chan error
}

func NewSceneWatcher(path string) (*SceneWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	scene, err := LoadScene(abs)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	sw := &SceneWatcher{
		path:     abs,
		current:  scene,
		fsnotify: fsWatch,
		updates:  make(chan *Scene, 1),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go sw.start()
	return sw, nil
}

// Current is the last scene that parsed successfully.
func (sw *SceneWatcher) Current() *Scene {
	sw.mutex.RLock()
	defer sw.mutex.RUnlock()
	return sw.current
}

// Updates delivers every successful reload. A reload nobody picked up yet
// is replaced by the newer one.
func (sw *SceneWatcher) Updates() <-chan *Scene {
	return sw.updates
}

func (sw *SceneWatcher) Errors() <-chan error {
	return sw.errors
}

func (sw *SceneWatcher) Close() error {
	if sw.isClosed {
		return errors.New("scene watcher already closed")
	}
	sw.isClosed = true
	close(sw.done)
	<-sw.stopped
	return nil
}

func (sw *SceneWatcher) start() {
	defer close(sw.stopped)
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != sw.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				sw.reload()
			}

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())
			publish(sw.errors, err)

		case <-sw.done:
			sw.fsnotify.Close()
			return
		}
	}
}

func (sw *SceneWatcher) reload() {
	scene, err := LoadScene(sw.path)
	if err != nil {
		// keep the previous scene; a half-written file fails here too
		core.LogWarn("scene reload failed: %s", err)
		publish(sw.errors, err)
		return
	}
	sw.mutex.Lock()
	sw.current = scene
	sw.mutex.Unlock()
	core.LogInfo("scene %s reloaded", filepath.Base(sw.path))
	publish(sw.updates, scene)
}

// publish replaces any value still waiting in ch.
func publish[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
