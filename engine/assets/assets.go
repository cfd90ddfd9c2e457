package assets

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/hawk/engine/core"
)

// ShaderExtension is the file extension the watcher reports.
const ShaderExtension = ".wgsl"

/**
 * @brief Watches a shader directory tree and queues the paths of changed
 * shader files. The renderer drains the queue at frame boundaries; the
 * watcher never touches GPU state itself. When a bus is set each change is
 * also fired as EVENT_CODE_SHADER_CHANGED from the watcher goroutine.
 */
type ShaderWatcher struct {
	bus *core.EventBus

	mutex   sync.Mutex
	pending []string

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	isClosed bool
}

func NewShaderWatcher(dir string, bus *core.EventBus) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	sw := &ShaderWatcher{
		bus:      bus,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if err := sw.watchRecursive(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}
	go sw.start()
	core.LogInfo("watching %s for shader changes", dir)
	return sw, nil
}

// Drain returns the distinct changed paths since the last call.
func (sw *ShaderWatcher) Drain() []string {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	changed := sw.pending
	sw.pending = nil
	return changed
}

func (sw *ShaderWatcher) Close() error {
	sw.mutex.Lock()
	if sw.isClosed {
		sw.mutex.Unlock()
		return errors.New("shader watcher already closed")
	}
	sw.isClosed = true
	sw.mutex.Unlock()

	close(sw.done)
	<-sw.stopped
	return nil
}

func (sw *ShaderWatcher) start() {
	defer close(sw.stopped)
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			// New directories are watched as they appear.
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := sw.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
					continue
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				sw.handleFileEvent(e.Name)
			}

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)

		case <-sw.done:
			sw.fsnotify.Close()
			return
		}
	}
}

func (sw *ShaderWatcher) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return sw.fsnotify.Add(walkPath)
		}
		return nil
	})
}

func (sw *ShaderWatcher) handleFileEvent(path string) {
	if filepath.Ext(path) != ShaderExtension {
		return
	}
	sw.mutex.Lock()
	queued := slices.Contains(sw.pending, path)
	if !queued {
		sw.pending = append(sw.pending, path)
	}
	sw.mutex.Unlock()

	if queued {
		return
	}
	core.LogDebug("shader changed: %s", path)
	if sw.bus != nil {
		sw.bus.Fire(core.EventContext{
			Type: core.EVENT_CODE_SHADER_CHANGED,
			Data: core.ShaderChangedEvent{Path: path},
		})
	}
}
