package config

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/scenecull/engine/core"
)

// Watcher reloads a config file whenever it is written and hands the new
// value to OnReload. Invalid files are logged and ignored.
type Watcher struct {
	path     string
	onReload func(Config)

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup

	mutex    sync.Mutex
	isClosed bool
}

func NewWatcher(path string, onReload func(Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace the file, so the directory is watched instead.
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		onReload: onReload,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.reload()
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		core.LogWarn("ignoring config change: %s", err)
		return
	}
	core.LogInfo("config %s reloaded", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops watching. Closing twice returns an error.
func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return errors.New("config watcher already closed")
	}
	w.isClosed = true
	w.mutex.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.fsnotify.Close()
}
