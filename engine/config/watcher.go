package config

import (
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/continuum/engine/core"
)

// Watcher reloads a configuration file whenever it changes on disk and
// publishes every successfully parsed version on Updates.
type Watcher struct {
	path string

	fsnotify *fsnotify.Watcher
	updates  chan *Config
	errors   chan error
	done     chan struct{}

	mu       sync.Mutex
	isClosed bool
	wg       sync.WaitGroup
}

// NewWatcher starts watching path. The directory is watched rather than the
// file so that editors replacing the file by rename are noticed.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve config path %s", path)
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create config watcher")
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	w := &Watcher{
		path:     abs,
		fsnotify: fsWatch,
		updates:  make(chan *Config, 1),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

// Updates delivers reloaded configurations. It is closed by Close.
func (w *Watcher) Updates() <-chan *Config { return w.updates }

// Errors delivers watch and parse failures. It is closed by Close.
func (w *Watcher) Errors() <-chan error { return w.errors }

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
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				core.LogWarn("config reload failed: %s", err)
				w.publishError(err)
				continue
			}
			core.LogInfo("config %s reloaded", w.path)
			w.publish(cfg)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())
			w.publishError(err)

		case <-w.done:
			return
		}
	}
}

// publish keeps only the newest pending configuration.
func (w *Watcher) publish(cfg *Config) {
	for {
		select {
		case w.updates <- cfg:
			return
		case <-w.updates:
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) publishError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// Close stops watching. Calling it more than once is a no-op.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.isClosed {
		w.mu.Unlock()
		return nil
	}
	w.isClosed = true
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
	err := w.fsnotify.Close()
	close(w.updates)
	close(w.errors)
	return err
}
