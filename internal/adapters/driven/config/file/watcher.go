package file

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/parley/internal/logger"
)

// Watcher reloads a ConfigStore when its file changes on disk and then
// calls onReload. The directory is watched rather than the file, because
// saves replace the file by rename.
type Watcher struct {
	store    *ConfigStore
	onReload func()
	fsw      *fsnotify.Watcher
	log      *logger.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewWatcher creates a watcher for store. onReload runs on the watcher's
// goroutine after every successful reload.
func NewWatcher(store *ConfigStore, onReload func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(store.Path())); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if onReload == nil {
		onReload = func() {}
	}

	return &Watcher{
		store:    store,
		onReload: onReload,
		fsw:      fsw,
		log:      logger.For("config"),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in the background.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Close stops watching and waits for the background goroutine.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.handleFsEvent(event) {
				continue
			}
			if err := w.store.Load(); err != nil {
				w.log.Warn("reload %s: %v", w.store.Path(), err)
				continue
			}
			w.log.Debug("reloaded %s", w.store.Path())
			w.onReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch %s: %v", w.store.Path(), err)
		}
	}
}

// handleFsEvent reports whether an event changed the config file's content.
// Removal keeps the last loaded configuration.
func (w *Watcher) handleFsEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.store.Path()) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
