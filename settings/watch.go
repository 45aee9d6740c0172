package settings

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonwraymond/resultcache/observe"
)

// DefaultDebounce is how long a Watcher waits for file events to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher calls a function once a file stops changing.
//
// It watches the parent directory, so the file may be created after the
// watcher starts and editors that replace it by rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()
	log      observe.Logger
	fsw      *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching path. Pass 0 for debounce to use
// DefaultDebounce. A nil logger discards logs.
func NewWatcher(path string, debounce time.Duration, onChange func(), logger observe.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path = filepath.Clean(path)
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		log:      logger,
		fsw:      fsw,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch invalidates the store whenever the file at path changes.
func (s *Store) Watch(path string, debounce time.Duration) (*Watcher, error) {
	return NewWatcher(path, debounce, func() {
		if s.Invalidate() {
			s.log.Info(context.Background(), "settings file changed, cached document dropped", observe.F("path", path))
		}
	}, s.log)
}

func (w *Watcher) loop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				w.schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn(context.Background(), "settings watcher error", observe.F("path", w.path), observe.F("error", err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	w.timer = nil
	w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}
	if w.onChange != nil {
		w.onChange()
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
		<-w.stopped

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()
	})
	return err
}
