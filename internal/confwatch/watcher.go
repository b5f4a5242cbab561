// Package confwatch watches configuration directories and reports settled
// changes to the files that make up the active configuration.
package confwatch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/1broseidon/pinwheel/internal/config"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before a change is reported.
const DefaultDebounce = 250 * time.Millisecond

// Kind describes what happened to a watched file.
type Kind int

const (
	WriteComplete Kind = iota
	Removed
)

func (k Kind) String() string {
	if k == Removed {
		return "removed"
	}
	return "write-complete"
}

// Event is a settled change to a configuration file.
type Event struct {
	Path string
	Kind Kind
}

// Watcher watches the directories holding the tracked files, so editors
// that replace a file instead of writing it in place are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	events   chan Event

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// New starts a watcher with nothing tracked.
func New(logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		logger:   logger,
		debounce: debounce,
		events:   make(chan Event, 1),
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Events returns settled change notifications. Pending notifications are
// coalesced; a reader only needs to know that something changed.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Track replaces the set of tracked files and watches their directories.
func (w *Watcher) Track(files []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.files = make(map[string]struct{}, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		abs = filepath.Clean(abs)
		w.files[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch config dir %s: %w", dir, err)
		}
		w.dirs[dir] = struct{}{}
		w.logger.Debug("watching config dir", "dir", dir)
	}
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) relevant(name string) bool {
	name = filepath.Clean(name)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[name]; ok {
		return true
	}
	// New files dropped into an included directory count too.
	_, ok := w.dirs[filepath.Dir(name)]
	return ok && config.IsConfigFileName(name)
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending Event
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending = Event{Path: filepath.Clean(event.Name), Kind: WriteComplete}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				pending.Kind = Removed
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(w.debounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			w.publish(pending)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// publish delivers ev, replacing an unread event: only the latest settled
// state of the files matters to the reader.
func (w *Watcher) publish(ev Event) {
	for {
		select {
		case w.events <- ev:
			return
		default:
		}
		select {
		case stale := <-w.events:
			w.logger.Debug("superseding unread config event", "path", stale.Path, "kind", stale.Kind.String())
		default:
		}
	}
}
