// Package watcher implements the filesystem observer: it watches
// configured directories for markdown files and stores their contents as
// memories through the Engine Facade.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haneul-ai/recall/internal/engine"
	"github.com/haneul-ai/recall/internal/logger"
	"github.com/haneul-ai/recall/internal/model"
)

// Storer is the subset of the Engine Facade the watcher depends on.
type Storer interface {
	Store(ctx context.Context, in engine.StoreInput) (string, bool, error)
}

// Config configures the watcher.
type Config struct {
	Dirs            []string
	Extensions      []string // defaults to [".md"]
	Debounce        time.Duration
	DefaultType     model.MemoryType
	DefaultPriority model.Priority
}

// DefaultConfig returns sensible defaults for watching markdown notes.
func DefaultConfig(dirs []string) Config {
	return Config{
		Dirs:            dirs,
		Extensions:      []string{".md"},
		Debounce:        500 * time.Millisecond,
		DefaultType:     model.TypeObservation,
		DefaultPriority: model.PriorityMedium,
	}
}

// Watcher watches filesystem directories and ingests changed files.
type Watcher struct {
	cfg Config
	log logger.Logger
	fsw *fsnotify.Watcher
	sto Storer

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Watcher that is not yet watching; call Start to begin.
func New(cfg Config, sto Storer, log logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.Global()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".md"}
	}
	if cfg.DefaultType == "" {
		cfg.DefaultType = model.TypeObservation
	}
	if cfg.DefaultPriority == "" {
		cfg.DefaultPriority = model.PriorityMedium
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:    cfg,
		log:    log,
		fsw:    fsw,
		sto:    sto,
		timers: make(map[string]*time.Timer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	return w, nil
}

// Start adds every configured directory to the underlying fsnotify
// watcher and begins the event loop in a background goroutine.
func (w *Watcher) Start() error {
	for _, dir := range w.cfg.Dirs {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	go w.run()
	return nil
}

// Stop halts the event loop and releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.matchesExtension(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.scheduleIngest(event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) matchesExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range w.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// scheduleIngest debounces per-file so a burst of writes to the same
// path (editors often write, then rename, then write again) produces a
// single store call.
func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, exists := w.timers[path]; exists {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.ingest(path)
	})
}

func (w *Watcher) ingest(path string) {
	title, content, err := readMemoryFile(path)
	if err != nil {
		w.log.Warn("failed to read watched file", "path", path, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, _, err := w.sto.Store(ctx, engine.StoreInput{
		Title:    title,
		Content:  content,
		Type:     w.cfg.DefaultType,
		Priority: w.cfg.DefaultPriority,
		Tags:     []string{filepath.Base(filepath.Dir(path))},
	})
	if err != nil {
		w.log.Warn("failed to ingest watched file", "path", path, "error", err)
		return
	}
	w.log.Info("ingested watched file", "path", path, "id", id)
}

// readMemoryFile splits a markdown file's first line (with any leading
// "# " heading marker stripped) into a title, leaving the remainder as
// content. An empty first line yields the file name as the title.
func readMemoryFile(path string) (title, content string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	text := string(data)
	lines := strings.SplitN(text, "\n", 2)

	title = strings.TrimSpace(lines[0])
	title = strings.TrimPrefix(title, "#")
	title = strings.TrimSpace(title)
	if title == "" {
		title = filepath.Base(path)
	}

	if len(lines) > 1 {
		content = strings.TrimSpace(lines[1])
	}
	return title, content, nil
}
