// Package watch reruns the generator when project sources change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the bursts of events editors produce on save.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches every directory of a project tree except the ignored ones.
type Watcher struct {
	root     string
	ignore   []string
	debounce time.Duration
	log      zerolog.Logger
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
	// runMu keeps runs from overlapping when a change lands mid-run.
	runMu sync.Mutex
}

// New starts watching root. ignore holds absolute directories, typically
// the output directory, whose changes never trigger a run.
func New(root string, ignore []string, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{root: root, debounce: debounce, log: log, watcher: fw}
	for _, dir := range ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) ignored(dir string) bool {
	if dir != w.root {
		name := filepath.Base(dir)
		if name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			return true
		}
	}
	for _, ig := range w.ignore {
		if dir == ig || strings.HasPrefix(dir, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "watch %s", path)
		}
		return nil
	})
}

// relevant reports whether a change to path affects the generated output.
func relevant(path string) bool {
	base := filepath.Base(path)
	return base == ".kitgen.yaml" || base == "go.mod" ||
		strings.HasSuffix(base, ".go") && !strings.HasSuffix(base, "_test.go")
}

// Run calls fn after every debounced batch of relevant changes until ctx is
// done. Errors from fn are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event, fn)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event, fn func(context.Context) error) {
	if w.ignored(filepath.Dir(event.Name)) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ignored(event.Name) {
				if err := w.addTree(event.Name); err != nil {
					w.log.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
				}
			}
			return
		}
	}
	if !relevant(event.Name) {
		return
	}
	w.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change detected")
	w.schedule(ctx, fn)
}

func (w *Watcher) schedule(ctx context.Context, fn func(context.Context) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.runMu.Lock()
		defer w.runMu.Unlock()
		if err := fn(ctx); err != nil {
			w.log.Error().Err(err).Msg("generation failed")
		}
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}

// Close stops watching. Run closes the watcher itself when it returns.
func (w *Watcher) Close() error {
	w.stop()
	return nil
}
