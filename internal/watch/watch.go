// Package watch re-runs exports when source files change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/atlas-export/pkg/manifest"
)

// DefaultDebounce is used when no interval is configured.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Run when the underlying watcher shuts down.
var ErrClosed = errors.New("watcher already closed")

var textureExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
	".tga": true, ".grf": true,
}

// Relevant reports whether a change to name can affect an export.
func Relevant(name string) bool {
	if manifest.DetectFormat(filepath.ToSlash(name)) != manifest.FormatUnknown {
		return true
	}
	return textureExts[strings.ToLower(filepath.Ext(name))]
}

// Watcher watches source directories and archive files, and calls back
// after changes settle.
type Watcher struct {
	fs       *fsnotify.Watcher
	dirs     []string        // Recursively watched roots
	files    map[string]bool // Single files, watched through their parent
	debounce time.Duration
	ignore   []string
	log      *zap.Logger

	mu     sync.Mutex
	closed bool
}

// New starts watching roots. Directories are watched recursively.
func New(roots []string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fs: fsw, files: make(map[string]bool), debounce: debounce, log: log}

	for _, root := range roots {
		if err := w.add(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(root string) error {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if info.IsDir() {
		w.dirs = append(w.dirs, root)
		return w.addRecursive(root)
	}
	w.files[root] = true
	return w.fs.Add(filepath.Dir(root))
}

// Ignore skips events below dir, typically the export destination when it
// lives inside the watched tree.
func (w *Watcher) Ignore(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	w.ignore = append(w.ignore, filepath.Clean(dir))
}

// Run blocks until ctx is done, calling fn once per settled burst of
// relevant changes. Calls never overlap.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context)) error {
	defer w.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-w.fs.Events:
			if !ok {
				return ErrClosed
			}
			if !w.handle(e) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return ErrClosed
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-fire:
			fire = nil
			w.log.Info("changes detected")
			fn(ctx)
		}
	}
}

// handle tracks new directories and reports whether e should trigger a run.
func (w *Watcher) handle(e fsnotify.Event) bool {
	name := filepath.Clean(e.Name)
	if w.ignored(name) {
		return false
	}
	if w.files[name] {
		return true
	}
	if !w.watched(name) {
		return false
	}

	if e.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(e.Name); err != nil {
				w.log.Warn("failed to watch directory", zap.String("dir", e.Name), zap.Error(err))
			}
			return true
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if !Relevant(e.Name) {
		return false
	}
	w.log.Debug("source changed", zap.String("file", e.Name), zap.Stringer("op", e.Op))
	return true
}

func (w *Watcher) watched(name string) bool {
	for _, dir := range w.dirs {
		if within(name, dir) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(name string) bool {
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	for _, dir := range w.ignore {
		if within(name, dir) {
			return true
		}
	}
	return false
}

func within(name, dir string) bool {
	return name == dir || strings.HasPrefix(name, dir+string(filepath.Separator))
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(p) {
			return filepath.SkipDir
		}
		return w.fs.Add(p)
	})
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fs.Close()
}
