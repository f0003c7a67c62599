// Package watch runs imports from a hot folder: files dropped into the
// inbox that match the configured pattern are imported and then moved to
// processed/ or failed/ next to it.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Subdirectories of the inbox receiving handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// HandleFunc imports one file. A nil error moves the file to processed/,
// anything else to failed/.
type HandleFunc func(ctx context.Context, path string) error

// Watcher monitors one inbox directory. Imports run one at a time, in
// the watcher's own goroutine.
type Watcher struct {
	dir     string
	pattern string
	settle  time.Duration
	handle  HandleFunc
	log     *slog.Logger
}

// New prepares a watcher over dir for files matching pattern (doublestar
// syntax, matched against the name relative to dir). Settle is how long
// a file must stay quiet before it is picked up, so half-written files
// are left alone.
func New(dir, pattern string, settle time.Duration, handle HandleFunc, log *slog.Logger) (*Watcher, error) {
	if pattern == "" {
		pattern = "*.csv"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}
	if settle <= 0 {
		settle = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{dir: dir, pattern: pattern, settle: settle, handle: handle, log: log}, nil
}

// Start processes files already in the inbox, then blocks handling
// events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for _, sub := range []string{"", ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return fmt.Errorf("make watch dir: %w", err)
		}
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(w.dir, w.pattern), doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("scan inbox: %w", err)
	}
	for _, m := range matches {
		if w.handled(m) {
			continue
		}
		w.process(ctx, m)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching inbox", "dir", w.dir, "pattern", w.pattern)

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()
	pending := map[string]time.Time{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "error", err)
		case <-ticker.C:
			for path, last := range pending {
				if time.Since(last) < w.settle {
					continue
				}
				delete(pending, path)
				w.process(ctx, path)
			}
		}
	}
}

func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || w.handled(path) {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

// handled reports whether the path already sits in one of the outcome
// directories.
func (w *Watcher) handled(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return true
	}
	first := strings.Split(filepath.ToSlash(rel), "/")[0]
	return first == ProcessedDir || first == FailedDir
}

// process imports one file and moves it to the outcome directory. The
// move keeps the base name; an existing file there gets overwritten, the
// inbox must not be used as an archive.
func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	log := w.log.With("file", path)
	log.Info("importing file")

	outcome := ProcessedDir
	if err := w.handle(ctx, path); err != nil {
		outcome = FailedDir
		log.Error("import failed", "error", err)
	}

	dest := filepath.Join(w.dir, outcome, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		log.Error("move file", "dest", dest, "error", err)
		return
	}
	log.Info("file handled", "dest", dest)
}
