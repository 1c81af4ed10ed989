// Package watch monitors a project directory for legacy pin files and
// runs a dry-run migration whenever one appears or changes, so findings
// land on the surface without anyone invoking the migrator by hand.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/migrate"
)

// debounceDelay coalesces editor write bursts into one analysis run.
const debounceDelay = 500 * time.Millisecond

// Watcher drives a Migrator from filesystem events.
type Watcher struct {
	dir      string
	migrator migrate.Migrator
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher over dir. The migrator is typically configured
// for dry runs; the watcher never decides to write.
func New(dir string, m migrate.Migrator, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		migrator: m,
		logger:   logger.With("component", "watch"),
		timers:   make(map[string]*time.Timer),
	}
}

// Start begins watching and returns immediately; the event loop runs
// until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errx.Wrap(ErrStartWatcher, err)
	}
	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				w.cancelTimers()
				return
			case evt := <-fsw.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if !isLegacyConfig(evt.Name) {
					continue
				}
				w.schedule(ctx, evt.Name)
			case err := <-fsw.Errors:
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}()
	if err := fsw.Add(w.dir); err != nil {
		return errx.Wrap(ErrStartWatcher, err)
	}
	w.logger.Info("watching", "dir", w.dir)
	return nil
}

// schedule debounces per path: a burst of writes triggers one check.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(debounceDelay)
		return
	}
	w.timers[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.check(ctx, path)
	})
}

func (w *Watcher) cancelTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) check(ctx context.Context, configPath string) {
	if ctx.Err() != nil {
		return
	}
	projFile, err := projectFileFor(configPath)
	if err != nil {
		w.logger.Warn("no project file for config", "config", configPath, "error", err)
		return
	}
	result, err := w.migrator.Migrate(ctx, migrate.Project{
		File:         projFile,
		LegacyConfig: configPath,
	})
	if err != nil {
		w.logger.Warn("analysis failed", "config", configPath, "error", err)
		return
	}
	w.logger.Info("analysis complete", "config", configPath, "success", result.Success)
}

// isLegacyConfig reports whether a path names a legacy pin file
// (*.pins.yaml, *.pins.yml, *.pins.json, *.pins.toml).
func isLegacyConfig(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", ".json", ".toml":
	default:
		return false
	}
	return strings.HasSuffix(strings.TrimSuffix(base, ext), ".pins")
}

// projectFileFor locates the sibling project file (*.proj) for a legacy
// config. With several candidates the lexically first wins.
func projectFileFor(configPath string) (string, error) {
	dir := filepath.Dir(configPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".proj" {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errx.With(ErrNoProjectFile, " in %s", dir)
}
