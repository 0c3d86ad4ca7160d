// Package watch reports files that appear in a directory.
//
// A file is reported once it has been quiet for the settle period, so a
// file still being copied in is not picked up half-written. Rewriting a
// reported file reports it again.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config configures the watcher.
type Config struct {
	// Dir is the directory to watch. Subdirectories are not watched.
	Dir string

	// Ignore are base-name patterns to skip (exact names or globs).
	Ignore []string

	// Settle is how long a file must go without writes before it is
	// reported.
	Settle time.Duration

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultIgnore skips hidden files and the usual partial-download and
// editor leftovers.
var DefaultIgnore = []string{
	".*",
	"*.tmp",
	"*.part",
	"*.crdownload",
	"*.swp",
	"*~",
}

// Watcher monitors a directory for new files.
type Watcher struct {
	config  Config
	logger  *slog.Logger
	fw      *fsnotify.Watcher
	pending map[string]time.Time
}

// New starts watching config.Dir. Files created from now on are reported
// by Run.
func New(config Config) (*Watcher, error) {
	if config.Settle <= 0 {
		config.Settle = 250 * time.Millisecond
	}
	if config.Ignore == nil {
		config.Ignore = DefaultIgnore
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(config.Dir); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		config:  config,
		logger:  logger.With("component", "watch"),
		fw:      fw,
		pending: make(map[string]time.Time),
	}, nil
}

// Run calls fn with the path of every settled file until ctx is done, then
// releases the watch and returns nil. fn runs on the caller's goroutine.
// A Watcher runs once.
func (w *Watcher) Run(ctx context.Context, fn func(path string)) error {
	defer w.fw.Close()
	w.logger.Debug("watching", "dir", w.config.Dir)

	tick := w.config.Settle / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return errors.New("watch: event stream closed")
			}
			w.handle(ev)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return errors.New("watch: event stream closed")
			}
			w.logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				fn(path)
			}
		}
	}
}

// Close releases the watch without running.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.shouldIgnore(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.pending[ev.Name] = time.Now()
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(w.pending, ev.Name)
	}
}

// settled returns the pending files quiet since before now-Settle, in no
// particular order, and forgets them.
func (w *Watcher) settled(now time.Time) []string {
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) < w.config.Settle {
			continue
		}
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		ready = append(ready, path)
	}
	return ready
}

// shouldIgnore checks the base name of path against the ignore patterns.
func (w *Watcher) shouldIgnore(path string) bool {
	name := filepath.Base(path)
	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}
		if strings.ContainsAny(pattern, "*?[") {
			if matched, _ := filepath.Match(pattern, name); matched {
				return true
			}
		}
	}
	return false
}
