// Package watcher observes a markdown tree and coalesces change bursts
// into single rebuild triggers.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period required before a trigger fires.
	// Default: 500ms.
	DebounceWindow time.Duration

	// Logger receives watch lifecycle events. Defaults to slog.Default.
	Logger *slog.Logger
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher watches one source tree recursively. Editors save files in
// bursts (write, rename, metadata), so raw events are debounced: one
// trigger fires per quiet window, regardless of how many files changed.
type Watcher struct {
	root     string
	opts     Options
	fsw      *fsnotify.Watcher
	triggers chan struct{}
}

// New creates a watcher over root and registers every existing
// subdirectory.
func New(root string, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		opts:     opts.WithDefaults(),
		fsw:      fsw,
		triggers: make(chan struct{}, 1),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Triggers returns the channel rebuild signals arrive on. The channel
// has capacity one; signals arriving while a rebuild is pending collapse
// into it.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.triggers
}

// Run processes file events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.opts.Logger.Debug("source_changed",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.opts.DebounceWindow)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.DebounceWindow)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case w.triggers <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// relevant reports whether an event should count toward a rebuild. New
// directories are registered as a side effect so files created inside
// them are seen.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(event.Name)
			return false
		}
	}
	switch filepath.Ext(event.Name) {
	case ".md", ".mdx":
		return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
			event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
	}
	return false
}
