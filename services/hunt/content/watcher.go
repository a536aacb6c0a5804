// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package content

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait after the last event before reloading.
	// Default: 200ms
	Debounce time.Duration

	// OnReload is called after every reload attempt with the error, if any.
	// Optional.
	OnReload func(err error)

	// Check adds warnings for a catalog that passed Validate. Optional.
	Check func(c *Catalog) []string
}

// Watcher reloads a content file into a Store when it changes on disk.
//
// # Description
//
// The parent directory is watched rather than the file itself, so editors
// that save through rename-and-replace keep being observed. Events for
// other files in the directory are dropped. Bursts of events are collapsed
// into one reload after the debounce window.
//
// A reload that fails to read or validate leaves the current catalog in
// place.
//
// # Thread Safety
//
// Start and Stop are safe to call from any goroutine. Reloads run on a
// single goroutine.
type Watcher struct {
	path     string
	store    *Store
	logger   *slog.Logger
	debounce time.Duration
	onReload func(error)
	check    func(*Catalog) []string

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// NewWatcher creates a watcher for path feeding store.
//
// # Inputs
//
//   - path: Content file to watch.
//   - store: Store that receives reloaded catalogs.
//   - logger: Logger for reload outcomes. Nil uses slog.Default().
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//
//   - *Watcher: Ready to Start.
//   - error: Non-nil if the underlying fsnotify watcher could not be created.
func NewWatcher(path string, store *Store, logger *slog.Logger, opts *WatcherOptions) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	debounce := 200 * time.Millisecond
	var (
		onReload func(error)
		check    func(*Catalog) []string
	)
	if opts != nil {
		if opts.Debounce > 0 {
			debounce = opts.Debounce
		}
		onReload = opts.OnReload
		check = opts.Check
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve content path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		store:    store,
		logger:   logger.With("component", "content_watcher", "path", abs),
		debounce: debounce,
		onReload: onReload,
		check:    check,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; watching stops when ctx
// is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	go w.loop(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("content watcher error", "error", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	c, warnings, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("content reload rejected, keeping previous catalog", "error", err)
	} else {
		if w.check != nil {
			warnings = append(warnings, w.check(c)...)
		}
		for _, msg := range warnings {
			w.logger.Warn("content warning", "detail", msg)
		}
		w.store.Swap(c)
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}
