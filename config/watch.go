// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long the watcher waits after the last change to the file
// before reloading it.
const settle = 100 * time.Millisecond

// A Watcher reloads a config file whenever it changes and hands the new
// settings to a callback.
type Watcher struct {
	path  string
	log   *slog.Logger
	apply func(*Config)
	fsw   *fsnotify.Watcher
}

// NewWatcher creates a watcher for the config file at path. The file's
// directory is watched rather than the file itself so that editors which
// replace the file on save are noticed.
func NewWatcher(path string, log *slog.Logger, apply func(*Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{path: abs, log: log, apply: apply, fsw: fsw}, nil
}

// Run processes file events until ctx is done. Reload failures are logged
// and the previous settings stay in effect.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watch error", "err", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload failed", "path", w.path, "err", err)
		return
	}
	w.log.Info("config reloaded", "path", w.path)
	w.apply(c)
}
