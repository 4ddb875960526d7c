// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
)

// modelReloadDebounce absorbs the write bursts an atomic rename or a
// slow copy produces before reloading.
const modelReloadDebounce = 500 * time.Millisecond

// ModelWatcher hot-reloads the learned-model artifact when the file
// changes on disk, so retrained models take effect without a restart.
//
// Thread Safety: Start and Close are called once each; the reload loop
// runs on its own goroutine.
type ModelWatcher struct {
	path    string
	store   *ModelStore
	log     *logging.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewModelWatcher attempts an initial load of path (absence is logged,
// not fatal) and prepares a watcher on its directory. Watching the
// directory rather than the file survives editors and pipelines that
// replace the artifact via rename.
func NewModelWatcher(path string, store *ModelStore, log *logging.Logger) (*ModelWatcher, error) {
	if version, err := store.Load(path); err != nil {
		log.Warn("learned model unavailable at startup", "path", path, "error", err)
	} else {
		log.Info("learned model loaded", "path", path, "version", version)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create model watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch model dir %s: %w", filepath.Dir(path), err)
	}
	return &ModelWatcher{
		path:    path,
		store:   store,
		log:     log,
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// Start runs the reload loop until ctx is cancelled or Close is called.
func (m *ModelWatcher) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *ModelWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(modelReloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(modelReloadDebounce)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn("model watcher error", "error", err)
		case <-timerC:
			m.reload()
		}
	}
}

func (m *ModelWatcher) reload() {
	previous := m.store.Version()
	version, err := m.store.Load(m.path)
	if err != nil {
		m.log.Warn("model reload failed, keeping previous version",
			"path", m.path, "previous", previous, "error", err)
		return
	}
	if version == previous {
		m.log.Debug("model unchanged after reload", "version", version)
		return
	}
	m.log.Info("learned model reloaded", "previous", previous, "version", version)
}

// Close stops the loop and releases the inotify watch.
func (m *ModelWatcher) Close() error {
	close(m.done)
	return m.watcher.Close()
}
