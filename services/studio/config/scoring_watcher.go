// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/scanforgeai/scanforge/services/studio/rules"
)

// ScoringWatcher hot-reloads a scoring policy file. A malformed edit is
// rejected with a warning and the previous policy stays in force.
type ScoringWatcher struct {
	path     string
	onChange func(rules.ScoringPolicy)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewScoringWatcher loads path once, then watches it for changes. onChange
// fires with the initial policy before NewScoringWatcher returns, and
// again on every valid rewrite.
func NewScoringWatcher(path string, logger *slog.Logger, onChange func(rules.ScoringPolicy)) (*ScoringWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &ScoringWatcher{path: path, onChange: onChange, logger: logger}

	policy, err := loadScoringFile(path)
	if err != nil {
		return nil, err
	}
	onChange(policy)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scoring watcher: %w", err)
	}
	// Watch the directory: editors replace files via rename, which drops
	// a direct file watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("scoring watcher add %s: %w", path, err)
	}
	w.watcher = fsw
	return w, nil
}

// Run consumes watch events until ctx ends or the watcher closes.
func (w *ScoringWatcher) Run(ctx context.Context) {
	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("scoring watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *ScoringWatcher) Close() error {
	return w.watcher.Close()
}

func (w *ScoringWatcher) reload() {
	policy, err := loadScoringFile(w.path)
	if err != nil {
		w.logger.Warn("scoring reload rejected, keeping previous policy",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("scoring policy reloaded",
		slog.String("path", w.path),
		slog.Float64("pass_threshold", policy.PassThreshold),
	)
	w.onChange(policy)
}

func loadScoringFile(path string) (rules.ScoringPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules.ScoringPolicy{}, fmt.Errorf("read scoring policy %s: %w", path, err)
	}
	policy, err := rules.ParseScoringPolicy(raw)
	if err != nil {
		return rules.ScoringPolicy{}, fmt.Errorf("scoring policy %s: %w", path, err)
	}
	return policy, nil
}
