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
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/scanforgeai/scanforge/services/studio/rules"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Sessions.TTLHours != 24 {
		t.Errorf("ttl_hours = %d", cfg.Sessions.TTLHours)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen_addr: \":9999\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("listen_addr = %q, want overlay", cfg.Server.ListenAddr)
	}
	// Untouched fields keep their defaults.
	if cfg.Backend.URL == "" {
		t.Error("backend.url default lost")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STUDIO_BACKEND_URL", "http://exec.internal:9000")
	t.Setenv("STUDIO_SESSION_TTL_HOURS", "48")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.URL != "http://exec.internal:9000" {
		t.Errorf("backend.url = %q", cfg.Backend.URL)
	}
	if cfg.Sessions.TTLHours != 48 {
		t.Errorf("ttl_hours = %d", cfg.Sessions.TTLHours)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	if err := os.WriteFile(path, []byte("sessions:\n  ttl_hours: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("negative ttl must be rejected")
	}
}

const testScoringYAML = `penalties:
  critical: 0.30
  major: 0.10
  minor: 0.03
pass_threshold: 0.80
`

func TestScoringWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yaml")
	if err := os.WriteFile(path, []byte(testScoringYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var mu sync.Mutex
	var latest rules.ScoringPolicy
	updates := make(chan struct{}, 8)

	watcher, err := NewScoringWatcher(path, slog.Default(), func(p rules.ScoringPolicy) {
		mu.Lock()
		latest = p
		mu.Unlock()
		updates <- struct{}{}
	})
	if err != nil {
		t.Fatalf("NewScoringWatcher: %v", err)
	}
	t.Cleanup(func() { _ = watcher.Close() })

	// Initial load fires synchronously.
	<-updates
	mu.Lock()
	if latest.PassThreshold != 0.80 {
		t.Fatalf("initial threshold = %v", latest.PassThreshold)
	}
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Run(ctx)

	updated := "penalties:\n  critical: 0.40\n  major: 0.10\n  minor: 0.03\npass_threshold: 0.90\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case <-updates:
	case <-time.After(5 * time.Second):
		t.Fatal("reload never fired")
	}
	mu.Lock()
	defer mu.Unlock()
	if latest.PassThreshold != 0.90 {
		t.Errorf("threshold = %v, want 0.90", latest.PassThreshold)
	}
}

func TestScoringWatcherKeepsPolicyOnBadEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yaml")
	if err := os.WriteFile(path, []byte(testScoringYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	calls := make(chan rules.ScoringPolicy, 8)
	watcher, err := NewScoringWatcher(path, slog.Default(), func(p rules.ScoringPolicy) {
		calls <- p
	})
	if err != nil {
		t.Fatalf("NewScoringWatcher: %v", err)
	}
	t.Cleanup(func() { _ = watcher.Close() })
	<-calls

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Run(ctx)

	// Ordering violation: minor above critical.
	bad := "penalties:\n  critical: 0.01\n  major: 0.10\n  minor: 0.30\npass_threshold: 0.80\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case p := <-calls:
		t.Fatalf("invalid policy was applied: %+v", p)
	case <-time.After(500 * time.Millisecond):
	}
}
