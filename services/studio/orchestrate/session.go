// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionContext is one session's key/value state. Only the orchestrator
// writes it, and only through tools' owned keys; tools read it freely.
type SessionContext struct {
	ID        string         `json:"id"`
	Values    map[string]any `json:"values"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Get reads one value.
func (s *SessionContext) Get(key string) (any, bool) {
	if s == nil || s.Values == nil {
		return nil, false
	}
	v, ok := s.Values[key]
	return v, ok
}

// GetString reads one string value.
func (s *SessionContext) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// snapshot returns a shallow copy of the values for boundary responses.
func (s *SessionContext) snapshot() map[string]any {
	out := make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		out[k] = v
	}
	return out
}

// sessionEntry pairs a context with its exclusive-access lock.
type sessionEntry struct {
	mu  sync.Mutex
	ctx *SessionContext
}

// SessionManager owns session lifecycle and isolation.
//
// Description:
//
//	Each session has a dedicated mutex; a request holds it for the whole
//	CLASSIFY→RESPOND span, so two requests on the same session serialize
//	while requests on different sessions run concurrently. An optional
//	store persists contexts across restarts — a nil store means
//	in-memory-only sessions, which is the correct mode for tests.
//
// Thread Safety: Safe for concurrent use.
type SessionManager struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	store   SessionStore
	logger  *slog.Logger
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionStore enables persistence.
func WithSessionStore(store SessionStore) SessionManagerOption {
	return func(m *SessionManager) { m.store = store }
}

// WithSessionLogger sets the structured logger.
func WithSessionLogger(logger *slog.Logger) SessionManagerOption {
	return func(m *SessionManager) { m.logger = logger }
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		entries: map[string]*sessionEntry{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewSessionID mints a fresh session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Acquire locks a session for exclusive use and returns its context plus
// a release func. An empty id starts a new session. Unknown ids fall back
// to the store when one is configured, otherwise start fresh under that
// id.
func (m *SessionManager) Acquire(ctx context.Context, id string) (*SessionContext, func(), error) {
	if id == "" {
		id = NewSessionID()
	}

	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		entry = &sessionEntry{}
		m.entries[id] = entry
	}
	m.mu.Unlock()

	entry.mu.Lock()
	if entry.ctx == nil {
		loaded, err := m.load(ctx, id)
		if err != nil {
			entry.mu.Unlock()
			return nil, nil, err
		}
		entry.ctx = loaded
	}

	session := entry.ctx
	release := func() {
		session.UpdatedAt = time.Now().UTC()
		if m.store != nil {
			if err := m.store.Save(context.Background(), session); err != nil {
				// Persistence is best-effort; the in-memory session stays
				// authoritative for the process lifetime.
				m.logger.Warn("session persist failed",
					slog.String("session_id", session.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		entry.mu.Unlock()
	}
	return session, release, nil
}

// Drop forgets a session in memory and, when persistent, in the store.
func (m *SessionManager) Drop(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	if m.store != nil {
		return m.store.Delete(ctx, id)
	}
	return nil
}

func (m *SessionManager) load(ctx context.Context, id string) (*SessionContext, error) {
	if m.store != nil {
		session, err := m.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if session != nil {
			m.logger.Debug("session restored", slog.String("session_id", id))
			return session, nil
		}
	}
	now := time.Now().UTC()
	return &SessionContext{
		ID:        id,
		Values:    map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
