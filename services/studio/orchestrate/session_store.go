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
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/scanforgeai/scanforge/services/studio/storage/badger"
)

// sessionKeyPrefix versions the storage layout so a future format change
// cannot collide with old entries.
const sessionKeyPrefix = "studio/session/v1/"

// sessionDefaultTTL bounds how long an idle session survives a restart.
const sessionDefaultTTL = 24 * time.Hour

func init() {
	// Session values are restricted to JSON-ish shapes; register the
	// container types gob needs for the `any` fields.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// SessionStore persists SessionContexts across service restarts.
//
// Load returns (nil, nil) when the session is absent or its TTL expired.
//
// Thread Safety: Implementations must be safe for concurrent use.
type SessionStore interface {
	Load(ctx context.Context, id string) (*SessionContext, error)
	Save(ctx context.Context, session *SessionContext) error
	Delete(ctx context.Context, id string) error
}

// BadgerSessionStore implements SessionStore on a BadgerDB instance. The
// DB lifecycle belongs to the caller (opened in main); this store does not
// close it. TTL expiry is BadgerDB-native — expired keys simply read as
// absent.
type BadgerSessionStore struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerSessionStore creates a store on an opened DB. Pass ttl 0 for
// the default (24h).
func NewBadgerSessionStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerSessionStore {
	if db == nil {
		panic("NewBadgerSessionStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = sessionDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerSessionStore{db: db, ttl: ttl, logger: logger}
}

// Load retrieves a persisted session, or (nil, nil) when absent/expired.
func (s *BadgerSessionStore) Load(ctx context.Context, id string) (*SessionContext, error) {
	key := []byte(sessionKeyPrefix + id)
	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session load %s: %w", id, err)
	}

	var session SessionContext
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&session); err != nil {
		return nil, fmt.Errorf("session decode %s: %w", id, err)
	}
	return &session, nil
}

// Save persists a session with the configured TTL.
func (s *BadgerSessionStore) Save(ctx context.Context, session *SessionContext) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(session); err != nil {
		return fmt.Errorf("session encode %s: %w", session.ID, err)
	}
	key := []byte(sessionKeyPrefix + session.ID)
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("session save %s: %w", session.ID, err)
	}
	s.logger.Debug("session persisted",
		slog.String("session_id", session.ID),
		slog.Int("bytes", buf.Len()),
	)
	return nil
}

// Delete removes a persisted session.
func (s *BadgerSessionStore) Delete(ctx context.Context, id string) error {
	key := []byte(sessionKeyPrefix + id)
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("session delete %s: %w", id, err)
	}
	return nil
}
