// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps a BadgerDB instance behind a small transactional
// API so callers never touch the raw *badger.DB lifecycle.
package badger

import (
	"context"
	"fmt"
	"log/slog"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// DB is an opened BadgerDB instance.
//
// Thread Safety: Safe for concurrent use; BadgerDB transactions are
// per-goroutine.
type DB struct {
	db     *dgbadger.DB
	logger *slog.Logger
}

// Options configures Open.
type Options struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string

	// InMemory runs BadgerDB without disk persistence (tests, ephemeral
	// deployments).
	InMemory bool

	Logger *slog.Logger
}

// Open opens (or creates) a BadgerDB at the configured location.
func Open(opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var badgerOpts dgbadger.Options
	if opts.InMemory {
		badgerOpts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("badger: path required for on-disk mode")
		}
		badgerOpts = dgbadger.DefaultOptions(opts.Path)
	}
	// Badger's own logger is chatty at INFO; route everything through slog
	// at debug instead.
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := dgbadger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	logger.Debug("badger opened",
		slog.String("path", opts.Path),
		slog.Bool("in_memory", opts.InMemory),
	)
	return &DB{db: db, logger: logger}, nil
}

// Close releases the underlying BadgerDB.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// WithTxn runs fn inside a read-write transaction, committing on nil
// return. The context is checked before the transaction starts; BadgerDB
// transactions themselves are not cancellable mid-flight.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}
