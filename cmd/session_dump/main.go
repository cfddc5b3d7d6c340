// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// session_dump inspects the studio orchestrator's session store.
//
// Sessions persist orchestrator context (generated code, last scores)
// in BadgerDB between service restarts. This tool opens the store
// read-only and prints a human-readable summary: session ids, TTL
// remaining, per-key value types, and short value previews.
//
// Usage:
//
//	session_dump [--path /path/to/sessions]
//
// If --path is not given, reads STUDIO_SESSION_DIR from the environment.
//
// Exit codes:
//
//	0 — success (including "empty store" which prints a message and exits 0)
//	1 — error opening or reading the database
package main

import (
	"bytes"
	"encoding/gob"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/scanforgeai/scanforge/services/studio/orchestrate"
)

// sessionKeyPrefix must match session_store.go exactly.
const sessionKeyPrefix = "studio/session/v1/"

func main() {
	pathFlag := flag.String("path", "", "Path to session BadgerDB directory (overrides STUDIO_SESSION_DIR env var)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("STUDIO_SESSION_DIR")
	}
	if dbPath == "" {
		fatalf("no session path: pass --path or set STUDIO_SESSION_DIR")
	}

	fmt.Printf("Session store path: %s\n", dbPath)

	// Check existence before trying to open — gives a cleaner error message
	// than BadgerDB's "no such file or directory" buried in a long error.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Store directory does not exist. The studio service has not persisted any sessions.")
		fmt.Println("Start it with sessions.dir configured (or STUDIO_SESSION_DIR set) to populate it.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil). // suppress BadgerDB internal logs
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	type entry struct {
		key       string
		expiresAt time.Time
		hasExpiry bool
		session   *orchestrate.SessionContext
		rawSize   int
		decodeErr error
	}

	var entries []entry

	err = db.View(func(txn *dgbadger.Txn) error {
		iterOpts := dgbadger.DefaultIteratorOptions
		iterOpts.PrefetchValues = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var e entry
			e.key = string(item.Key())

			// TTL: item.ExpiresAt() returns Unix seconds, 0 = no expiry.
			if expiresAt := item.ExpiresAt(); expiresAt > 0 {
				e.hasExpiry = true
				e.expiresAt = time.Unix(int64(expiresAt), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.decodeErr = fmt.Errorf("copy value: %w", err)
				entries = append(entries, e)
				continue
			}
			e.rawSize = len(raw)

			var session orchestrate.SessionContext
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&session); err != nil {
				e.decodeErr = fmt.Errorf("gob decode: %w", err)
			} else {
				e.session = &session
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if len(entries) == 0 {
		fmt.Println("\nNo persisted sessions found.")
		fmt.Println("Either no chat requests have run yet, or every session TTL has expired.")
		os.Exit(0)
	}

	fmt.Printf("\nFound %d session%s:\n", len(entries), plural(len(entries), "", "s"))
	fmt.Println(strings.Repeat("─", 80))

	for i, e := range entries {
		fmt.Printf("\n[%d] Key:      %s\n", i+1, e.key)

		if e.hasExpiry {
			remaining := time.Until(e.expiresAt)
			if remaining < 0 {
				fmt.Printf("    TTL:      EXPIRED (%s ago)\n", (-remaining).Round(time.Second))
			} else {
				fmt.Printf("    TTL:      %s remaining (expires %s)\n",
					remaining.Round(time.Second),
					e.expiresAt.Format("2006-01-02 15:04:05 MST"),
				)
			}
		} else {
			fmt.Printf("    TTL:      no expiry set\n")
		}

		fmt.Printf("    Raw size: %s\n", formatBytes(e.rawSize))

		if e.decodeErr != nil {
			fmt.Printf("    DECODE ERROR: %v\n", e.decodeErr)
			continue
		}

		fmt.Printf("    Created:  %s\n", e.session.CreatedAt.Format(time.RFC3339))
		fmt.Printf("    Updated:  %s\n", e.session.UpdatedAt.Format(time.RFC3339))
		fmt.Printf("    Keys:     %d\n", len(e.session.Values))

		names := make([]string, 0, len(e.session.Values))
		for name := range e.session.Values {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Printf("      %-16s %-8T %s\n", name, e.session.Values[name], preview(e.session.Values[name]))
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d session%s, store path: %s\n",
		len(entries), plural(len(entries), "", "s"), dbPath)
}

// preview renders a value for display, truncating long strings (generated
// scanner code is usually several KB).
func preview(v any) string {
	s := fmt.Sprintf("%v", v)
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) > 60 {
		return s[:60] + "... (truncated)"
	}
	return s
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "session_dump: "+format+"\n", args...)
	os.Exit(1)
}
