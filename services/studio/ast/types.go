// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast parses candidate scanner source into a structural
// representation the compliance rules evaluate against.
//
// The representation is deliberately narrower than a general-purpose AST:
// it captures exactly the shapes the V31 Gold Standard rules need —
// top-level functions with their ordered call sites, loops with their
// surrounding assignments, imports, and docstrings. Everything else in the
// source is parsed (tree-sitter builds the full tree) but not retained.
package ast

import "fmt"

// DefaultMaxSourceSize is the largest scanner source the parser accepts.
// Scanners are single-file artifacts; anything near this limit is not a
// scanner.
const DefaultMaxSourceSize int64 = 1 * 1024 * 1024

// Location identifies a span in the original source text.
// Lines are 1-based, columns 0-based, matching tree-sitter points.
type Location struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col"`
}

// ParseError reports a syntactically invalid source. It is a distinct
// error class: callers must treat it as "unparsable source", not as an
// internal failure.
type ParseError struct {
	// Line and Col locate the first syntax error found in the tree.
	Line int
	Col  int

	// Cause is a human-readable description of the failure.
	Cause string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Cause)
}

// CallSite is a single function invocation inside a function body.
type CallSite struct {
	// Callee is the invoked expression text, e.g. "stage_1" or
	// "executor.map". Dotted for attribute calls.
	Callee string `json:"callee"`

	// Order is the source-order index of this call within its enclosing
	// function body (0-based). Stage-ordering rules rely on it.
	Order int `json:"order"`

	Location Location `json:"location"`
}

// Assignment is a name binding inside a function body.
//
// Only the leftmost identifier target is recorded; tuple unpacking and
// subscript targets are out of scope for the aliasing rule.
type Assignment struct {
	// Target is the bound identifier.
	Target string `json:"target"`

	// Augmented is true for "x += ..." style writes.
	Augmented bool `json:"augmented"`

	Location Location `json:"location"`
}

// Loop is a for-statement inside a function body.
type Loop struct {
	// IterVar is the loop variable identifier ("ticker" in
	// "for ticker in universe:"). Empty for tuple targets.
	IterVar string `json:"iter_var"`

	// IterableText is the raw text of the iterated expression.
	IterableText string `json:"iterable_text"`

	Location Location `json:"location"`
}

// Contains reports whether the given location falls inside the loop body.
func (l Loop) Contains(loc Location) bool {
	return loc.StartLine > l.Location.StartLine && loc.StartLine <= l.Location.EndLine
}

// Import is a module import at any nesting level.
type Import struct {
	// Path is the imported module path ("concurrent.futures").
	Path string `json:"path"`

	// Names are the imported names for from-imports.
	Names []string `json:"names,omitempty"`

	// IsWildcard marks "from x import *".
	IsWildcard bool `json:"is_wildcard"`

	Location Location `json:"location"`
}

// Function is a top-level function definition in the scanner source.
type Function struct {
	Name      string   `json:"name"`
	Docstring string   `json:"docstring,omitempty"`
	Location  Location `json:"location"`

	// Calls are all invocations in the body, in source order.
	Calls []CallSite `json:"calls,omitempty"`

	// Loops are all for-statements in the body, in source order.
	Loops []Loop `json:"loops,omitempty"`

	// Assignments are all identifier bindings in the body, in source
	// order, including those inside loops. The aliasing rule correlates
	// them with Loops by line range.
	Assignments []Assignment `json:"assignments,omitempty"`
}

// CallsTo returns the function's call sites whose callee matches name
// exactly, preserving source order.
func (f *Function) CallsTo(name string) []CallSite {
	var out []CallSite
	for _, c := range f.Calls {
		if c.Callee == name {
			out = append(out, c)
		}
	}
	return out
}

// ScannerProgram is the parsed structural representation of one scanner
// source file. It is immutable after Parse returns and safe to share
// across goroutines.
type ScannerProgram struct {
	// ModuleDocstring is the module-level docstring, empty if absent.
	ModuleDocstring string `json:"module_docstring,omitempty"`

	// Functions are the top-level function definitions, in source order.
	Functions []*Function `json:"functions"`

	// Imports are all imports found anywhere in the file.
	Imports []Import `json:"imports,omitempty"`

	// LineCount is the number of lines in the source.
	LineCount int `json:"line_count"`
}

// Function returns the top-level function with the given name, or nil.
func (p *ScannerProgram) Function(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
