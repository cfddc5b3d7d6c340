// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const sampleScanner = `"""D2 gap scanner."""
from concurrent.futures import ProcessPoolExecutor

GAP_THRESHOLD = 2.5

def stage_1(universe):
    """Setup stage."""
    candidates = []
    for ticker in universe:
        gap = compute_gap(ticker)
        if gap > GAP_THRESHOLD:
            candidates.append(ticker)
    return candidates

def stage_2(candidates):
    filtered = [t for t in candidates if t]
    return filtered

def stage_3(filtered):
    return sorted(filtered)

def run_scanner(universe):
    with ProcessPoolExecutor() as executor:
        setups = stage_1(universe)
    filtered = stage_2(setups)
    return stage_3(filtered)
`

func mustParse(t *testing.T, source string) *ScannerProgram {
	t.Helper()
	program, err := NewParser().Parse(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return program
}

func TestParseExtractsTopLevelFunctions(t *testing.T) {
	program := mustParse(t, sampleScanner)

	want := []string{"stage_1", "stage_2", "stage_3", "run_scanner"}
	if len(program.Functions) != len(want) {
		t.Fatalf("got %d functions, want %d", len(program.Functions), len(want))
	}
	for i, name := range want {
		if program.Functions[i].Name != name {
			t.Errorf("function[%d] = %q, want %q", i, program.Functions[i].Name, name)
		}
	}
}

func TestParseModuleDocstring(t *testing.T) {
	program := mustParse(t, sampleScanner)
	if program.ModuleDocstring != "D2 gap scanner." {
		t.Errorf("ModuleDocstring = %q", program.ModuleDocstring)
	}

	noDoc := mustParse(t, "x = 1\n")
	if noDoc.ModuleDocstring != "" {
		t.Errorf("expected empty docstring, got %q", noDoc.ModuleDocstring)
	}
}

func TestParseCallOrder(t *testing.T) {
	program := mustParse(t, sampleScanner)
	entry := program.Function("run_scanner")
	if entry == nil {
		t.Fatal("run_scanner not found")
	}

	var stageOrder []string
	for _, c := range entry.Calls {
		if strings.HasPrefix(c.Callee, "stage_") {
			stageOrder = append(stageOrder, c.Callee)
		}
	}
	want := []string{"stage_1", "stage_2", "stage_3"}
	if len(stageOrder) != len(want) {
		t.Fatalf("stage calls = %v, want %v", stageOrder, want)
	}
	for i := range want {
		if stageOrder[i] != want[i] {
			t.Fatalf("stage calls = %v, want %v", stageOrder, want)
		}
	}

	// Orders must be strictly increasing with source position.
	for i := 1; i < len(entry.Calls); i++ {
		if entry.Calls[i].Order <= entry.Calls[i-1].Order {
			t.Errorf("call order not increasing: %+v", entry.Calls)
		}
	}
}

func TestParseLoopAndAssignments(t *testing.T) {
	program := mustParse(t, sampleScanner)
	stage1 := program.Function("stage_1")
	if stage1 == nil {
		t.Fatal("stage_1 not found")
	}

	if len(stage1.Loops) != 1 {
		t.Fatalf("got %d loops, want 1", len(stage1.Loops))
	}
	loop := stage1.Loops[0]
	if loop.IterVar != "ticker" {
		t.Errorf("IterVar = %q, want ticker", loop.IterVar)
	}
	if loop.IterableText != "universe" {
		t.Errorf("IterableText = %q, want universe", loop.IterableText)
	}

	// "candidates" is assigned before the loop, "gap" inside it.
	var sawCandidates, sawGapInLoop bool
	for _, a := range stage1.Assignments {
		switch a.Target {
		case "candidates":
			sawCandidates = true
			if loop.Contains(a.Location) {
				t.Error("candidates assignment should precede the loop")
			}
		case "gap":
			sawGapInLoop = loop.Contains(a.Location)
		}
	}
	if !sawCandidates || !sawGapInLoop {
		t.Errorf("assignments = %+v", stage1.Assignments)
	}
}

func TestParseImports(t *testing.T) {
	program := mustParse(t, sampleScanner)
	if len(program.Imports) != 1 {
		t.Fatalf("got %d imports, want 1", len(program.Imports))
	}
	imp := program.Imports[0]
	if imp.Path != "concurrent.futures" || imp.IsWildcard {
		t.Errorf("import = %+v", imp)
	}

	wild := mustParse(t, "from os.path import *\n")
	if len(wild.Imports) != 1 || !wild.Imports[0].IsWildcard {
		t.Errorf("wildcard import = %+v", wild.Imports)
	}
}

func TestParseSyntaxErrorReturnsParseError(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), []byte("def stage_1(:\n    pass\n"))
	if err == nil {
		t.Fatal("expected error for invalid source")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if perr.Line < 1 {
		t.Errorf("ParseError.Line = %d", perr.Line)
	}
}

func TestParseRejectsOversizedSource(t *testing.T) {
	p := NewParser(WithMaxSourceSize(16))
	_, err := p.Parse(context.Background(), []byte(sampleScanner))
	if err == nil {
		t.Fatal("expected size error")
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		t.Fatal("size limit must not be a ParseError")
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), []byte{0xff, 0xfe, 'x'})
	if err == nil {
		t.Fatal("expected UTF-8 error")
	}
}

func TestParseCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParser().Parse(ctx, []byte("x = 1\n"))
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
