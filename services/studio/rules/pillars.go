// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"strings"

	"github.com/scanforgeai/scanforge/services/studio/ast"
)

// =============================================================================
// Pillar 1: Market-Scanning Entry Point (V31-001)
// =============================================================================

// entryPointRule requires a top-level run_scanner function. Without it the
// scanner cannot be scheduled at all, so the rule is CRITICAL.
type entryPointRule struct{}

func (entryPointRule) ID() string         { return RuleEntryPoint }
func (entryPointRule) Severity() Severity { return SeverityCritical }

func (r entryPointRule) Evaluate(program *ast.ScannerProgram) []Violation {
	if program.Function(EntryPointName) != nil {
		return nil
	}
	return []Violation{violation(r, fileStart(),
		fmt.Sprintf("market-scanning entry point %q is not defined", EntryPointName),
		fmt.Sprintf("define a top-level `def %s(universe):` that drives the three-stage pipeline", EntryPointName),
	)}
}

// =============================================================================
// Pillar 2: Three-Stage Pipeline Shape (V31-002, V31-003)
// =============================================================================

// stageNames in mandated pipeline order: setup, filter, output.
var stageNames = []string{Stage1Name, Stage2Name, Stage3Name}

// stagePresenceRule fires once per missing stage function.
type stagePresenceRule struct{}

func (stagePresenceRule) ID() string         { return RuleStagePresence }
func (stagePresenceRule) Severity() Severity { return SeverityMajor }

func (r stagePresenceRule) Evaluate(program *ast.ScannerProgram) []Violation {
	var out []Violation
	for _, name := range stageNames {
		if program.Function(name) == nil {
			out = append(out, violation(r, fileStart(),
				fmt.Sprintf("pipeline stage %q is not defined", name),
				fmt.Sprintf("define `def %s(...):` — the V31 pipeline requires setup (%s), filter (%s), and output (%s) stages",
					name, Stage1Name, Stage2Name, Stage3Name),
			))
		}
	}
	return out
}

// stageOrderRule checks that the entry point invokes each defined stage,
// and invokes them in pipeline order.
//
// The predicate works on the entry point's ordered call sites, so
// "stage_2 must be invoked after stage_1" is a structural fact about the
// parsed tree, not a position in raw text. The rule only reasons about
// stages that exist and an entry point that exists; absence is V31-001 /
// V31-002 territory and firing here too would double-count.
type stageOrderRule struct{}

func (stageOrderRule) ID() string         { return RuleStageOrder }
func (stageOrderRule) Severity() Severity { return SeverityMajor }

func (r stageOrderRule) Evaluate(program *ast.ScannerProgram) []Violation {
	entry := program.Function(EntryPointName)
	if entry == nil {
		return nil
	}

	var out []Violation
	firstCall := map[string]int{}
	for _, name := range stageNames {
		if program.Function(name) == nil {
			continue
		}
		calls := entry.CallsTo(name)
		if len(calls) == 0 {
			out = append(out, violation(r, entry.Location,
				fmt.Sprintf("stage %q is defined but never invoked from %q", name, EntryPointName),
				fmt.Sprintf("call %s from %s so the pipeline actually runs it", name, EntryPointName),
			))
			continue
		}
		firstCall[name] = calls[0].Order
	}

	for i := 1; i < len(stageNames); i++ {
		prev, cur := stageNames[i-1], stageNames[i]
		prevOrder, okPrev := firstCall[prev]
		curOrder, okCur := firstCall[cur]
		if !okPrev || !okCur {
			continue
		}
		if curOrder < prevOrder {
			loc := entry.CallsTo(cur)[0].Location
			out = append(out, violation(r, loc,
				fmt.Sprintf("%q is invoked before %q; the pipeline must run setup → filter → output", cur, prev),
				fmt.Sprintf("reorder %s so %s runs after %s", EntryPointName, cur, prev),
			))
		}
	}
	return out
}

// =============================================================================
// Pillar 3: Per-Ticker Iteration Without Cross-Ticker Aliasing
// (V31-004, V31-005)
// =============================================================================

// tickerLoopVars are loop variable names that identify a per-ticker loop.
var tickerLoopVars = map[string]bool{
	"ticker": true, "symbol": true, "sym": true, "tkr": true,
}

// tickerIterableHints are substrings of an iterated expression that
// identify the ticker universe.
var tickerIterableHints = []string{"ticker", "symbol", "universe", "watchlist"}

// isTickerLoop reports whether a loop iterates the ticker universe. The
// check is over parsed loop structure (loop variable and iterable
// expression), not raw text.
func isTickerLoop(loop ast.Loop) bool {
	if tickerLoopVars[loop.IterVar] {
		return true
	}
	iterable := strings.ToLower(loop.IterableText)
	for _, hint := range tickerIterableHints {
		if strings.Contains(iterable, hint) {
			return true
		}
	}
	return false
}

// tickerIterationRule requires at least one per-ticker loop somewhere in
// the scanner's functions.
type tickerIterationRule struct{}

func (tickerIterationRule) ID() string         { return RuleTickerIteration }
func (tickerIterationRule) Severity() Severity { return SeverityMajor }

func (r tickerIterationRule) Evaluate(program *ast.ScannerProgram) []Violation {
	for _, fn := range program.Functions {
		for _, loop := range fn.Loops {
			if isTickerLoop(loop) {
				return nil
			}
		}
	}
	return []Violation{violation(r, fileStart(),
		"no per-ticker iteration found in any pipeline function",
		"iterate the ticker universe (`for ticker in universe:`) inside a pipeline stage",
	)}
}

// tickerAliasingRule forbids writes from a per-ticker loop body to names
// bound before the loop in the enclosing function.
//
// Mutating state that outlives a single ticker's iteration couples results
// across tickers and breaks batch/parallel execution, so the rule is
// CRITICAL. Per-iteration locals and the loop variable itself are exempt;
// method calls on outer collections (candidates.append(...)) are not
// writes and do not fire.
type tickerAliasingRule struct{}

func (tickerAliasingRule) ID() string         { return RuleTickerAliasing }
func (tickerAliasingRule) Severity() Severity { return SeverityCritical }

func (r tickerAliasingRule) Evaluate(program *ast.ScannerProgram) []Violation {
	var out []Violation
	for _, fn := range program.Functions {
		for _, loop := range fn.Loops {
			if !isTickerLoop(loop) {
				continue
			}
			out = append(out, r.checkLoop(fn, loop)...)
		}
	}
	return out
}

func (r tickerAliasingRule) checkLoop(fn *ast.Function, loop ast.Loop) []Violation {
	// Names bound in the function before the loop begins.
	outer := map[string]bool{}
	for _, a := range fn.Assignments {
		if a.Location.StartLine < loop.Location.StartLine {
			outer[a.Target] = true
		}
	}

	var out []Violation
	seen := map[string]bool{}
	for _, a := range fn.Assignments {
		if !loop.Contains(a.Location) {
			continue
		}
		if a.Target == loop.IterVar || !outer[a.Target] || seen[a.Target] {
			continue
		}
		seen[a.Target] = true
		out = append(out, violation(r, a.Location,
			fmt.Sprintf("per-ticker loop in %q mutates %q, which is bound outside the loop (cross-ticker aliasing)", fn.Name, a.Target),
			fmt.Sprintf("accumulate per-ticker results into a loop-local value and merge after the loop instead of mutating %q in place", a.Target),
		))
	}
	return out
}

// =============================================================================
// Pillar 4: Parallel/Batch Execution Construct (V31-006)
// =============================================================================

// parallelConstructs are the callee names (final dotted segment) that
// satisfy the parallel-execution pillar.
var parallelConstructs = map[string]bool{
	"ProcessPoolExecutor": true,
	"ThreadPoolExecutor":  true,
	"Pool":                true,
	"Parallel":            true,
}

// parallelExecRule requires at least one parallel or batch execution
// construct anywhere in the scanner.
type parallelExecRule struct{}

func (parallelExecRule) ID() string         { return RuleParallelExec }
func (parallelExecRule) Severity() Severity { return SeverityMajor }

func (r parallelExecRule) Evaluate(program *ast.ScannerProgram) []Violation {
	for _, fn := range program.Functions {
		for _, call := range fn.Calls {
			if isParallelCall(call.Callee) {
				return nil
			}
		}
	}
	return []Violation{violation(r, fileStart(),
		"no parallel or batch execution construct found",
		"run the ticker universe through ProcessPoolExecutor (or multiprocessing.Pool) in "+EntryPointName,
	)}
}

// isParallelCall matches constructor calls like ProcessPoolExecutor() or
// multiprocessing.Pool(), and batch dispatch like executor.map(...).
func isParallelCall(callee string) bool {
	last := callee
	receiver := ""
	if idx := strings.LastIndex(callee, "."); idx >= 0 {
		receiver = strings.ToLower(callee[:idx])
		last = callee[idx+1:]
	}
	if parallelConstructs[last] {
		return true
	}
	if last == "map" && (strings.Contains(receiver, "executor") || strings.Contains(receiver, "pool")) {
		return true
	}
	return false
}
