// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules holds the V31 Gold Standard rule catalog: the closed set of
// structural rules a compliant scanner must satisfy, the violation and
// report types they produce, and the configurable scoring policy.
//
// The catalog is a fixed set of tagged variants, not a plugin registry:
// the four pillars are finite and known at compile time, and every rule is
// constructed in exactly one place (Catalog).
package rules

import (
	"sort"

	"github.com/scanforgeai/scanforge/services/studio/ast"
)

// Severity grades how badly a violation compromises the standard.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
)

// rank orders severities for sorting; lower rank sorts first.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	default:
		return 2
	}
}

// Canonical structural names the standard mandates. The generator templates
// and the rule predicates share these.
const (
	EntryPointName = "run_scanner"
	Stage1Name     = "stage_1"
	Stage2Name     = "stage_2"
	Stage3Name     = "stage_3"
)

// Stable rule identifiers. Consumers (UI, CLI, tests) key on these.
const (
	// RuleUnparsable is reserved for source the parser rejects outright.
	// It is emitted by the validator, not by the catalog.
	RuleUnparsable = "V31-000"

	RuleEntryPoint      = "V31-001"
	RuleStagePresence   = "V31-002"
	RuleStageOrder      = "V31-003"
	RuleTickerIteration = "V31-004"
	RuleTickerAliasing  = "V31-005"
	RuleParallelExec    = "V31-006"

	RuleModuleDocstring = "V31-101"
	RuleSnakeCase       = "V31-102"
	RuleWildcardImport  = "V31-103"
)

// Violation is a single rule failure detected during validation.
// Immutable once produced.
type Violation struct {
	RuleID       string       `json:"rule_id"`
	Severity     Severity     `json:"severity"`
	Location     ast.Location `json:"location"`
	Message      string       `json:"message"`
	SuggestedFix string       `json:"suggested_fix,omitempty"`
}

// ComplianceReport is the durable validation artifact.
//
// Pass is always derived from the violation set and the scoring policy at
// construction time — it is never cached independently of Violations.
type ComplianceReport struct {
	// Violations are ordered by source location, then descending severity.
	Violations []Violation `json:"violations"`

	// Score is the penalty-sum compliance score in [0, 1].
	Score float64 `json:"score"`

	// Pass is true when Score >= threshold and no CRITICAL violation exists.
	Pass bool `json:"pass"`

	// Threshold echoes the pass threshold the report was graded against.
	Threshold float64 `json:"threshold"`
}

// HasSeverity reports whether any violation carries the given severity.
func (r *ComplianceReport) HasSeverity(sev Severity) bool {
	for _, v := range r.Violations {
		if v.Severity == sev {
			return true
		}
	}
	return false
}

// BuildReport assembles a ComplianceReport from raw violations.
//
// Description:
//
//	Sorts violations by source location (line, then column), breaking ties
//	by descending severity and finally by rule id so identical input always
//	yields a byte-identical report. Computes the penalty-sum score: start
//	at 1.0, subtract the per-severity penalty for each violation, floor at
//	0.0. Pass is recomputed here and nowhere else.
//
// Thread Safety: Pure function; safe for concurrent use.
func BuildReport(violations []Violation, policy ScoringPolicy) *ComplianceReport {
	sorted := make([]Violation, len(violations))
	copy(sorted, violations)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Location.StartLine != b.Location.StartLine {
			return a.Location.StartLine < b.Location.StartLine
		}
		if a.Location.StartCol != b.Location.StartCol {
			return a.Location.StartCol < b.Location.StartCol
		}
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		return a.RuleID < b.RuleID
	})

	score := 1.0
	for _, v := range sorted {
		score -= policy.Penalty(v.Severity)
	}
	if score < 0 {
		score = 0
	}

	report := &ComplianceReport{
		Violations: sorted,
		Score:      score,
		Threshold:  policy.PassThreshold,
	}
	report.Pass = score >= policy.PassThreshold && !report.HasSeverity(SeverityCritical)
	return report
}
