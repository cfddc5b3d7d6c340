// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"context"
	"reflect"
	"testing"

	"github.com/scanforgeai/scanforge/services/studio/rules"
)

// compliantSource is a minimal scanner that satisfies the full catalog.
const compliantSource = `"""D2 gap-up scanner."""
from concurrent.futures import ProcessPoolExecutor

def stage_1(universe):
    candidates = []
    for ticker in universe:
        gap = compute_gap(ticker)
        candidates.append(ticker)
    return candidates

def stage_2(candidates):
    filtered = rank(candidates)
    return filtered

def stage_3(filtered):
    return emit(filtered)

def run_scanner(universe):
    pool = ProcessPoolExecutor()
    hits = stage_1(universe)
    ranked = stage_2(hits)
    return stage_3(ranked)
`

func countRule(report *rules.ComplianceReport, ruleID string) int {
	n := 0
	for _, v := range report.Violations {
		if v.RuleID == ruleID {
			n++
		}
	}
	return n
}

func TestValidateCompliantSource(t *testing.T) {
	report, err := NewValidator().Validate(context.Background(), []byte(compliantSource))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Violations) != 0 {
		t.Fatalf("expected clean report, got %+v", report.Violations)
	}
	if report.Score != 1.0 || !report.Pass {
		t.Errorf("score=%v pass=%v, want 1.0/true", report.Score, report.Pass)
	}
}

func TestValidateMissingStages(t *testing.T) {
	source := `"""Partial scanner."""
from concurrent.futures import ProcessPoolExecutor

def stage_1(universe):
    hits = []
    for ticker in universe:
        hits.append(ticker)
    return hits

def run_scanner(universe):
    pool = ProcessPoolExecutor()
    return stage_1(universe)
`
	report, err := NewValidator().Validate(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := countRule(report, rules.RuleStagePresence); got != 2 {
		t.Errorf("V31-002 count = %d, want 2", got)
	}
	// Two MAJOR penalties leave the score exactly at the pass threshold.
	if report.Pass != (report.Score >= report.Threshold) {
		t.Errorf("pass=%v inconsistent with score=%v threshold=%v",
			report.Pass, report.Score, report.Threshold)
	}
	if report.HasSeverity(rules.SeverityCritical) {
		t.Error("missing stages must not be CRITICAL")
	}
}

func TestValidateCriticalAlwaysFails(t *testing.T) {
	source := `"""Aliasing scanner."""
from concurrent.futures import ProcessPoolExecutor

def stage_1(universe):
    total = 0
    hits = []
    for ticker in universe:
        total += 1
        hits.append(ticker)
    return hits

def stage_2(hits):
    return hits

def stage_3(hits):
    return hits

def run_scanner(universe):
    pool = ProcessPoolExecutor()
    return stage_3(stage_2(stage_1(universe)))
`
	report, err := NewValidator().Validate(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := countRule(report, rules.RuleTickerAliasing); got != 1 {
		t.Fatalf("V31-005 count = %d, want 1: %+v", got, report.Violations)
	}
	if report.Pass {
		t.Error("report with a CRITICAL violation must fail")
	}
}

func TestValidateUnparsableSource(t *testing.T) {
	report, err := NewValidator().Validate(context.Background(), []byte("def stage_1(:\n"))
	if err != nil {
		t.Fatalf("unparsable source must not surface an error, got %v", err)
	}
	if len(report.Violations) != 1 || report.Violations[0].RuleID != rules.RuleUnparsable {
		t.Fatalf("expected single %s violation, got %+v", rules.RuleUnparsable, report.Violations)
	}
	if report.Violations[0].Severity != rules.SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", report.Violations[0].Severity)
	}
	if report.Score != 0.0 || report.Pass {
		t.Errorf("score=%v pass=%v, want 0.0/false", report.Score, report.Pass)
	}
}

func TestValidateDeterministic(t *testing.T) {
	v := NewValidator()
	source := []byte(compliantSource + "\ndef BadName():\n    pass\n")

	first, err := v.Validate(context.Background(), source)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	second, err := v.Validate(context.Background(), source)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated validation of identical source must yield identical reports")
	}
}

func TestSetPolicyTakesEffect(t *testing.T) {
	v := NewValidator()
	source := []byte(compliantSource + "\ndef BadName():\n    pass\n")

	before, err := v.Validate(context.Background(), source)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !before.Pass {
		t.Fatalf("one MINOR violation should pass under the default policy: %+v", before)
	}

	strict := v.Policy()
	strict.PassThreshold = 0.99
	v.SetPolicy(strict)

	after, err := v.Validate(context.Background(), source)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if after.Pass {
		t.Error("stricter threshold should fail the same source")
	}
	if after.Threshold != 0.99 {
		t.Errorf("threshold = %v, want 0.99", after.Threshold)
	}
}

func TestValidateCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewValidator().Validate(ctx, []byte(compliantSource)); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
