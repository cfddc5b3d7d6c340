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
	"github.com/scanforgeai/scanforge/services/studio/ast"
)

// Rule is one structural requirement of the V31 Gold Standard.
//
// Description:
//
//	A rule's Evaluate is a structural predicate over the parsed program —
//	never a textual match on raw source. A rule may fire zero, one, or
//	many times; each firing is one Violation. Rules are independent of one
//	another and may be evaluated in any order; the validator sorts the
//	aggregate violation list afterwards.
//
// Thread Safety: Implementations are stateless; safe for concurrent use.
type Rule interface {
	// ID returns the stable rule identifier (e.g. "V31-001").
	ID() string

	// Severity returns the severity every firing of this rule carries.
	Severity() Severity

	// Evaluate runs the detection predicate against a parsed program.
	Evaluate(program *ast.ScannerProgram) []Violation
}

// Catalog returns the full V31 rule set: the four structural pillars plus
// the naming/style rules. The set is closed — rules are added here or not
// at all.
func Catalog() []Rule {
	return []Rule{
		entryPointRule{},
		stagePresenceRule{},
		stageOrderRule{},
		tickerIterationRule{},
		tickerAliasingRule{},
		parallelExecRule{},
		moduleDocstringRule{},
		snakeCaseRule{},
		wildcardImportRule{},
	}
}

// violation builds a Violation for a rule firing. Small helper so every
// rule constructs violations the same way.
func violation(r Rule, loc ast.Location, message, fix string) Violation {
	return Violation{
		RuleID:       r.ID(),
		Severity:     r.Severity(),
		Location:     loc,
		Message:      message,
		SuggestedFix: fix,
	}
}

// fileStart anchors violations about constructs that are absent entirely
// and therefore have no source span of their own.
func fileStart() ast.Location {
	return ast.Location{StartLine: 1, EndLine: 1}
}
