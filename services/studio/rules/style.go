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

	"github.com/scanforgeai/scanforge/services/studio/ast"
)

// Naming and style rules. All MINOR: they lower the score but never fail a
// scanner on their own.

// moduleDocstringRule requires a module-level docstring.
type moduleDocstringRule struct{}

func (moduleDocstringRule) ID() string         { return RuleModuleDocstring }
func (moduleDocstringRule) Severity() Severity { return SeverityMinor }

func (r moduleDocstringRule) Evaluate(program *ast.ScannerProgram) []Violation {
	if program.ModuleDocstring != "" {
		return nil
	}
	return []Violation{violation(r, fileStart(),
		"module docstring is missing",
		"open the file with a short docstring describing the setup the scanner detects",
	)}
}

// snakeCaseRule requires snake_case names for top-level functions.
type snakeCaseRule struct{}

func (snakeCaseRule) ID() string         { return RuleSnakeCase }
func (snakeCaseRule) Severity() Severity { return SeverityMinor }

func (r snakeCaseRule) Evaluate(program *ast.ScannerProgram) []Violation {
	var out []Violation
	for _, fn := range program.Functions {
		if isSnakeCase(fn.Name) {
			continue
		}
		out = append(out, violation(r, fn.Location,
			fmt.Sprintf("function %q is not snake_case", fn.Name),
			fmt.Sprintf("rename %q to snake_case", fn.Name),
		))
	}
	return out
}

func isSnakeCase(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

// wildcardImportRule forbids "from x import *".
type wildcardImportRule struct{}

func (wildcardImportRule) ID() string         { return RuleWildcardImport }
func (wildcardImportRule) Severity() Severity { return SeverityMinor }

func (r wildcardImportRule) Evaluate(program *ast.ScannerProgram) []Violation {
	var out []Violation
	for _, imp := range program.Imports {
		if !imp.IsWildcard {
			continue
		}
		out = append(out, violation(r, imp.Location,
			fmt.Sprintf("wildcard import from %q", imp.Path),
			fmt.Sprintf("import the needed names from %s explicitly", imp.Path),
		))
	}
	return out
}
