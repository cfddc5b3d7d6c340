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
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParserOption configures a Parser instance.
type ParserOption func(*Parser)

// WithMaxSourceSize sets the maximum source size the parser will accept.
func WithMaxSourceSize(bytes int64) ParserOption {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxSourceSize = bytes
		}
	}
}

// Parser parses Python scanner source into a ScannerProgram.
//
// Description:
//
//	Parser uses tree-sitter to parse scanner source and extract the
//	structural facts the compliance rules evaluate. Each Parse call
//	creates its own tree-sitter parser instance internally, so a single
//	Parser is safe for concurrent use from multiple goroutines.
//
// Failure semantics:
//
//	Syntactically invalid source returns a *ParseError (never a partial
//	program); oversized or non-UTF-8 input returns an ordinary error.
//	The caller decides how a ParseError degrades — the validator turns it
//	into a single CRITICAL violation.
type Parser struct {
	maxSourceSize int64
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{maxSourceSize: DefaultMaxSourceSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts the structural representation of one scanner source.
//
// Description:
//
//	Parses the source with tree-sitter and walks the tree once, collecting
//	top-level functions (with ordered call sites, loops, and assignments),
//	imports, and the module docstring.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing;
//     tree-sitter itself cannot be interrupted mid-parse.
//   - source: Raw scanner source bytes. Must be valid UTF-8.
//
// Outputs:
//   - *ScannerProgram: The parsed program. Never nil on success.
//   - error: *ParseError for syntactically invalid source; ordinary
//     errors for oversized input, invalid UTF-8, or cancellation.
//
// Thread Safety: Safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, source []byte) (*ScannerProgram, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(source)) > p.maxSourceSize {
		return nil, fmt.Errorf("source size %d exceeds limit %d", len(source), p.maxSourceSize)
	}
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("source is not valid UTF-8")
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root node")
	}

	// Tree-sitter is error-tolerant; an ERROR or missing node anywhere in
	// the tree means the source is not well-formed. No partial recovery.
	if root.HasError() {
		if errNode := findFirstError(root); errNode != nil {
			return nil, &ParseError{
				Line:  int(errNode.StartPoint().Row + 1),
				Col:   int(errNode.StartPoint().Column),
				Cause: syntaxErrorCause(errNode, source),
			}
		}
		return nil, &ParseError{Line: 1, Col: 0, Cause: "source contains syntax errors"}
	}

	program := &ScannerProgram{
		Functions: make([]*Function, 0),
		LineCount: strings.Count(string(source), "\n") + 1,
	}

	program.ModuleDocstring = extractModuleDocstring(root, source)
	extractImports(root, source, program, 0)

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_definition":
			if fn := p.processFunction(child, source); fn != nil {
				program.Functions = append(program.Functions, fn)
			}
		case "decorated_definition":
			for j := 0; j < int(child.ChildCount()); j++ {
				def := child.Child(j)
				if def.Type() == "function_definition" {
					if fn := p.processFunction(def, source); fn != nil {
						program.Functions = append(program.Functions, fn)
					}
					break
				}
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}
	return program, nil
}

// maxWalkDepth bounds recursive tree walks. Real scanner files are shallow;
// the bound only guards against pathological input.
const maxWalkDepth = 64

// findFirstError locates the first ERROR or missing node in source order.
func findFirstError(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := findFirstError(child); found != nil {
			return found
		}
	}
	return nil
}

// syntaxErrorCause builds a short human-readable cause for a syntax error.
func syntaxErrorCause(node *sitter.Node, source []byte) string {
	if node.IsMissing() {
		return fmt.Sprintf("missing %s", node.Type())
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(source) {
		end = uint32(len(source))
	}
	snippet := string(source[start:end])
	if idx := strings.IndexByte(snippet, '\n'); idx >= 0 {
		snippet = snippet[:idx]
	}
	if len(snippet) > 40 {
		snippet = snippet[:40] + "..."
	}
	if snippet == "" {
		return "invalid syntax"
	}
	return fmt.Sprintf("invalid syntax near %q", snippet)
}

// extractModuleDocstring returns the module-level docstring if present.
// The docstring is the first expression statement whose child is a string,
// appearing before any non-comment, non-import statement.
func extractModuleDocstring(root *sitter.Node, source []byte) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() == "expression_statement" && child.ChildCount() > 0 {
			strNode := child.Child(0)
			if strNode.Type() == "string" {
				return stringContent(strNode, source)
			}
		}
		if child.Type() != "comment" && child.Type() != "import_statement" && child.Type() != "import_from_statement" {
			return ""
		}
	}
	return ""
}

// extractImports walks the entire tree for import statements. Scanners use
// inline imports inside stage bodies, and the wildcard-import rule must see
// those too.
func extractImports(node *sitter.Node, source []byte, program *ScannerProgram, depth int) {
	if node == nil || depth > maxWalkDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import_statement":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "dotted_name" {
					program.Imports = append(program.Imports, Import{
						Path:     nodeText(gc, source),
						Location: nodeLocation(child),
					})
				}
			}
		case "import_from_statement":
			imp := Import{Location: nodeLocation(child)}
			sawImport := false
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "import":
					sawImport = true
				case "dotted_name":
					if !sawImport {
						imp.Path = nodeText(gc, source)
					} else {
						imp.Names = append(imp.Names, nodeText(gc, source))
					}
				case "wildcard_import":
					imp.IsWildcard = true
				case "aliased_import":
					if gc.ChildCount() > 0 {
						imp.Names = append(imp.Names, nodeText(gc.Child(0), source))
					}
				}
			}
			if imp.Path != "" {
				program.Imports = append(program.Imports, imp)
			}
		default:
			extractImports(child, source, program, depth+1)
		}
	}
}

// processFunction extracts one top-level function definition.
func (p *Parser) processFunction(node *sitter.Node, source []byte) *Function {
	var name string
	var body *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			name = nodeText(child, source)
		case "block":
			body = child
		}
	}
	if name == "" {
		return nil
	}

	fn := &Function{
		Name:     name,
		Location: nodeLocation(node),
	}
	if body != nil {
		fn.Docstring = blockDocstring(body, source)
		order := 0
		walkBody(body, source, fn, &order, 0)
	}
	return fn
}

// walkBody collects call sites, loops, and assignments from a function
// body in a single source-order traversal. Nested function definitions are
// not descended into — their internals belong to the nested function, and
// the stage rules only reason about the enclosing body.
func walkBody(node *sitter.Node, source []byte, fn *Function, order *int, depth int) {
	if node == nil || depth > maxWalkDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_definition":
			continue
		case "call":
			if callee := callCallee(child, source); callee != "" {
				fn.Calls = append(fn.Calls, CallSite{
					Callee:   callee,
					Order:    *order,
					Location: nodeLocation(child),
				})
				*order++
			}
			// Arguments may contain nested calls.
			walkBody(child, source, fn, order, depth+1)
		case "for_statement":
			fn.Loops = append(fn.Loops, processLoop(child, source))
			walkBody(child, source, fn, order, depth+1)
		case "assignment", "augmented_assignment":
			if target := assignmentTarget(child, source); target != "" {
				fn.Assignments = append(fn.Assignments, Assignment{
					Target:    target,
					Augmented: child.Type() == "augmented_assignment",
					Location:  nodeLocation(child),
				})
			}
			walkBody(child, source, fn, order, depth+1)
		default:
			walkBody(child, source, fn, order, depth+1)
		}
	}
}

// callCallee returns the invoked expression text for a call node.
func callCallee(node *sitter.Node, source []byte) string {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil && node.ChildCount() > 0 {
		fnNode = node.Child(0)
	}
	if fnNode == nil {
		return ""
	}
	switch fnNode.Type() {
	case "identifier", "attribute":
		return nodeText(fnNode, source)
	default:
		return ""
	}
}

// processLoop extracts the loop variable and iterable from a for-statement.
func processLoop(node *sitter.Node, source []byte) Loop {
	loop := Loop{Location: nodeLocation(node)}
	if left := node.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
		loop.IterVar = nodeText(left, source)
	}
	if right := node.ChildByFieldName("right"); right != nil {
		loop.IterableText = nodeText(right, source)
	}
	return loop
}

// assignmentTarget returns the leftmost identifier target of an assignment,
// or "" when the target is not a plain identifier (subscript, attribute,
// tuple unpacking).
func assignmentTarget(node *sitter.Node, source []byte) string {
	left := node.ChildByFieldName("left")
	if left == nil && node.ChildCount() > 0 {
		left = node.Child(0)
	}
	if left == nil || left.Type() != "identifier" {
		return ""
	}
	return nodeText(left, source)
}

// blockDocstring returns the docstring of a block, if its first statement
// is a string expression.
func blockDocstring(block *sitter.Node, source []byte) string {
	if block.ChildCount() == 0 {
		return ""
	}
	first := block.Child(0)
	if first.Type() == "expression_statement" && first.ChildCount() > 0 {
		strNode := first.Child(0)
		if strNode.Type() == "string" {
			return stringContent(strNode, source)
		}
	}
	return ""
}

// stringContent strips quoting from a string node.
func stringContent(node *sitter.Node, source []byte) string {
	raw := nodeText(node, source)
	return strings.Trim(raw, `"'`)
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func nodeLocation(node *sitter.Node) Location {
	return Location{
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
}
