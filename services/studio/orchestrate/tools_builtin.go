// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrate

import (
	"context"
	"errors"
	"strings"

	"github.com/scanforgeai/scanforge/services/studio/generate"
	"github.com/scanforgeai/scanforge/services/studio/rules"
	"github.com/scanforgeai/scanforge/services/studio/validate"
)

// Session context keys the built-in tools own.
const (
	keyGeneratedCode  = "generated_code"
	keyGeneratedSetup = "generated_setup"
	keyLastScore      = "last_score"
	keyLastPass       = "last_pass"
)

// =============================================================================
// generate_scanner
// =============================================================================

// setupAliases maps message tokens to setup types for chat-driven
// generation. Structured callers pass an explicit spec instead.
var setupAliases = map[string]generate.SetupType{
	"d2":         generate.SetupD2,
	"mdr":        generate.SetupMDR,
	"fbo":        generate.SetupFBO,
	"t30":        generate.SetupT30,
	"backside_b": generate.SetupBacksideB,
	"backside":   generate.SetupBacksideB,
}

// GenerateTool renders a scanner from a ScannerSpec (structured callers)
// or from setup keywords in the message (chat callers).
type GenerateTool struct {
	generator *generate.Generator
}

// NewGenerateTool wraps a Generator as an orchestratable tool.
func NewGenerateTool(generator *generate.Generator) *GenerateTool {
	return &GenerateTool{generator: generator}
}

func (t *GenerateTool) Name() string { return "generate_scanner" }

func (t *GenerateTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Generate a V31-compliant Python scanner for a setup type",
		Parameters: map[string]ParamDef{
			"spec":       {Type: "object", Description: "ScannerSpec (setup_type, parameters, indicators)"},
			"message":    {Type: "string", Description: "Free-text request; setup type is read from it when no spec is given"},
			"validate":   {Type: "boolean", Description: "Attach a compliance report to the result"},
			"setup_type": {Type: "string", Description: "Setup type override (D2, MDR, FBO, T30, BACKSIDE_B)"},
		},
		OwnedKeys: []string{keyGeneratedCode, keyGeneratedSetup},
	}
}

func (t *GenerateTool) Execute(ctx context.Context, args map[string]any, session *SessionContext) (*ToolResult, error) {
	spec, result := t.resolveSpec(args)
	if result != nil {
		return result, nil
	}

	withValidation := true
	if v, ok := args["validate"].(bool); ok {
		withValidation = v
	}

	out, err := t.generator.Generate(ctx, spec, withValidation)
	if err != nil {
		var missing *generate.MissingParameterError
		if errors.As(err, &missing) {
			return Failure(t.Name(), CodeMissingParameter, missing.Error()), nil
		}
		var invalid *generate.InvalidSpecError
		if errors.As(err, &invalid) {
			return Failure(t.Name(), CodeInvalidInput, invalid.Error()), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return Failure(t.Name(), CodeInvalidInput, err.Error()), nil
	}

	payload := map[string]any{
		"code":       out.Code,
		"setup_type": string(out.Setup),
	}
	if out.Report != nil {
		payload["report"] = out.Report
	}
	result = Success(t.Name(), payload)
	result.ContextUpdates = map[string]any{
		keyGeneratedCode:  out.Code,
		keyGeneratedSetup: string(out.Setup),
	}
	return result, nil
}

// resolveSpec builds the ScannerSpec from structured args or message
// keywords. The second return is a ready ERROR result when resolution
// fails.
func (t *GenerateTool) resolveSpec(args map[string]any) (generate.ScannerSpec, *ToolResult) {
	if raw, ok := mapArg(args, "spec"); ok {
		spec := generate.ScannerSpec{}
		if setup, ok := stringArg(raw, "setup_type"); ok {
			spec.SetupType = generate.SetupType(strings.ToUpper(setup))
		}
		if params, ok := mapArg(raw, "parameters"); ok {
			spec.Parameters = params
		}
		if inds, ok := raw["indicators"].([]any); ok {
			for _, ind := range inds {
				if s, ok := ind.(string); ok {
					spec.Indicators = append(spec.Indicators, s)
				}
			}
		}
		if desc, ok := stringArg(raw, "source_description"); ok {
			spec.SourceDescription = desc
		}
		return spec, nil
	}

	spec := generate.ScannerSpec{}
	if setup, ok := stringArg(args, "setup_type"); ok {
		spec.SetupType = generate.SetupType(strings.ToUpper(setup))
	} else if message, ok := stringArg(args, "message"); ok {
		spec.SetupType = setupFromMessage(message)
	}
	if spec.SetupType == "" {
		return spec, Failure(t.Name(), CodeMissingParameter,
			"setup_type is required: name one of D2, MDR, FBO, T30, BACKSIDE_B")
	}
	if params, ok := mapArg(args, "parameters"); ok {
		spec.Parameters = params
	}
	spec.SourceDescription, _ = stringArg(args, "message")
	return spec, nil
}

func setupFromMessage(message string) generate.SetupType {
	for _, field := range strings.Fields(strings.ToLower(message)) {
		word := strings.Trim(field, ".,;:!?()[]{}\"'`")
		if setup, ok := setupAliases[word]; ok {
			return setup
		}
	}
	return ""
}

// =============================================================================
// validate_scanner
// =============================================================================

// ValidateTool grades scanner source against the V31 Gold Standard.
type ValidateTool struct {
	validator *validate.Validator
}

// NewValidateTool wraps a Validator as an orchestratable tool.
func NewValidateTool(validator *validate.Validator) *ValidateTool {
	return &ValidateTool{validator: validator}
}

func (t *ValidateTool) Name() string { return "validate_scanner" }

func (t *ValidateTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Validate Python scanner source against the V31 Gold Standard",
		Parameters: map[string]ParamDef{
			"source": {Type: "string", Description: "Scanner source code", Required: true},
		},
		OwnedKeys: []string{keyLastScore, keyLastPass},
		// When chained after generation, the generated code becomes the
		// source under validation.
		ChainBindings: map[string]string{"source": "code"},
	}
}

func (t *ValidateTool) Execute(ctx context.Context, args map[string]any, session *SessionContext) (*ToolResult, error) {
	source, ok := stringArg(args, "source")
	if !ok {
		// Fall back to the session's last generated scanner so "now
		// validate it" works as a follow-up message.
		source, ok = session.GetString(keyGeneratedCode)
	}
	if !ok || source == "" {
		return Failure(t.Name(), CodeMissingParameter, "source is required: paste scanner code or generate one first"), nil
	}

	report, err := t.validator.Validate(ctx, []byte(source))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return Failure(t.Name(), CodeInvalidInput, err.Error()), nil
	}

	result := Success(t.Name(), map[string]any{"report": report})
	if len(report.Violations) == 1 && report.Violations[0].RuleID == rules.RuleUnparsable {
		result.Status = StatusPartial
		result.ErrorCode = CodeParseError
		result.ErrorMessage = report.Violations[0].Message
	}
	result.ContextUpdates = map[string]any{
		keyLastScore: report.Score,
		keyLastPass:  report.Pass,
	}
	return result, nil
}

// =============================================================================
// plan_trade
// =============================================================================

// PlanTool produces a structured execution plan for a setup. Planning is
// local and template-driven; it never calls the backend.
type PlanTool struct{}

// NewPlanTool creates the planning tool.
func NewPlanTool() *PlanTool { return &PlanTool{} }

func (t *PlanTool) Name() string { return "plan_trade" }

func (t *PlanTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Outline a scan-to-trade plan for the requested setup",
		Parameters: map[string]ParamDef{
			"message": {Type: "string", Description: "Free-text planning request"},
		},
	}
}

func (t *PlanTool) Execute(ctx context.Context, args map[string]any, session *SessionContext) (*ToolResult, error) {
	setup := "the requested setup"
	if message, ok := stringArg(args, "message"); ok {
		if s := setupFromMessage(message); s != "" {
			setup = string(s)
		}
	} else if s, ok := session.GetString(keyGeneratedSetup); ok {
		setup = s
	}

	steps := []string{
		"scan the pre-market universe with the " + setup + " scanner",
		"validate the scanner before the session if it changed",
		"size positions off the scanner's ranked output",
		"backtest parameter changes before trading them live",
	}
	return Success(t.Name(), map[string]any{"setup": setup, "steps": steps}), nil
}
