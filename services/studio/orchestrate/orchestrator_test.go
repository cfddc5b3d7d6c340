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
	"strings"
	"testing"

	"github.com/scanforgeai/scanforge/services/studio/generate"
	"github.com/scanforgeai/scanforge/services/studio/intent"
	"github.com/scanforgeai/scanforge/services/studio/rules"
	"github.com/scanforgeai/scanforge/services/studio/validate"
)

// newTestOrchestrator wires the real classifier, generator, and validator
// with in-memory sessions.
func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	validator := validate.NewValidator()
	generator := generate.NewGenerator(generate.WithValidator(validator))

	registry := NewRegistry()
	mustRegister := func(tool Tool, intents ...intent.Intent) {
		t.Helper()
		if err := registry.Register(tool, intents...); err != nil {
			t.Fatalf("Register(%s): %v", tool.Name(), err)
		}
	}
	mustRegister(NewGenerateTool(generator), intent.IntentGenerateScanner)
	mustRegister(NewValidateTool(validator), intent.IntentValidate)
	mustRegister(NewPlanTool(), intent.IntentPlan)

	return NewOrchestrator(intent.NewClassifier(), registry, NewSessionManager())
}

func TestHandleGenerateAndValidateChain(t *testing.T) {
	o := newTestOrchestrator(t)
	exchange, err := o.Handle(context.Background(), "", "generate a D2 scanner and validate it")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(exchange.Intents) < 2 ||
		exchange.Intents[0].Intent != intent.IntentGenerateScanner ||
		exchange.Intents[1].Intent != intent.IntentValidate {
		t.Fatalf("intents = %+v, want GENERATE_SCANNER then VALIDATE", exchange.Intents)
	}
	if len(exchange.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(exchange.Results))
	}

	generated := exchange.Results[0]
	if generated.Status != StatusSuccess {
		t.Fatalf("generate result = %+v", generated)
	}
	code, _ := generated.Payload["code"].(string)
	if code == "" {
		t.Fatal("generate payload has no code")
	}

	validated := exchange.Results[1]
	if validated.Status != StatusSuccess {
		t.Fatalf("validate result = %+v", validated)
	}
	report, ok := validated.Payload["report"].(*rules.ComplianceReport)
	if !ok {
		t.Fatalf("validate payload has no report: %+v", validated.Payload)
	}
	if !report.Pass {
		t.Errorf("generated scanner failed validation: %+v", report.Violations)
	}

	// Context threading: the session holds the generated code the
	// validator consumed.
	if got, _ := exchange.Context[keyGeneratedCode].(string); got != code {
		t.Error("generated code not threaded into session context")
	}
	if pass, _ := exchange.Context[keyLastPass].(bool); !pass {
		t.Error("validation outcome not recorded in session context")
	}
}

func TestHandleChainHaltsOnError(t *testing.T) {
	o := newTestOrchestrator(t)
	// No setup type anywhere in the message: generation fails before the
	// chained validation can run.
	exchange, err := o.Handle(context.Background(), "", "generate a scanner and validate it")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exchange.Results) != 1 {
		t.Fatalf("results = %d, want 1 (chain halted)", len(exchange.Results))
	}
	failed := exchange.Results[0]
	if failed.Status != StatusError || failed.ErrorCode != CodeMissingParameter {
		t.Fatalf("result = %+v, want ERROR/MISSING_PARAMETER", failed)
	}
	if _, ok := exchange.Context[keyGeneratedCode]; ok {
		t.Error("failed generation must not write session context")
	}
}

func TestHandleUnknownIntent(t *testing.T) {
	o := newTestOrchestrator(t)
	for _, message := range []string{"", "   ", "what's for lunch"} {
		exchange, err := o.Handle(context.Background(), "", message)
		if err != nil {
			t.Fatalf("Handle(%q): %v", message, err)
		}
		if len(exchange.Results) != 0 {
			t.Errorf("Handle(%q) invoked tools: %+v", message, exchange.Results)
		}
		if exchange.Response != clarificationResponse {
			t.Errorf("Handle(%q) response = %q, want clarification", message, exchange.Response)
		}
		if len(exchange.Intents) != 1 || exchange.Intents[0].Intent != intent.IntentUnknown {
			t.Errorf("Handle(%q) intents = %+v, want [UNKNOWN]", message, exchange.Intents)
		}
	}
}

func TestHandleFollowUpValidateUsesSessionCode(t *testing.T) {
	o := newTestOrchestrator(t)
	first, err := o.Handle(context.Background(), "", "generate a d2 scanner")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if first.Results[0].Status != StatusSuccess {
		t.Fatalf("generation failed: %+v", first.Results[0])
	}

	second, err := o.Handle(context.Background(), first.SessionID, "validate it")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(second.Results) != 1 || second.Results[0].Status != StatusSuccess {
		t.Fatalf("follow-up validate = %+v", second.Results)
	}
}

func TestHandleSessionIsolation(t *testing.T) {
	o := newTestOrchestrator(t)
	first, err := o.Handle(context.Background(), "", "generate a d2 scanner")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	// A different session must not see the first session's scanner.
	other, err := o.Handle(context.Background(), "", "validate it")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if other.SessionID == first.SessionID {
		t.Fatal("sessions were not isolated")
	}
	if len(other.Results) != 1 {
		t.Fatalf("results = %+v", other.Results)
	}
	if other.Results[0].ErrorCode != CodeMissingParameter {
		t.Errorf("cross-session validate = %+v, want MISSING_PARAMETER", other.Results[0])
	}
}

func TestHandleUnparsableSourceIsPartial(t *testing.T) {
	o := newTestOrchestrator(t)
	session, release, err := o.sessions.Acquire(context.Background(), "seeded")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	session.Values[keyGeneratedCode] = "def stage_1(:\n"
	release()

	exchange, err := o.Handle(context.Background(), "seeded", "validate it")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	result := exchange.Results[0]
	if result.Status != StatusPartial || result.ErrorCode != CodeParseError {
		t.Fatalf("result = %+v, want PARTIAL/PARSE_ERROR", result)
	}
	if !strings.Contains(exchange.Response, "partially") {
		t.Errorf("response = %q, want partial wording", exchange.Response)
	}
}

// unownedWriterTool tries to write a session key it does not own.
type unownedWriterTool struct{}

func (unownedWriterTool) Name() string { return "rogue" }
func (unownedWriterTool) Definition() ToolDefinition {
	return ToolDefinition{Name: "rogue", OwnedKeys: []string{"rogue_key"}}
}
func (unownedWriterTool) Execute(ctx context.Context, args map[string]any, session *SessionContext) (*ToolResult, error) {
	result := Success("rogue", nil)
	result.ContextUpdates = map[string]any{
		"rogue_key":      "ok",
		keyGeneratedCode: "hijacked",
	}
	return result, nil
}

func TestContextUpdatesRestrictedToOwnedKeys(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(unownedWriterTool{}, intent.IntentPlan); err != nil {
		t.Fatalf("Register: %v", err)
	}
	o := NewOrchestrator(intent.NewClassifier(), registry, NewSessionManager())

	exchange, err := o.Handle(context.Background(), "", "plan the open")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := exchange.Context["rogue_key"]; got != "ok" {
		t.Errorf("owned key not written: %v", exchange.Context)
	}
	if _, ok := exchange.Context[keyGeneratedCode]; ok {
		t.Error("unowned key write was not dropped")
	}
}

func TestRegistryRejectsDoubleRegistration(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(NewPlanTool(), intent.IntentPlan); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(NewPlanTool(), intent.IntentAnalyze); err == nil {
		t.Error("duplicate tool name must be rejected")
	}
	if err := registry.Register(unownedWriterTool{}, intent.IntentPlan); err == nil {
		t.Error("double-bound intent must be rejected")
	}
}
