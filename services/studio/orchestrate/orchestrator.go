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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/scanforgeai/scanforge/services/studio/intent"
)

var orchestratorTracer = otel.Tracer("studio.orchestrate")

// clarificationResponse is the fixed reply for UNKNOWN intent. No tool
// runs in that case.
const clarificationResponse = "I couldn't tell what you want to do. " +
	"Ask me to generate a scanner, validate one, plan, analyze, optimize, backtest, or execute a scan."

// Exchange is one request's aggregated outcome: the boundary shape.
type Exchange struct {
	SessionID string             `json:"session_id"`
	Intents   []intent.Detection `json:"intents_detected"`
	Results   []*ToolResult      `json:"tool_results"`
	Response  string             `json:"response"`

	// Context is a snapshot of the session values after the request.
	Context map[string]any `json:"updated_context,omitempty"`
}

// Orchestrator drives the per-request state machine.
//
// Thread Safety: Safe for concurrent use; per-session serialization comes
// from the SessionManager's locks.
type Orchestrator struct {
	classifier *intent.Classifier
	registry   *Registry
	sessions   *SessionManager
	logger     *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the structured logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator wires the classifier, tool registry, and session manager.
func NewOrchestrator(classifier *intent.Classifier, registry *Registry, sessions *SessionManager, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		classifier: classifier,
		registry:   registry,
		sessions:   sessions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the tool registry for boundary listings.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Handle processes one message end-to-end.
//
// Description:
//
//	CLASSIFY the message, RESOLVE each intent to a tool, EXECUTE the
//	tools sequentially in classification order, CHAIN prior payloads into
//	chained steps, and RESPOND with the aggregated results. The first
//	ERROR result halts the chain; results gathered so far are still
//	returned. Session context is only updated with keys the producing
//	tool owns, and never from ERROR results.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, message string) (*Exchange, error) {
	ctx, span := orchestratorTracer.Start(ctx, "orchestrate.Handle")
	defer span.End()

	session, release, err := o.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer release()
	span.SetAttributes(attribute.String("session_id", session.ID))

	detections := o.classifier.Classify(message)
	exchange := &Exchange{
		SessionID: session.ID,
		Intents:   detections,
	}
	requestsTotal.Inc()

	if detections[0].Intent == intent.IntentUnknown {
		exchange.Response = clarificationResponse
		exchange.Context = session.snapshot()
		unknownIntentsTotal.Inc()
		return exchange, nil
	}

	var prior *ToolResult
	for _, detection := range detections {
		tool, ok := o.registry.Resolve(detection.Intent)
		if !ok {
			result := Failure("orchestrator", CodeUnknownIntent,
				fmt.Sprintf("no tool registered for intent %s", detection.Intent))
			exchange.Results = append(exchange.Results, result)
			break
		}

		args := map[string]any{"message": message}
		if detection.Chained && prior != nil {
			chainArgs(args, tool.Definition(), prior)
		}

		result := o.execute(ctx, tool, args, session)
		exchange.Results = append(exchange.Results, result)
		toolRunsTotal.WithLabelValues(tool.Name(), string(result.Status)).Inc()

		if result.Status == StatusError {
			o.logger.Info("chain halted",
				slog.String("session_id", session.ID),
				slog.String("tool", tool.Name()),
				slog.String("error_code", result.ErrorCode),
			)
			break
		}

		o.applyContextUpdates(session, tool.Definition(), result)
		prior = result
	}

	exchange.Response = summarize(exchange.Results)
	exchange.Context = session.snapshot()
	return exchange, nil
}

// execute runs one tool, timing it and normalizing edge cases: a nil
// result or a Go error becomes a structured ERROR result.
func (o *Orchestrator) execute(ctx context.Context, tool Tool, args map[string]any, session *SessionContext) *ToolResult {
	ctx, span := orchestratorTracer.Start(ctx, "orchestrate.execute."+tool.Name())
	defer span.End()
	start := time.Now()

	result, err := tool.Execute(ctx, args, session)
	switch {
	case err != nil:
		code := CodeInvalidInput
		if ctx.Err() != nil {
			code = CodeTimeout
		}
		result = Failure(tool.Name(), code, err.Error())
	case result == nil:
		result = Failure(tool.Name(), CodeInvalidInput, "tool returned no result")
	}

	result.Tool = tool.Name()
	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.String("error_code", result.ErrorCode),
	)
	return result
}

// chainArgs copies the previous step's payload fields into the next
// tool's arguments, following the tool's declared bindings.
func chainArgs(args map[string]any, def ToolDefinition, prior *ToolResult) {
	for argName, payloadField := range def.ChainBindings {
		if value, ok := prior.Payload[payloadField]; ok {
			args[argName] = value
		}
	}
}

// applyContextUpdates writes a tool's requested session updates,
// restricted to the keys the tool owns. ERROR results never reach here.
func (o *Orchestrator) applyContextUpdates(session *SessionContext, def ToolDefinition, result *ToolResult) {
	if len(result.ContextUpdates) == 0 {
		return
	}
	owned := make(map[string]bool, len(def.OwnedKeys))
	for _, key := range def.OwnedKeys {
		owned[key] = true
	}
	for key, value := range result.ContextUpdates {
		if !owned[key] {
			o.logger.Warn("dropping unowned context write",
				slog.String("tool", def.Name),
				slog.String("key", key),
			)
			continue
		}
		session.Values[key] = value
	}
}

// summarize renders the human-readable response line for an exchange.
func summarize(results []*ToolResult) string {
	if len(results) == 0 {
		return clarificationResponse
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		switch r.Status {
		case StatusError:
			parts = append(parts, fmt.Sprintf("%s failed (%s: %s)", r.Tool, r.ErrorCode, r.ErrorMessage))
		case StatusPartial:
			parts = append(parts, fmt.Sprintf("%s partially completed (%s)", r.Tool, r.ErrorCode))
		default:
			parts = append(parts, fmt.Sprintf("%s completed", r.Tool))
		}
	}
	return strings.Join(parts, "; ")
}
