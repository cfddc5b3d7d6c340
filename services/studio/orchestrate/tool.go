// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrate runs classified intents through registered tools:
// CLASSIFY → RESOLVE → EXECUTE → CHAIN → RESPOND, halting on the first
// ERROR and threading prior outputs into chained steps.
package orchestrate

import (
	"context"
	"time"
)

// Status is a tool invocation outcome.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
	StatusPartial Status = "PARTIAL"
)

// Stable error codes surfaced at the service boundary.
const (
	CodeMissingParameter   = "MISSING_PARAMETER"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeParseError         = "PARSE_ERROR"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
	CodeUnknownIntent      = "UNKNOWN_INTENT"
)

// ToolResult is the uniform envelope every tool invocation produces.
type ToolResult struct {
	// Tool is the invoked tool's registered name.
	Tool string `json:"tool"`

	Status  Status         `json:"status"`
	Payload map[string]any `json:"payload,omitempty"`

	// ErrorCode/ErrorMessage are set for ERROR and PARTIAL results.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Duration time.Duration `json:"duration_ns"`

	// ContextUpdates are session writes the tool requests. The
	// orchestrator applies only the keys the tool's definition owns, and
	// only for non-ERROR results.
	ContextUpdates map[string]any `json:"-"`
}

// Success builds a SUCCESS result.
func Success(tool string, payload map[string]any) *ToolResult {
	return &ToolResult{Tool: tool, Status: StatusSuccess, Payload: payload}
}

// Failure builds an ERROR result.
func Failure(tool, code, message string) *ToolResult {
	return &ToolResult{Tool: tool, Status: StatusError, ErrorCode: code, ErrorMessage: message}
}

// ParamDef describes one tool parameter.
type ParamDef struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// ToolDefinition is a tool's self-description: surfaced on the tools
// endpoint and consulted by the orchestrator for chaining and session
// ownership.
type ToolDefinition struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Parameters  map[string]ParamDef `json:"parameters,omitempty"`

	// OwnedKeys are the only session context keys this tool may write.
	OwnedKeys []string `json:"owned_keys,omitempty"`

	// ChainBindings maps this tool's argument names to payload fields of
	// the previous step when the tool runs chained (e.g. source ← code).
	ChainBindings map[string]string `json:"chain_bindings,omitempty"`
}

// Tool is one orchestratable capability.
//
// Description:
//
//	Execute returns a structured result for every domain failure —
//	missing parameters, invalid input, backend faults all come back as
//	ERROR results, not Go errors. A non-nil error is reserved for the
//	context being done; the orchestrator maps it to a TIMEOUT result.
//
// Thread Safety: Implementations must be safe for concurrent use across
// sessions.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	Execute(ctx context.Context, args map[string]any, session *SessionContext) (*ToolResult, error)
}

// stringArg extracts a non-empty string argument.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// mapArg extracts a map argument.
func mapArg(args map[string]any, key string) (map[string]any, bool) {
	v, ok := args[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}
