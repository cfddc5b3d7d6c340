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
	"fmt"

	"github.com/scanforgeai/scanforge/services/studio/backend"
)

// BackendTool delegates one job kind to the execution service. Analyze,
// optimize, backtest, and execute are the same submit→poll→results
// exchange with different kinds, so one type covers all four.
type BackendTool struct {
	client      *backend.Client
	kind        backend.JobKind
	name        string
	description string
	needsSource bool
	ownedKey    string
}

// NewAnalyzeTool delegates market-structure analysis.
func NewAnalyzeTool(client *backend.Client) *BackendTool {
	return &BackendTool{
		client:      client,
		kind:        backend.JobAnalyze,
		name:        "analyze_market",
		description: "Analyze market data for structure, levels, and indicator readings",
		ownedKey:    "last_analysis",
	}
}

// NewOptimizeTool delegates parameter sweeps.
func NewOptimizeTool(client *backend.Client) *BackendTool {
	return &BackendTool{
		client:      client,
		kind:        backend.JobOptimize,
		name:        "optimize_parameters",
		description: "Sweep scanner parameters against historical data",
		needsSource: true,
		ownedKey:    "last_optimization",
	}
}

// NewBacktestTool delegates historical replay.
func NewBacktestTool(client *backend.Client) *BackendTool {
	return &BackendTool{
		client:      client,
		kind:        backend.JobBacktest,
		name:        "backtest_scanner",
		description: "Backtest a scanner over historical sessions",
		needsSource: true,
		ownedKey:    "last_backtest",
	}
}

// NewExecuteTool delegates a live scan run.
func NewExecuteTool(client *backend.Client) *BackendTool {
	return &BackendTool{
		client:      client,
		kind:        backend.JobExecute,
		name:        "execute_scan",
		description: "Run a scanner against the live universe",
		needsSource: true,
		ownedKey:    "last_scan",
	}
}

func (t *BackendTool) Name() string { return t.name }

func (t *BackendTool) Definition() ToolDefinition {
	params := map[string]ParamDef{
		"message": {Type: "string", Description: "Free-text request forwarded as job context"},
		"params":  {Type: "object", Description: "Job parameters (lookback, universe, sweep ranges)"},
	}
	def := ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters:  params,
		OwnedKeys:   []string{t.ownedKey},
	}
	if t.needsSource {
		params["source"] = ParamDef{Type: "string", Description: "Scanner source; defaults to the session's generated scanner"}
		def.ChainBindings = map[string]string{"source": "code"}
	}
	return def
}

func (t *BackendTool) Execute(ctx context.Context, args map[string]any, session *SessionContext) (*ToolResult, error) {
	job := backend.Job{Kind: t.kind}
	if params, ok := mapArg(args, "params"); ok {
		job.Params = params
	}
	if message, ok := stringArg(args, "message"); ok {
		if job.Params == nil {
			job.Params = map[string]any{}
		}
		job.Params["request"] = message
	}

	if t.needsSource {
		source, ok := stringArg(args, "source")
		if !ok {
			source, ok = session.GetString(keyGeneratedCode)
		}
		if !ok || source == "" {
			return Failure(t.name, CodeMissingParameter,
				fmt.Sprintf("%s needs scanner source: pass it or generate one first", t.name)), nil
		}
		job.Source = source
	}

	results, err := t.client.Run(ctx, job)
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrTimeout):
			return Failure(t.name, CodeTimeout, err.Error()), nil
		case errors.Is(err, backend.ErrUnavailable):
			return Failure(t.name, CodeBackendUnavailable, err.Error()), nil
		case errors.Is(err, backend.ErrJobFailed):
			return Failure(t.name, CodeInvalidInput, err.Error()), nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return Failure(t.name, CodeBackendUnavailable, err.Error()), nil
		}
	}

	result := Success(t.name, map[string]any{"results": results, "job_kind": string(t.kind)})
	result.ContextUpdates = map[string]any{t.ownedKey: results}
	return result, nil
}
