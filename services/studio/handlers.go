// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package studio

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scanforgeai/scanforge/services/studio/generate"
	"github.com/scanforgeai/scanforge/services/studio/intent"
	"github.com/scanforgeai/scanforge/services/studio/orchestrate"
	"github.com/scanforgeai/scanforge/services/studio/rules"
)

// Handlers carries the HTTP handler set for the studio surface.
type Handlers struct {
	service *Service
	logger  *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(service *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// errorBody is the uniform error envelope.
type errorBody struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{ErrorCode: code, ErrorMessage: message})
}

// ---------------------------------------------------------------------------
// POST /v1/studio/validate
// ---------------------------------------------------------------------------

type validateRequest struct {
	Source string `json:"source" binding:"required"`
}

type validateResponse struct {
	Report *rules.ComplianceReport `json:"report"`
}

// Validate grades posted scanner source. Unparsable source is a normal
// 200 with the parse-failure report; only transport-level input problems
// (bad JSON, empty source, non-UTF-8) are 4xx.
func (h *Handlers) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, orchestrate.CodeInvalidInput, err.Error())
		return
	}

	report, err := h.service.validator.Validate(c.Request.Context(), []byte(req.Source))
	if err != nil {
		abortWith(c, http.StatusBadRequest, orchestrate.CodeParseError, err.Error())
		return
	}
	c.JSON(http.StatusOK, validateResponse{Report: report})
}

// ---------------------------------------------------------------------------
// POST /v1/studio/generate
// ---------------------------------------------------------------------------

type generateRequest struct {
	Spec     generate.ScannerSpec `json:"spec" binding:"required"`
	Validate bool                 `json:"validate"`
}

// Generate renders a scanner for a structured ScannerSpec.
func (h *Handlers) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, orchestrate.CodeInvalidInput, err.Error())
		return
	}

	out, err := h.service.generator.Generate(c.Request.Context(), req.Spec, req.Validate)
	if err != nil {
		var missing *generate.MissingParameterError
		if errors.As(err, &missing) {
			abortWith(c, http.StatusBadRequest, orchestrate.CodeMissingParameter, missing.Error())
			return
		}
		var invalid *generate.InvalidSpecError
		if errors.As(err, &invalid) {
			abortWith(c, http.StatusBadRequest, orchestrate.CodeInvalidInput, invalid.Error())
			return
		}
		h.logger.Error("generation failed", slog.String("error", err.Error()))
		abortWith(c, http.StatusInternalServerError, orchestrate.CodeInvalidInput, "generation failed")
		return
	}
	c.JSON(http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// POST /v1/studio/chat
// ---------------------------------------------------------------------------

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	*orchestrate.Exchange

	// ErrorCode is set when no tool ran because the intent was unknown.
	ErrorCode string `json:"error_code,omitempty"`
}

// Chat runs one orchestrated exchange. Unknown intent is a 200 carrying
// the clarification response and UNKNOWN_INTENT; the session stays valid.
func (h *Handlers) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, orchestrate.CodeInvalidInput, err.Error())
		return
	}

	exchange, err := h.service.orchestrator.Handle(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		h.logger.Error("chat failed",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()),
		)
		abortWith(c, http.StatusInternalServerError, orchestrate.CodeBackendUnavailable, "request could not be processed")
		return
	}
	trace.SpanFromContext(c.Request.Context()).SetAttributes(
		attribute.String("session_id", exchange.SessionID),
		attribute.Int("tool_results", len(exchange.Results)),
	)

	resp := chatResponse{Exchange: exchange}
	if len(exchange.Intents) > 0 && exchange.Intents[0].Intent == intent.IntentUnknown {
		resp.ErrorCode = orchestrate.CodeUnknownIntent
	}
	c.JSON(http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// GET /v1/studio/tools
// ---------------------------------------------------------------------------

// Tools lists the registered tool definitions.
func (h *Handlers) Tools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.service.orchestrator.Registry().Definitions()})
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// Health is liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready is readiness: components are constructed eagerly, so readiness
// follows liveness.
func (h *Handlers) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
