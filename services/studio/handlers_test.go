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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforgeai/scanforge/services/studio/config"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Load("")
	require.NoError(t, err)

	service, err := NewService(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(service, nil))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestValidateEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := postJSON(t, router, "/v1/studio/validate", gin.H{
		"source": "\"\"\"doc\"\"\"\ndef stage_1(universe):\n    pass\n",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Report struct {
			Score      float64 `json:"score"`
			Pass       bool    `json:"pass"`
			Violations []struct {
				RuleID   string `json:"rule_id"`
				Severity string `json:"severity"`
			} `json:"violations"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Report.Pass)
	assert.Less(t, resp.Report.Score, 1.0)

	sawMissingStage := false
	for _, v := range resp.Report.Violations {
		if v.RuleID == "V31-002" {
			sawMissingStage = true
			assert.Equal(t, "MAJOR", v.Severity)
		}
	}
	assert.True(t, sawMissingStage, "missing-stage violations expected: %+v", resp.Report.Violations)
}

func TestValidateEndpointRejectsEmptyBody(t *testing.T) {
	router := newTestRouter(t)
	rec := postJSON(t, router, "/v1/studio/validate", gin.H{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_INPUT", resp.ErrorCode)
}

func TestGenerateEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := postJSON(t, router, "/v1/studio/generate", gin.H{
		"spec": gin.H{
			"setup_type": "D2",
			"parameters": gin.H{"gap_threshold": 2.5},
		},
		"validate": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Setup  string `json:"setup_type"`
		Code   string `json:"code"`
		Report *struct {
			Pass bool `json:"pass"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "D2", resp.Setup)
	assert.NotEmpty(t, resp.Code)
	require.NotNil(t, resp.Report)
	assert.True(t, resp.Report.Pass)
}

func TestGenerateEndpointMissingParameter(t *testing.T) {
	router := newTestRouter(t)
	rec := postJSON(t, router, "/v1/studio/generate", gin.H{
		"spec": gin.H{"setup_type": "FBO"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MISSING_PARAMETER", resp.ErrorCode)
	assert.Contains(t, resp.ErrorMessage, "breakout_level")
}

func TestChatEndpointGenerateAndValidate(t *testing.T) {
	router := newTestRouter(t)
	rec := postJSON(t, router, "/v1/studio/chat", gin.H{
		"message": "generate a D2 scanner and validate it",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SessionID string `json:"session_id"`
		Intents   []struct {
			Intent  string `json:"intent"`
			Chained bool   `json:"chained"`
		} `json:"intents_detected"`
		Results []struct {
			Tool   string `json:"tool"`
			Status string `json:"status"`
		} `json:"tool_results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "generate_scanner", resp.Results[0].Tool)
	assert.Equal(t, "SUCCESS", resp.Results[0].Status)
	assert.Equal(t, "validate_scanner", resp.Results[1].Tool)
	assert.Equal(t, "SUCCESS", resp.Results[1].Status)
	require.GreaterOrEqual(t, len(resp.Intents), 2)
	assert.True(t, resp.Intents[1].Chained)
}

func TestChatEndpointUnknownIntent(t *testing.T) {
	router := newTestRouter(t)
	rec := postJSON(t, router, "/v1/studio/chat", gin.H{"message": "   "})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ErrorCode string `json:"error_code"`
		Results   []any  `json:"tool_results"`
		Response  string `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UNKNOWN_INTENT", resp.ErrorCode)
	assert.Empty(t, resp.Results)
	assert.NotEmpty(t, resp.Response)
}

func TestToolsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/studio/tools", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tools, 7)

	names := map[string]bool{}
	for _, tool := range resp.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"generate_scanner", "validate_scanner", "plan_trade", "backtest_scanner"} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/v1/studio/health", "/v1/studio/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
