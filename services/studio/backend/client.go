// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend is the HTTP client for the execution service: scanner
// runs and numeric analysis jobs submitted as submit → poll → results.
// The service is a black box; only its job contract matters here.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

var backendTracer = otel.Tracer("studio.backend")

// Sentinel errors callers map onto the boundary error-code taxonomy.
// Nothing in this package retries; retry policy belongs to the caller.
var (
	// ErrUnavailable wraps connection failures and 5xx responses.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrTimeout wraps deadline expiry while submitting or polling.
	ErrTimeout = errors.New("backend timeout")

	// ErrJobFailed reports a job the backend accepted but could not finish.
	ErrJobFailed = errors.New("backend job failed")
)

// JobKind selects the backend workload.
type JobKind string

const (
	JobExecute  JobKind = "execute"
	JobAnalyze  JobKind = "analyze"
	JobOptimize JobKind = "optimize"
	JobBacktest JobKind = "backtest"
)

// Job is one unit of backend work.
type Job struct {
	Kind JobKind `json:"kind"`

	// Source is the scanner source for execute/backtest jobs.
	Source string `json:"source,omitempty"`

	// Universe limits the ticker set; empty means the backend default.
	Universe []string `json:"universe,omitempty"`

	// Params carries job-kind-specific knobs (lookback window, sweep
	// ranges, indicator ids).
	Params map[string]any `json:"params,omitempty"`
}

// jobState values the backend reports while polling.
const (
	statePending   = "PENDING"
	stateRunning   = "RUNNING"
	stateCompleted = "COMPLETED"
	stateFailed    = "FAILED"
)

type submitResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// Client talks to one execution service instance.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	jobTimeout   time.Duration
	logger       *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outbound request rate.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithPollInterval sets the status poll cadence.
func WithPollInterval(interval time.Duration) ClientOption {
	return func(c *Client) { c.pollInterval = interval }
}

// WithJobTimeout bounds how long Run waits for one job end-to-end.
// Non-positive values keep the default.
func WithJobTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.jobTimeout = timeout
		}
	}
}

// WithClientLogger sets the structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(10), 20),
		pollInterval: 500 * time.Millisecond,
		jobTimeout:   2 * time.Minute,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run submits a job and blocks until it completes, fails, or the deadline
// expires (the caller's ctx or the configured job timeout, whichever is
// sooner).
//
// Outputs:
//   - map[string]any: The job's result payload.
//   - error: ErrTimeout on deadline expiry, ErrUnavailable on connection
//     failure or 5xx, ErrJobFailed when the backend reports FAILED.
func (c *Client) Run(ctx context.Context, job Job) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()
	ctx, span := backendTracer.Start(ctx, "backend.Run")
	defer span.End()
	span.SetAttributes(attribute.String("job_kind", string(job.Kind)))

	jobID, err := c.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("job_id", jobID))

	if err := c.awaitCompletion(ctx, jobID); err != nil {
		return nil, err
	}
	return c.Results(ctx, jobID)
}

// Submit posts a job and returns its id.
func (c *Client) Submit(ctx context.Context, job Job) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", body, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("%w: submit returned no job id", ErrUnavailable)
	}
	c.logger.Debug("job submitted",
		slog.String("job_kind", string(job.Kind)),
		slog.String("job_id", resp.JobID),
	)
	return resp.JobID, nil
}

// Status fetches a job's current state.
func (c *Client) Status(ctx context.Context, jobID string) (string, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID, nil, &resp); err != nil {
		return "", err
	}
	if resp.State == stateFailed {
		return resp.State, fmt.Errorf("%w: %s", ErrJobFailed, resp.Message)
	}
	return resp.State, nil
}

// Results fetches a completed job's payload.
func (c *Client) Results(ctx context.Context, jobID string) (map[string]any, error) {
	var payload map[string]any
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID+"/results", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// awaitCompletion polls until COMPLETED, FAILED, or ctx expiry.
func (c *Client) awaitCompletion(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		state, err := c.Status(ctx, jobID)
		if err != nil {
			return err
		}
		switch state {
		case stateCompleted:
			return nil
		case statePending, stateRunning:
		default:
			return fmt.Errorf("%w: unknown job state %q", ErrUnavailable, state)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: polling job %s: %v", ErrTimeout, jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// do runs one rate-limited HTTP exchange and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s: %v", ErrTimeout, method, path, err)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend rejected %s %s: %d: %s", method, path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s response: %v", ErrUnavailable, method, path, err)
	}
	return nil
}
