// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate runs the V31 rule catalog over Python scanner source and
// grades the result into a ComplianceReport.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/scanforgeai/scanforge/services/studio/ast"
	"github.com/scanforgeai/scanforge/services/studio/rules"
)

var validatorTracer = otel.Tracer("studio.validate")

// Validator parses scanner source and evaluates the full rule catalog.
//
// Description:
//
//	Validation is deterministic and total: the same source bytes always
//	produce the same report, and no input — including unparsable garbage —
//	surfaces an error to the caller through the report path. Source that
//	the parser rejects yields a report with a single CRITICAL violation
//	and score 0.0. Only infrastructure faults (context cancellation,
//	oversized input) return a Go error.
//
// Thread Safety: Safe for concurrent use. The scoring policy is held
// behind an atomic pointer so SetPolicy (config hot reload) can swap it
// without blocking in-flight validations.
type Validator struct {
	parser  *ast.Parser
	catalog []rules.Rule
	policy  atomic.Pointer[rules.ScoringPolicy]
	logger  *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithScoringPolicy overrides the embedded default scoring policy.
func WithScoringPolicy(policy rules.ScoringPolicy) Option {
	return func(v *Validator) { v.policy.Store(&policy) }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// WithParser substitutes a configured parser (e.g. a larger source cap).
func WithParser(parser *ast.Parser) Option {
	return func(v *Validator) { v.parser = parser }
}

// NewValidator creates a Validator with the full catalog and the default
// scoring policy.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		parser:  ast.NewParser(),
		catalog: rules.Catalog(),
		logger:  slog.Default(),
	}
	defaultPolicy := rules.DefaultScoringPolicy()
	v.policy.Store(&defaultPolicy)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy returns the scoring policy the validator grades against.
func (v *Validator) Policy() rules.ScoringPolicy {
	return *v.policy.Load()
}

// SetPolicy swaps the scoring policy. In-flight validations keep the
// policy they started with; subsequent calls grade against the new one.
func (v *Validator) SetPolicy(policy rules.ScoringPolicy) {
	v.policy.Store(&policy)
}

// Validate parses source and grades it against the V31 Gold Standard.
//
// Inputs:
//   - ctx: Cancellation/deadline for the parse.
//   - source: Raw Python scanner source bytes.
//
// Outputs:
//   - *rules.ComplianceReport: Always non-nil when err is nil. Unparsable
//     source yields the parse-failure report, not an error.
//   - error: Non-nil only for infrastructure faults (cancellation,
//     oversized or non-UTF-8 input).
func (v *Validator) Validate(ctx context.Context, source []byte) (*rules.ComplianceReport, error) {
	ctx, span := validatorTracer.Start(ctx, "validate.Validate")
	defer span.End()
	start := time.Now()

	program, err := v.parser.Parse(ctx, source)
	if err != nil {
		var parseErr *ast.ParseError
		if errors.As(err, &parseErr) {
			report := v.parseFailureReport(parseErr)
			v.observe(report, "parse_error", start)
			span.SetAttributes(attribute.Bool("parse_error", true))
			return report, nil
		}
		validationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("validate: %w", err)
	}

	var violations []rules.Violation
	for _, rule := range v.catalog {
		violations = append(violations, rule.Evaluate(program)...)
	}
	report := rules.BuildReport(violations, v.Policy())

	outcome := "fail"
	if report.Pass {
		outcome = "pass"
	}
	v.observe(report, outcome, start)
	span.SetAttributes(
		attribute.Float64("score", report.Score),
		attribute.Bool("pass", report.Pass),
		attribute.Int("violations", len(report.Violations)),
	)
	v.logger.Debug("validation complete",
		slog.String("outcome", outcome),
		slog.Float64("score", report.Score),
		slog.Int("violations", len(report.Violations)),
	)
	return report, nil
}

// parseFailureReport is the short-circuit report for source the parser
// rejects: one CRITICAL violation, score pinned to 0.0.
func (v *Validator) parseFailureReport(parseErr *ast.ParseError) *rules.ComplianceReport {
	violation := rules.Violation{
		RuleID:   rules.RuleUnparsable,
		Severity: rules.SeverityCritical,
		Location: ast.Location{
			StartLine: parseErr.Line, EndLine: parseErr.Line,
			StartCol: parseErr.Col, EndCol: parseErr.Col,
		},
		Message:      fmt.Sprintf("source could not be parsed: %v", parseErr.Cause),
		SuggestedFix: "fix the syntax error before compliance checking",
	}
	return &rules.ComplianceReport{
		Violations: []rules.Violation{violation},
		Score:      0.0,
		Pass:       false,
		Threshold:  v.Policy().PassThreshold,
	}
}

// observe records the metrics for one validation run.
func (v *Validator) observe(report *rules.ComplianceReport, outcome string, start time.Time) {
	validationsTotal.WithLabelValues(outcome).Inc()
	validationDurationSeconds.Observe(time.Since(start).Seconds())
	complianceScore.Observe(report.Score)
	for _, violation := range report.Violations {
		violationsTotal.WithLabelValues(violation.RuleID).Inc()
	}
}
