// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed scoring.yaml
var defaultScoringYAML []byte

// ScoringPolicy holds the per-severity score penalties and the pass
// threshold. Exposed as configuration rather than hard-coded literals; the
// only fixed invariant is CRITICAL > MAJOR > MINOR.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type ScoringPolicy struct {
	Penalties struct {
		Critical float64 `yaml:"critical"`
		Major    float64 `yaml:"major"`
		Minor    float64 `yaml:"minor"`
	} `yaml:"penalties"`

	// PassThreshold is the minimum score for a report to pass (a CRITICAL
	// violation fails the report regardless).
	PassThreshold float64 `yaml:"pass_threshold"`
}

// Penalty returns the score deduction for one violation of the given
// severity.
func (p ScoringPolicy) Penalty(sev Severity) float64 {
	switch sev {
	case SeverityCritical:
		return p.Penalties.Critical
	case SeverityMajor:
		return p.Penalties.Major
	default:
		return p.Penalties.Minor
	}
}

// Validate checks the policy is internally consistent.
func (p ScoringPolicy) Validate() error {
	if p.PassThreshold < 0 || p.PassThreshold > 1 {
		return fmt.Errorf("pass_threshold %v outside [0,1]", p.PassThreshold)
	}
	c, m, n := p.Penalties.Critical, p.Penalties.Major, p.Penalties.Minor
	if c <= 0 || m <= 0 || n <= 0 {
		return fmt.Errorf("penalties must be positive (critical=%v major=%v minor=%v)", c, m, n)
	}
	if !(c > m && m > n) {
		return fmt.Errorf("penalty ordering must be critical > major > minor (critical=%v major=%v minor=%v)", c, m, n)
	}
	return nil
}

// DefaultScoringPolicy returns the embedded default policy.
//
// The embedded file is part of the build; failure to parse it is a
// programming error and panics at init-time use rather than surfacing a
// recoverable error on every call site.
func DefaultScoringPolicy() ScoringPolicy {
	policy, err := ParseScoringPolicy(defaultScoringYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded scoring.yaml invalid: %v", err))
	}
	return policy
}

// ParseScoringPolicy parses and validates a scoring policy from yaml bytes.
func ParseScoringPolicy(raw []byte) (ScoringPolicy, error) {
	var policy ScoringPolicy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return ScoringPolicy{}, fmt.Errorf("parse scoring policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return ScoringPolicy{}, fmt.Errorf("invalid scoring policy: %w", err)
	}
	return policy, nil
}
