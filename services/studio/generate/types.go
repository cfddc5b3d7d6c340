// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generate renders V31-compliant Python scanners from ScannerSpecs.
// Each setup type has its own template and a documented set of parameter
// defaults; a spec only needs to supply what it wants to override.
package generate

import (
	"fmt"

	"github.com/scanforgeai/scanforge/services/studio/rules"
)

// SetupType identifies a scanner template. The set is closed.
type SetupType string

const (
	SetupD2        SetupType = "D2"         // day-two gap continuation
	SetupMDR       SetupType = "MDR"        // multi-day runner
	SetupFBO       SetupType = "FBO"        // failed breakout fade
	SetupT30       SetupType = "T30"        // opening 30-minute trend
	SetupBacksideB SetupType = "BACKSIDE_B" // backside continuation short
)

// ScannerSpec is the generator input.
//
// Parameters is an open mapping overlaid on the setup's defaults;
// Indicators, when empty, falls back to the setup's default indicator set.
type ScannerSpec struct {
	SetupType  SetupType      `json:"setup_type" validate:"required,oneof=D2 MDR FBO T30 BACKSIDE_B"`
	Indicators []string       `json:"indicators,omitempty" validate:"omitempty,dive,oneof=gap_pct rvol vwap atr ema_9 rsi_14 opening_range macd"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// SourceDescription is the free-text request the spec was derived from,
	// kept for audit only; it does not influence generation.
	SourceDescription string `json:"source_description,omitempty" validate:"max=2000"`
}

// Output is a generated scanner, optionally graded.
type Output struct {
	Setup SetupType `json:"setup_type"`
	Code  string    `json:"code"`

	// Report is attached when generation ran with validation. A failing
	// report never suppresses the code; callers get both.
	Report *rules.ComplianceReport `json:"report,omitempty"`
}

// MissingParameterError reports a required parameter that has no
// per-setup default and was not supplied.
type MissingParameterError struct {
	Setup     SetupType
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("setup %s requires parameter %q and no default exists", e.Setup, e.Parameter)
}

// InvalidSpecError reports a ScannerSpec that fails input validation
// before any template work happens.
type InvalidSpecError struct {
	Reason string
	Cause  error
}

func (e *InvalidSpecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid scanner spec: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid scanner spec: %s", e.Reason)
}

func (e *InvalidSpecError) Unwrap() error { return e.Cause }
