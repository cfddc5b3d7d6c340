// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scanforgeai/scanforge/services/studio/rules"
	"github.com/scanforgeai/scanforge/services/studio/validate"
)

func newGradingGenerator() *Generator {
	return NewGenerator(WithValidator(validate.NewValidator()))
}

func TestGenerateD2WithValidation(t *testing.T) {
	g := newGradingGenerator()
	out, err := g.Generate(context.Background(), ScannerSpec{
		SetupType:  SetupD2,
		Parameters: map[string]any{"gap_threshold": 2.5},
	}, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Code == "" {
		t.Fatal("generated code is empty")
	}
	if !strings.Contains(out.Code, `"gap_threshold": 2.5`) {
		t.Error("spec parameter did not override the default")
	}
	if !strings.Contains(out.Code, `"min_rvol": 2`) {
		t.Error("unset parameter did not fall back to the setup default")
	}
	if out.Report == nil {
		t.Fatal("report not attached")
	}
	if !out.Report.Pass {
		t.Errorf("generated scanner must pass validation, got %+v", out.Report.Violations)
	}
}

// Every setup template must render source satisfying the full catalog.
func TestGeneratedScannersAreCompliant(t *testing.T) {
	g := newGradingGenerator()
	for _, setup := range g.Setups() {
		t.Run(string(setup), func(t *testing.T) {
			spec := ScannerSpec{SetupType: setup}
			if setup == SetupFBO {
				spec.Parameters = map[string]any{"breakout_level": 10.0}
			}
			out, err := g.Generate(context.Background(), spec, true)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if out.Report == nil {
				t.Fatal("report not attached")
			}
			if out.Report.HasSeverity(rules.SeverityCritical) || out.Report.HasSeverity(rules.SeverityMajor) {
				t.Errorf("generated scanner has structural violations: %+v", out.Report.Violations)
			}
		})
	}
}

func TestGenerateMissingRequiredParameter(t *testing.T) {
	g := NewGenerator()
	out, err := g.Generate(context.Background(), ScannerSpec{SetupType: SetupFBO}, false)
	if out != nil {
		t.Fatal("no partial code may be returned on a missing required parameter")
	}
	var missing *MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingParameterError", err)
	}
	if missing.Parameter != "breakout_level" {
		t.Errorf("parameter = %q, want breakout_level", missing.Parameter)
	}
}

func TestGenerateRejectsUnknownSetup(t *testing.T) {
	g := NewGenerator()
	_, err := g.Generate(context.Background(), ScannerSpec{SetupType: "SQUEEZE"}, false)
	var invalid *InvalidSpecError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *InvalidSpecError", err)
	}
}

func TestGenerateRejectsUnknownIndicator(t *testing.T) {
	g := NewGenerator()
	_, err := g.Generate(context.Background(), ScannerSpec{
		SetupType:  SetupD2,
		Indicators: []string{"astrology"},
	}, false)
	var invalid *InvalidSpecError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *InvalidSpecError", err)
	}
}

func TestGenerateIndicatorOverride(t *testing.T) {
	g := NewGenerator()
	out, err := g.Generate(context.Background(), ScannerSpec{
		SetupType:  SetupD2,
		Indicators: []string{"gap_pct", "rvol", "macd"},
	}, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out.Code, `INDICATORS = ["gap_pct", "rvol", "macd"]`) {
		t.Errorf("indicator override not rendered:\n%s", out.Code)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g := NewGenerator()
	spec := ScannerSpec{
		SetupType:  SetupMDR,
		Parameters: map[string]any{"run_days": 4, "min_range_pct": 20.0},
	}
	first, err := g.Generate(context.Background(), spec, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := g.Generate(context.Background(), spec, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first.Code != second.Code {
		t.Error("identical specs must render identical code")
	}
}
