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
	"embed"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	playground "github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/scanforgeai/scanforge/services/studio/validate"
)

var generatorTracer = otel.Tracer("studio.generate")

//go:embed setups.yaml
var setupsYAML []byte

//go:embed templates/*.py.tmpl
var templateFS embed.FS

// setupProfile is one setup's generation profile from setups.yaml.
type setupProfile struct {
	Description string         `yaml:"description"`
	Template    string         `yaml:"template"`
	Indicators  []string       `yaml:"indicators"`
	Defaults    map[string]any `yaml:"defaults"`

	// Required lists parameters with no default; the spec must supply them.
	Required []string `yaml:"required"`
}

type setupCatalog struct {
	Setups map[SetupType]setupProfile `yaml:"setups"`
}

// templateData is what a setup template renders against. The Python stage
// bodies are fixed text; the spec only reaches them through PARAMS and
// INDICATORS.
type templateData struct {
	Setup       string
	Description string
	Indicators  []string
	Params      []templateParam
}

type templateParam struct {
	Name    string
	Literal string
}

// Generator renders scanner source for a ScannerSpec.
//
// Thread Safety: Safe for concurrent use; profiles and templates are
// immutable after construction.
type Generator struct {
	profiles  map[SetupType]setupProfile
	templates *template.Template
	specCheck *playground.Validate
	validator *validate.Validator
	logger    *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithValidator enables in-line grading of generated code.
func WithValidator(v *validate.Validator) GeneratorOption {
	return func(g *Generator) { g.validator = v }
}

// WithGeneratorLogger sets the structured logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = logger }
}

// NewGenerator builds a Generator from the embedded profiles and templates.
// The embedded assets are part of the build; a parse failure is a
// programming error and panics.
func NewGenerator(opts ...GeneratorOption) *Generator {
	var catalog setupCatalog
	if err := yaml.Unmarshal(setupsYAML, &catalog); err != nil {
		panic(fmt.Sprintf("embedded setups.yaml invalid: %v", err))
	}
	templates, err := template.ParseFS(templateFS, "templates/*.py.tmpl")
	if err != nil {
		panic(fmt.Sprintf("embedded scanner templates invalid: %v", err))
	}

	g := &Generator{
		profiles:  catalog.Setups,
		templates: templates,
		specCheck: playground.New(playground.WithRequiredStructEnabled()),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Setups returns the known setup types in stable order.
func (g *Generator) Setups() []SetupType {
	out := make([]SetupType, 0, len(g.profiles))
	for setup := range g.profiles {
		out = append(out, setup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetupInfo is the public view of one setup's generation profile.
type SetupInfo struct {
	Setup       SetupType      `json:"setup_type"`
	Description string         `json:"description"`
	Indicators  []string       `json:"indicators"`
	Defaults    map[string]any `json:"defaults"`
	Required    []string       `json:"required,omitempty"`
}

// Describe returns the profile for one setup type.
func (g *Generator) Describe(setup SetupType) (SetupInfo, bool) {
	profile, ok := g.profiles[setup]
	if !ok {
		return SetupInfo{}, false
	}
	return SetupInfo{
		Setup:       setup,
		Description: profile.Description,
		Indicators:  append([]string(nil), profile.Indicators...),
		Defaults:    maps.Clone(profile.Defaults),
		Required:    append([]string(nil), profile.Required...),
	}, true
}

// Generate renders the scanner for spec and optionally grades it.
//
// Description:
//
//	Validates the spec, overlays spec.Parameters on the setup's defaults,
//	and renders the setup template. A required parameter with no default
//	that the spec does not supply returns *MissingParameterError and no
//	partial code. When withValidation is true, the rendered source is run
//	through the compliance validator and the report attached; a failing
//	report never suppresses the generated code.
//
// Outputs:
//   - *Output: The rendered scanner. Nil only when err is non-nil.
//   - error: *InvalidSpecError, *MissingParameterError, or a template
//     fault.
func (g *Generator) Generate(ctx context.Context, spec ScannerSpec, withValidation bool) (*Output, error) {
	ctx, span := generatorTracer.Start(ctx, "generate.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("setup_type", string(spec.SetupType)))
	start := time.Now()

	if err := g.specCheck.Struct(spec); err != nil {
		generationsTotal.WithLabelValues(string(spec.SetupType), "invalid_spec").Inc()
		return nil, &InvalidSpecError{Reason: "spec failed field validation", Cause: err}
	}
	profile, ok := g.profiles[spec.SetupType]
	if !ok {
		generationsTotal.WithLabelValues(string(spec.SetupType), "invalid_spec").Inc()
		return nil, &InvalidSpecError{Reason: fmt.Sprintf("unknown setup type %q", spec.SetupType)}
	}

	params, err := g.resolveParams(spec, profile)
	if err != nil {
		generationsTotal.WithLabelValues(string(spec.SetupType), "missing_parameter").Inc()
		return nil, err
	}

	indicators := spec.Indicators
	if len(indicators) == 0 {
		indicators = profile.Indicators
	}

	var code strings.Builder
	data := templateData{
		Setup:       string(spec.SetupType),
		Description: profile.Description,
		Indicators:  indicators,
		Params:      params,
	}
	if err := g.templates.ExecuteTemplate(&code, profile.Template, data); err != nil {
		generationsTotal.WithLabelValues(string(spec.SetupType), "template_error").Inc()
		return nil, fmt.Errorf("render %s template: %w", spec.SetupType, err)
	}

	out := &Output{Setup: spec.SetupType, Code: code.String()}
	if withValidation && g.validator != nil {
		report, err := g.validator.Validate(ctx, []byte(out.Code))
		if err != nil {
			// Grading is advisory here; the scanner is still returned.
			g.logger.Warn("post-generation validation failed",
				slog.String("setup_type", string(spec.SetupType)),
				slog.String("error", err.Error()),
			)
		} else {
			out.Report = report
			span.SetAttributes(attribute.Bool("report_pass", report.Pass))
		}
	}

	generationsTotal.WithLabelValues(string(spec.SetupType), "success").Inc()
	generationDurationSeconds.Observe(time.Since(start).Seconds())
	g.logger.Debug("scanner generated",
		slog.String("setup_type", string(spec.SetupType)),
		slog.Int("code_bytes", len(out.Code)),
		slog.Bool("graded", out.Report != nil),
	)
	return out, nil
}

// resolveParams overlays spec parameters on the setup defaults and checks
// the setup's required list. Output is sorted by name so rendered PARAMS
// blocks are deterministic.
func (g *Generator) resolveParams(spec ScannerSpec, profile setupProfile) ([]templateParam, error) {
	merged := make(map[string]any, len(profile.Defaults)+len(spec.Parameters))
	for name, value := range profile.Defaults {
		merged[name] = value
	}
	for name, value := range spec.Parameters {
		merged[name] = value
	}
	for _, name := range profile.Required {
		if _, ok := merged[name]; !ok {
			return nil, &MissingParameterError{Setup: spec.SetupType, Parameter: name}
		}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]templateParam, 0, len(names))
	for _, name := range names {
		params = append(params, templateParam{Name: name, Literal: pyLiteral(merged[name])})
	}
	return params, nil
}

// pyLiteral renders a parameter value as a Python literal.
func pyLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	default:
		return strconv.Quote(fmt.Sprintf("%v", x))
	}
}
