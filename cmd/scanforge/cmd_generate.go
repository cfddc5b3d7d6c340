// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scanforgeai/scanforge/services/studio/generate"
	"github.com/scanforgeai/scanforge/services/studio/validate"
)

var (
	generateSetup      string
	generateParams     []string
	generateIndicators []string
	generateOutput     string
	generateNoValidate bool
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate --setup <type>",
		Short: "Generate a V31-compliant scanner from a setup spec",
		Long: `Generate renders a scanner for the given setup type, overlaying any
--param overrides on the setup's documented defaults, and grades the
result unless --no-validate is set.

Examples:
  scanforge generate --setup D2 --param gap_threshold=2.5
  scanforge generate --setup FBO --param breakout_level=10.0 -o fbo.py`,
		Run: runGenerateCommand,
	}
	cmd.Flags().StringVar(&generateSetup, "setup", "", "setup type (D2, MDR, FBO, T30, BACKSIDE_B)")
	cmd.Flags().StringArrayVar(&generateParams, "param", nil, "parameter override as name=value (repeatable)")
	cmd.Flags().StringSliceVar(&generateIndicators, "indicators", nil, "indicator override (comma separated)")
	cmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write generated code to file instead of stdout")
	cmd.Flags().BoolVar(&generateNoValidate, "no-validate", false, "skip grading the generated scanner")
	_ = cmd.MarkFlagRequired("setup")
	return cmd
}

func runGenerateCommand(_ *cobra.Command, _ []string) {
	params, err := parseParamFlags(generateParams)
	if err != nil {
		fatalf("%v", err)
	}

	spec := generate.ScannerSpec{
		SetupType:  generate.SetupType(strings.ToUpper(generateSetup)),
		Indicators: generateIndicators,
		Parameters: params,
	}

	validator := validate.NewValidator()
	generator := generate.NewGenerator(generate.WithValidator(validator))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := generator.Generate(ctx, spec, !generateNoValidate)
	if err != nil {
		fatalf("%v", err)
	}

	if generateOutput != "" {
		if err := os.WriteFile(generateOutput, []byte(out.Code), 0o644); err != nil {
			fatalf("write %s: %v", generateOutput, err)
		}
		fmt.Printf("Wrote %s scanner to %s\n", out.Setup, generateOutput)
	}

	if jsonOutput {
		raw, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fatalf("encode output: %v", err)
		}
		fmt.Println(string(raw))
		return
	}

	if generateOutput == "" {
		fmt.Print(out.Code)
	}
	if out.Report != nil {
		fmt.Println()
		fmt.Print(renderReport(string(out.Setup), out.Report, useColor(os.Stdout.Fd())))
	}
}

func newSetupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setups",
		Short: "List the known setup types and their defaults",
		Run:   runSetupsCommand,
	}
}

func runSetupsCommand(_ *cobra.Command, _ []string) {
	generator := generate.NewGenerator()

	if jsonOutput {
		infos := make([]generate.SetupInfo, 0, len(generator.Setups()))
		for _, setup := range generator.Setups() {
			info, _ := generator.Describe(setup)
			infos = append(infos, info)
		}
		raw, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			fatalf("encode setups: %v", err)
		}
		fmt.Println(string(raw))
		return
	}

	for _, setup := range generator.Setups() {
		info, _ := generator.Describe(setup)
		fmt.Printf("%-11s %s\n", info.Setup, info.Description)
		if len(info.Required) > 0 {
			fmt.Printf("            required: %s\n", strings.Join(info.Required, ", "))
		}
	}
}

// parseParamFlags turns repeated name=value flags into spec parameters.
// Values parse as bool, then number, then string.
func parseParamFlags(flags []string) (map[string]any, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(flags))
	for _, raw := range flags {
		name, value, found := strings.Cut(raw, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("--param %q: expected name=value", raw)
		}
		switch {
		case value == "true" || value == "false":
			params[name] = value == "true"
		default:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				params[name] = f
			} else {
				params[name] = value
			}
		}
	}
	return params, nil
}
