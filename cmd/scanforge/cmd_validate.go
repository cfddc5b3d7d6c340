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
	"time"

	"github.com/spf13/cobra"

	"github.com/scanforgeai/scanforge/services/studio/rules"
	"github.com/scanforgeai/scanforge/services/studio/validate"
)

var validateScoringPath string

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scanner.py> [more.py ...]",
		Short: "Grade scanner files against the V31 Gold Standard",
		Long: `Validate parses each scanner file and grades it against the V31 rule
catalog. Validation runs entirely in-process; no server is needed.

Exit status is 0 when every file passes and 1 otherwise.`,
		Args: cobra.MinimumNArgs(1),
		Run:  runValidateCommand,
	}
	cmd.Flags().StringVar(&validateScoringPath, "scoring", "", "override scoring policy yaml")
	return cmd
}

func runValidateCommand(_ *cobra.Command, args []string) {
	opts := []validate.Option{}
	if validateScoringPath != "" {
		raw, err := os.ReadFile(validateScoringPath)
		if err != nil {
			fatalf("--scoring: %v", err)
		}
		policy, err := rules.ParseScoringPolicy(raw)
		if err != nil {
			fatalf("--scoring: %v", err)
		}
		opts = append(opts, validate.WithScoringPolicy(policy))
	}
	validator := validate.NewValidator(opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	styled := useColor(os.Stdout.Fd())
	allPassed := true
	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			fatalf("read %s: %v", path, err)
		}
		report, err := validator.Validate(ctx, source)
		if err != nil {
			fatalf("validate %s: %v", path, err)
		}
		if !report.Pass {
			allPassed = false
		}

		if jsonOutput {
			out, err := json.MarshalIndent(map[string]any{"file": path, "report": report}, "", "  ")
			if err != nil {
				fatalf("encode report: %v", err)
			}
			fmt.Println(string(out))
			continue
		}
		fmt.Print(renderReport(path, report, styled))
	}

	if !allPassed {
		os.Exit(1)
	}
}
