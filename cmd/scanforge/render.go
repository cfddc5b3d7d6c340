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
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/scanforgeai/scanforge/services/studio/rules"
)

var (
	colorPass     = lipgloss.Color("#9ece6a")
	colorFail     = lipgloss.Color("#f7768e")
	colorCritical = lipgloss.Color("#f7768e")
	colorMajor    = lipgloss.Color("#e0af68")
	colorMinor    = lipgloss.Color("#7aa2f7")
	colorMuted    = lipgloss.Color("#565f89")
)

// useColor reports whether styled output should be emitted. Piped output
// gets plain text so reports stay grep-able.
func useColor(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func severityStyle(sev rules.Severity) lipgloss.Style {
	switch sev {
	case rules.SeverityCritical:
		return lipgloss.NewStyle().Foreground(colorCritical).Bold(true)
	case rules.SeverityMajor:
		return lipgloss.NewStyle().Foreground(colorMajor)
	default:
		return lipgloss.NewStyle().Foreground(colorMinor)
	}
}

// renderReport formats a compliance report for a terminal. When styled is
// false every lipgloss style collapses to plain text.
func renderReport(name string, report *rules.ComplianceReport, styled bool) string {
	verdict := "PASS"
	verdictColor := colorPass
	if !report.Pass {
		verdict = "FAIL"
		verdictColor = colorFail
	}

	var b strings.Builder
	header := fmt.Sprintf("%s  %s  score %.2f (threshold %.2f)", verdict, name, report.Score, report.Threshold)
	if styled {
		headerStyle := lipgloss.NewStyle().
			Foreground(verdictColor).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
		b.WriteString(headerStyle.Render(header))
	} else {
		b.WriteString(header)
	}
	b.WriteString("\n")

	if len(report.Violations) == 0 {
		line := "No violations."
		if styled {
			line = lipgloss.NewStyle().Foreground(colorMuted).Render(line)
		}
		b.WriteString(line + "\n")
		return b.String()
	}

	for _, v := range report.Violations {
		tag := fmt.Sprintf("[%s %s]", v.RuleID, v.Severity)
		if styled {
			tag = severityStyle(v.Severity).Render(tag)
		}
		b.WriteString(fmt.Sprintf("%s line %d: %s\n", tag, v.Location.StartLine, v.Message))
		if v.SuggestedFix != "" {
			fix := "  fix: " + v.SuggestedFix
			if styled {
				fix = lipgloss.NewStyle().Foreground(colorMuted).Render(fix)
			}
			b.WriteString(fix + "\n")
		}
	}
	return b.String()
}
