// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command scanforge is the developer CLI for the scanner studio:
// validate scanner files locally, generate scanners from setup specs,
// and chat with a running studio server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Shared flag values.
var (
	jsonOutput bool
	serverURL  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scanforge",
		Short: "Scanner studio CLI",
		Long: `scanforge validates trading scanners against the V31 Gold Standard,
generates compliant scanners from setup specs, and talks to a running
studio server.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of styled output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "studio server base URL (default $SCANFORGE_SERVER_URL or http://localhost:8080)")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newSetupsCmd())
	rootCmd.AddCommand(newAskCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getServerBaseURL resolves the studio server address: flag, then env,
// then the default local address.
func getServerBaseURL() string {
	if serverURL != "" {
		return serverURL
	}
	if env := os.Getenv("SCANFORGE_SERVER_URL"); env != "" {
		return env
	}
	return "http://localhost:8080"
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
