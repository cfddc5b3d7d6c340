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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	askSession     string
	askInteractive bool
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a message to a running studio server",
		Long: `Ask sends one free-text message to the studio chat endpoint and prints
the tool results. Use --interactive for a session loop; the session id
is reused across turns so generated code stays available for follow-up
requests like "validate it".`,
		Run: runAskCommand,
	}
	cmd.Flags().StringVar(&askSession, "session", "", "resume an existing session id")
	cmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "read messages from stdin until EOF")
	return cmd
}

// chatTurnRequest mirrors the server's chat request body.
type chatTurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// chatTurnResponse carries the fields the CLI presents.
type chatTurnResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
	ErrorCode string `json:"error_code,omitempty"`
	Intents   []struct {
		Intent  string `json:"intent"`
		Chained bool   `json:"chained"`
	} `json:"intents_detected"`
	Results []struct {
		Tool         string         `json:"tool"`
		Status       string         `json:"status"`
		Payload      map[string]any `json:"payload,omitempty"`
		ErrorCode    string         `json:"error_code,omitempty"`
		ErrorMessage string         `json:"error_message,omitempty"`
	} `json:"tool_results"`
}

func runAskCommand(_ *cobra.Command, args []string) {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" && !askInteractive {
		fatalf("usage: scanforge ask <message>  (or --interactive)")
	}

	sessionID := askSession
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if message == "" {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			message = strings.TrimSpace(scanner.Text())
			if message == "" {
				continue
			}
			if message == "exit" || message == "quit" || message == "q" {
				break
			}
		}

		resp, err := sendChatTurn(sessionID, message)
		if err != nil {
			fatalf("%v", err)
		}
		sessionID = resp.SessionID
		printChatTurn(resp)

		if !askInteractive {
			return
		}
		message = ""
	}
}

func sendChatTurn(sessionID, message string) (*chatTurnResponse, error) {
	payload, err := json.Marshal(chatTurnRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	chatURL := fmt.Sprintf("%s/v1/studio/chat", getServerBaseURL())
	client := &http.Client{Timeout: 3 * time.Minute}
	resp, err := client.Post(chatURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("studio server unavailable at %s: %w", chatURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("studio server error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var turn chatTurnResponse
	if err := json.Unmarshal(body, &turn); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &turn, nil
}

func printChatTurn(turn *chatTurnResponse) {
	if jsonOutput {
		raw, err := json.MarshalIndent(turn, "", "  ")
		if err != nil {
			fatalf("encode response: %v", err)
		}
		fmt.Println(string(raw))
		return
	}

	for _, result := range turn.Results {
		fmt.Printf("[%s] %s\n", result.Tool, result.Status)
		if result.ErrorMessage != "" {
			fmt.Printf("  %s: %s\n", result.ErrorCode, result.ErrorMessage)
		}
		// Generated code is usually the payload worth showing in full.
		if code, ok := result.Payload["code"].(string); ok && code != "" {
			fmt.Println(code)
		}
	}
	fmt.Printf("\n%s\n", turn.Response)
	fmt.Printf("[session: %s]\n", turn.SessionID)
}
