// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent maps free-text requests onto the fixed studio intent set
// by keyword-set membership. Classification is deterministic and cheap:
// every keyword set is evaluated against every message, so one message can
// legitimately carry several intents.
package intent

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// Intent is one member of the fixed studio intent set.
type Intent string

const (
	IntentGenerateScanner Intent = "GENERATE_SCANNER"
	IntentValidate        Intent = "VALIDATE"
	IntentPlan            Intent = "PLAN"
	IntentAnalyze         Intent = "ANALYZE"
	IntentOptimize        Intent = "OPTIMIZE"
	IntentBacktest        Intent = "BACKTEST"
	IntentExecute         Intent = "EXECUTE"
	IntentUnknown         Intent = "UNKNOWN"
)

// Detection is one classified intent with its evidence.
type Detection struct {
	Intent Intent `json:"intent"`

	// Chained marks an intent that should consume the previous step's
	// output instead of running independently (VALIDATE after
	// GENERATE_SCANNER grades the generated code, not the raw message).
	Chained bool `json:"chained,omitempty"`

	// Matched lists the keywords that fired, for explainability.
	Matched []string `json:"matched,omitempty"`
}

//go:embed intents.yaml
var intentsYAML []byte

type intentConfig struct {
	Precedence []Intent `yaml:"precedence"`
	Intents    map[Intent]struct {
		Keywords []string `yaml:"keywords"`
	} `yaml:"intents"`
}

// Classifier evaluates the keyword sets.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Classifier struct {
	precedence []Intent
	keywords   map[Intent][]string
	logger     *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithClassifierLogger sets the structured logger.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = logger }
}

// NewClassifier loads the embedded keyword sets. The embedded file is part
// of the build; failure to parse it panics.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	var cfg intentConfig
	if err := yaml.Unmarshal(intentsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded intents.yaml invalid: %v", err))
	}
	c := &Classifier{
		precedence: cfg.Precedence,
		keywords:   make(map[Intent][]string, len(cfg.Intents)),
		logger:     slog.Default(),
	}
	for name, set := range cfg.Intents {
		lowered := make([]string, len(set.Keywords))
		for i, kw := range set.Keywords {
			lowered[i] = strings.ToLower(kw)
		}
		c.keywords[name] = lowered
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify maps a message onto an ordered intent sequence.
//
// Description:
//
//	Every keyword set is evaluated (not first-match), matches are ordered
//	by the fixed precedence list, and a GENERATE_SCANNER + VALIDATE
//	co-match marks the VALIDATE detection as chained. Empty or
//	whitespace-only input, and input matching no set, both yield exactly
//	[UNKNOWN] — never an empty sequence.
func (c *Classifier) Classify(message string) []Detection {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return []Detection{{Intent: IntentUnknown}}
	}
	words := tokenize(normalized)

	var detections []Detection
	for _, candidate := range c.precedence {
		matched := matchKeywords(normalized, words, c.keywords[candidate])
		if len(matched) == 0 {
			continue
		}
		detections = append(detections, Detection{Intent: candidate, Matched: matched})
	}
	if len(detections) == 0 {
		return []Detection{{Intent: IntentUnknown}}
	}

	// Generation naturally precedes validation; the precedence list
	// already emits GENERATE_SCANNER first, so a co-match only needs the
	// chaining flag on VALIDATE.
	generating := false
	for i := range detections {
		switch detections[i].Intent {
		case IntentGenerateScanner:
			generating = true
		case IntentValidate:
			if generating {
				detections[i].Chained = true
			}
		}
	}

	c.logger.Debug("intents classified",
		slog.Int("count", len(detections)),
		slog.String("first", string(detections[0].Intent)),
	)
	return detections
}

// matchKeywords returns the keywords that fire for a message. Single-word
// keywords must match a whole token; phrases match as substrings.
func matchKeywords(normalized string, words map[string]bool, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.ContainsRune(kw, ' ') {
			if strings.Contains(normalized, kw) {
				matched = append(matched, kw)
			}
			continue
		}
		if words[kw] {
			matched = append(matched, kw)
		}
	}
	return matched
}

// tokenize splits a normalized message into a word set, stripping the
// punctuation that typically clings to keywords ("validate it!").
func tokenize(normalized string) map[string]bool {
	words := map[string]bool{}
	for _, field := range strings.Fields(normalized) {
		word := strings.Trim(field, ".,;:!?()[]{}\"'`")
		if word != "" {
			words[word] = true
		}
	}
	return words
}
