// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"testing"
)

func intents(detections []Detection) []Intent {
	out := make([]Intent, len(detections))
	for i, d := range detections {
		out[i] = d.Intent
	}
	return out
}

func TestClassifySingleIntents(t *testing.T) {
	c := NewClassifier()
	cases := []struct {
		message string
		want    Intent
	}{
		{"generate a D2 scanner for gappers", IntentGenerateScanner},
		{"validate this scanner against the gold standard", IntentValidate},
		{"give me a trading plan for the open", IntentPlan},
		{"analyze the price action on AAPL", IntentAnalyze},
		{"tune the rvol threshold", IntentOptimize},
		{"backtest it over 2024", IntentBacktest},
		{"execute the scan", IntentExecute},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			got := c.Classify(tc.message)
			if len(got) == 0 || got[0].Intent != tc.want {
				t.Errorf("Classify(%q) = %v, want first %s", tc.message, intents(got), tc.want)
			}
			if len(got[0].Matched) == 0 && tc.want != IntentUnknown {
				t.Errorf("Classify(%q) has no matched keywords", tc.message)
			}
		})
	}
}

func TestClassifyGenerateThenValidate(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("generate a D2 scanner and validate it")
	if len(got) < 2 {
		t.Fatalf("Classify = %v, want at least 2 intents", intents(got))
	}
	if got[0].Intent != IntentGenerateScanner || got[1].Intent != IntentValidate {
		t.Fatalf("order = %v, want [GENERATE_SCANNER VALIDATE ...]", intents(got))
	}
	if got[0].Chained {
		t.Error("GENERATE_SCANNER must not be chained")
	}
	if !got[1].Chained {
		t.Error("VALIDATE after GENERATE_SCANNER must be chained")
	}
}

func TestClassifyValidateAloneNotChained(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("validate my scanner please")
	if len(got) != 1 || got[0].Intent != IntentValidate {
		t.Fatalf("Classify = %v, want [VALIDATE]", intents(got))
	}
	if got[0].Chained {
		t.Error("standalone VALIDATE must not be chained")
	}
}

func TestClassifyEmptyAndWhitespace(t *testing.T) {
	c := NewClassifier()
	for _, message := range []string{"", "   ", "\n\t"} {
		got := c.Classify(message)
		if len(got) != 1 || got[0].Intent != IntentUnknown {
			t.Errorf("Classify(%q) = %v, want exactly [UNKNOWN]", message, intents(got))
		}
	}
}

func TestClassifyNoMatchIsUnknown(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("what's for lunch")
	if len(got) != 1 || got[0].Intent != IntentUnknown {
		t.Errorf("Classify = %v, want exactly [UNKNOWN]", intents(got))
	}
}

func TestClassifyWholeWordMatching(t *testing.T) {
	c := NewClassifier()
	// "prune" contains "run" but is not the EXECUTE keyword.
	got := c.Classify("prune the watchlist")
	if len(got) != 1 || got[0].Intent != IntentUnknown {
		t.Errorf("Classify = %v, want [UNKNOWN] (no substring hit on 'run')", intents(got))
	}
}

func TestClassifyPunctuation(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("Validate it!")
	if len(got) != 1 || got[0].Intent != IntentValidate {
		t.Errorf("Classify = %v, want [VALIDATE]", intents(got))
	}
}
