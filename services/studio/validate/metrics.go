// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Compliance Validation
// =============================================================================

var (
	// validationsTotal counts validation runs by outcome.
	// Labels: outcome (pass, fail, parse_error)
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "validate",
		Name:      "runs_total",
		Help:      "Total validation runs by outcome",
	}, []string{"outcome"})

	// validationDurationSeconds measures parse + rule evaluation time.
	validationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "studio",
		Subsystem: "validate",
		Name:      "duration_seconds",
		Help:      "Validation latency including parsing",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// violationsTotal counts violations emitted by rule id.
	// Labels: rule_id
	violationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "validate",
		Name:      "violations_total",
		Help:      "Total violations emitted by rule id",
	}, []string{"rule_id"})

	// complianceScore observes the distribution of report scores.
	complianceScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "studio",
		Subsystem: "validate",
		Name:      "score",
		Help:      "Distribution of compliance scores",
		Buckets:   []float64{0, 0.2, 0.4, 0.6, 0.8, 0.9, 0.97, 1},
	})
)
