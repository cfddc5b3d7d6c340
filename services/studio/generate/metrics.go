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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Scanner Generation
// =============================================================================

var (
	// generationsTotal counts generation attempts by setup type and status.
	// Labels: setup_type, status (success, invalid_spec, missing_parameter, template_error)
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "generate",
		Name:      "runs_total",
		Help:      "Total generation attempts by setup type and status",
	}, []string{"setup_type", "status"})

	// generationDurationSeconds measures render + optional grading time.
	generationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "studio",
		Subsystem: "generate",
		Name:      "duration_seconds",
		Help:      "Generation latency including optional validation",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)
