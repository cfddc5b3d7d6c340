// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Tool Orchestration
// =============================================================================

var (
	// requestsTotal counts orchestrated requests.
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "orchestrate",
		Name:      "requests_total",
		Help:      "Total orchestrated requests",
	})

	// unknownIntentsTotal counts requests answered with the clarification
	// response.
	unknownIntentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "orchestrate",
		Name:      "unknown_intents_total",
		Help:      "Requests classified as UNKNOWN",
	})

	// toolRunsTotal counts tool invocations by tool and result status.
	// Labels: tool, status (SUCCESS, ERROR, PARTIAL)
	toolRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "orchestrate",
		Name:      "tool_runs_total",
		Help:      "Tool invocations by tool and result status",
	}, []string{"tool", "status"})
)
