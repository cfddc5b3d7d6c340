// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package studio

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all studio routes with the router group.
//
// Description:
//
//	Registers the /v1/studio/* endpoints. The group should already carry
//	any shared middleware (tracing, logging).
//
// Endpoints:
//
//	POST /v1/studio/validate - Grade scanner source against the V31 standard
//	POST /v1/studio/generate - Render a scanner from a ScannerSpec
//	POST /v1/studio/chat     - One orchestrated message exchange
//	GET  /v1/studio/tools    - List registered tool definitions
//	GET  /v1/studio/health   - Liveness
//	GET  /v1/studio/ready    - Readiness
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	studio := rg.Group("/studio")
	{
		studio.POST("/validate", handlers.Validate)
		studio.POST("/generate", handlers.Generate)
		studio.POST("/chat", handlers.Chat)
		studio.GET("/tools", handlers.Tools)
		studio.GET("/health", handlers.Health)
		studio.GET("/ready", handlers.Ready)
	}
}
