// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/warmroom/handlers"
	"github.com/AleutianAI/warmroom/services/warmroom/observability"
	"github.com/AleutianAI/warmroom/services/warmroom/store"
	"github.com/gin-gonic/gin"
)

// SetupRoutes mounts the API on router. metricsHandler may be nil, in
// which case /metrics is not served.
func SetupRoutes(router *gin.Engine, catalog *content.Store, states store.Store,
	metrics *observability.Metrics, metricsHandler http.Handler) {

	router.GET("/health", handlers.HealthCheck(catalog))
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	router.GET("/content", handlers.GetContent(catalog))
	router.GET("/letters", handlers.GetLetters(catalog))
	router.POST("/save", handlers.SaveState(states, metrics))
	router.GET("/load/:userId", handlers.LoadState(states, metrics))
}
