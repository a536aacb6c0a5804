// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP request handlers for the warmroom service.
//
// Every handler is a closure over its dependencies, returning a
// gin.HandlerFunc for routes.SetupRoutes to mount. Errors are answered with
// datatypes.ErrorResponse.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/warmroom/datatypes"
	"github.com/AleutianAI/warmroom/services/warmroom/observability"
	"github.com/AleutianAI/warmroom/services/warmroom/store"
	"github.com/AleutianAI/warmroom/services/warmroom/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// =============================================================================
// Content
// =============================================================================

// GetContent serves the live catalog's zones, keyed by zone id.
func GetContent(catalog *content.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.Snapshot().Zones)
	}
}

// GetLetters serves the live catalog's letter variants.
func GetLetters(catalog *content.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.Snapshot().Letters)
	}
}

// =============================================================================
// State
// =============================================================================

// SaveState handles POST /save.
//
// # Description
//
// Binds and validates {userId, state}, then replaces the stored blob for
// userId. The state is stored as received.
//
// # Outputs
//
//   - 200 {"success": true, "message": "Saved"}
//   - 400 malformed JSON, missing userId or missing state
//   - 413 body larger than the configured cap
//   - 500 store failure
func SaveState(states store.Store, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := telemetry.StartSpan(c.Request.Context(), "handlers.SaveState")
		defer span.End()
		logger := telemetry.LoggerWithTrace(ctx, slog.Default())

		var req datatypes.SaveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				m.RecordSave(observability.ResultInvalid, 0)
				c.JSON(http.StatusRequestEntityTooLarge, datatypes.ErrorResponse{Error: "request body too large"})
				return
			}
			m.RecordSave(observability.ResultInvalid, 0)
			telemetry.RecordError(span, err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid JSON body"})
			return
		}
		if err := req.Validate(); err != nil {
			m.RecordSave(observability.ResultInvalid, 0)
			telemetry.RecordError(span, err)
			logger.Info("rejected save request", "error", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Int("state.bytes", len(req.State)),
		)

		if err := states.Put(ctx, req.UserID, req.State); err != nil {
			m.RecordSave(observability.ResultError, 0)
			telemetry.RecordError(span, err)
			logger.Error("failed to save state", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "failed to save state"})
			return
		}

		m.RecordSave(observability.ResultSuccess, len(req.State))
		logger.Debug("state saved", "user_id", req.UserID, "bytes", len(req.State))
		c.JSON(http.StatusOK, datatypes.SaveResponse{Success: true, Message: "Saved"})
	}
}

// LoadState handles GET /load/:userId.
//
// An unknown userId, including one that could never have been saved, is
// answered with {"exists": false} and status 200.
func LoadState(states store.Store, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := telemetry.StartSpan(c.Request.Context(), "handlers.LoadState")
		defer span.End()

		userID := c.Param("userId")
		span.SetAttributes(attribute.String("user.id", userID))
		if !datatypes.ValidUserID(userID) {
			m.RecordLoad(observability.ResultNotFound)
			c.JSON(http.StatusOK, datatypes.LoadResponse{Exists: false})
			return
		}

		state, ok, err := states.Get(ctx, userID)
		if err != nil {
			m.RecordLoad(observability.ResultError)
			telemetry.RecordError(span, err)
			telemetry.LoggerWithTrace(ctx, slog.Default()).
				Error("failed to load state", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "failed to load state"})
			return
		}
		if !ok {
			m.RecordLoad(observability.ResultNotFound)
			c.JSON(http.StatusOK, datatypes.LoadResponse{Exists: false})
			return
		}
		m.RecordLoad(observability.ResultFound)
		c.JSON(http.StatusOK, datatypes.LoadResponse{Exists: true, State: state})
	}
}

// =============================================================================
// Health
// =============================================================================

// HealthCheck reports liveness and the number of zones being served.
func HealthCheck(catalog *content.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status: "ok",
			Zones:  len(catalog.Snapshot().Zones),
		})
	}
}
