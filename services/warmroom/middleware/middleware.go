// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides gin middleware for the warmroom service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestMetrics   (records route, status, latency)
//	   │
//	   ▼
//	RateLimit        (per client IP token bucket, 429 when empty)
//	   │
//	   ▼
//	MaxBodyBytes     (caps the request body, 413 when exceeded)
//	   │
//	   ▼
//	Handler
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/warmroom/services/warmroom/datatypes"
	"github.com/AleutianAI/warmroom/services/warmroom/observability"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// =============================================================================
// Metrics
// =============================================================================

// RequestMetrics records every request on m. The route label is the gin
// route template, so /load/user_a and /load/user_b share one series.
func RequestMetrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.RecordRequest(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// =============================================================================
// Body Size
// =============================================================================

// MaxBodyBytes caps request bodies at limit bytes. A body announced larger
// than the cap through Content-Length is refused with 413 before the
// handler runs; a body that grows past it fails the handler's read.
// A non-positive limit disables the cap.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				datatypes.ErrorResponse{Error: "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// =============================================================================
// Rate Limiting
// =============================================================================

// RateLimitConfig tunes RateLimit.
type RateLimitConfig struct {
	// RequestsPerSecond is the steady refill rate per client.
	RequestsPerSecond float64

	// Burst is the bucket size per client.
	Burst int

	// EntryTTL drops clients idle for longer than this. Default: 15m.
	EntryTTL time.Duration

	// CleanupInterval is how often idle clients are swept. Default: 5m.
	CleanupInterval time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter holds one token bucket per client key.
//
// # Thread Safety
//
// Safe for concurrent use.
type clientLimiter struct {
	mu              sync.Mutex
	limit           rate.Limit
	burst           int
	entries         map[string]*limiterEntry
	entryTTL        time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 15 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &clientLimiter{
		limit:           rate.Limit(cfg.RequestsPerSecond),
		burst:           cfg.Burst,
		entries:         make(map[string]*limiterEntry),
		entryTTL:        cfg.EntryTTL,
		cleanupInterval: cfg.CleanupInterval,
		lastCleanup:     time.Now(),
		now:             time.Now,
	}
}

func (l *clientLimiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= l.cleanupInterval {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > l.entryTTL {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RateLimit refuses requests with 429 once a client IP has spent its
// bucket. A config with a non-positive rate or burst disables limiting.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 || cfg.Burst <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return rateLimit(newClientLimiter(cfg))
}

func rateLimit(l *clientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "anonymous"
		}
		if !l.allow(key) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				datatypes.ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
