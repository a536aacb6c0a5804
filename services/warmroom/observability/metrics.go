// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides the prometheus metrics of the warmroom
// service.
//
// # Description
//
// Metrics cover HTTP traffic, saves, loads and content reloads. They are
// registered on a caller-supplied registry so tests and multiple service
// instances never collide on the default registry.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "warmroom"

const (
	httpSubsystem    = "http"
	stateSubsystem   = "state"
	contentSubsystem = "content"
)

// Result labels.
const (
	ResultSuccess  = "success"
	ResultInvalid  = "invalid"
	ResultError    = "error"
	ResultFound    = "found"
	ResultNotFound = "not_found"
)

// Metrics holds every prometheus collector of the service.
//
// # Fields
//
//   - RequestsTotal: HTTP requests by route, method and status
//   - RequestDurationSeconds: HTTP latency by route
//   - SavesTotal: POST /save outcomes
//   - LoadsTotal: GET /load outcomes
//   - StateBytes: size of saved state blobs
//   - ContentReloadsTotal: content hot-reload outcomes
//   - ContentZones: zones in the live catalog
type Metrics struct {
	// Labels: route, method, status
	RequestsTotal *prometheus.CounterVec

	// Labels: route
	RequestDurationSeconds *prometheus.HistogramVec

	// Labels: result (success, invalid, error)
	SavesTotal *prometheus.CounterVec

	// Labels: result (found, not_found, error)
	LoadsTotal *prometheus.CounterVec

	StateBytes prometheus.Histogram

	// Labels: result (success, error)
	ContentReloadsTotal *prometheus.CounterVec

	ContentZones prometheus.Gauge
}

// NewMetrics creates and registers every collector on reg.
//
// # Inputs
//
//   - reg: Registry to register on. Must not be nil.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate
//     registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		RequestDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"route"},
		),

		SavesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: stateSubsystem,
				Name:      "saves_total",
				Help:      "State saves by result",
			},
			[]string{"result"},
		),

		LoadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: stateSubsystem,
				Name:      "loads_total",
				Help:      "State loads by result",
			},
			[]string{"result"},
		),

		StateBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: stateSubsystem,
				Name:      "bytes",
				Help:      "Size of saved state blobs in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 10),
			},
		),

		ContentReloadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: contentSubsystem,
				Name:      "reloads_total",
				Help:      "Content hot reloads by result",
			},
			[]string{"result"},
		),

		ContentZones: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: contentSubsystem,
				Name:      "zones",
				Help:      "Zones in the live content catalog",
			},
		),
	}
}

// =============================================================================
// Recording Helpers
// =============================================================================

// RecordRequest records one finished HTTP request. A nil receiver is a
// no-op so handlers can run without metrics.
func (m *Metrics) RecordRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordSave records a save outcome and, on success, the blob size.
func (m *Metrics) RecordSave(result string, size int) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.StateBytes.Observe(float64(size))
	}
}

// RecordLoad records a load outcome.
func (m *Metrics) RecordLoad(result string) {
	if m == nil {
		return
	}
	m.LoadsTotal.WithLabelValues(result).Inc()
}

// RecordContentReload records a hot reload and the zone count now live.
func (m *Metrics) RecordContentReload(err error, zones int) {
	if m == nil {
		return
	}
	if err != nil {
		m.ContentReloadsTotal.WithLabelValues(ResultError).Inc()
		return
	}
	m.ContentReloadsTotal.WithLabelValues(ResultSuccess).Inc()
	m.ContentZones.Set(float64(zones))
}
