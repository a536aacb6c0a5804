// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest("/save", "POST", 200, 3*time.Millisecond)
	m.RecordRequest("/save", "POST", 200, time.Millisecond)
	m.RecordRequest("/save", "POST", 400, time.Millisecond)
	m.RecordRequest("", "GET", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/save", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/save", "POST", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "GET", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDurationSeconds))
}

func TestRecordSaveAndLoad(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSave(ResultSuccess, 512)
	m.RecordSave(ResultInvalid, 0)
	m.RecordLoad(ResultFound)
	m.RecordLoad(ResultNotFound)
	m.RecordLoad(ResultNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues(ResultInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues(ResultFound)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues(ResultNotFound)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StateBytes))
}

func TestRecordContentReload(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordContentReload(nil, 5)
	m.RecordContentReload(errors.New("bad yaml"), 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContentReloadsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContentReloadsTotal.WithLabelValues(ResultError)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ContentZones), "a failed reload keeps the last zone count")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/health", "GET", 200, time.Millisecond)
		m.RecordSave(ResultSuccess, 10)
		m.RecordLoad(ResultFound)
		m.RecordContentReload(nil, 5)
	})
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
