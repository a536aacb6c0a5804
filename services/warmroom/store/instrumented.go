// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/AleutianAI/warmroom/services/warmroom/store"

// Operation results recorded on store metrics.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Instrumented records an operation counter and a latency histogram for
// every call to the wrapped Store.
//
// Metrics:
//   - warmroom.store.operations{op, result, backend}
//   - warmroom.store.duration{op, backend} in seconds
type Instrumented struct {
	next     Store
	backend  string
	ops      metric.Int64Counter
	duration metric.Float64Histogram
}

var _ Store = (*Instrumented)(nil)

// NewInstrumented wraps next with instruments created from meter.
func NewInstrumented(next Store, meter metric.Meter, backend string) (*Instrumented, error) {
	ops, err := meter.Int64Counter(
		"warmroom.store.operations",
		metric.WithDescription("Store operations by op and result"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create store operations counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"warmroom.store.duration",
		metric.WithDescription("Store operation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create store duration histogram: %w", err)
	}
	return &Instrumented{next: next, backend: backend, ops: ops, duration: duration}, nil
}

func (s *Instrumented) Put(ctx context.Context, userID string, state json.RawMessage) error {
	start := time.Now()
	err := s.next.Put(ctx, userID, state)
	result := resultOK
	if err != nil {
		result = resultError
	}
	s.record(ctx, "put", result, start)
	return err
}

func (s *Instrumented) Get(ctx context.Context, userID string) (json.RawMessage, bool, error) {
	start := time.Now()
	b, ok, err := s.next.Get(ctx, userID)
	result := resultOK
	switch {
	case err != nil:
		result = resultError
	case !ok:
		result = resultNotFound
	}
	s.record(ctx, "get", result, start)
	return b, ok, err
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}

func (s *Instrumented) record(ctx context.Context, op, result string, start time.Time) {
	opAttr := attribute.String("op", op)
	backendAttr := attribute.String("backend", s.backend)
	s.ops.Add(ctx, 1, metric.WithAttributes(opAttr, backendAttr, attribute.String("result", result)))
	s.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(opAttr, backendAttr))
}
