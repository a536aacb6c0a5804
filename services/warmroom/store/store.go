// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store holds the service's per-user state blobs.
//
// # Description
//
// A Store maps a userId to the last state blob saved for it. Every Put
// replaces the previous blob; there is no merge and no versioning. Blobs
// are opaque JSON to the store.
//
// Backends:
//   - FileStore: a single JSON document {"users": {...}} (default)
//   - BadgerStore: one badger key per user, on disk or in memory
//
// Open layers an LRU read cache and otel instrumentation over the backend.
//
// # Thread Safety
//
// Every Store in this package is safe for concurrent use.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrEmptyUserID is returned by Put and Get for an empty user id.
	ErrEmptyUserID = errors.New("store: empty user id")

	// ErrEmptyState is returned by Put for an empty or null blob.
	ErrEmptyState = errors.New("store: empty state")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")

	// ErrUnknownBackend is returned by Open for an unrecognised backend.
	ErrUnknownBackend = errors.New("store: unknown backend")
)

// =============================================================================
// Interface
// =============================================================================

// Store is the persistence backend of the service.
type Store interface {
	// Put replaces the blob stored for userID.
	Put(ctx context.Context, userID string, state json.RawMessage) error

	// Get returns the blob stored for userID. ok is false when the user
	// has never been saved; that is not an error.
	Get(ctx context.Context, userID string) (state json.RawMessage, ok bool, err error)

	// Close releases the backend. Further calls return ErrClosed.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Backend names accepted by Config.Backend.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Config selects and tunes the backend.
type Config struct {
	// Backend is "file", "badger" or "memory". Default: "file".
	Backend string

	// Path is the JSON file for "file" or the directory for "badger".
	// Default: ./database/db.json, or ./database/badger for badger.
	Path string

	// CacheSize is the LRU capacity in users. Zero disables the cache.
	CacheSize int

	// Instrument wraps the store with otel metrics from the global meter
	// provider.
	Instrument bool

	// Logger receives backend diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	// GCInterval is the badger value-log GC period. Zero disables it.
	GCInterval time.Duration
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Backend == "" {
		cfg.Backend = BackendFile
	}
	if cfg.Path == "" {
		switch cfg.Backend {
		case BackendBadger:
			cfg.Path = filepath.Join("database", "badger")
		case BackendFile:
			cfg.Path = filepath.Join("database", "db.json")
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Open builds the configured Store.
//
// # Description
//
// Opens the backend, then wraps it with a CachedStore when CacheSize is
// positive and with an Instrumented store when Instrument is set.
//
// # Outputs
//
//   - Store: ready for use. The caller must Close it.
//   - error: ErrUnknownBackend, or the backend's open failure.
func Open(cfg Config) (Store, error) {
	cfg = applyConfigDefaults(cfg)
	logger := cfg.Logger.With("component", "store", "backend", cfg.Backend)

	var (
		st  Store
		err error
	)
	switch cfg.Backend {
	case BackendFile:
		st, err = OpenFileStore(cfg.Path)
	case BackendBadger:
		st, err = OpenBadgerStore(BadgerConfig{
			Path:           cfg.Path,
			SyncWrites:     true,
			Logger:         logger,
			GCInterval:     cfg.GCInterval,
			GCDiscardRatio: 0.5,
		})
	case BackendMemory:
		st, err = OpenBadgerStore(BadgerConfig{InMemory: true, Logger: logger})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCachedStore(st, cfg.CacheSize)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st = cached
	}

	if cfg.Instrument {
		inst, err := NewInstrumented(st, otel.Meter(meterName), cfg.Backend)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st = inst
	}

	logger.Info("store opened", "path", cfg.Path, "cache_size", cfg.CacheSize)
	return st, nil
}

// validPut checks the arguments shared by every Put.
func validPut(userID string, state json.RawMessage) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if isEmptyBlob(state) {
		return ErrEmptyState
	}
	if !json.Valid(state) {
		return fmt.Errorf("%w: not valid JSON", ErrEmptyState)
	}
	return nil
}

func isEmptyBlob(b json.RawMessage) bool {
	return len(b) == 0 || string(b) == "null"
}

// clone returns a copy of b so callers cannot alias stored bytes.
func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
