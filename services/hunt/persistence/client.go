// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package persistence keeps the visitor's state durable.
//
// # Description
//
// Client writes every state to a LocalCache synchronously and mirrors it
// to a Remote in the background. The local copy is authoritative on
// startup; the remote is best effort. A remote failure is logged and
// swallowed, it never blocks or undoes the local write.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/warmroom/services/hunt/apiclient"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrPersistenceUnavailable wraps every remote failure.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrMalformedState is returned for a cached state that cannot be
	// decoded or fails validation.
	ErrMalformedState = errors.New("malformed state")
)

// =============================================================================
// Remote
// =============================================================================

// Remote is the persistence service as seen by the client.
type Remote interface {
	Save(ctx context.Context, userID string, state traits.State) error
	Load(ctx context.Context, userID string) (traits.State, bool, error)
}

// HTTPRemote adapts an apiclient.Client to Remote.
type HTTPRemote struct {
	API *apiclient.Client
}

var _ Remote = HTTPRemote{}

// Save upserts the state on the service.
func (r HTTPRemote) Save(ctx context.Context, userID string, state traits.State) error {
	return r.API.Save(ctx, userID, state)
}

// Load fetches the state from the service.
func (r HTTPRemote) Load(ctx context.Context, userID string) (traits.State, bool, error) {
	res, err := r.API.Load(ctx, userID)
	if err != nil {
		return traits.State{}, false, err
	}
	if !res.Exists || res.State == nil {
		return traits.State{}, false, nil
	}
	return *res.State, true, nil
}

// NopRemote is the remote used for offline play. It stores nothing.
type NopRemote struct{}

var _ Remote = NopRemote{}

func (NopRemote) Save(context.Context, string, traits.State) error { return nil }

func (NopRemote) Load(context.Context, string) (traits.State, bool, error) {
	return traits.State{}, false, nil
}

// =============================================================================
// Client
// =============================================================================

// Config configures a Client.
type Config struct {
	// Logger receives mirror failures. Nil uses slog.Default().
	Logger *slog.Logger

	// MirrorTimeout bounds each background remote save.
	// Default: 5s
	MirrorTimeout time.Duration

	// NewID mints user ids. Default: NewUserID.
	NewID func() string
}

// LoadResult is the outcome of Client.Load.
type LoadResult struct {
	Exists bool
	State  traits.State
}

// Client is the write-through persistence client.
type Client struct {
	local   LocalCache
	remote  Remote
	logger  *slog.Logger
	timeout time.Duration
	newID   func() string

	inflight sync.WaitGroup
	seq      atomic.Uint64

	sendMu sync.Mutex
	sent   uint64 // guarded by sendMu
}

// NewClient creates a client. A nil remote is treated as NopRemote.
func NewClient(local LocalCache, remote Remote, cfg Config) *Client {
	if remote == nil {
		remote = NopRemote{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MirrorTimeout <= 0 {
		cfg.MirrorTimeout = 5 * time.Second
	}
	if cfg.NewID == nil {
		cfg.NewID = NewUserID
	}
	return &Client{
		local:   local,
		remote:  remote,
		logger:  cfg.Logger.With("component", "persistence"),
		timeout: cfg.MirrorTimeout,
		newID:   cfg.NewID,
	}
}

// Init returns the state to play with.
//
// # Description
//
// A valid cached state is returned as is (restored is true). A missing,
// undecodable or invalid cache yields a fresh zeroed state under a newly
// minted user id, which is saved immediately.
//
// # Outputs
//
//   - traits.State: the current state.
//   - bool: true when the state came from the cache.
//   - error: only when a fresh state could not be written locally.
func (c *Client) Init(ctx context.Context) (traits.State, bool, error) {
	s, ok, err := c.local.Read()
	switch {
	case err != nil:
		c.logger.Warn("local state unreadable, starting fresh", "error", err)
	case ok:
		s.Normalize()
		if verr := s.Validate(); verr != nil {
			c.logger.Warn("local state invalid, starting fresh", "error", fmt.Errorf("%w: %v", ErrMalformedState, verr))
			break
		}
		return s, true, nil
	}

	fresh := traits.New(c.newID())
	if err := c.Save(ctx, fresh); err != nil {
		return fresh, false, err
	}
	c.logger.Info("new session", "user_id", fresh.UserID)
	return fresh, false, nil
}

// Save writes state locally, then mirrors it to the remote in the
// background.
//
// # Outputs
//
//   - error: only for a local write failure or a state without user id.
//     Remote failures are logged, never returned.
func (c *Client) Save(ctx context.Context, state traits.State) error {
	if state.UserID == "" {
		return fmt.Errorf("%w: empty userId", ErrMalformedState)
	}
	if err := c.local.Write(state); err != nil {
		return fmt.Errorf("local save: %w", err)
	}

	snapshot := state.Clone()
	seq := c.seq.Add(1)
	mctx := context.WithoutCancel(ctx)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.mirror(mctx, seq, snapshot)
	}()
	return nil
}

// mirror pushes one snapshot. Sends are serialised and a snapshot older
// than the last one sent is dropped, so the remote ends on the newest state.
func (c *Client) mirror(ctx context.Context, seq uint64, s traits.State) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if seq <= c.sent {
		return
	}
	c.sent = seq

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.remote.Save(ctx, s.UserID, s); err != nil {
		c.logger.Warn("remote save failed, continuing with local state",
			"user_id", s.UserID, "error", fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err))
	}
}

// Load fetches userID from the remote.
//
// # Outputs
//
//   - LoadResult: Exists false for an unknown user.
//   - error: wraps ErrPersistenceUnavailable when the remote failed.
func (c *Client) Load(ctx context.Context, userID string) (LoadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	s, ok, err := c.remote.Load(ctx, userID)
	if err != nil {
		return LoadResult{}, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if !ok {
		return LoadResult{}, nil
	}
	s.Normalize()
	return LoadResult{Exists: true, State: s}, nil
}

// Reset clears the local cache. The next Init mints a new user id.
func (c *Client) Reset() error {
	return c.local.Clear()
}

// Wait blocks until every background mirror has finished.
func (c *Client) Wait() {
	c.inflight.Wait()
}
