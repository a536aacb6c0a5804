// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apiclient talks to the warm room persistence service.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 10 * time.Second

// ErrStatus is wrapped by every error caused by a non-2xx response.
var ErrStatus = errors.New("unexpected status")

// Client wraps calls to the persistence service.
//
// # Description
//
// Requests carry OpenTelemetry trace context through an otelhttp transport,
// so a client span and the service span join the same trace.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the service at baseURL
// (e.g. "http://localhost:3000").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// BaseURL returns the service URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// saveRequest is the body of POST /save.
type saveRequest struct {
	UserID string       `json:"userId"`
	State  traits.State `json:"state"`
}

// LoadResult is the body of GET /load/:userId.
type LoadResult struct {
	Exists bool          `json:"exists"`
	State  *traits.State `json:"state,omitempty"`
}

// Save upserts state under userID.
//
// # Outputs
//
//   - error: transport failure, or ErrStatus for any non-2xx response.
func (c *Client) Save(ctx context.Context, userID string, state traits.State) error {
	body, err := json.Marshal(saveRequest{UserID: userID, State: state})
	if err != nil {
		return fmt.Errorf("marshal save request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/save", body, nil)
}

// Load fetches the record for userID.
//
// An unknown user is not an error: the result has Exists false.
func (c *Client) Load(ctx context.Context, userID string) (LoadResult, error) {
	var out LoadResult
	err := c.do(ctx, http.MethodGet, "/load/"+url.PathEscape(userID), nil, &out)
	return out, err
}

// Content fetches the zone definitions.
func (c *Client) Content(ctx context.Context) (map[string]content.Zone, error) {
	var zones map[string]content.Zone
	if err := c.do(ctx, http.MethodGet, "/content", nil, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// Letters fetches the letter variants.
func (c *Client) Letters(ctx context.Context) (content.LetterVariants, error) {
	var v content.LetterVariants
	err := c.do(ctx, http.MethodGet, "/letters", nil, &v)
	return v, err
}

// Catalog fetches zones and letters and validates them as one catalog.
func (c *Client) Catalog(ctx context.Context) (*content.Catalog, error) {
	zones, err := c.Content(ctx)
	if err != nil {
		return nil, err
	}
	letters, err := c.Letters(ctx)
	if err != nil {
		return nil, err
	}
	cat := &content.Catalog{Zones: zones, Letters: letters}
	if _, err := content.Validate(cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// Health returns nil when GET /health answers 200.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w %d from %s %s: %s", ErrStatus, resp.StatusCode, method, path, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
