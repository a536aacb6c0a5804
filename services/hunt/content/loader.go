// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package content

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnknownZone is returned for a zone id the catalog does not define.
	ErrUnknownZone = errors.New("unknown zone")

	// ErrUnknownMoment is returned for a moment index outside the zone.
	ErrUnknownMoment = errors.New("unknown moment")

	// ErrInvalidContent wraps every structural problem found while loading.
	ErrInvalidContent = errors.New("invalid content")
)

// Format selects the decoder used by Parse.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks a Format from a file extension; unknown extensions
// are treated as YAML, which is a superset of JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

//go:embed default_content.yaml
var defaultContent []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog compiled into the binary.
//
// # Description
//
// The embedded catalog is parsed and validated once. A failure here is a
// build defect, so callers typically treat the error as fatal.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, _, defaultErr = Parse(defaultContent, FormatYAML)
	})
	return defaultCatalog, defaultErr
}

// LoadFile reads, parses and validates a catalog file.
//
// # Inputs
//
//   - path: YAML (.yaml/.yml) or JSON (.json) file.
//
// # Outputs
//
//   - *Catalog: the validated catalog.
//   - []string: non-fatal warnings (e.g. unrecognised trait cells).
//   - error: read failure or ErrInvalidContent.
func LoadFile(path string) (*Catalog, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read content file %s: %w", path, err)
	}
	return Parse(data, FormatFromPath(path))
}

// Parse decodes and validates a catalog.
//
// Zone ids missing from a zone body are filled in from the map key.
func Parse(data []byte, format Format) (*Catalog, []string, error) {
	var c Catalog
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &c)
	default:
		err = yaml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidContent, format, err)
	}

	for id, z := range c.Zones {
		if z.ID == "" {
			z.ID = id
			c.Zones[id] = z
		}
	}

	warnings, err := Validate(&c)
	if err != nil {
		return nil, warnings, err
	}
	return &c, warnings, nil
}

// =============================================================================
// Store
// =============================================================================

// Store hands out the current catalog.
//
// # Description
//
// Readers call Snapshot and keep the returned pointer for as long as they
// need a consistent view; Swap never mutates a catalog already handed out.
type Store struct {
	current atomic.Pointer[Catalog]
	logger  *slog.Logger
}

// NewStore creates a Store serving c.
func NewStore(c *Catalog, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{logger: logger}
	s.current.Store(c)
	return s
}

// Snapshot returns the current catalog.
func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Swap replaces the current catalog.
func (s *Store) Swap(c *Catalog) {
	if c == nil {
		return
	}
	s.current.Store(c)
	s.logger.Info("content catalog swapped", "zones", len(c.Zones))
}
