// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/warmroom/services/hunt/traits"
)

// StorageKey names the single local cache entry.
const StorageKey = "warmroom_hunt_state"

// LocalCache is the client's durable copy of the state.
type LocalCache interface {
	// Read returns the cached state. ok is false when nothing is cached.
	// A cache that exists but cannot be decoded returns ErrMalformedState.
	Read() (state traits.State, ok bool, err error)

	// Write replaces the cached state.
	Write(state traits.State) error

	// Clear removes the cached state. Clearing an empty cache is not an
	// error.
	Clear() error
}

// FileCache stores the state as JSON in <dir>/warmroom_hunt_state.json.
//
// Writes go to a temporary file that is renamed over the target, so a
// crash leaves either the old or the new state.
type FileCache struct {
	path string
	mu   sync.Mutex
}

var _ LocalCache = (*FileCache)(nil)

// NewFileCache creates a cache in dir. The directory is created on the
// first write.
func NewFileCache(dir string) *FileCache {
	return &FileCache{path: filepath.Join(dir, StorageKey+".json")}
}

// Path returns the cache file path.
func (f *FileCache) Path() string {
	return f.path
}

func (f *FileCache) Read() (traits.State, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return traits.State{}, false, nil
	}
	if err != nil {
		return traits.State{}, false, fmt.Errorf("read local cache: %w", err)
	}
	var s traits.State
	if err := json.Unmarshal(data, &s); err != nil {
		return traits.State{}, false, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	return s, true, nil
}

func (f *FileCache) Write(s traits.State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), StorageKey+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (f *FileCache) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear local cache: %w", err)
	}
	return nil
}

// MemoryCache is a LocalCache held in memory.
type MemoryCache struct {
	mu    sync.Mutex
	state *traits.State
}

var _ LocalCache = (*MemoryCache)(nil)

func (m *MemoryCache) Read() (traits.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return traits.State{}, false, nil
	}
	return m.state.Clone(), true, nil
}

func (m *MemoryCache) Write(s traits.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := s.Clone()
	m.state = &c
	return nil
}

func (m *MemoryCache) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
