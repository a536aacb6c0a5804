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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	Users map[string]json.RawMessage `json:"users"`
}

// FileStore keeps every user in one JSON document.
//
// # Description
//
// The document is read once at open and held in memory. Each Put rewrites
// the whole file through a temp file and rename, so a crash leaves either
// the old or the new document. Writes are serialised by a mutex.
//
// # Thread Safety
//
// Safe for concurrent use.
type FileStore struct {
	path string

	mu     sync.RWMutex
	users  map[string]json.RawMessage
	closed bool
}

var _ Store = (*FileStore)(nil)

// OpenFileStore opens or creates the document at path.
//
// A missing file is created as {"users":{}} along with its directory. A
// file that is not a valid document is an error; it is never overwritten.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store: path is required for the file backend")
	}
	s := &FileStore{path: path, users: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read store file %s: %w", path, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode store file %s: %w", path, err)
	}
	if doc.Users != nil {
		s.users = doc.Users
	}
	return s, nil
}

// Path returns the document path.
func (s *FileStore) Path() string { return s.path }

// Put replaces userID's blob and rewrites the document.
func (s *FileStore) Put(ctx context.Context, userID string, state json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validPut(userID, state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev, had := s.users[userID]
	s.users[userID] = clone(state)
	if err := s.flushLocked(); err != nil {
		if had {
			s.users[userID] = prev
		} else {
			delete(s.users, userID)
		}
		return err
	}
	return nil
}

// Get returns userID's blob.
func (s *FileStore) Get(ctx context.Context, userID string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if userID == "" {
		return nil, false, ErrEmptyUserID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	b, ok := s.users[userID]
	if !ok {
		return nil, false, nil
	}
	return clone(b), true, nil
}

// Len returns the number of stored users.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Close marks the store closed. The document is already on disk.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// flushLocked writes the document atomically. Caller holds mu.
func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(fileDocument{Users: s.users}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
