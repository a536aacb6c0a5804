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
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CachedStore is a write-through LRU cache in front of another Store.
//
// # Description
//
// Put writes the backend first and caches the blob only after the backend
// accepted it. Concurrent Get misses for the same user share one backend
// read. A read that overlapped any Put is returned but not cached, so a
// slow miss can never replace a newer blob. Unknown users are not cached,
// so a later Put from another process is seen on the next Get.
//
// # Thread Safety
//
// Safe for concurrent use.
type CachedStore struct {
	next  Store
	cache *lru.Cache[string, json.RawMessage]
	group singleflight.Group

	// mu orders cache fills against Puts. gen counts Puts.
	mu  sync.Mutex
	gen uint64
}

var _ Store = (*CachedStore)(nil)

type getResult struct {
	state json.RawMessage
	ok    bool
}

// NewCachedStore wraps next with an LRU of size entries.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, json.RawMessage](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &CachedStore{next: next, cache: cache}, nil
}

// Put writes through to the backend, then updates the cache.
func (s *CachedStore) Put(ctx context.Context, userID string, state json.RawMessage) error {
	err := s.next.Put(ctx, userID, state)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.group.Forget(userID)
	if err != nil {
		s.cache.Remove(userID)
		return err
	}
	s.cache.Add(userID, clone(state))
	return nil
}

// Get serves from the cache, falling back to a coalesced backend read.
func (s *CachedStore) Get(ctx context.Context, userID string) (json.RawMessage, bool, error) {
	if userID == "" {
		return nil, false, ErrEmptyUserID
	}
	if b, ok := s.cache.Get(userID); ok {
		return clone(b), true, nil
	}

	v, err, _ := s.group.Do(userID, func() (interface{}, error) {
		s.mu.Lock()
		gen := s.gen
		s.mu.Unlock()

		b, ok, err := s.next.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			s.mu.Lock()
			if s.gen == gen {
				s.cache.Add(userID, clone(b))
			}
			s.mu.Unlock()
		}
		return getResult{state: b, ok: ok}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(getResult)
	return clone(res.state), res.ok, nil
}

// Len reports the number of cached users.
func (s *CachedStore) Len() int { return s.cache.Len() }

// Close purges the cache and closes the backend.
func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.next.Close()
}
