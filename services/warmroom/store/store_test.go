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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	stateA = json.RawMessage(`{"userId":"user_a","currentZone":"zone1"}`)
	stateB = json.RawMessage(`{"userId":"user_a","currentZone":"zone3"}`)
)

// backends returns one fresh instance of every backend.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := OpenFileStore(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)

	memStore, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)

	diskStore, err := OpenBadgerStore(BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")})
	require.NoError(t, err)

	inner, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	cached, err := NewCachedStore(inner, 8)
	require.NoError(t, err)

	stores := map[string]Store{
		"file":          fileStore,
		"badger-memory": memStore,
		"badger-disk":   diskStore,
		"cached":        cached,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

// =============================================================================
// Contract
// =============================================================================

func TestStore_Contract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "user_a")
			require.NoError(t, err)
			assert.False(t, ok, "unknown user is not an error")

			require.NoError(t, s.Put(ctx, "user_a", stateA))
			got, ok, err := s.Get(ctx, "user_a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, string(stateA), string(got))

			require.NoError(t, s.Put(ctx, "user_a", stateB))
			got, _, err = s.Get(ctx, "user_a")
			require.NoError(t, err)
			assert.JSONEq(t, string(stateB), string(got), "put replaces, never merges")

			got[0] = 'X'
			again, _, err := s.Get(ctx, "user_a")
			require.NoError(t, err)
			assert.JSONEq(t, string(stateB), string(again), "returned bytes are a copy")
		})
	}
}

func TestStore_RejectsBadPut(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, s.Put(ctx, "", stateA), ErrEmptyUserID)
			assert.ErrorIs(t, s.Put(ctx, "user_a", nil), ErrEmptyState)
			assert.ErrorIs(t, s.Put(ctx, "user_a", json.RawMessage("null")), ErrEmptyState)
			assert.ErrorIs(t, s.Put(ctx, "user_a", json.RawMessage("{oops")), ErrEmptyState)

			_, _, err := s.Get(ctx, "")
			assert.ErrorIs(t, err, ErrEmptyUserID)
		})
	}
}

func TestStore_ConcurrentUsers(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					id := "user_" + string(rune('a'+i))
					assert.NoError(t, s.Put(ctx, id, json.RawMessage(`{"userId":"`+id+`"}`)))
				}(i)
			}
			wg.Wait()

			for i := 0; i < 16; i++ {
				id := "user_" + string(rune('a'+i))
				got, ok, err := s.Get(ctx, id)
				require.NoError(t, err)
				require.True(t, ok, id)
				assert.Contains(t, string(got), id)
			}
		})
	}
}

// =============================================================================
// FileStore
// =============================================================================

func TestFileStore_CreatesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.json")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	defer s.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":{}}`, string(data))
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "user_a", stateA))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":{"user_a":`+string(stateA)+`}}`, string(data))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 1, reopened.Len())
	got, ok, err := reopened.Get(context.Background(), "user_a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(stateA), string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestFileStore_MalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := OpenFileStore(path)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data), "a malformed document is never overwritten")
}

func TestFileStore_Closed(t *testing.T) {
	s, err := OpenFileStore(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Put(context.Background(), "user_a", stateA), ErrClosed)
	_, _, err = s.Get(context.Background(), "user_a")
	assert.ErrorIs(t, err, ErrClosed)
}

// =============================================================================
// BadgerStore
// =============================================================================

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")
	s, err := OpenBadgerStore(BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "user_a", stateA))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	reopened, err := OpenBadgerStore(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()
	got, ok, err := reopened.Get(context.Background(), "user_a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(stateA), string(got))
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerConfig{})
	assert.Error(t, err)
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	s, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "user_a", stateA), context.Canceled)
}

// =============================================================================
// CachedStore
// =============================================================================

// countingStore counts backend reads.
type countingStore struct {
	Store
	gets   atomic.Int32
	putErr error
}

func (c *countingStore) Get(ctx context.Context, userID string) (json.RawMessage, bool, error) {
	c.gets.Add(1)
	return c.Store.Get(ctx, userID)
}

func (c *countingStore) Put(ctx context.Context, userID string, state json.RawMessage) error {
	if c.putErr != nil {
		return c.putErr
	}
	return c.Store.Put(ctx, userID, state)
}

func TestCachedStore_ServesHitsFromCache(t *testing.T) {
	inner, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	counting := &countingStore{Store: inner}
	s, err := NewCachedStore(counting, 4)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, inner.Put(ctx, "user_a", stateA))

	for i := 0; i < 3; i++ {
		got, ok, err := s.Get(ctx, "user_a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, string(stateA), string(got))
	}
	assert.Equal(t, int32(1), counting.gets.Load())
	assert.Equal(t, 1, s.Len())

	_, ok, err := s.Get(ctx, "user_missing")
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, _ = s.Get(ctx, "user_missing")
	assert.Equal(t, int32(3), counting.gets.Load(), "misses are not cached")
}

func TestCachedStore_FailedPutInvalidates(t *testing.T) {
	inner, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	counting := &countingStore{Store: inner}
	s, err := NewCachedStore(counting, 4)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "user_a", stateA))
	counting.putErr = errors.New("disk full")
	require.Error(t, s.Put(ctx, "user_a", stateB))

	got, ok, err := s.Get(ctx, "user_a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(stateA), string(got), "cache never holds a blob the backend rejected")
}

func TestCachedStore_Eviction(t *testing.T) {
	inner, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	s, err := NewCachedStore(inner, 2)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"user_a", "user_b", "user_c"} {
		require.NoError(t, s.Put(ctx, id, json.RawMessage(`{"userId":"`+id+`"}`)))
	}
	assert.Equal(t, 2, s.Len())

	got, ok, err := s.Get(ctx, "user_a")
	require.NoError(t, err)
	require.True(t, ok, "evicted entries are reread from the backend")
	assert.Contains(t, string(got), "user_a")
}

// stallingStore reads the backend, then holds the first Get until release
// is closed.
type stallingStore struct {
	Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, userID string) (json.RawMessage, bool, error) {
	b, ok, err := s.Store.Get(ctx, userID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return b, ok, err
}

func TestCachedStore_SlowMissDoesNotOverwritePut(t *testing.T) {
	inner, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	stalling := &stallingStore{Store: inner, read: make(chan struct{}), release: make(chan struct{})}
	s, err := NewCachedStore(stalling, 4)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	v1 := json.RawMessage(`{"v":1}`)
	v2 := json.RawMessage(`{"v":2}`)
	require.NoError(t, inner.Put(ctx, "user_a", v1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = s.Get(ctx, "user_a")
	}()
	<-stalling.read

	require.NoError(t, s.Put(ctx, "user_a", v2))
	close(stalling.release)
	<-done

	got, ok, err := s.Get(ctx, "user_a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(v2), string(got))
}

// =============================================================================
// Instrumented / Open
// =============================================================================

func TestInstrumented_RecordsOperations(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inner, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	s, err := NewInstrumented(inner, mp.Meter("test"), BackendMemory)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "user_a", stateA))
	_, _, _ = s.Get(ctx, "user_a")
	_, _, _ = s.Get(ctx, "user_missing")
	_ = s.Put(ctx, "", stateA)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "warmroom.store.operations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value("op")
				result, _ := dp.Attributes.Value("result")
				counts[op.AsString()+"/"+result.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{
		"put/ok":        1,
		"put/error":     1,
		"get/ok":        1,
		"get/not_found": 1,
	}, counts)
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()
	cases := []Config{
		{Backend: BackendFile, Path: filepath.Join(dir, "db.json")},
		{Backend: BackendBadger, Path: filepath.Join(dir, "badger"), CacheSize: 16},
		{Backend: BackendMemory, CacheSize: 16, Instrument: true},
	}
	for _, cfg := range cases {
		t.Run(cfg.Backend, func(t *testing.T) {
			s, err := Open(cfg)
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Put(context.Background(), "user_a", stateA))
			_, ok, err := s.Get(context.Background(), "user_a")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}

	_, err := Open(Config{Backend: "redis"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
