// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package warmroom

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/warmroom/services/hunt/apiclient"
	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/traits"
	"github.com/AleutianAI/warmroom/services/warmroom/store"
	"github.com/AleutianAI/warmroom/services/warmroom/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		GinMode:   gin.TestMode,
		Store:     store.Config{Backend: store.BackendFile, Path: filepath.Join(t.TempDir(), "db.json")},
		Telemetry: telemetry.Config{TraceExporter: telemetry.ExporterNone, MetricExporter: telemetry.ExporterNone},
	}
}

func newTestService(t *testing.T, cfg Config) Service {
	t.Helper()
	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.(*service).cleanup() })
	return svc
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "warmroom", cfg.Telemetry.ServiceName)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Store.Logger)

	kept := applyConfigDefaults(Config{Port: 8080, MaxBodyBytes: 10})
	assert.Equal(t, 8080, kept.Port)
	assert.Equal(t, int64(10), kept.MaxBodyBytes)
}

func TestService_EndToEndWithAPIClient(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	api := apiclient.New(ts.URL)
	ctx := context.Background()
	require.NoError(t, api.Health(ctx))

	cat, err := api.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, cat.Zones, 5)

	s := traits.New("user_e2e")
	s.Increment(traits.Orientation, traits.Systems)
	s.Record(traits.Choice{Zone: "zone1", MomentID: "z1m1", ChoiceKey: "a", Timestamp: 1})
	require.NoError(t, api.Save(ctx, s.UserID, s))

	res, err := api.Load(ctx, s.UserID)
	require.NoError(t, err)
	require.True(t, res.Exists)
	require.NotNil(t, res.State)
	assert.Equal(t, s, *res.State)

	res, err = api.Load(ctx, "user_nobody")
	require.NoError(t, err)
	assert.False(t, res.Exists)
}

func TestService_MetricsEndpoint(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	router := svc.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `warmroom_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, "warmroom_content_zones 5")
	assert.Contains(t, body, "go_goroutines")
}

func TestService_CORS(t *testing.T) {
	cfg := testConfig(t)
	cfg.CORSAllowAll = true
	svc := newTestService(t, cfg)

	req := httptest.NewRequest("OPTIONS", "/save", nil)
	req.Header.Set("Origin", "https://other.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestService_RateLimited(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	svc := newTestService(t, cfg)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestService_BodyCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxBodyBytes = 64
	svc := newTestService(t, cfg)

	body := `{"userId":"user_a","state":{"pad":"` + strings.Repeat("x", 200) + `"}}`
	req := httptest.NewRequest("POST", "/save", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestService_ContentFromFileWithWatch(t *testing.T) {
	cat, err := content.Default()
	require.NoError(t, err)
	data, err := json.Marshal(cat)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "content.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg := testConfig(t)
	cfg.ContentPath = path
	cfg.ContentWatch = true
	svc := newTestService(t, cfg)
	assert.NotNil(t, svc.(*service).watcher)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/content", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), cat.Zones["zone1"].Title)
}

func TestNew_Failures(t *testing.T) {
	cfg := testConfig(t)
	cfg.ContentPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Store.Backend = "cassandra"
	_, err = New(cfg)
	assert.ErrorIs(t, err, store.ErrUnknownBackend)

	cfg = testConfig(t)
	cfg.Telemetry.TraceExporter = "carrier-pigeon"
	_, err = New(cfg)
	assert.ErrorIs(t, err, telemetry.ErrUnknownExporter)
}

func TestService_RunStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := testConfig(t)
	cfg.Port = port
	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
