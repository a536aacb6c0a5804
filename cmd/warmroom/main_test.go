// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/persistence"
	"github.com/AleutianAI/warmroom/services/hunt/progression"
	"github.com/AleutianAI/warmroom/services/hunt/resolution"
	"github.com/AleutianAI/warmroom/services/warmroom"
	"github.com/AleutianAI/warmroom/services/warmroom/store"
	"github.com/AleutianAI/warmroom/services/warmroom/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Harness
// =============================================================================

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI with stdin and args. tweak, when non-nil, adjusts
// the app before the command tree is built.
func run(t *testing.T, stdin string, tweak func(*app), args ...string) result {
	t.Helper()
	a := &app{
		v:          newViper(),
		isTerminal: func(any) bool { return false },
		confirm: func(string, string) (bool, error) {
			t.Fatal("unexpected confirmation prompt")
			return false, nil
		},
	}
	if tweak != nil {
		tweak(a)
	}
	root := buildRootCmd(a)
	var out, errb bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errb)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errb.String(), err: err}
}

func allAnswers(t *testing.T) string {
	t.Helper()
	cat, err := content.Default()
	require.NoError(t, err)
	n := 0
	for _, z := range cat.Zones {
		n += len(z.Moments)
	}
	return strings.Repeat("a\n", n)
}

// =============================================================================
// Configuration
// =============================================================================

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newViper(), filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Server.CORSAllowAll)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, store.BackendFile, cfg.Store.Backend)
	assert.Equal(t, 512, cfg.Store.CacheSize)
	assert.Equal(t, telemetry.ExporterNone, cfg.Telemetry.TraceExporter)
	assert.Equal(t, "http://localhost:3000", cfg.Client.ServerURL)
	assert.Equal(t, "~/.warmroom", cfg.Client.StateDir)
	assert.Equal(t, 5*time.Second, cfg.Client.MirrorTimeout)
}

func TestLoadConfig_ExplicitFileMustExist(t *testing.T) {
	_, err := loadConfig(newViper(), filepath.Join(t.TempDir(), "absent.yaml"), true)
	assert.Error(t, err)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warmroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
  rate_limit_rps: 2.5
store:
  backend: badger
  path: /srv/warmroom
client:
  mirror_timeout: 250ms
`), 0o600))

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := loadConfig(newViper(), path, true)
		require.NoError(t, err)
		assert.Equal(t, 4000, cfg.Server.Port)
		assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
		assert.Equal(t, store.BackendBadger, cfg.Store.Backend)
		assert.Equal(t, 250*time.Millisecond, cfg.Client.MirrorTimeout)
		assert.Equal(t, 40, cfg.Server.RateLimitBurst)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("WARMROOM_SERVER_PORT", "5000")
		t.Setenv("WARMROOM_CLIENT_SERVER_URL", "http://hunt.example")
		cfg, err := loadConfig(newViper(), path, true)
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
		assert.Equal(t, "http://hunt.example", cfg.Client.ServerURL)
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv("WARMROOM_SERVER_PORT", "5000")
		v := newViper()
		cmd := &cobra.Command{Use: "serve"}
		cmd.Flags().Int("port", 3000, "")
		cmd.Flags().String("store", "file", "")
		require.NoError(t, cmd.Flags().Set("port", "6000"))
		require.NoError(t, bindFlags(v, cmd))

		cfg, err := loadConfig(v, path, true)
		require.NoError(t, err)
		assert.Equal(t, 6000, cfg.Server.Port)
		assert.Equal(t, store.BackendBadger, cfg.Store.Backend, "unset flag keeps the file value")
	})
}

func TestServiceConfig(t *testing.T) {
	cfg, err := loadConfig(newViper(), filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	cfg.Content.Path = "content.yaml"
	cfg.Content.Watch = true

	sc := cfg.serviceConfig()
	assert.Equal(t, 3000, sc.Port)
	assert.Equal(t, 20.0, sc.RateLimitRPS)
	assert.Equal(t, 40, sc.RateLimitBurst)
	assert.Equal(t, store.BackendFile, sc.Store.Backend)
	assert.Equal(t, 512, sc.Store.CacheSize)
	assert.Equal(t, "content.yaml", sc.ContentPath)
	assert.True(t, sc.ContentWatch)
	assert.Equal(t, "warmroom", sc.Telemetry.ServiceName)
	assert.Equal(t, telemetry.ExporterPrometheus, sc.Telemetry.MetricExporter)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".warmroom"), expandHome("~/.warmroom"))
	assert.Equal(t, "/tmp/x", expandHome("/tmp/x"))
}

// =============================================================================
// content validate
// =============================================================================

func TestContentValidate(t *testing.T) {
	cat, err := content.Default()
	require.NoError(t, err)
	data, err := json.Marshal(cat)
	require.NoError(t, err)
	dir := t.TempDir()
	good := filepath.Join(dir, "content.json")
	require.NoError(t, os.WriteFile(good, data, 0o600))

	res := run(t, "", nil, "content", "validate", good)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "OK: "+good+": 5 zones")

	bad := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"zones": {{`), 0o600))
	res = run(t, "", nil, "content", "validate", bad)
	assert.Error(t, res.err)
	assert.Contains(t, res.stdout, "ERROR: "+bad)

	res = run(t, "", nil, "content", "validate")
	assert.Error(t, res.err, "file argument is required")
}

func TestContentValidate_NoticingVariants(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, noticing map[string]string) string {
		t.Helper()
		cat, err := content.Default()
		require.NoError(t, err)
		cat.Letters.Noticing = noticing
		data, err := json.Marshal(cat)
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o600))
		return path
	}

	onlyDefault := write("only-default.json", map[string]string{content.DefaultNoticingKey: "n"})
	res := run(t, "", nil, "content", "validate", onlyDefault)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `WARN: letters.noticing has no variant for "peopleUX"`)
	assert.Contains(t, res.stdout, "OK: "+onlyDefault)

	noDefault := write("no-default.json", map[string]string{"peopleUX": "n"})
	res = run(t, "", nil, "content", "validate", noDefault)
	assert.ErrorIs(t, res.err, content.ErrInvalidContent)
	assert.Contains(t, res.stdout, "ERROR: "+noDefault)
}

// =============================================================================
// play / letter / reset
// =============================================================================

func TestPlayLetterReset_Offline(t *testing.T) {
	stateDir := t.TempDir()
	offline := []string{"--server=", "--state-dir", stateDir}

	// Answer one moment, then the input ends.
	res := run(t, "a\n", nil, append([]string{"play", "--plain"}, offline...)...)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Welcome to the warm room")
	assert.Contains(t, res.stdout, "Your progress is saved")

	cached, ok, err := persistence.NewFileCache(stateDir).Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, persistence.IsUserID(cached.UserID))
	assert.Len(t, cached.History, 1)

	res = run(t, "", nil, append([]string{"letter"}, offline...)...)
	assert.ErrorIs(t, res.err, progression.ErrJourneyIncomplete)

	// Resume and finish under the same user id.
	res = run(t, allAnswers(t), nil, append([]string{"play", "--plain"}, offline...)...)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Welcome back. 0/5 zones explored.")
	assert.Contains(t, res.stdout, "Patterns we noticed")

	finished, _, err := persistence.NewFileCache(stateDir).Read()
	require.NoError(t, err)
	assert.Equal(t, cached.UserID, finished.UserID)
	assert.Equal(t, content.ZoneOrder(), finished.CompletedZones)

	res = run(t, "", nil, append([]string{"letter"}, offline...)...)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Patterns we noticed")

	res = run(t, "", nil, append([]string{"letter", "--json"}, offline...)...)
	require.NoError(t, res.err)
	var letter resolution.Letter
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &letter))
	assert.Len(t, letter.Paragraphs, 6)

	res = run(t, "", nil, append([]string{"reset", "--yes"}, offline...)...)
	require.NoError(t, res.err)
	_, ok, err = persistence.NewFileCache(stateDir).Read()
	require.NoError(t, err)
	assert.False(t, ok)

	res = run(t, "", nil, append([]string{"letter"}, offline...)...)
	assert.ErrorIs(t, res.err, ErrNoJourney)
}

func TestReset_Confirmation(t *testing.T) {
	stateDir := t.TempDir()
	offline := []string{"--server=", "--state-dir", stateDir}
	require.NoError(t, run(t, "a\n", nil, append([]string{"play", "--plain"}, offline...)...).err)

	res := run(t, "", nil, append([]string{"reset"}, offline...)...)
	assert.Error(t, res.err, "no terminal and no --yes")

	answer := func(yes bool) func(*app) {
		return func(a *app) {
			a.isTerminal = func(any) bool { return true }
			a.confirm = func(string, string) (bool, error) { return yes, nil }
		}
	}

	res = run(t, "", answer(false), append([]string{"reset"}, offline...)...)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Nothing changed.")
	_, ok, _ := persistence.NewFileCache(stateDir).Read()
	assert.True(t, ok)

	res = run(t, "", answer(true), append([]string{"reset"}, offline...)...)
	require.NoError(t, res.err)
	_, ok, _ = persistence.NewFileCache(stateDir).Read()
	assert.False(t, ok)
}

func TestPlayAndLetter_AgainstServer(t *testing.T) {
	svc, err := warmroom.New(warmroom.Config{
		GinMode:   gin.TestMode,
		Store:     store.Config{Backend: store.BackendFile, Path: filepath.Join(t.TempDir(), "db.json")},
		Telemetry: telemetry.Config{TraceExporter: telemetry.ExporterNone, MetricExporter: telemetry.ExporterNone},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	stateDir := t.TempDir()
	res := run(t, allAnswers(t), nil, "play", "--plain", "--server", ts.URL, "--state-dir", stateDir)
	require.NoError(t, res.err)

	local, ok, err := persistence.NewFileCache(stateDir).Read()
	require.NoError(t, err)
	require.True(t, ok)

	// A different machine: empty cache, same user id.
	res = run(t, "", nil, "letter", "--user", local.UserID, "--server", ts.URL, "--state-dir", t.TempDir())
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Patterns we noticed")

	res = run(t, "", nil, "letter", "--user", "user_nobody", "--server", ts.URL)
	assert.ErrorIs(t, res.err, ErrNoJourney)

	res = run(t, "", nil, "letter", "--user", local.UserID, "--server=")
	assert.Error(t, res.err, "--user needs a server")
}

func TestPlay_ServerUnreachableFallsBack(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	stateDir := t.TempDir()
	res := run(t, allAnswers(t), nil, "play", "--plain", "--server", url, "--state-dir", stateDir)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Patterns we noticed")
	assert.Contains(t, res.stderr, "using built-in content")
}
