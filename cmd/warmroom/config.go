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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/warmroom/services/warmroom"
	"github.com/AleutianAI/warmroom/services/warmroom/store"
	"github.com/AleutianAI/warmroom/services/warmroom/telemetry"
	"github.com/spf13/viper"
)

// defaultConfigFile is read when present; --config makes it mandatory.
const defaultConfigFile = "warmroom.yaml"

// envPrefix namespaces environment overrides: server.port is
// WARMROOM_SERVER_PORT.
const envPrefix = "WARMROOM"

// =============================================================================
// Configuration Types
// =============================================================================

type appConfig struct {
	Server    serverConfig    `mapstructure:"server"`
	Store     storeConfig     `mapstructure:"store"`
	Content   contentConfig   `mapstructure:"content"`
	Telemetry telemetryConfig `mapstructure:"telemetry"`
	Log       logConfig       `mapstructure:"log"`
	Client    clientConfig    `mapstructure:"client"`
}

type serverConfig struct {
	Port           int     `mapstructure:"port"`
	GinMode        string  `mapstructure:"gin_mode"`
	CORSAllowAll   bool    `mapstructure:"cors_allow_all"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxBodyBytes   int64   `mapstructure:"max_body_bytes"`
}

type storeConfig struct {
	Backend    string        `mapstructure:"backend"`
	Path       string        `mapstructure:"path"`
	CacheSize  int           `mapstructure:"cache_size"`
	GCInterval time.Duration `mapstructure:"gc_interval"`
}

type contentConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

type telemetryConfig struct {
	TraceExporter  string `mapstructure:"trace_exporter"`
	MetricExporter string `mapstructure:"metric_exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
}

type logConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	Dir   string `mapstructure:"dir"`
}

type clientConfig struct {
	ServerURL     string        `mapstructure:"server_url"`
	StateDir      string        `mapstructure:"state_dir"`
	MirrorTimeout time.Duration `mapstructure:"mirror_timeout"`
}

// =============================================================================
// Loading
// =============================================================================

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.cors_allow_all", true)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("store.backend", store.BackendFile)
	// Empty lets the backend pick ./database/db.json or ./database/badger.
	v.SetDefault("store.path", "")
	v.SetDefault("store.cache_size", 512)
	v.SetDefault("store.gc_interval", 10*time.Minute)

	v.SetDefault("content.path", "")
	v.SetDefault("content.watch", false)

	v.SetDefault("telemetry.trace_exporter", telemetry.ExporterNone)
	v.SetDefault("telemetry.metric_exporter", telemetry.ExporterPrometheus)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.otlp_insecure", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.dir", "")

	v.SetDefault("client.server_url", "http://localhost:3000")
	v.SetDefault("client.state_dir", "~/.warmroom")
	v.SetDefault("client.mirror_timeout", 5*time.Second)
}

// newViper returns a viper instance with defaults and environment
// overrides installed. Flags are bound by the commands that own them.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the config file, if any, and decodes the merged result.
//
// # Inputs
//
//   - v: Viper instance from newViper with flags already bound.
//   - path: Config file path. Empty means defaultConfigFile.
//   - explicit: The path came from --config; a missing file is an error.
func loadConfig(v *viper.Viper, path string, explicit bool) (appConfig, error) {
	var cfg appConfig
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return cfg, nil
}

// serviceConfig maps the loaded configuration onto the service's Config.
func (c appConfig) serviceConfig() warmroom.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.TraceExporter = c.Telemetry.TraceExporter
	tcfg.MetricExporter = c.Telemetry.MetricExporter
	tcfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	tcfg.OTLPInsecure = c.Telemetry.OTLPInsecure

	return warmroom.Config{
		Port:           c.Server.Port,
		GinMode:        c.Server.GinMode,
		CORSAllowAll:   c.Server.CORSAllowAll,
		RateLimitRPS:   c.Server.RateLimitRPS,
		RateLimitBurst: c.Server.RateLimitBurst,
		MaxBodyBytes:   c.Server.MaxBodyBytes,
		Store: store.Config{
			Backend:    c.Store.Backend,
			Path:       c.Store.Path,
			CacheSize:  c.Store.CacheSize,
			GCInterval: c.Store.GCInterval,
		},
		ContentPath:  c.Content.Path,
		ContentWatch: c.Content.Watch,
		Telemetry:    tcfg,
	}
}
