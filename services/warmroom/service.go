// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package warmroom provides the persistence service behind the hunt.
//
// The service serves the content catalog and stores one TraitState blob
// per userId:
//
//	GET  /content        zones keyed by zone id
//	GET  /letters        letter variants
//	POST /save           {userId, state} → {success, message}
//	GET  /load/:userId   {exists} or {exists, state}
//	GET  /health         liveness
//	GET  /metrics        prometheus scrape endpoint
//
// # Usage
//
//	svc, err := warmroom.New(warmroom.Config{Port: 3000})
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx)
package warmroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/warmroom/services/hunt/content"
	"github.com/AleutianAI/warmroom/services/hunt/resolution"
	"github.com/AleutianAI/warmroom/services/warmroom/middleware"
	"github.com/AleutianAI/warmroom/services/warmroom/observability"
	"github.com/AleutianAI/warmroom/services/warmroom/routes"
	"github.com/AleutianAI/warmroom/services/warmroom/store"
	"github.com/AleutianAI/warmroom/services/warmroom/telemetry"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the lifecycle of the warmroom HTTP service.
//
// # Thread Safety
//
// Run blocks and should be called at most once per instance.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the server fails.
	//
	// # Outputs
	//
	//   - error: nil after a clean shutdown triggered by ctx, else the
	//     listener or shutdown failure.
	Run(ctx context.Context) error

	// Router returns the configured gin engine, for tests.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds service configuration. Zero values take defaults.
type Config struct {
	// Port is the HTTP port. Default: 3000
	Port int

	// GinMode is "debug", "release" or "test". Default: gin's own mode.
	GinMode string

	// CORSAllowAll answers CORS preflights for any origin.
	CORSAllowAll bool

	// RateLimitRPS and RateLimitBurst size the per-client token bucket.
	// Zero disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// MaxBodyBytes caps request bodies. Default: 1 MiB
	MaxBodyBytes int64

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration

	// Store selects the state backend.
	Store store.Config

	// ContentPath is a YAML or JSON catalog. Empty serves the embedded
	// default catalog.
	ContentPath string

	// ContentWatch reloads ContentPath when it changes on disk.
	ContentWatch bool

	// Telemetry selects the otel exporters.
	Telemetry telemetry.Config

	// Logger is the service logger. Nil uses slog.Default().
	Logger *slog.Logger
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "warmroom"
	}
	if cfg.Store.Logger == nil {
		cfg.Store.Logger = cfg.Logger
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service.
//
// # Thread Safety
//
// All fields are read-only after New returns.
type service struct {
	config   Config
	logger   *slog.Logger
	router   *gin.Engine
	registry *prometheus.Registry
	metrics  *observability.Metrics
	catalog  *content.Store
	watcher  *content.Watcher
	states   store.Store

	telemetryShutdown func(context.Context) error
}

var _ Service = (*service)(nil)

// New builds the service.
//
// # Description
//
//  1. Applies default configuration for missing values
//  2. Creates the prometheus registry and metrics
//  3. Initializes OpenTelemetry with the registry as metric sink
//  4. Loads the content catalog and starts the watcher if asked
//  5. Opens the state store
//  6. Sets up the router
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Non-nil when telemetry, content or the store cannot be set up.
//     Anything already created is released.
func New(cfg Config) (Service, error) {
	cfg = applyConfigDefaults(cfg)
	s := &service{
		config:   cfg,
		logger:   cfg.Logger.With("component", "warmroom"),
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = observability.NewMetrics(s.registry)

	if err := s.initTelemetry(); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if err := s.initContent(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to load content: %w", err)
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	s.initRouter()
	return s, nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting warmroom server", "port", s.config.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down warmroom server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Initialization
// =============================================================================

func (s *service) initTelemetry() error {
	tcfg := s.config.Telemetry
	if tcfg.MetricExporter == telemetry.ExporterPrometheus && tcfg.Registerer == nil {
		tcfg.Registerer = s.registry
	}
	shutdown, err := telemetry.Init(context.Background(), tcfg)
	if err != nil {
		return err
	}
	s.telemetryShutdown = shutdown
	return nil
}

func (s *service) initContent() error {
	var (
		cat *content.Catalog
		err error
	)
	if s.config.ContentPath == "" {
		cat, err = content.Default()
		if err != nil {
			return err
		}
	} else {
		var warnings []string
		cat, warnings, err = content.LoadFile(s.config.ContentPath)
		if err != nil {
			return err
		}
		warnings = append(warnings, resolution.VariantWarnings(cat)...)
		for _, w := range warnings {
			s.logger.Warn("content warning", "path", s.config.ContentPath, "warning", w)
		}
	}
	s.catalog = content.NewStore(cat, s.logger)
	s.metrics.ContentZones.Set(float64(len(cat.Zones)))

	if s.config.ContentPath == "" || !s.config.ContentWatch {
		return nil
	}
	w, err := content.NewWatcher(s.config.ContentPath, s.catalog, s.logger, &content.WatcherOptions{
		OnReload: func(err error) {
			s.metrics.RecordContentReload(err, len(s.catalog.Snapshot().Zones))
		},
		Check: resolution.VariantWarnings,
	})
	if err != nil {
		return err
	}
	if err := w.Start(context.Background()); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

func (s *service) initStore() error {
	scfg := s.config.Store
	if tc := s.config.Telemetry; tc.MetricExporter != "" && tc.MetricExporter != telemetry.ExporterNone {
		scfg.Instrument = true
	}
	st, err := store.Open(scfg)
	if err != nil {
		return err
	}
	s.states = st
	return nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(s.config.Telemetry.ServiceName))
	s.router.Use(middleware.RequestMetrics(s.metrics))

	if s.config.CORSAllowAll {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
		s.router.Use(cors.New(corsConfig))
	}

	s.router.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: s.config.RateLimitRPS,
		Burst:             s.config.RateLimitBurst,
	}))
	s.router.Use(middleware.MaxBodyBytes(s.config.MaxBodyBytes))

	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
	routes.SetupRoutes(s.router, s.catalog, s.states, s.metrics, metricsHandler)
}

// cleanup releases everything New created. Safe on a partially built
// service.
func (s *service) cleanup() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.states != nil {
		if err := s.states.Close(); err != nil {
			s.logger.Warn("store close error", "error", err)
		}
	}
	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown telemetry", "error", err)
		}
	}
}
