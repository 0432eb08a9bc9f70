// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package main is the entry point for the Safetrail server.
//
// Safetrail ingests tourist location events, scores each one for
// anomalous movement with a small neural classifier, evaluates it
// against registered geofence zones, and fans resulting alerts out to
// WebSocket subscribers and the police audience.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables over config file over
//     built-in defaults (Koanf v2)
//  2. Storage: BadgerDB for profiles, alerts, audit log, and the
//     persisted model
//  3. Risk service: load the persisted model, or train on a synthetic
//     corpus when none exists
//  4. Geofence registry: seed the built-in zones when enabled
//  5. WebSocket hub, alert dispatcher, and event pipeline
//  6. HTTP server: REST API plus the /ws subscription endpoint
//
// The hub and the HTTP server run under a suture supervision tree.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server stops
// accepting connections and drains in-flight requests, the hub closes
// every subscriber, and the store is closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safetrail/safetrail/internal/alert"
	"github.com/safetrail/safetrail/internal/api"
	"github.com/safetrail/safetrail/internal/config"
	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/logging"
	"github.com/safetrail/safetrail/internal/pipeline"
	"github.com/safetrail/safetrail/internal/risk"
	"github.com/safetrail/safetrail/internal/store"
	"github.com/safetrail/safetrail/internal/supervisor"
	"github.com/safetrail/safetrail/internal/supervisor/services"
	ws "github.com/safetrail/safetrail/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", listenAddr(cfg)).
		Str("db_path", cfg.Storage.Path).
		Bool("seed_zones", cfg.Geofence.SeedZones).
		Msg("Starting Safetrail")

	st, err := store.Open(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	riskSvc := risk.NewService(cfg.Model, st)
	if err := riskSvc.Init(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize risk model")
	}
	logging.Info().Msg("Risk model ready")

	registry := geofence.NewRegistry()
	if cfg.Geofence.SeedZones {
		geofence.SeedDefaultZones(registry)
		logging.Info().Int("zones", registry.Count()).Msg("Seeded default zones")
	}

	hub := ws.NewHub(cfg.WebSocket)
	dispatcher := alert.NewDispatcher(st, hub)
	pipe := pipeline.New(riskSvc, registry, st, dispatcher)

	handler := api.NewHandler(cfg, pipe, riskSvc, registry, dispatcher, st, hub)
	router := api.NewRouter(cfg, handler)

	server := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPService(server, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tree.Serve(ctx)
	}()

	logging.Info().Str("addr", server.Addr).Msg("Server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree exited with error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Fatal().Err(err).Msg("Supervisor tree failed")
		}
	}

	logging.Info().Msg("Shutdown complete")
}

func listenAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}
