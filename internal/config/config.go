// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package config provides application configuration loaded with koanf.
//
// Configuration is resolved in three layers, later layers overriding earlier:
//
//  1. Struct defaults (DefaultConfig)
//  2. YAML config file (first of DefaultConfigPaths, or SAFETRAIL_CONFIG)
//  3. Environment variables prefixed SAFETRAIL_ (SAFETRAIL_SERVER__PORT=8080)
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Safetrail server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Storage   StorageConfig   `koanf:"storage"`
	Model     ModelConfig     `koanf:"model"`
	Geofence  GeofenceConfig  `koanf:"geofence"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StorageConfig configures the BadgerDB store used for profiles, alerts,
// the audit log, and the persisted model.
type StorageConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence. Intended for tests
	// and local development.
	InMemory bool `koanf:"in_memory"`
}

// ModelConfig configures the risk classifier and its training.
type ModelConfig struct {
	// SyntheticSamples is the corpus size generated when no persisted
	// model exists.
	SyntheticSamples int `koanf:"synthetic_samples"`

	// HiddenUnits is the width of the hidden layer.
	HiddenUnits int `koanf:"hidden_units"`

	// Epochs is the number of passes over the corpus for the initial fit.
	Epochs int `koanf:"epochs"`

	// RetrainEpochs is the number of passes used for incremental retraining.
	RetrainEpochs int `koanf:"retrain_epochs"`

	// BatchSize is the minibatch size for SGD.
	BatchSize int `koanf:"batch_size"`

	// LearningRate is the SGD step size.
	LearningRate float64 `koanf:"learning_rate"`

	// Dropout is the hidden-layer dropout rate applied during training.
	Dropout float64 `koanf:"dropout"`

	// ValidationSplit is the held-out fraction of the corpus.
	ValidationSplit float64 `koanf:"validation_split"`

	// RetrainMinSamples is the minimum labeled sample count for retraining;
	// fewer samples is a no-op.
	RetrainMinSamples int `koanf:"retrain_min_samples"`

	// Seed seeds the RNG for corpus synthesis and weight initialization.
	Seed int64 `koanf:"seed"`

	// DeviationThresholdKm is the itinerary deviation beyond which the
	// assessment reason reports a deviation.
	DeviationThresholdKm float64 `koanf:"deviation_threshold_km"`

	// InactivityThresholdMinutes is the gap beyond which the assessment
	// reason reports prolonged inactivity.
	InactivityThresholdMinutes float64 `koanf:"inactivity_threshold_minutes"`
}

// GeofenceConfig configures the zone registry.
type GeofenceConfig struct {
	// SeedZones installs the built-in sample zones when the registry is
	// empty at startup.
	SeedZones bool `koanf:"seed_zones"`

	// DefaultNearbyRadiusKm is the radius used by the nearby-zones query
	// when the caller does not supply one.
	DefaultNearbyRadiusKm float64 `koanf:"default_nearby_radius_km"`
}

// WebSocketConfig configures the connection registry.
type WebSocketConfig struct {
	// WriteTimeout is the bounded per-attempt send timeout; a send that
	// exceeds it marks the connection dead.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// PongTimeout is how long a connection may go without a pong before
	// it is considered dead.
	PongTimeout time.Duration `koanf:"pong_timeout"`

	// SendBuffer is the per-client outbound queue length. A full queue
	// counts as a failed delivery.
	SendBuffer int `koanf:"send_buffer"`
}

// SecurityConfig configures CORS and rate limiting for the HTTP surface.
type SecurityConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8090,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Storage: StorageConfig{
			Path:     "/data/safetrail",
			InMemory: false,
		},
		Model: ModelConfig{
			SyntheticSamples:           10000,
			HiddenUnits:                16,
			Epochs:                     50,
			RetrainEpochs:              10,
			BatchSize:                  32,
			LearningRate:               0.05,
			Dropout:                    0.2,
			ValidationSplit:            0.2,
			RetrainMinSamples:          10,
			Seed:                       42,
			DeviationThresholdKm:       2.0,
			InactivityThresholdMinutes: 30,
		},
		Geofence: GeofenceConfig{
			SeedZones:             true,
			DefaultNearbyRadiusKm: 5,
		},
		WebSocket: WebSocketConfig{
			WriteTimeout: 10 * time.Second,
			PongTimeout:  60 * time.Second,
			SendBuffer:   256,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
	}
}

// Validate checks configuration consistency after loading.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Model.SyntheticSamples < 100 {
		return fmt.Errorf("model.synthetic_samples %d too small (minimum 100)", c.Model.SyntheticSamples)
	}
	if c.Model.ValidationSplit <= 0 || c.Model.ValidationSplit >= 1 {
		return fmt.Errorf("model.validation_split %v must be in (0, 1)", c.Model.ValidationSplit)
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		return fmt.Errorf("model.dropout %v must be in [0, 1)", c.Model.Dropout)
	}
	if c.Model.RetrainMinSamples < 1 {
		return fmt.Errorf("model.retrain_min_samples %d must be positive", c.Model.RetrainMinSamples)
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required unless storage.in_memory is set")
	}
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("websocket.send_buffer %d must be positive", c.WebSocket.SendBuffer)
	}
	return nil
}
