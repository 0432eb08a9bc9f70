// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.SyntheticSamples != 10000 {
		t.Errorf("SyntheticSamples = %d, want 10000", cfg.Model.SyntheticSamples)
	}
	if cfg.Model.RetrainMinSamples != 10 {
		t.Errorf("RetrainMinSamples = %d, want 10", cfg.Model.RetrainMinSamples)
	}
	if cfg.WebSocket.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WebSocket.WriteTimeout)
	}
	if !cfg.Geofence.SeedZones {
		t.Error("SeedZones should default to true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"tiny corpus", func(c *Config) { c.Model.SyntheticSamples = 10 }, true},
		{"validation split 1", func(c *Config) { c.Model.ValidationSplit = 1 }, true},
		{"dropout 1", func(c *Config) { c.Model.Dropout = 1 }, true},
		{"negative retrain min", func(c *Config) { c.Model.RetrainMinSamples = 0 }, true},
		{"no storage path", func(c *Config) { c.Storage.Path = "" }, true},
		{"in-memory without path", func(c *Config) { c.Storage.Path = ""; c.Storage.InMemory = true }, false},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SAFETRAIL_SERVER__PORT", "server.port"},
		{"SAFETRAIL_MODEL__LEARNING_RATE", "model.learning_rate"},
		{"SAFETRAIL_LOGGING__LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		if got := envTransform(tt.input); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
