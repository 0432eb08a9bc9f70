// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package services wraps application components as suture services.
package services

import (
	"context"
)

// ContextRunner matches the hub's RunWithContext method. Using an
// interface here keeps this package free of a websocket import.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService supervises the WebSocket hub event loop.
type HubService struct {
	hub ContextRunner
}

// NewHubService wraps a hub for supervision.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service. RunWithContext already follows the
// suture contract: it blocks, drains on cancellation, and returns the
// context error.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (s *HubService) String() string {
	return "websocket-hub"
}
