// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package models

import (
	"time"

	json "github.com/goccy/go-json"
)

// AlertKind identifies what triggered an alert.
type AlertKind string

const (
	AlertKindAnomaly       AlertKind = "anomaly"
	AlertKindGeofence      AlertKind = "geofence"
	AlertKindPanic         AlertKind = "panic"
	AlertKindMissingPerson AlertKind = "missing_person"
)

// Alert is a notification produced by the dispatcher and fanned out to
// WebSocket subscribers. Alerts are persisted for later retrieval.
type Alert struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Kind      AlertKind `json:"kind"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Location  *LatLng   `json:"location,omitempty"`

	// Metadata carries kind-specific payload (violation details, risk
	// reasons, report ids) without widening the alert schema.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
