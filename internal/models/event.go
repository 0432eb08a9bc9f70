// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package models defines the shared data types exchanged between the event
// pipeline, the HTTP surface, and the notification layer.
package models

import "time"

// LatLng is a geographic coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationEvent is a single location update for a tracked subject.
// Events are immutable once constructed; the pipeline never mutates them.
type LocationEvent struct {
	// SubjectID identifies the tracked individual.
	SubjectID string `json:"subject_id"`

	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`

	// SpeedKmh is the reported speed, if the transport supplied one.
	SpeedKmh *float64 `json:"speed,omitempty"`

	// Itinerary is the planned route as ordered waypoints.
	Itinerary []LatLng `json:"itinerary,omitempty"`

	// LastUpdate is the timestamp of the previous known update for this
	// subject, if any.
	LastUpdate *time.Time `json:"last_update,omitempty"`
}

// Speed returns the reported speed or 0 when absent.
func (e *LocationEvent) Speed() float64 {
	if e.SpeedKmh == nil {
		return 0
	}
	return *e.SpeedKmh
}

// Location returns the event coordinates as a LatLng.
func (e *LocationEvent) Location() LatLng {
	return LatLng{Lat: e.Latitude, Lng: e.Longitude}
}
