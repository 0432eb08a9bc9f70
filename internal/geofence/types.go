// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package geofence implements the zone registry and geofence evaluation.
//
// Zones are simple closed polygons with a behavioral type. The registry
// holds an immutable zone-set snapshot swapped atomically on writes, so
// concurrent evaluations read a consistent set without per-read locking.
package geofence

import (
	"errors"
	"time"

	"github.com/safetrail/safetrail/internal/models"
)

// Zone registry errors.
var (
	// ErrInvalidPolygon indicates the supplied coordinates do not form a
	// polygon with at least 3 distinct vertices, or contain out-of-range
	// coordinates. The registry is left untouched.
	ErrInvalidPolygon = errors.New("polygon requires at least 3 distinct vertices with valid coordinates")

	// ErrZoneNotFound indicates the zone id does not exist in the registry.
	ErrZoneNotFound = errors.New("zone not found")
)

// ZoneType classifies the behavioral meaning of a zone.
type ZoneType string

const (
	ZoneTypeRestricted ZoneType = "restricted"
	ZoneTypeSafe       ZoneType = "safe"
	ZoneTypeEmergency  ZoneType = "emergency"
	ZoneTypeUnknown    ZoneType = "unknown"
)

// ParseZoneType maps a string to a ZoneType, collapsing unrecognized
// values to ZoneTypeUnknown.
func ParseZoneType(s string) ZoneType {
	switch ZoneType(s) {
	case ZoneTypeRestricted, ZoneTypeSafe, ZoneTypeEmergency:
		return ZoneType(s)
	default:
		return ZoneTypeUnknown
	}
}

// ViolationKind identifies what entering a zone means.
type ViolationKind string

const (
	ViolationUnauthorizedEntry ViolationKind = "unauthorized_entry"
	ViolationSafeZoneEntry     ViolationKind = "safe_zone_entry"
	ViolationEmergencyEntry    ViolationKind = "emergency_zone_entry"
	ViolationUnknownZoneEntry  ViolationKind = "unknown_zone_entry"
)

// violationKinds maps each zone type to its violation kind. The map is
// exhaustive over the closed ZoneType set; lookups fall back to
// ViolationUnknownZoneEntry.
var violationKinds = map[ZoneType]ViolationKind{
	ZoneTypeRestricted: ViolationUnauthorizedEntry,
	ZoneTypeSafe:       ViolationSafeZoneEntry,
	ZoneTypeEmergency:  ViolationEmergencyEntry,
	ZoneTypeUnknown:    ViolationUnknownZoneEntry,
}

// violationSeverities maps each zone type to its alert severity.
var violationSeverities = map[ZoneType]models.Severity{
	ZoneTypeRestricted: models.SeverityHigh,
	ZoneTypeSafe:       models.SeverityLow,
	ZoneTypeEmergency:  models.SeverityMedium,
	ZoneTypeUnknown:    models.SeverityMedium,
}

// KindFor returns the violation kind for a zone type.
func KindFor(t ZoneType) ViolationKind {
	if kind, ok := violationKinds[t]; ok {
		return kind
	}
	return ViolationUnknownZoneEntry
}

// SeverityFor returns the alert severity for a zone type.
func SeverityFor(t ZoneType) models.Severity {
	if sev, ok := violationSeverities[t]; ok {
		return sev
	}
	return models.SeverityMedium
}

// Zone is a named polygonal geographic region with a behavioral type.
// The ring is stored open (first vertex not repeated); closure is implicit.
// Zones are immutable once registered.
type Zone struct {
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Type ZoneType        `json:"type"`
	Ring []models.LatLng `json:"coordinates"`
}

// Centroid returns the arithmetic mean of the ring vertices. This is the
// reference point for nearby-zone distance queries.
func (z *Zone) Centroid() models.LatLng {
	var lat, lng float64
	for _, v := range z.Ring {
		lat += v.Lat
		lng += v.Lng
	}
	n := float64(len(z.Ring))
	return models.LatLng{Lat: lat / n, Lng: lng / n}
}

// ZoneViolation records a tracked point falling inside a zone.
type ZoneViolation struct {
	SubjectID string        `json:"subject_id"`
	ZoneID    int64         `json:"zone_id"`
	ZoneName  string        `json:"zone_name"`
	ZoneType  ZoneType      `json:"zone_type"`
	Location  models.LatLng `json:"location"`
	Kind      ViolationKind `json:"violation_type"`
	Timestamp time.Time     `json:"timestamp"`
}

// Severity returns the alert severity for this violation.
func (v *ZoneViolation) Severity() models.Severity {
	return SeverityFor(v.ZoneType)
}

// ZoneDistance pairs a zone with its distance from a query point.
type ZoneDistance struct {
	Zone       Zone    `json:"zone"`
	DistanceKm float64 `json:"distance_km"`
}
