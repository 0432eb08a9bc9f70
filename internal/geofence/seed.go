// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package geofence

import (
	"github.com/safetrail/safetrail/internal/logging"
	"github.com/safetrail/safetrail/internal/models"
)

// SeedDefaultZones registers the built-in demo zones around central Delhi.
// Called at startup when the registry is empty.
func SeedDefaultZones(r *Registry) {
	seeds := []struct {
		name string
		typ  ZoneType
		ring []models.LatLng
	}{
		{
			name: "Government District",
			typ:  ZoneTypeRestricted,
			ring: []models.LatLng{
				{Lat: 28.6139, Lng: 77.2090},
				{Lat: 28.6150, Lng: 77.2090},
				{Lat: 28.6150, Lng: 77.2100},
				{Lat: 28.6139, Lng: 77.2100},
			},
		},
		{
			name: "Tourist Hub",
			typ:  ZoneTypeSafe,
			ring: []models.LatLng{
				{Lat: 28.6129, Lng: 77.2080},
				{Lat: 28.6139, Lng: 77.2080},
				{Lat: 28.6139, Lng: 77.2090},
				{Lat: 28.6129, Lng: 77.2090},
			},
		},
		{
			name: "Hospital District",
			typ:  ZoneTypeEmergency,
			ring: []models.LatLng{
				{Lat: 28.6119, Lng: 77.2070},
				{Lat: 28.6129, Lng: 77.2070},
				{Lat: 28.6129, Lng: 77.2080},
				{Lat: 28.6119, Lng: 77.2080},
			},
		},
	}

	for _, s := range seeds {
		if _, err := r.AddZone(s.name, s.typ, s.ring); err != nil {
			logging.Error().Err(err).Str("zone_name", s.name).Msg("Failed to seed zone")
		}
	}
}
