// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package risk implements the anomaly risk classifier: feature extraction
// from location events, a small feed-forward network trained on a
// synthetic movement corpus, and the assessment service that scores
// events and derives human-readable anomaly reasons.
package risk

import (
	"fmt"
	"math"

	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/models"
)

// FeatureCount is the width of the classifier input vector.
const FeatureCount = 8

// Feature vector layout. Order is part of the model contract: a persisted
// model is only valid against the layout it was trained with.
const (
	featLatDeviation = iota
	featLngDeviation
	featMinutesSinceUpdate
	featItineraryDistanceKm
	featSpeedKmh
	featHourOfDay
	featDayOfWeek
	featIsWeekend
)

// Default thresholds used when deriving anomaly reasons. Deviation and
// inactivity are tunable through ModelConfig; the rest are fixed.
const (
	DefaultDeviationThresholdKm   = 2.0
	DefaultInactivityThresholdMin = 30.0

	speedThresholdKmh      = 50.0
	stationaryThresholdMin = 15.0
	unusualHourEarly       = 6
	unusualHourLate        = 23
)

// ExtractFeatures converts a location event into the fixed-width vector
// the classifier consumes. Events without an itinerary yield zero
// deviation features; events without a previous update yield zero
// inactivity. A negative inactivity (clock skew between client reports)
// is passed through unmodified.
func ExtractFeatures(event *models.LocationEvent) [FeatureCount]float64 {
	var f [FeatureCount]float64

	if len(event.Itinerary) > 0 {
		nearest, distKm := nearestWaypoint(event)
		f[featLatDeviation] = math.Abs(event.Latitude - nearest.Lat)
		f[featLngDeviation] = math.Abs(event.Longitude - nearest.Lng)
		f[featItineraryDistanceKm] = distKm
	}

	if event.LastUpdate != nil {
		f[featMinutesSinceUpdate] = event.Timestamp.Sub(*event.LastUpdate).Minutes()
	}

	f[featSpeedKmh] = event.Speed()
	f[featHourOfDay] = float64(event.Timestamp.Hour())
	f[featDayOfWeek] = float64(event.Timestamp.Weekday())
	if wd := event.Timestamp.Weekday(); wd == 0 || wd == 6 {
		f[featIsWeekend] = 1
	}

	return f
}

// nearestWaypoint returns the itinerary waypoint closest to the event
// location and the great-circle distance to it in kilometers.
func nearestWaypoint(event *models.LocationEvent) (models.LatLng, float64) {
	point := event.Location()
	best := event.Itinerary[0]
	bestKm := geofence.HaversineKm(point, best)
	for _, wp := range event.Itinerary[1:] {
		if d := geofence.HaversineKm(point, wp); d < bestKm {
			best, bestKm = wp, d
		}
	}
	return best, bestKm
}

// Reasons derives the human-readable explanations for an anomalous
// assessment from the raw feature vector. The deviation and inactivity
// thresholds are caller-supplied (non-positive values fall back to the
// defaults); the list is deterministic: reasons appear in a fixed order
// and only when their threshold trips.
func Reasons(f [FeatureCount]float64, deviationKm, inactivityMin float64) []string {
	if deviationKm <= 0 {
		deviationKm = DefaultDeviationThresholdKm
	}
	if inactivityMin <= 0 {
		inactivityMin = DefaultInactivityThresholdMin
	}

	var reasons []string

	if f[featItineraryDistanceKm] > deviationKm {
		reasons = append(reasons, fmt.Sprintf(
			"route deviation of %.1f km from planned itinerary", f[featItineraryDistanceKm]))
	}
	if f[featMinutesSinceUpdate] > inactivityMin {
		reasons = append(reasons, fmt.Sprintf(
			"prolonged inactivity: %.0f minutes since last update", f[featMinutesSinceUpdate]))
	}
	if f[featSpeedKmh] > speedThresholdKmh {
		reasons = append(reasons, fmt.Sprintf(
			"unusual speed: %.1f km/h", f[featSpeedKmh]))
	}
	if f[featSpeedKmh] == 0 && f[featMinutesSinceUpdate] > stationaryThresholdMin {
		reasons = append(reasons, "stationary for an extended period")
	}
	if hour := int(f[featHourOfDay]); hour < unusualHourEarly || hour >= unusualHourLate {
		reasons = append(reasons, "movement during unusual hours")
	}

	return reasons
}
