// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package geofence

import (
	"math"
	"sort"
	"time"

	"github.com/safetrail/safetrail/internal/models"
)

// edgeEpsilon bounds the collinearity test in the on-boundary check.
const edgeEpsilon = 1e-9

// Evaluate checks the event location against every registered zone and
// returns one violation per containing zone, ordered by zone id.
// Evaluation is pure detection: it never mutates the registry and points
// exactly on a zone boundary are treated as outside.
func (r *Registry) Evaluate(event *models.LocationEvent) []ZoneViolation {
	set := r.snapshot()
	point := event.Location()

	var violations []ZoneViolation
	for _, zone := range set.zones {
		if !containsPoint(zone.Ring, point) {
			continue
		}
		violations = append(violations, ZoneViolation{
			SubjectID: event.SubjectID,
			ZoneID:    zone.ID,
			ZoneName:  zone.Name,
			ZoneType:  zone.Type,
			Location:  point,
			Kind:      KindFor(zone.Type),
			Timestamp: time.Now().UTC(),
		})
	}

	sort.Slice(violations, func(i, j int) bool {
		return violations[i].ZoneID < violations[j].ZoneID
	})
	return violations
}

// NearbyZones returns zones whose centroid lies within radiusKm of the
// query point, sorted by ascending distance with zone id breaking ties.
func (r *Registry) NearbyZones(point models.LatLng, radiusKm float64) []ZoneDistance {
	set := r.snapshot()

	var nearby []ZoneDistance
	for _, zone := range set.zones {
		d := HaversineKm(point, zone.Centroid())
		if d <= radiusKm {
			nearby = append(nearby, ZoneDistance{Zone: zone, DistanceKm: d})
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		if nearby[i].DistanceKm != nearby[j].DistanceKm {
			return nearby[i].DistanceKm < nearby[j].DistanceKm
		}
		return nearby[i].Zone.ID < nearby[j].Zone.ID
	})
	return nearby
}

// containsPoint reports whether the point lies strictly inside the ring.
// Ray casting alone classifies boundary points inconsistently depending
// on which side of the polygon they fall, so on-edge points are detected
// first and excluded.
func containsPoint(ring []models.LatLng, p models.LatLng) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	for i := 0; i < n; i++ {
		if onSegment(ring[i], ring[(i+1)%n], p) {
			return false
		}
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := ring[i], ring[j]
		if (vi.Lng > p.Lng) != (vj.Lng > p.Lng) &&
			p.Lat < (vj.Lat-vi.Lat)*(p.Lng-vi.Lng)/(vj.Lng-vi.Lng)+vi.Lat {
			inside = !inside
		}
	}
	return inside
}

// onSegment reports whether p lies on the segment a-b, within epsilon.
func onSegment(a, b, p models.LatLng) bool {
	cross := (b.Lat-a.Lat)*(p.Lng-a.Lng) - (b.Lng-a.Lng)*(p.Lat-a.Lat)
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	return p.Lat >= math.Min(a.Lat, b.Lat)-edgeEpsilon &&
		p.Lat <= math.Max(a.Lat, b.Lat)+edgeEpsilon &&
		p.Lng >= math.Min(a.Lng, b.Lng)-edgeEpsilon &&
		p.Lng <= math.Max(a.Lng, b.Lng)+edgeEpsilon
}
