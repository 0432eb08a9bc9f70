// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package geofence

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/safetrail/safetrail/internal/logging"
	"github.com/safetrail/safetrail/internal/models"
)

// zoneSet is an immutable snapshot of all registered zones. Readers load
// the current snapshot once and evaluate against it; writers build a new
// snapshot and swap it in.
type zoneSet struct {
	zones []Zone
	byID  map[int64]*Zone
}

// Registry holds the active zone set. Reads are lock-free via an atomic
// snapshot pointer; writes serialize on a mutex and publish a fresh
// snapshot, so an evaluation never observes a half-applied change.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[zoneSet]
	nextID  atomic.Int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&zoneSet{byID: map[int64]*Zone{}})
	return r
}

// snapshot returns the current immutable zone set.
func (r *Registry) snapshot() *zoneSet {
	return r.current.Load()
}

// validateRing checks the polygon ring for at least 3 distinct vertices
// and in-range coordinates. An explicitly closed ring (last vertex equal
// to the first) is accepted; the duplicate terminal vertex is dropped.
func validateRing(ring []models.LatLng) ([]models.LatLng, error) {
	if len(ring) >= 2 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return nil, ErrInvalidPolygon
	}
	distinct := make(map[models.LatLng]struct{}, len(ring))
	for _, v := range ring {
		if v.Lat < -90 || v.Lat > 90 || v.Lng < -180 || v.Lng > 180 {
			return nil, ErrInvalidPolygon
		}
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, ErrInvalidPolygon
	}
	return ring, nil
}

// AddZone validates the ring and registers a new zone, returning the
// stored copy with its assigned id. On validation failure the registry
// is left unchanged.
func (r *Registry) AddZone(name string, zoneType ZoneType, ring []models.LatLng) (Zone, error) {
	clean, err := validateRing(ring)
	if err != nil {
		return Zone{}, err
	}

	zone := Zone{
		ID:   r.nextID.Add(1),
		Name: name,
		Type: zoneType,
		Ring: append([]models.LatLng(nil), clean...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	next := &zoneSet{
		zones: make([]Zone, 0, len(old.zones)+1),
		byID:  make(map[int64]*Zone, len(old.byID)+1),
	}
	next.zones = append(next.zones, old.zones...)
	next.zones = append(next.zones, zone)
	for i := range next.zones {
		next.byID[next.zones[i].ID] = &next.zones[i]
	}
	r.current.Store(next)

	logging.Info().
		Int64("zone_id", zone.ID).
		Str("zone_name", zone.Name).
		Str("zone_type", string(zone.Type)).
		Int("vertices", len(zone.Ring)).
		Msg("Zone registered")

	return zone, nil
}

// RemoveZone deletes a zone by id. Returns ErrZoneNotFound when the id
// is not registered.
func (r *Registry) RemoveZone(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	if _, ok := old.byID[id]; !ok {
		return ErrZoneNotFound
	}

	next := &zoneSet{
		zones: make([]Zone, 0, len(old.zones)-1),
		byID:  make(map[int64]*Zone, len(old.byID)-1),
	}
	for _, z := range old.zones {
		if z.ID != id {
			next.zones = append(next.zones, z)
		}
	}
	for i := range next.zones {
		next.byID[next.zones[i].ID] = &next.zones[i]
	}
	r.current.Store(next)

	logging.Info().Int64("zone_id", id).Msg("Zone removed")
	return nil
}

// GetZone returns the zone with the given id.
func (r *Registry) GetZone(id int64) (Zone, error) {
	set := r.snapshot()
	z, ok := set.byID[id]
	if !ok {
		return Zone{}, ErrZoneNotFound
	}
	return *z, nil
}

// ListZones returns all registered zones ordered by id.
func (r *Registry) ListZones() []Zone {
	set := r.snapshot()
	out := append([]Zone(nil), set.zones...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered zones.
func (r *Registry) Count() int {
	return len(r.snapshot().zones)
}
