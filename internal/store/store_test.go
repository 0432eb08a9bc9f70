// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/safetrail/safetrail/internal/config"
	"github.com/safetrail/safetrail/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.StorageConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertLocationTracksPreviousUpdate(t *testing.T) {
	s := newTestStore(t)

	first := &models.LocationEvent{
		SubjectID: "t-1",
		Latitude:  28.61,
		Longitude: 77.20,
		Timestamp: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	prev, err := s.UpsertLocation(first)
	if err != nil {
		t.Fatalf("UpsertLocation: %v", err)
	}
	if prev != nil {
		t.Errorf("first upsert returned previous update %v, want nil", prev)
	}

	second := &models.LocationEvent{
		SubjectID: "t-1",
		Latitude:  28.62,
		Longitude: 77.21,
		Timestamp: first.Timestamp.Add(5 * time.Minute),
	}

	prev, err = s.UpsertLocation(second)
	if err != nil {
		t.Fatalf("UpsertLocation: %v", err)
	}
	if prev == nil || !prev.Equal(first.Timestamp) {
		t.Errorf("previous update = %v, want %v", prev, first.Timestamp)
	}

	p, err := s.GetProfile("t-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.LastKnown != second.Location() {
		t.Errorf("LastKnown = %+v, want %+v", p.LastKnown, second.Location())
	}
	if p.SafetyScore != DefaultSafetyScore {
		t.Errorf("SafetyScore = %v, want default %v", p.SafetyScore, DefaultSafetyScore)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetProfile("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile = %v, want ErrNotFound", err)
	}
}

func TestAdjustSafetyScoreClamps(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name  string
		delta float64
		want  float64
	}{
		{"penalty from default", -15, 85},
		{"further penalty", -90, 0},
		{"recovery clamps at ceiling", 150, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.AdjustSafetyScore("t-1", tt.delta)
			if err != nil {
				t.Fatalf("AdjustSafetyScore: %v", err)
			}
			if got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordAndListAlerts(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		subject := "t-1"
		if i%2 == 1 {
			subject = "t-2"
		}
		a := &models.Alert{
			ID:        fmt.Sprintf("a-%d", i),
			SubjectID: subject,
			Kind:      models.AlertKindGeofence,
			Severity:  models.SeverityHigh,
			Title:     "Zone violation",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordAlert(a); err != nil {
			t.Fatalf("RecordAlert: %v", err)
		}
	}

	all, err := s.ListAlerts("", 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d alerts, want 5", len(all))
	}
	if all[0].ID != "a-4" || all[4].ID != "a-0" {
		t.Errorf("alerts not newest first: %s ... %s", all[0].ID, all[4].ID)
	}

	limited, err := s.ListAlerts("", 2)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored, got %d alerts", len(limited))
	}

	subject, err := s.ListAlerts("t-2", 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(subject) != 2 {
		t.Fatalf("got %d alerts for t-2, want 2", len(subject))
	}
	for _, a := range subject {
		if a.SubjectID != "t-2" {
			t.Errorf("subject filter leaked alert for %s", a.SubjectID)
		}
	}
}

func TestAppendAndListAudit(t *testing.T) {
	s := newTestStore(t)

	s.AppendAudit("location_update", "t-1", map[string]float64{"lat": 28.61, "lng": 77.20})
	s.AppendAudit("panic", "t-1", nil)
	s.AppendAudit("zone_violation", "t-2", "Government District")

	entries, err := s.ListAudit(10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d audit entries, want 3", len(entries))
	}
	if entries[0].Kind != "zone_violation" {
		t.Errorf("newest entry kind = %s, want zone_violation", entries[0].Kind)
	}
}

func TestModelRoundTrip(t *testing.T) {
	s := newTestStore(t)

	data, err := s.LoadModel()
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if data != nil {
		t.Errorf("LoadModel on empty store = %v, want nil", data)
	}

	blob := []byte(`{"weights":[1,2,3]}`)
	if err := s.SaveModel(blob); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	got, err := s.LoadModel()
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("LoadModel = %s, want %s", got, blob)
	}
}
