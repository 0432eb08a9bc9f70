// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package alert

import (
	"strings"
	"testing"
	"time"

	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/models"
	"github.com/safetrail/safetrail/internal/risk"
	"github.com/safetrail/safetrail/internal/websocket"
)

type fakeStore struct {
	alerts []models.Alert
	audits []string
	deltas map[string]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{deltas: make(map[string]float64)}
}

func (f *fakeStore) RecordAlert(a *models.Alert) error {
	f.alerts = append(f.alerts, *a)
	return nil
}

func (f *fakeStore) AppendAudit(kind, subjectID string, payload interface{}) {
	f.audits = append(f.audits, kind)
}

func (f *fakeStore) AdjustSafetyScore(subjectID string, delta float64) (float64, error) {
	f.deltas[subjectID] += delta
	return 100 + f.deltas[subjectID], nil
}

type sentMessage struct {
	target string // "identity:<id>" or "role:<role>"
	msg    websocket.Message
}

type fakeNotifier struct {
	sent []sentMessage
}

func (f *fakeNotifier) SendToIdentity(identity string, msg websocket.Message) websocket.DeliveryResult {
	f.sent = append(f.sent, sentMessage{target: "identity:" + identity, msg: msg})
	return websocket.DeliveryResult{Delivered: []string{"c1"}}
}

func (f *fakeNotifier) BroadcastToRole(role string, msg websocket.Message) websocket.DeliveryResult {
	f.sent = append(f.sent, sentMessage{target: "role:" + role, msg: msg})
	return websocket.DeliveryResult{Delivered: []string{"c2"}}
}

func (f *fakeNotifier) targets() []string {
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.target
	}
	return out
}

func restrictedViolation(subjectID string) geofence.ZoneViolation {
	return geofence.ZoneViolation{
		SubjectID: subjectID,
		ZoneID:    1,
		ZoneName:  "Government District",
		ZoneType:  geofence.ZoneTypeRestricted,
		Location:  models.LatLng{Lat: 28.6145, Lng: 77.2095},
		Kind:      geofence.ViolationUnauthorizedEntry,
		Timestamp: time.Now().UTC(),
	}
}

func TestDispatchRestrictedViolation(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	d := NewDispatcher(store, notifier)

	alerts := d.Dispatch("t-1", nil, []geofence.ZoneViolation{restrictedViolation("t-1")}, models.LatLng{})

	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	a := alerts[0]
	if a.Kind != models.AlertKindGeofence {
		t.Errorf("Kind = %s, want geofence", a.Kind)
	}
	if a.Severity != models.SeverityHigh {
		t.Errorf("Severity = %s, want high", a.Severity)
	}
	if !strings.Contains(a.Message, "restricted area Government District") {
		t.Errorf("Message = %q, want restricted-area template", a.Message)
	}

	// Audit, personal notification, police escalation, persistence.
	if len(store.audits) != 1 || store.audits[0] != "zone_violation" {
		t.Errorf("audits = %v, want [zone_violation]", store.audits)
	}
	targets := notifier.targets()
	if len(targets) != 2 || targets[0] != "identity:t-1" || targets[1] != "role:police" {
		t.Errorf("delivery targets = %v, want personal then police", targets)
	}
	if len(store.alerts) != 1 {
		t.Errorf("recorded %d alerts, want 1", len(store.alerts))
	}
	if store.deltas["t-1"] != -10 {
		t.Errorf("safety score delta = %v, want -10", store.deltas["t-1"])
	}

	// The notification payload carries the zone details.
	n, ok := notifier.sent[0].msg.Data.(Notification)
	if !ok {
		t.Fatalf("notification payload is %T", notifier.sent[0].msg.Data)
	}
	if n.ZoneInfo == nil || n.ZoneInfo.ZoneName != "Government District" {
		t.Errorf("ZoneInfo = %+v, want Government District", n.ZoneInfo)
	}
}

func TestDispatchSafeZoneDoesNotEscalate(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	d := NewDispatcher(store, notifier)

	v := restrictedViolation("t-1")
	v.ZoneType = geofence.ZoneTypeSafe
	v.Kind = geofence.ViolationSafeZoneEntry
	v.ZoneName = "Tourist Hub"

	alerts := d.Dispatch("t-1", nil, []geofence.ZoneViolation{v}, models.LatLng{})

	if alerts[0].Severity != models.SeverityLow {
		t.Errorf("Severity = %s, want low", alerts[0].Severity)
	}
	for _, target := range notifier.targets() {
		if target == "role:police" {
			t.Errorf("low-severity alert broadcast to police")
		}
	}
}

func TestDispatchAnomaly(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  models.Severity
	}{
		{"flagged", 0.62, models.SeverityHigh},
		{"well past threshold", 0.95, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			notifier := &fakeNotifier{}
			d := NewDispatcher(store, notifier)

			assessment := &risk.Assessment{
				Score:     tt.score,
				Anomalous: true,
				Reasons:   []string{"prolonged inactivity: 150 minutes since last update"},
			}

			alerts := d.Dispatch("t-1", assessment, nil, models.LatLng{Lat: 28.61, Lng: 77.20})
			if len(alerts) != 1 {
				t.Fatalf("got %d alerts, want 1", len(alerts))
			}
			if alerts[0].Kind != models.AlertKindAnomaly {
				t.Errorf("Kind = %s, want anomaly", alerts[0].Kind)
			}
			if alerts[0].Severity != tt.want {
				t.Errorf("Severity = %s, want %s", alerts[0].Severity, tt.want)
			}
			if !strings.Contains(alerts[0].Message, "inactivity") {
				t.Errorf("Message = %q, want the anomaly reason included", alerts[0].Message)
			}
		})
	}
}

func TestDispatchNonAnomalousProducesNothing(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	d := NewDispatcher(store, notifier)

	assessment := &risk.Assessment{Score: 0.1, Anomalous: false}
	alerts := d.Dispatch("t-1", assessment, nil, models.LatLng{})

	if len(alerts) != 0 {
		t.Errorf("got %d alerts for a clean event, want 0", len(alerts))
	}
	if len(notifier.sent) != 0 {
		t.Errorf("clean event produced deliveries: %v", notifier.targets())
	}
}

func TestPanicIgnoresRiskScore(t *testing.T) {
	// The panic path must produce the identical alert whether the
	// subject's concurrent risk score is 0 or 1.
	var got []models.Alert
	for range []int{0, 1} {
		store := newFakeStore()
		notifier := &fakeNotifier{}
		d := NewDispatcher(store, notifier)

		a := d.Panic("t-1", models.LatLng{Lat: 28.61, Lng: 77.20}, "")
		got = append(got, a)

		if a.Severity != models.SeverityCritical {
			t.Errorf("Severity = %s, want critical", a.Severity)
		}
		found := false
		for _, target := range notifier.targets() {
			if target == "role:police" {
				found = true
			}
		}
		if !found {
			t.Errorf("panic alert not broadcast to police, targets %v", notifier.targets())
		}
	}

	if got[0].Severity != got[1].Severity || got[0].Kind != got[1].Kind || got[0].Message != got[1].Message {
		t.Errorf("panic alerts differ across runs: %+v vs %+v", got[0], got[1])
	}
}

func TestMissingPersonReport(t *testing.T) {
	tests := []struct {
		name     string
		priority string
		want     models.Severity
	}{
		{"default priority", "", models.SeverityHigh},
		{"explicit medium", "medium", models.SeverityMedium},
		{"unknown priority falls back to high", "urgent!!", models.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			notifier := &fakeNotifier{}
			d := NewDispatcher(store, notifier)

			a, reportID := d.MissingPerson(&MissingPersonReport{
				SubjectID: "t-9",
				Name:      "A. Tourist",
				Priority:  tt.priority,
			})

			if a.Severity != tt.want {
				t.Errorf("Severity = %s, want %s", a.Severity, tt.want)
			}
			if !strings.HasPrefix(reportID, "EFIR") || len(reportID) != len("EFIR20060102150405-xxxxxxxx") {
				t.Errorf("report id = %q, want EFIR<timestamp>-<fragment>", reportID)
			}
			if a.Kind != models.AlertKindMissingPerson {
				t.Errorf("Kind = %s, want missing_person", a.Kind)
			}
		})
	}
}
