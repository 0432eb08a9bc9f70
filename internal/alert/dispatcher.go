// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package alert merges risk assessments and zone violations into alert
// records and fans them out: personal notification to the subject,
// police broadcast when the severity escalates, and persistence for
// later retrieval. Panic and missing-person reports enter here directly,
// bypassing the scoring pipeline.
package alert

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/logging"
	"github.com/safetrail/safetrail/internal/metrics"
	"github.com/safetrail/safetrail/internal/models"
	"github.com/safetrail/safetrail/internal/risk"
	"github.com/safetrail/safetrail/internal/websocket"
)

// Safety score deltas applied per alert severity.
var scoreDeltas = map[models.Severity]float64{
	models.SeverityLow:      -1,
	models.SeverityMedium:   -5,
	models.SeverityHigh:     -10,
	models.SeverityCritical: -20,
}

// Store is the persistence surface the dispatcher needs.
type Store interface {
	RecordAlert(a *models.Alert) error
	AppendAudit(kind, subjectID string, payload interface{})
	AdjustSafetyScore(subjectID string, delta float64) (float64, error)
}

// Notifier is the delivery surface the dispatcher needs.
type Notifier interface {
	SendToIdentity(identity string, msg websocket.Message) websocket.DeliveryResult
	BroadcastToRole(role string, msg websocket.Message) websocket.DeliveryResult
}

// Notification is the payload pushed to WebSocket subscribers.
type Notification struct {
	Type      string                  `json:"type"`
	Message   string                  `json:"message"`
	Severity  models.Severity         `json:"severity"`
	ZoneInfo  *geofence.ZoneViolation `json:"zone_info,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// MissingPersonReport is an inbound missing-person filing.
type MissingPersonReport struct {
	SubjectID    string         `json:"subject_id" validate:"required"`
	Name         string         `json:"name" validate:"required"`
	Description  string         `json:"description"`
	LastSeen     *models.LatLng `json:"last_seen,omitempty"`
	ReportedBy   string         `json:"reported_by"`
	Priority     string         `json:"priority"`
}

// Dispatcher turns pipeline outputs into delivered, persisted alerts.
type Dispatcher struct {
	store    Store
	notifier Notifier
}

// NewDispatcher wires a dispatcher to its persistence and delivery.
func NewDispatcher(store Store, notifier Notifier) *Dispatcher {
	return &Dispatcher{store: store, notifier: notifier}
}

// violationMessage templates the human-readable message by zone type.
func violationMessage(v *geofence.ZoneViolation) string {
	switch v.ZoneType {
	case geofence.ZoneTypeRestricted:
		return fmt.Sprintf("Entered restricted area %s", v.ZoneName)
	case geofence.ZoneTypeSafe:
		return fmt.Sprintf("Entered safe zone %s", v.ZoneName)
	case geofence.ZoneTypeEmergency:
		return fmt.Sprintf("Entered emergency zone %s", v.ZoneName)
	default:
		return fmt.Sprintf("Entered unmonitored zone %s", v.ZoneName)
	}
}

// Dispatch converts the joined pipeline outputs for one event into
// alerts and delivers each. Delivery failures never abort the dispatch;
// the returned alerts are what was created, regardless of how many
// subscribers actually received them.
func (d *Dispatcher) Dispatch(subjectID string, assessment *risk.Assessment, violations []geofence.ZoneViolation, location models.LatLng) []models.Alert {
	var alerts []models.Alert

	for i := range violations {
		v := &violations[i]
		metrics.ZoneViolations.WithLabelValues(string(v.ZoneType)).Inc()

		a := models.Alert{
			ID:        uuid.NewString(),
			SubjectID: subjectID,
			Kind:      models.AlertKindGeofence,
			Severity:  v.Severity(),
			Title:     "Zone violation",
			Message:   violationMessage(v),
			Location:  &v.Location,
			CreatedAt: time.Now().UTC(),
		}
		if meta, err := json.Marshal(v); err == nil {
			a.Metadata = meta
		}

		d.store.AppendAudit("zone_violation", subjectID, v)
		d.emit(&a, v)
		alerts = append(alerts, a)
	}

	if assessment != nil && assessment.Anomalous {
		a := models.Alert{
			ID:        uuid.NewString(),
			SubjectID: subjectID,
			Kind:      models.AlertKindAnomaly,
			Severity:  anomalySeverity(assessment.Score),
			Title:     "Anomalous movement",
			Message:   anomalyMessage(assessment),
			Location:  &location,
			CreatedAt: time.Now().UTC(),
		}
		if meta, err := json.Marshal(assessment); err == nil {
			a.Metadata = meta
		}

		d.store.AppendAudit("anomaly", subjectID, assessment)
		d.emit(&a, nil)
		alerts = append(alerts, a)
	}

	return alerts
}

// anomalySeverity grades an anomaly by its score: well past the decision
// threshold reads as critical, anything flagged reads as high.
func anomalySeverity(score float64) models.Severity {
	if score >= 0.9 {
		return models.SeverityCritical
	}
	return models.SeverityHigh
}

func anomalyMessage(a *risk.Assessment) string {
	msg := fmt.Sprintf("Anomalous movement detected (risk score %.2f)", a.Score)
	for _, r := range a.Reasons {
		msg += "; " + r
	}
	return msg
}

// Panic creates the always-critical panic alert. It bypasses risk and
// geofence evaluation entirely: whatever the subject's current score,
// the alert is critical and broadcast to the police audience.
func (d *Dispatcher) Panic(subjectID string, location models.LatLng, message string) models.Alert {
	if message == "" {
		message = "Panic button pressed"
	}

	a := models.Alert{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Kind:      models.AlertKindPanic,
		Severity:  models.SeverityCritical,
		Title:     "Panic alert",
		Message:   message,
		Location:  &location,
		CreatedAt: time.Now().UTC(),
	}

	d.store.AppendAudit("panic", subjectID, location)
	d.emit(&a, nil)
	return a
}

// MissingPerson files a missing-person report, stamping a unique report
// identifier and deriving severity from the caller-supplied priority.
// An absent or unrecognized priority defaults to high, which escalates
// the alert to the police audience.
func (d *Dispatcher) MissingPerson(report *MissingPersonReport) (models.Alert, string) {
	// Timestamp plus a uuid fragment keeps ids unique when reports land
	// in the same second.
	reportID := fmt.Sprintf("EFIR%s-%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])

	severity := models.Severity(report.Priority)
	if !severity.Valid() {
		severity = models.SeverityHigh
	}

	a := models.Alert{
		ID:        uuid.NewString(),
		SubjectID: report.SubjectID,
		Kind:      models.AlertKindMissingPerson,
		Severity:  severity,
		Title:     "Missing person report " + reportID,
		Message:   fmt.Sprintf("Missing person: %s. %s", report.Name, report.Description),
		Location:  report.LastSeen,
		CreatedAt: time.Now().UTC(),
	}
	if meta, err := json.Marshal(map[string]interface{}{
		"report_id":   reportID,
		"reported_by": report.ReportedBy,
	}); err == nil {
		a.Metadata = meta
	}

	d.store.AppendAudit("missing_person", report.SubjectID, reportID)
	d.emit(&a, nil)
	return a, reportID
}

// emit delivers and persists a single alert: personal notification to
// the subject, police broadcast when the severity escalates, safety
// score adjustment, and the alert record itself.
func (d *Dispatcher) emit(a *models.Alert, zoneInfo *geofence.ZoneViolation) {
	metrics.AlertsDispatched.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()

	n := Notification{
		Type:      string(a.Kind),
		Message:   a.Message,
		Severity:  a.Severity,
		ZoneInfo:  zoneInfo,
		Timestamp: a.CreatedAt,
	}
	msg := websocket.Message{Type: websocket.MessageTypeAlert, Data: n}

	if a.SubjectID != "" {
		d.notifier.SendToIdentity(a.SubjectID, msg)
	}
	if a.Severity.Escalates() {
		d.notifier.BroadcastToRole(websocket.RolePolice, msg)
	}

	if delta := scoreDeltas[a.Severity]; delta != 0 && a.SubjectID != "" {
		if _, err := d.store.AdjustSafetyScore(a.SubjectID, delta); err != nil {
			logging.Error().Err(err).Str("subject_id", a.SubjectID).Msg("Failed to adjust safety score")
		}
	}

	if err := d.store.RecordAlert(a); err != nil {
		logging.Error().Err(err).Str("alert_id", a.ID).Msg("Failed to record alert")
	}

	logging.Info().
		Str("alert_id", a.ID).
		Str("subject_id", a.SubjectID).
		Str("kind", string(a.Kind)).
		Str("severity", string(a.Severity)).
		Msg("Alert dispatched")
}
