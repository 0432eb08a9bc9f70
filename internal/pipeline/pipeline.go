// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package pipeline processes location events: each event is one logical
// unit of work in which risk scoring and geofence evaluation run
// concurrently, their outputs are joined, and the joined result is
// handed to the alert dispatcher. A failure in either branch degrades to
// a safe default (no anomaly, no violations) — the pipeline never aborts
// an event.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/logging"
	"github.com/safetrail/safetrail/internal/metrics"
	"github.com/safetrail/safetrail/internal/models"
	"github.com/safetrail/safetrail/internal/risk"
)

// Scorer assesses an event's anomaly risk.
type Scorer interface {
	Assess(event *models.LocationEvent) (risk.Assessment, error)
}

// Evaluator checks an event against the zone registry.
type Evaluator interface {
	Evaluate(event *models.LocationEvent) []geofence.ZoneViolation
}

// ProfileStore persists per-subject state and the audit trail.
type ProfileStore interface {
	UpsertLocation(event *models.LocationEvent) (*time.Time, error)
	AppendAudit(kind, subjectID string, payload interface{})
}

// Dispatcher fans out the joined result as alerts.
type Dispatcher interface {
	Dispatch(subjectID string, assessment *risk.Assessment, violations []geofence.ZoneViolation, location models.LatLng) []models.Alert
}

// Result is the outcome of processing one location event.
type Result struct {
	Assessment *risk.Assessment         `json:"assessment,omitempty"`
	Violations []geofence.ZoneViolation `json:"violations,omitempty"`
	Alerts     []models.Alert           `json:"alerts,omitempty"`
}

// Pipeline wires the stages together.
type Pipeline struct {
	scorer     Scorer
	evaluator  Evaluator
	profiles   ProfileStore
	dispatcher Dispatcher
}

// New assembles a pipeline.
func New(scorer Scorer, evaluator Evaluator, profiles ProfileStore, dispatcher Dispatcher) *Pipeline {
	return &Pipeline{
		scorer:     scorer,
		evaluator:  evaluator,
		profiles:   profiles,
		dispatcher: dispatcher,
	}
}

// Process runs one event through the pipeline. The subject's profile is
// updated first so the previous update timestamp can feed the inactivity
// feature; scoring and geofence evaluation then run concurrently and
// their outputs are joined for dispatch.
func (p *Pipeline) Process(ctx context.Context, event *models.LocationEvent) *Result {
	metrics.EventsProcessed.Inc()

	prev, err := p.profiles.UpsertLocation(event)
	if err != nil {
		logging.Error().Err(err).Str("subject_id", event.SubjectID).Msg("Profile update failed")
	} else if event.LastUpdate == nil {
		event.LastUpdate = prev
	}

	var (
		assessment *risk.Assessment
		violations []geofence.ZoneViolation
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := p.scorer.Assess(event)
		if err != nil {
			// Safe default: no anomaly flagged.
			logging.Warn().Err(err).Str("subject_id", event.SubjectID).Msg("Risk scoring degraded")
			return nil
		}
		assessment = &a
		return nil
	})
	g.Go(func() error {
		violations = p.evaluator.Evaluate(event)
		return nil
	})
	_ = g.Wait() // branches degrade instead of erroring

	p.profiles.AppendAudit("location_update", event.SubjectID, event.Location())

	alerts := p.dispatcher.Dispatch(event.SubjectID, assessment, violations, event.Location())

	return &Result{
		Assessment: assessment,
		Violations: violations,
		Alerts:     alerts,
	}
}
