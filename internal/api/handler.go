// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package api provides the HTTP surface: location ingestion, anomaly
// detection and retraining, zone management, emergency paths, alert
// retrieval, and the WebSocket subscription endpoint.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	gorillaws "github.com/gorilla/websocket"

	"github.com/safetrail/safetrail/internal/alert"
	"github.com/safetrail/safetrail/internal/config"
	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/logging"
	"github.com/safetrail/safetrail/internal/models"
	"github.com/safetrail/safetrail/internal/pipeline"
	"github.com/safetrail/safetrail/internal/risk"
	"github.com/safetrail/safetrail/internal/store"
	"github.com/safetrail/safetrail/internal/websocket"
)

// Handler holds the dependencies for all HTTP endpoints.
type Handler struct {
	cfg        *config.Config
	pipeline   *pipeline.Pipeline
	risk       *risk.Service
	registry   *geofence.Registry
	dispatcher *alert.Dispatcher
	store      *store.Store
	hub        *websocket.Hub
	upgrader   gorillaws.Upgrader
}

// NewHandler wires a handler to the application components.
func NewHandler(cfg *config.Config, p *pipeline.Pipeline, r *risk.Service, reg *geofence.Registry, d *alert.Dispatcher, s *store.Store, hub *websocket.Hub) *Handler {
	h := &Handler{
		cfg:        cfg,
		pipeline:   p,
		risk:       r,
		registry:   reg,
		dispatcher: d,
		store:      s,
		hub:        hub,
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// locationRequest is the inbound location event shape. Coordinates are
// pointers so a legitimate zero value survives the required check.
type locationRequest struct {
	SubjectID  string          `json:"subject_id" validate:"required"`
	Latitude   *float64        `json:"latitude" validate:"required,latitude"`
	Longitude  *float64        `json:"longitude" validate:"required,longitude"`
	Timestamp  *time.Time      `json:"timestamp"`
	Speed      *float64        `json:"speed" validate:"omitempty,gte=0"`
	Itinerary  []models.LatLng `json:"itinerary" validate:"omitempty,dive"`
	LastUpdate *time.Time      `json:"last_update"`
}

func (req *locationRequest) toEvent() *models.LocationEvent {
	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	return &models.LocationEvent{
		SubjectID:  req.SubjectID,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Timestamp:  ts,
		SpeedKmh:   req.Speed,
		Itinerary:  req.Itinerary,
		LastUpdate: req.LastUpdate,
	}
}

// assessmentView is the outbound risk assessment shape.
type assessmentView struct {
	SubjectID   string    `json:"subject_id"`
	AnomalyFlag bool      `json:"anomaly_flag"`
	Reason      *string   `json:"reason"`
	RiskScore   float64   `json:"risk_score"`
	Timestamp   time.Time `json:"timestamp"`
}

func toAssessmentView(subjectID string, a *risk.Assessment) assessmentView {
	view := assessmentView{
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
	}
	if a == nil {
		return view
	}
	view.AnomalyFlag = a.Anomalous
	view.RiskScore = a.Score
	if len(a.Reasons) > 0 {
		reason := a.Reasons[0]
		for _, r := range a.Reasons[1:] {
			reason += "; " + r
		}
		view.Reason = &reason
	}
	return view
}

// safeDefaultView is the degraded assessment returned for a malformed
// event: no anomaly, zero score, the validation failure as the reason.
func safeDefaultView(subjectID string, apiErr *models.APIError) assessmentView {
	reason := apiErr.Message
	return assessmentView{
		SubjectID: subjectID,
		Reason:    &reason,
		Timestamp: time.Now().UTC(),
	}
}

// IngestLocation runs a location event through the full pipeline and
// returns the assessment, violations, and alerts it produced. A
// malformed event degrades to the safe-default assessment instead of
// failing the request.
func (h *Handler) IngestLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if apiErr := decodeAndValidate(r, &req); apiErr != nil {
		respondOK(w, http.StatusOK, map[string]interface{}{
			"assessment": safeDefaultView(req.SubjectID, apiErr),
		}, 0)
		return
	}

	result := h.pipeline.Process(r.Context(), req.toEvent())

	safetyScore := store.DefaultSafetyScore
	if p, err := h.store.GetProfile(req.SubjectID); err == nil {
		safetyScore = p.SafetyScore
	}

	respondOK(w, http.StatusOK, map[string]interface{}{
		"assessment":   toAssessmentView(req.SubjectID, result.Assessment),
		"violations":   result.Violations,
		"alerts":       result.Alerts,
		"safety_score": safetyScore,
	}, len(result.Alerts))
}

// DetectAnomaly scores an event without persisting it or dispatching
// alerts. Malformed input degrades to the safe-default assessment.
func (h *Handler) DetectAnomaly(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if apiErr := decodeAndValidate(r, &req); apiErr != nil {
		respondOK(w, http.StatusOK, safeDefaultView(req.SubjectID, apiErr), 0)
		return
	}

	a, err := h.risk.Assess(req.toEvent())
	if err != nil {
		logging.Warn().Err(err).Str("subject_id", sanitizeLogValue(req.SubjectID)).Msg("Assessment degraded")
		respondOK(w, http.StatusOK, toAssessmentView(req.SubjectID, nil), 0)
		return
	}

	respondOK(w, http.StatusOK, toAssessmentView(req.SubjectID, &a), 0)
}

// retrainRequest carries labeled samples for incremental retraining.
type retrainRequest struct {
	Samples []risk.LabeledSample `json:"samples" validate:"required"`
}

// Retrain schedules incremental retraining on the supplied samples.
// Fewer than the configured minimum is an acknowledged no-op.
func (h *Handler) Retrain(w http.ResponseWriter, r *http.Request) {
	var req retrainRequest
	if apiErr := decodeAndValidate(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.risk.RetrainAsync(req.Samples); err != nil {
		if errors.Is(err, risk.ErrInsufficientData) {
			respondOK(w, http.StatusOK, map[string]interface{}{
				"retrain": "skipped",
				"reason":  "insufficient samples, model unchanged",
				"samples": len(req.Samples),
			}, 0)
			return
		}
		respondError(w, http.StatusInternalServerError, "RETRAIN_FAILED", "retraining could not be scheduled", err)
		return
	}

	respondOK(w, http.StatusAccepted, map[string]interface{}{
		"retrain": "scheduled",
		"samples": len(req.Samples),
	}, 0)
}

// zoneRequest is the inbound zone definition.
type zoneRequest struct {
	Name        string          `json:"name" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Coordinates []models.LatLng `json:"coordinates" validate:"required,min=3,dive"`
}

// ListZones returns every registered zone.
func (h *Handler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones := h.registry.ListZones()
	respondOK(w, http.StatusOK, zones, len(zones))
}

// AddZone registers a new zone.
func (h *Handler) AddZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if apiErr := decodeAndValidate(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	zone, err := h.registry.AddZone(req.Name, geofence.ParseZoneType(req.Type), req.Coordinates)
	if err != nil {
		respondError(w, http.StatusBadRequest, "ZONE_VALIDATION_ERROR", err.Error(), nil)
		return
	}

	respondOK(w, http.StatusCreated, zone, 1)
}

// RemoveZone deletes a zone by id.
func (h *Handler) RemoveZone(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ZONE_ID", "zone id must be an integer", nil)
		return
	}

	if err := h.registry.RemoveZone(id); err != nil {
		if errors.Is(err, geofence.ErrZoneNotFound) {
			respondError(w, http.StatusNotFound, "ZONE_NOT_FOUND", "zone does not exist", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "ZONE_REMOVE_FAILED", "failed to remove zone", err)
		return
	}

	respondOK(w, http.StatusOK, map[string]int64{"removed": id}, 1)
}

// NearbyZones returns zones whose centroid falls within the radius of
// the query point, nearest first.
func (h *Handler) NearbyZones(w http.ResponseWriter, r *http.Request) {
	lat := r.URL.Query().Get("lat")
	lng := r.URL.Query().Get("lng")
	if lat == "" || lng == "" {
		respondError(w, http.StatusBadRequest, "MISSING_COORDINATES", "lat and lng query parameters are required", nil)
		return
	}

	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil || latV < -90 || latV > 90 {
		respondError(w, http.StatusBadRequest, "INVALID_COORDINATES", "lat must be a valid latitude", nil)
		return
	}
	lngV, err := strconv.ParseFloat(lng, 64)
	if err != nil || lngV < -180 || lngV > 180 {
		respondError(w, http.StatusBadRequest, "INVALID_COORDINATES", "lng must be a valid longitude", nil)
		return
	}

	radius := getFloatParam(r, "radius_km", h.cfg.Geofence.DefaultNearbyRadiusKm)
	nearby := h.registry.NearbyZones(models.LatLng{Lat: latV, Lng: lngV}, radius)
	respondOK(w, http.StatusOK, nearby, len(nearby))
}

// panicRequest triggers the always-critical panic path.
type panicRequest struct {
	SubjectID string   `json:"subject_id" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Message   string   `json:"message"`
}

// PanicAlert files a panic alert, bypassing risk and geofence evaluation.
func (h *Handler) PanicAlert(w http.ResponseWriter, r *http.Request) {
	var req panicRequest
	if apiErr := decodeAndValidate(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	a := h.dispatcher.Panic(req.SubjectID, models.LatLng{Lat: *req.Latitude, Lng: *req.Longitude}, req.Message)
	respondOK(w, http.StatusCreated, a, 1)
}

// MissingPerson files a missing-person report.
func (h *Handler) MissingPerson(w http.ResponseWriter, r *http.Request) {
	var req alert.MissingPersonReport
	if apiErr := decodeAndValidate(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	a, reportID := h.dispatcher.MissingPerson(&req)
	respondOK(w, http.StatusCreated, map[string]interface{}{
		"report_id": reportID,
		"alert":     a,
	}, 1)
}

// ListAlerts returns persisted alerts, newest first, optionally filtered
// by subject.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject_id")
	limit := getIntParam(r, "limit", 100)

	alerts, err := h.store.ListAlerts(subjectID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ALERTS_UNAVAILABLE", "failed to list alerts", err)
		return
	}
	respondOK(w, http.StatusOK, alerts, len(alerts))
}

// GetProfile returns the persisted profile for a subject.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "id")

	p, err := h.store.GetProfile(subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "no profile for subject", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "PROFILE_UNAVAILABLE", "failed to load profile", err)
		return
	}
	respondOK(w, http.StatusOK, p, 1)
}

// Health reports liveness and readiness of the core components.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"model_ready": h.risk.Ready(),
		"zones":       h.registry.Count(),
		"connections": h.hub.ConnectionCount(),
	}, 0)
}

// WebSocket upgrades the connection and registers it with the hub. The
// subscriber's identity and role come from query parameters.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	identity := r.URL.Query().Get("identity")
	role := r.URL.Query().Get("role")

	client := websocket.NewClient(h.hub, conn, identity, role)
	client.Start()
}
