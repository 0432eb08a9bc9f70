// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package risk

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/safetrail/safetrail/internal/config"
	"github.com/safetrail/safetrail/internal/models"
)

// testModelConfig shrinks the corpus and disables dropout so tests train
// quickly and deterministically.
func testModelConfig() config.ModelConfig {
	cfg := config.DefaultConfig().Model
	cfg.SyntheticSamples = 2000
	cfg.Epochs = 40
	cfg.RetrainEpochs = 5
	cfg.Dropout = 0
	return cfg
}

// memBlobStore is an in-memory BlobStore for tests.
type memBlobStore struct {
	data  []byte
	saves int
}

func (m *memBlobStore) SaveModel(data []byte) error {
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memBlobStore) LoadModel() ([]byte, error) {
	return m.data, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := NewService(testModelConfig(), nil)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func normalEvent() *models.LocationEvent {
	ts := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) // Wednesday morning
	return &models.LocationEvent{
		SubjectID:  "tourist-1",
		Latitude:   28.6139,
		Longitude:  77.2090,
		Timestamp:  ts,
		SpeedKmh:   floatPtr(4),
		Itinerary:  []models.LatLng{{Lat: 28.6139, Lng: 77.2090}},
		LastUpdate: timePtr(ts.Add(-2 * time.Minute)),
	}
}

func TestAssessWithoutInit(t *testing.T) {
	s := NewService(testModelConfig(), nil)
	if _, err := s.Assess(normalEvent()); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Assess = %v, want ErrModelUnavailable", err)
	}
	if s.Ready() {
		t.Errorf("Ready() = true before Init")
	}
}

func TestAssessScoreRange(t *testing.T) {
	s := newTestService(t)

	events := []*models.LocationEvent{
		normalEvent(),
		{
			SubjectID: "t", Latitude: 0, Longitude: 0,
			Timestamp: time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC),
			SpeedKmh:  floatPtr(200),
		},
		{
			SubjectID: "t", Latitude: 89, Longitude: 179,
			Timestamp: time.Date(2026, 6, 6, 23, 30, 0, 0, time.UTC),
		},
	}

	for i, e := range events {
		a, err := s.Assess(e)
		if err != nil {
			t.Fatalf("Assess(%d): %v", i, err)
		}
		if a.Score < 0 || a.Score > 1 {
			t.Errorf("score %d = %v, outside [0, 1]", i, a.Score)
		}
	}
}

func TestAssessNormalMovement(t *testing.T) {
	s := newTestService(t)

	a, err := s.Assess(normalEvent())
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.Anomalous {
		t.Errorf("normal daytime movement flagged anomalous, score %v", a.Score)
	}
	if a.Score >= AnomalyThreshold {
		t.Errorf("score = %v, want below %v", a.Score, AnomalyThreshold)
	}
	if len(a.Reasons) != 0 {
		t.Errorf("non-anomalous assessment carries reasons %v", a.Reasons)
	}
}

func TestAssessProlongedInactivity(t *testing.T) {
	s := newTestService(t)

	ts := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	event := &models.LocationEvent{
		SubjectID:  "tourist-2",
		Latitude:   28.6139,
		Longitude:  77.2090,
		Timestamp:  ts,
		SpeedKmh:   floatPtr(0),
		Itinerary:  []models.LatLng{{Lat: 28.6139, Lng: 77.2090}},
		LastUpdate: timePtr(ts.Add(-150 * time.Minute)),
	}

	a, err := s.Assess(event)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if !a.Anomalous {
		t.Fatalf("150-minute silence not flagged, score %v", a.Score)
	}

	found := false
	for _, r := range a.Reasons {
		if containsFold(r, "inactivity") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons %v missing inactivity explanation", a.Reasons)
	}
}

func TestAssessRouteDeviation(t *testing.T) {
	s := newTestService(t)

	ts := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	event := &models.LocationEvent{
		SubjectID:  "tourist-3",
		Latitude:   28.70,
		Longitude:  77.30,
		Timestamp:  ts,
		SpeedKmh:   floatPtr(10),
		Itinerary:  []models.LatLng{{Lat: 28.6139, Lng: 77.2090}},
		LastUpdate: timePtr(ts.Add(-5 * time.Minute)),
	}

	a, err := s.Assess(event)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if !a.Anomalous {
		t.Fatalf("13km route deviation not flagged, score %v", a.Score)
	}

	found := false
	for _, r := range a.Reasons {
		if containsFold(r, "route deviation") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons %v missing route deviation explanation", a.Reasons)
	}
}

func TestRetrainInsufficientDataIsNoOp(t *testing.T) {
	s := newTestService(t)

	before, err := s.Assess(normalEvent())
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	labeled := make([]LabeledSample, 9)
	for i := range labeled {
		labeled[i] = LabeledSample{Event: *normalEvent(), Anomalous: false}
	}

	if err := s.Retrain(labeled); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Retrain = %v, want ErrInsufficientData", err)
	}

	after, err := s.Assess(normalEvent())
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if before.Score != after.Score {
		t.Errorf("model changed on rejected retrain: %v -> %v", before.Score, after.Score)
	}
}

func TestRetrainSwapsAndPersists(t *testing.T) {
	store := &memBlobStore{}
	s := NewService(testModelConfig(), store)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("saves after Init = %d, want 1", store.saves)
	}

	labeled := make([]LabeledSample, 12)
	for i := range labeled {
		labeled[i] = LabeledSample{Event: *normalEvent(), Anomalous: i%2 == 0}
	}

	if err := s.Retrain(labeled); err != nil {
		t.Fatalf("Retrain: %v", err)
	}
	if store.saves != 2 {
		t.Errorf("saves after retrain = %d, want 2", store.saves)
	}

	// A second service reloads the persisted model instead of retraining.
	s2 := NewService(testModelConfig(), store)
	if err := s2.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if store.saves != 2 {
		t.Errorf("Init retrained despite persisted model, saves = %d", store.saves)
	}

	a1, _ := s.Assess(normalEvent())
	a2, _ := s2.Assess(normalEvent())
	if a1.Score != a2.Score {
		t.Errorf("reloaded model scores differently: %v vs %v", a1.Score, a2.Score)
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
