// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package risk

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/safetrail/safetrail/internal/config"
	"github.com/safetrail/safetrail/internal/logging"
	"github.com/safetrail/safetrail/internal/metrics"
	"github.com/safetrail/safetrail/internal/models"
)

// AnomalyThreshold is the score above which an event is flagged anomalous.
const AnomalyThreshold = 0.5

// Service errors.
var (
	// ErrModelUnavailable indicates no trained model is loaded; callers
	// should degrade to a zero-risk assessment rather than fail the event.
	ErrModelUnavailable = errors.New("risk model unavailable")

	// ErrInsufficientData indicates a retrain request carried fewer
	// samples than the configured minimum. The active model is unchanged.
	ErrInsufficientData = errors.New("insufficient samples for retraining")
)

// Assessment is the classifier verdict for a single location event.
type Assessment struct {
	Score     float64  `json:"risk_score"`
	Anomalous bool     `json:"is_anomaly"`
	Reasons   []string `json:"reasons,omitempty"`
}

// LabeledSample pairs a location event with its ground-truth label for
// retraining.
type LabeledSample struct {
	Event     models.LocationEvent `json:"event"`
	Anomalous bool                 `json:"anomalous"`
}

// BlobStore persists the serialized model between restarts. LoadModel
// returns (nil, nil) when no model has been saved yet.
type BlobStore interface {
	SaveModel(data []byte) error
	LoadModel() ([]byte, error)
}

// modelState is the immutable active model. Assessments load it once and
// never observe a half-swapped retrain.
type modelState struct {
	net  *Network
	norm *Normalizer
}

// Service scores location events against the active model and manages
// model lifecycle: initial training, persistence, and retraining.
type Service struct {
	cfg   config.ModelConfig
	store BlobStore

	current atomic.Pointer[modelState]

	// trainMu serializes training; assessments stay lock-free throughout.
	trainMu sync.Mutex
}

// NewService returns a Service with no active model. Call Init before
// assessing events. The blob store may be nil, in which case the model
// is not persisted.
func NewService(cfg config.ModelConfig, store BlobStore) *Service {
	return &Service{cfg: cfg, store: store}
}

// Init loads the persisted model if one exists, otherwise trains a fresh
// model on a synthetic corpus and persists it.
func (s *Service) Init() error {
	if s.store != nil {
		data, err := s.store.LoadModel()
		if err != nil {
			return err
		}
		if len(data) > 0 {
			net, norm, err := UnmarshalModel(data)
			if err == nil && net != nil && norm != nil {
				s.current.Store(&modelState{net: net, norm: norm})
				logging.Info().Msg("Risk model loaded from store")
				return nil
			}
			logging.Warn().Err(err).Msg("Persisted risk model unreadable, retraining")
		}
	}

	samples, labels := SyntheticCorpus(s.cfg.SyntheticSamples, s.cfg.Seed)
	valLoss := s.fitAndSwap(samples, labels, s.cfg.Epochs)
	logging.Info().
		Int("samples", len(samples)).
		Int("epochs", s.cfg.Epochs).
		Float64("validation_loss", valLoss).
		Msg("Risk model trained on synthetic corpus")
	return nil
}

// fitAndSwap fits a normalizer on the corpus, trains a fresh network
// with the configured holdout, swaps both in as the active model, and
// persists them together. Returns the holdout loss.
func (s *Service) fitAndSwap(samples [][FeatureCount]float64, labels []float64, epochs int) float64 {
	norm := FitNormalizer(samples)
	scaled := make([][FeatureCount]float64, len(samples))
	for i := range samples {
		scaled[i] = norm.Transform(samples[i])
	}

	net, valLoss := Train(scaled, labels, TrainingOptions{
		HiddenUnits:     s.cfg.HiddenUnits,
		Epochs:          epochs,
		BatchSize:       s.cfg.BatchSize,
		LearningRate:    s.cfg.LearningRate,
		Dropout:         s.cfg.Dropout,
		ValidationSplit: s.cfg.ValidationSplit,
		Seed:            s.cfg.Seed,
	})

	s.swapAndPersist(net, norm)
	return valLoss
}

// swapAndPersist atomically publishes a (network, normalizer) pair and
// writes it to the blob store. The pair is swapped as one unit so
// concurrent inference never sees a new network with a stale scaler.
func (s *Service) swapAndPersist(net *Network, norm *Normalizer) {
	s.current.Store(&modelState{net: net, norm: norm})

	if s.store == nil {
		return
	}
	data, err := MarshalModel(net, norm)
	if err == nil {
		err = s.store.SaveModel(data)
	}
	if err != nil {
		logging.Error().Err(err).Msg("Failed to persist risk model")
	}
}

// Assess scores a location event. Returns ErrModelUnavailable when no
// model is active; the caller decides how to degrade.
func (s *Service) Assess(event *models.LocationEvent) (Assessment, error) {
	state := s.current.Load()
	if state == nil {
		return Assessment{}, ErrModelUnavailable
	}

	features := ExtractFeatures(event)
	score := state.net.Predict(state.norm.Transform(features))

	metrics.RiskScore.Observe(score)

	assessment := Assessment{Score: score, Anomalous: score > AnomalyThreshold}
	if assessment.Anomalous {
		assessment.Reasons = Reasons(features, s.cfg.DeviationThresholdKm, s.cfg.InactivityThresholdMinutes)
		metrics.AnomaliesDetected.Inc()
	}
	return assessment, nil
}

// Retrain incrementally fits the active network on the labeled samples,
// standardized with the existing normalizer (the normalizer is not
// refit), then atomically swaps the updated model in. Fewer samples than
// the configured minimum returns ErrInsufficientData and leaves both
// model and persisted state untouched.
func (s *Service) Retrain(labeled []LabeledSample) error {
	if len(labeled) < s.cfg.RetrainMinSamples {
		return ErrInsufficientData
	}

	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	state := s.current.Load()
	if state == nil {
		return ErrModelUnavailable
	}

	scaled := make([][FeatureCount]float64, len(labeled))
	labels := make([]float64, len(labeled))
	for i, l := range labeled {
		scaled[i] = state.norm.Transform(ExtractFeatures(&l.Event))
		if l.Anomalous {
			labels[i] = 1
		}
	}

	// Fit a clone; inference on the current model continues undisturbed
	// until the swap.
	net := state.net.Clone()
	net.Fit(scaled, labels, TrainingOptions{
		Epochs:       s.cfg.RetrainEpochs,
		BatchSize:    s.cfg.BatchSize,
		LearningRate: s.cfg.LearningRate,
		Dropout:      s.cfg.Dropout,
		Seed:         s.cfg.Seed,
	})

	s.swapAndPersist(net, state.norm)
	metrics.ModelRetrains.Inc()
	logging.Info().Int("labeled_samples", len(labeled)).Msg("Risk model retrained")
	return nil
}

// RetrainAsync runs Retrain on a new goroutine, logging failures. The
// insufficient-data check runs synchronously so the caller still gets
// ErrInsufficientData for an undersized request.
func (s *Service) RetrainAsync(labeled []LabeledSample) error {
	if len(labeled) < s.cfg.RetrainMinSamples {
		return ErrInsufficientData
	}
	go func() {
		if err := s.Retrain(labeled); err != nil {
			logging.Error().Err(err).Msg("Async retrain failed")
		}
	}()
	return nil
}

// Ready reports whether an active model is loaded.
func (s *Service) Ready() bool {
	return s.current.Load() != nil
}
