// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package risk

import (
	"math/rand"
	"testing"
)

// holdoutCorpus builds a small deterministic two-cluster corpus.
func holdoutCorpus(n int, seed int64) ([][FeatureCount]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	samples := make([][FeatureCount]float64, n)
	labels := make([]float64, n)
	for i := range samples {
		if i%5 == 0 {
			samples[i] = [FeatureCount]float64{0.1, 0.1, 120, 10, 0, 2, 3, 0}
			labels[i] = 1
		} else {
			samples[i] = [FeatureCount]float64{0, 0, 2, 0.2, 4, 12, 3, 0}
		}
		samples[i][featLatDeviation] += rng.NormFloat64() * 0.01
		samples[i][featSpeedKmh] += rng.NormFloat64() * 0.1
	}
	return samples, labels
}

func holdoutOpts(split float64) TrainingOptions {
	return TrainingOptions{
		HiddenUnits:     8,
		Epochs:          5,
		BatchSize:       16,
		LearningRate:    0.05,
		Dropout:         0,
		ValidationSplit: split,
		Seed:            42,
	}
}

func TestTrainHoldsOutValidationTail(t *testing.T) {
	samples, labels := holdoutCorpus(100, 7)
	netA, lossA := Train(samples, labels, holdoutOpts(0.2))

	// Corrupt only the held-out tail; training must not notice.
	samples2, labels2 := holdoutCorpus(100, 7)
	for i := 80; i < 100; i++ {
		samples2[i][featSpeedKmh] += 500
		labels2[i] = 1 - labels2[i]
	}
	netB, lossB := Train(samples2, labels2, holdoutOpts(0.2))

	if !sliceEqual(netA.W1, netB.W1) || !sliceEqual(netA.B1, netB.B1) ||
		!sliceEqual(netA.W2, netB.W2) || netA.B2 != netB.B2 {
		t.Error("weights changed when only the held-out tail differed")
	}
	if lossA <= 0 || lossB <= 0 {
		t.Errorf("holdout losses = %v, %v, want positive", lossA, lossB)
	}
	if lossA == lossB {
		t.Error("holdout loss identical despite a corrupted validation tail")
	}
}

func TestTrainWithoutSplitUsesWholeCorpus(t *testing.T) {
	samples, labels := holdoutCorpus(100, 7)
	netA, loss := Train(samples, labels, holdoutOpts(0))
	if loss != 0 {
		t.Errorf("loss = %v, want 0 when no holdout is configured", loss)
	}

	// Changing the tail now does change the weights.
	samples2, labels2 := holdoutCorpus(100, 7)
	for i := 80; i < 100; i++ {
		samples2[i][featSpeedKmh] += 500
		labels2[i] = 1 - labels2[i]
	}
	netB, _ := Train(samples2, labels2, holdoutOpts(0))

	if sliceEqual(netA.W1, netB.W1) && sliceEqual(netA.W2, netB.W2) &&
		sliceEqual(netA.B1, netB.B1) && netA.B2 == netB.B2 {
		t.Error("weights unchanged even though the tail was trained on")
	}
}

func sliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
