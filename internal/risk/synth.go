// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package risk

import (
	"math"
	"math/rand"
)

// SyntheticCorpus generates a labeled training corpus of movement
// feature vectors: 80% normal tourist movement and 20% anomalous, the
// anomalies split about equally across three sub-patterns (route
// deviation, prolonged inactivity, abnormal speed). Samples are shuffled
// before return. The generator is deterministic for a given seed.
func SyntheticCorpus(count int, seed int64) ([][FeatureCount]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))

	samples := make([][FeatureCount]float64, 0, count)
	labels := make([]float64, 0, count)

	normal := count * 8 / 10
	for i := 0; i < normal; i++ {
		samples = append(samples, normalSample(rng))
		labels = append(labels, 0)
	}
	for i := normal; i < count; i++ {
		samples = append(samples, anomalousSample(rng, rng.Intn(3)))
		labels = append(labels, 1)
	}

	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
		labels[i], labels[j] = labels[j], labels[i]
	})

	return samples, labels
}

// normalSample models a tourist on or near their itinerary: tight
// coordinate jitter, frequent updates, walking speed, active hours.
func normalSample(rng *rand.Rand) [FeatureCount]float64 {
	var f [FeatureCount]float64
	f[featLatDeviation] = math.Abs(rng.NormFloat64() * 0.005)
	f[featLngDeviation] = math.Abs(rng.NormFloat64() * 0.005)
	f[featMinutesSinceUpdate] = rng.ExpFloat64() * 5
	f[featItineraryDistanceKm] = rng.ExpFloat64() * 0.5

	speed := 4 + rng.NormFloat64()*3
	if speed < 0 {
		speed = 0
	}
	if speed > 50 {
		speed = 50
	}
	f[featSpeedKmh] = speed

	f[featHourOfDay] = 6 + rng.Float64()*16 // 06:00 - 22:00
	f[featDayOfWeek] = float64(rng.Intn(7))
	if f[featDayOfWeek] == 0 || f[featDayOfWeek] == 6 {
		f[featIsWeekend] = 1
	}
	return f
}

// anomalousSample draws from one of three anomaly sub-patterns. Hour of
// day is uniform over the full day for all of them.
func anomalousSample(rng *rand.Rand, pattern int) [FeatureCount]float64 {
	f := normalSample(rng)
	f[featHourOfDay] = rng.Float64() * 24

	switch pattern {
	case 0: // far off the planned route
		f[featLatDeviation] = math.Abs(rng.NormFloat64() * 0.05)
		f[featLngDeviation] = math.Abs(rng.NormFloat64() * 0.05)
		f[featItineraryDistanceKm] = 2 + rng.Float64()*18
	case 1: // gone quiet
		f[featMinutesSinceUpdate] = 30 + rng.Float64()*150
		f[featSpeedKmh] = math.Abs(rng.NormFloat64() * 0.5)
	default: // abnormal speed
		f[featSpeedKmh] = 30 + rng.Float64()*70
	}
	return f
}
