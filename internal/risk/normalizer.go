// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package risk

import "gonum.org/v1/gonum/stat"

// Normalizer standardizes feature vectors to zero mean and unit variance
// using statistics captured from the training corpus.
type Normalizer struct {
	Mean   [FeatureCount]float64 `json:"mean"`
	StdDev [FeatureCount]float64 `json:"std_dev"`
}

// FitNormalizer computes per-feature mean and standard deviation over the
// corpus. A zero standard deviation (constant feature) is replaced with 1
// so standardization stays a no-op for that column instead of dividing
// by zero.
func FitNormalizer(samples [][FeatureCount]float64) *Normalizer {
	n := &Normalizer{}
	column := make([]float64, len(samples))
	for j := 0; j < FeatureCount; j++ {
		for i := range samples {
			column[i] = samples[i][j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 {
			std = 1
		}
		n.Mean[j] = mean
		n.StdDev[j] = std
	}
	return n
}

// Transform standardizes a single feature vector.
func (n *Normalizer) Transform(f [FeatureCount]float64) [FeatureCount]float64 {
	var out [FeatureCount]float64
	for j := 0; j < FeatureCount; j++ {
		out[j] = (f[j] - n.Mean[j]) / n.StdDev[j]
	}
	return out
}
