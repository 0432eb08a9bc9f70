// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package risk

import (
	"math"
	"math/rand"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

// TrainingOptions controls network fitting.
type TrainingOptions struct {
	HiddenUnits  int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Dropout      float64
	// ValidationSplit is the trailing fraction of the corpus held out
	// from training and scored afterwards. Zero disables the holdout.
	ValidationSplit float64
	Seed            int64
}

// Network is a single-hidden-layer binary classifier: standardized
// features in, anomaly probability out. Weights are plain slices so the
// whole model round-trips through JSON for persistence.
type Network struct {
	Hidden int `json:"hidden"`

	// W1 is hidden x input, B1 hidden x 1, W2 1 x hidden, B2 scalar.
	W1 []float64 `json:"w1"`
	B1 []float64 `json:"b1"`
	W2 []float64 `json:"w2"`
	B2 float64   `json:"b2"`
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// Predict returns the anomaly probability for a standardized feature
// vector. Output is always in [0, 1].
func (n *Network) Predict(f [FeatureCount]float64) float64 {
	w1 := mat.NewDense(n.Hidden, FeatureCount, n.W1)
	x := mat.NewVecDense(FeatureCount, f[:])

	var h mat.VecDense
	h.MulVec(w1, x)
	h.AddVec(&h, mat.NewVecDense(n.Hidden, n.B1))
	for i := 0; i < n.Hidden; i++ {
		if h.AtVec(i) < 0 {
			h.SetVec(i, 0)
		}
	}

	z := mat.Dot(mat.NewVecDense(n.Hidden, n.W2), &h) + n.B2
	return sigmoid(z)
}

// meanLoss is the mean binary cross-entropy of the network over a
// labeled set, with predictions clamped away from 0 and 1.
func (n *Network) meanLoss(samples [][FeatureCount]float64, labels []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	const eps = 1e-7
	total := 0.0
	for i, x := range samples {
		p := n.Predict(x)
		if p < eps {
			p = eps
		}
		if p > 1-eps {
			p = 1 - eps
		}
		total += -(labels[i]*math.Log(p) + (1-labels[i])*math.Log(1-p))
	}
	return total / float64(len(samples))
}

// Train fits a fresh network on the labeled corpus with minibatch SGD and
// binary cross-entropy loss, holding out the trailing ValidationSplit
// fraction and returning its loss. The RNG is seeded from opts so
// training is reproducible.
func Train(samples [][FeatureCount]float64, labels []float64, opts TrainingOptions) (*Network, float64) {
	rng := rand.New(rand.NewSource(opts.Seed))

	n := &Network{
		Hidden: opts.HiddenUnits,
		W1:     make([]float64, opts.HiddenUnits*FeatureCount),
		B1:     make([]float64, opts.HiddenUnits),
		W2:     make([]float64, opts.HiddenUnits),
	}

	// He initialization for the ReLU layer, Xavier for the output.
	scale1 := math.Sqrt(2.0 / FeatureCount)
	for i := range n.W1 {
		n.W1[i] = rng.NormFloat64() * scale1
	}
	scale2 := math.Sqrt(1.0 / float64(opts.HiddenUnits))
	for i := range n.W2 {
		n.W2[i] = rng.NormFloat64() * scale2
	}

	valLoss := n.fit(samples, labels, opts, rng)
	return n, valLoss
}

// Clone returns a deep copy of the network. Incremental fitting operates
// on a clone so concurrent inference never observes weights mid-update.
func (n *Network) Clone() *Network {
	return &Network{
		Hidden: n.Hidden,
		W1:     append([]float64(nil), n.W1...),
		B1:     append([]float64(nil), n.B1...),
		W2:     append([]float64(nil), n.W2...),
		B2:     n.B2,
	}
}

// Fit continues training the network in place from its current weights.
// The returned value is the holdout loss, or zero when ValidationSplit
// is unset.
func (n *Network) Fit(samples [][FeatureCount]float64, labels []float64, opts TrainingOptions) float64 {
	return n.fit(samples, labels, opts, rand.New(rand.NewSource(opts.Seed)))
}

// fit runs minibatch SGD with binary cross-entropy loss. Inverted
// dropout is applied to the hidden activations during training only.
// When ValidationSplit is set, the trailing fraction of the corpus is
// excluded from every epoch and scored once after training. The loops
// stay on the raw weight slices: dropout masks and per-sample gradient
// accumulation address individual weights.
func (n *Network) fit(samples [][FeatureCount]float64, labels []float64, opts TrainingOptions, rng *rand.Rand) float64 {
	trainN := len(samples)
	if opts.ValidationSplit > 0 && opts.ValidationSplit < 1 {
		if cut := int(float64(len(samples)) * (1 - opts.ValidationSplit)); cut > 0 {
			trainN = cut
		}
	}

	order := make([]int, trainN)
	for i := range order {
		order[i] = i
	}

	hidden := make([]float64, n.Hidden)
	mask := make([]bool, n.Hidden)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(order) {
				end = len(order)
			}

			gW1 := make([]float64, len(n.W1))
			gB1 := make([]float64, len(n.B1))
			gW2 := make([]float64, len(n.W2))
			gB2 := 0.0

			for _, idx := range order[start:end] {
				x := samples[idx]
				y := labels[idx]

				keep := 1.0 - opts.Dropout
				for i := 0; i < n.Hidden; i++ {
					a := n.B1[i]
					for j := 0; j < FeatureCount; j++ {
						a += n.W1[i*FeatureCount+j] * x[j]
					}
					if a < 0 {
						a = 0
					}
					mask[i] = opts.Dropout > 0 && rng.Float64() < opts.Dropout
					if mask[i] {
						hidden[i] = 0
					} else {
						hidden[i] = a / keep
					}
				}

				z := n.B2
				for i := 0; i < n.Hidden; i++ {
					z += n.W2[i] * hidden[i]
				}
				p := sigmoid(z)

				// d(BCE)/dz for a sigmoid output.
				dz := p - y
				gB2 += dz
				for i := 0; i < n.Hidden; i++ {
					gW2[i] += dz * hidden[i]
					if mask[i] || hidden[i] <= 0 {
						continue
					}
					dh := dz * n.W2[i] / keep
					gB1[i] += dh
					for j := 0; j < FeatureCount; j++ {
						gW1[i*FeatureCount+j] += dh * x[j]
					}
				}
			}

			lr := opts.LearningRate / float64(end-start)
			for i := range n.W1 {
				n.W1[i] -= lr * gW1[i]
			}
			for i := range n.B1 {
				n.B1[i] -= lr * gB1[i]
			}
			for i := range n.W2 {
				n.W2[i] -= lr * gW2[i]
			}
			n.B2 -= lr * gB2
		}
	}

	return n.meanLoss(samples[trainN:], labels[trainN:])
}

// modelBlob is the persisted form of a trained model with its scaler.
type modelBlob struct {
	Network    *Network    `json:"network"`
	Normalizer *Normalizer `json:"normalizer"`
}

// MarshalModel serializes a network and its normalizer for persistence.
func MarshalModel(n *Network, norm *Normalizer) ([]byte, error) {
	return json.Marshal(modelBlob{Network: n, Normalizer: norm})
}

// UnmarshalModel restores a persisted model blob.
func UnmarshalModel(data []byte) (*Network, *Normalizer, error) {
	var blob modelBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, nil, err
	}
	return blob.Network, blob.Normalizer, nil
}
