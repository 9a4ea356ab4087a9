package ml

import (
	"errors"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
)

const syntheticSampleCount = 500

// BasicScorer scores the fixed basic feature vector by its deviation from a
// baseline of ordinary traffic. With no labeled history available at
// startup, the baseline is bootstrapped from a deterministic synthetic
// sample so runs are reproducible.
type BasicScorer struct {
	mean   []float64
	std    []float64
	logger *zap.Logger
}

// NewBasicScorer builds a scorer with a synthetic baseline
func NewBasicScorer(logger *zap.Logger) *BasicScorer {
	s := &BasicScorer{logger: logger}
	s.fit(syntheticSamples())
	if logger != nil {
		logger.Info("Initialized basic risk scorer",
			zap.Int("baseline_samples", syntheticSampleCount),
			zap.Int("features", len(basicFeatureOrder)))
	}
	return s
}

// syntheticSamples generates the bootstrap baseline. The seed is fixed so
// every process computes the same scaler.
func syntheticSamples() [][]float64 {
	rng := rand.New(rand.NewSource(42))

	samples := make([][]float64, syntheticSampleCount)
	for i := range samples {
		row := make([]float64, len(basicFeatureOrder))

		// Ordinary traffic: mid-length subjects, mostly internal, few
		// attachments, low accumulated scores.
		row[0] = math.Abs(rng.NormFloat64()*15 + 40) // subject_length
		row[1] = bernoulli(rng, 0.3)                 // has_attachments
		row[2] = math.Abs(rng.NormFloat64()*3 + 11)  // sender_domain_length
		row[3] = bernoulli(rng, 0.4)                 // is_external
		row[4] = bernoulli(rng, 0.05)                // is_leaver
		row[5] = bernoulli(rng, 0.05)                // has_termination
		row[6] = math.Abs(rng.NormFloat64() * 1.5)   // security_score
		row[7] = math.Abs(rng.NormFloat64() * 1.0)   // risk_score

		samples[i] = row
	}
	return samples
}

func bernoulli(rng *rand.Rand, p float64) float64 {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

// fit computes the per-feature scaler over the baseline
func (s *BasicScorer) fit(samples [][]float64) {
	n := len(basicFeatureOrder)
	s.mean = make([]float64, n)
	s.std = make([]float64, n)

	for j := 0; j < n; j++ {
		column := make([]float64, len(samples))
		for i, row := range samples {
			column[i] = row[j]
		}
		s.mean[j], s.std[j] = meanStd(column)
		if s.std[j] == 0 {
			s.std[j] = 1
		}
	}
}

// Score maps a feature vector to a risk score in [0, 10]. The score grows
// with the mean absolute deviation from the baseline, so a vector that
// looks like ordinary traffic lands well below the flagging range.
func (s *BasicScorer) Score(features core.FeatureVector) (float64, error) {
	if len(s.mean) != len(basicFeatureOrder) {
		return 0, &core.ScoringModelError{Stage: "ml", Err: errors.New("scaler not fitted")}
	}

	sumAbsZ := 0.0
	for j, name := range basicFeatureOrder {
		z := (features[name] - s.mean[j]) / s.std[j]
		sumAbsZ += math.Abs(z)
	}
	meanAbsZ := sumAbsZ / float64(len(basicFeatureOrder))

	// A vector at the baseline scores near 2, strong deviations saturate
	// toward 10.
	score := meanAbsZ * 2.5
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}

	return score, nil
}
