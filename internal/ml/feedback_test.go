package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
)

func testFeedbackConfig() config.FeedbackConfig {
	return config.FeedbackConfig{
		BufferSize:          500,
		RetrainThreshold:    100,
		ConfidenceThreshold: 0.6,
		LearningRate:        0.1,
		ForgettingFactor:    0.95,
	}
}

func TestHighConfidenceUpdatesOnline(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())
	loop := NewFeedbackLoop(scorer, testFeedbackConfig(), zap.NewNop())

	before := scorer.Weights()[MemberContent]

	loop.Submit(FeedbackSample{
		Votes:      map[string]float64{MemberContent: 0.9},
		Target:     0.9,
		Confidence: 0.95,
	})

	after := scorer.Weights()[MemberContent]
	// 0.95*1.0 + 0.1*1.0*0.95
	assert.InDelta(t, 1.045, after, 1e-9)
	assert.NotEqual(t, before, after)
}

func TestLowConfidenceBuffersWithoutUpdating(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())
	loop := NewFeedbackLoop(scorer, testFeedbackConfig(), zap.NewNop())

	loop.Submit(FeedbackSample{
		Votes:      map[string]float64{MemberContent: 0.1},
		Target:     0.9,
		Confidence: 0.3,
	})

	assert.Equal(t, 1, loop.BufferLen())
	assert.Equal(t, 1.0, scorer.Weights()[MemberContent])
}

func TestWeightsStayClamped(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())
	loop := NewFeedbackLoop(scorer, testFeedbackConfig(), zap.NewNop())

	// A consistently wrong member decays but never below the floor
	for i := 0; i < 99; i++ {
		loop.Submit(FeedbackSample{
			Votes:      map[string]float64{MemberContent: 0.0},
			Target:     1.0,
			Confidence: 1.0,
		})
	}

	w := scorer.Weights()[MemberContent]
	assert.GreaterOrEqual(t, w, minWeight)
	assert.LessOrEqual(t, w, maxWeight)
}

func TestRetrainTruncatesBuffer(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())
	cfg := testFeedbackConfig()
	cfg.RetrainThreshold = 10
	loop := NewFeedbackLoop(scorer, cfg, zap.NewNop())

	for i := 0; i < 10; i++ {
		loop.Submit(FeedbackSample{
			Votes:      map[string]float64{MemberContent: 0.9, MemberAnomaly: 0.1},
			Target:     0.9,
			Confidence: 0.5,
		})
	}

	// Retrain fired at the threshold and kept the most recent half
	assert.Equal(t, 5, loop.BufferLen())

	weights := scorer.Weights()
	assert.Greater(t, weights[MemberContent], weights[MemberAnomaly])
}

func TestRetrainWeightsByAccuracy(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())
	cfg := testFeedbackConfig()
	cfg.RetrainThreshold = 4
	cfg.ConfidenceThreshold = 2 // keep the online path out of the way
	loop := NewFeedbackLoop(scorer, cfg, zap.NewNop())

	for i := 0; i < 4; i++ {
		loop.Submit(FeedbackSample{
			Votes:      map[string]float64{MemberContent: 1.0, MemberNetwork: 0.0},
			Target:     1.0,
			Confidence: 0.9,
		})
	}

	weights := scorer.Weights()
	// Perfect accuracy maps to the weight ceiling, total misses to the floor
	assert.Equal(t, maxWeight, weights[MemberContent])
	assert.Equal(t, minWeight, weights[MemberNetwork])
}

func TestSubmitVerdictGradesCurrentVotes(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())
	loop := NewFeedbackLoop(scorer, testFeedbackConfig(), zap.NewNop())

	features := core.FeatureVector{
		FeatPhishingDensity: 0.9,
		FeatIsExternal:      1,
		FeatCapsRatio:       0.8,
	}

	loop.SubmitVerdict(features, 0.9, 0.95)

	// The sample carries the ensemble's own votes on those features
	assert.Equal(t, 1, loop.BufferLen())
	for member, weight := range scorer.Weights() {
		assert.NotEqual(t, 1.0, weight, member)
	}
}

func TestBufferCapped(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())
	cfg := testFeedbackConfig()
	cfg.BufferSize = 8
	cfg.RetrainThreshold = 0 // disable retraining to watch the cap alone
	loop := NewFeedbackLoop(scorer, cfg, zap.NewNop())

	for i := 0; i < 20; i++ {
		loop.Submit(FeedbackSample{
			Votes:      map[string]float64{MemberContent: 0.5},
			Target:     0.5,
			Confidence: 0.2,
		})
	}

	assert.Equal(t, 8, loop.BufferLen())
}
