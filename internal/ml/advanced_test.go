package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
)

// benignFeatures is a vector that triggers none of the risk modifiers
func benignFeatures() core.FeatureVector {
	return core.FeatureVector{
		FeatSubjectLength:    40,
		FeatHourOfDay:        10,
		FeatSenderCentrality: 0.4,
	}
}

func TestScoreStaysInRange(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())

	hostile := core.FeatureVector{
		FeatPhishingDensity:   0.9,
		FeatFinancialDensity:  0.5,
		FeatIsExternal:        1,
		FeatFrequencyAnomaly:  1,
		FeatTimingAnomaly:     1,
		FeatPatternDeviation:  1,
		FeatSentimentPolarity: -0.9,
		FeatSecurityScore:     10,
		FeatRiskScore:         10,
		FeatIsLeaver:          1,
		FeatHasTermination:    1,
		FeatHourOfDay:         2,
	}

	score, err := scorer.Score(hostile)
	assert.NoError(t, err)
	assert.Equal(t, 10.0, score)

	low, err := scorer.Score(benignFeatures())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.Less(t, low, 10.0)
}

func TestPhishingDensityModifier(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())

	base := benignFeatures()
	phishy := benignFeatures()
	phishy[FeatPhishingDensity] = 0.5

	baseScore, err := scorer.Score(base)
	assert.NoError(t, err)
	phishyScore, err := scorer.Score(phishy)
	assert.NoError(t, err)

	assert.Greater(t, phishyScore, baseScore)
}

func TestFinancialModifierRequiresExternal(t *testing.T) {
	internal := benignFeatures()
	internal[FeatFinancialDensity] = 0.3

	external := benignFeatures()
	external[FeatFinancialDensity] = 0.3
	external[FeatIsExternal] = 1

	assert.Equal(t, 5.0, applyModifiers(5.0, internal))
	assert.InDelta(t, 8.0, applyModifiers(5.0, external), 1e-9)
}

func TestBehavioralModifierUsesMeanOfThree(t *testing.T) {
	below := benignFeatures()
	below[FeatFrequencyAnomaly] = 0.9
	below[FeatTimingAnomaly] = 0.9
	// pattern_deviation zero keeps the mean at 0.6

	above := benignFeatures()
	above[FeatFrequencyAnomaly] = 0.9
	above[FeatTimingAnomaly] = 0.9
	above[FeatPatternDeviation] = 0.9

	assert.Equal(t, 5.0, applyModifiers(5.0, below))
	assert.InDelta(t, 7.0, applyModifiers(5.0, above), 1e-9)
}

func TestCentralityModifierFiresAtBothExtremes(t *testing.T) {
	hub := benignFeatures()
	hub[FeatSenderCentrality] = 0.9

	isolate := benignFeatures()
	isolate[FeatSenderCentrality] = 0.05

	mid := benignFeatures()
	mid[FeatSenderCentrality] = 0.5

	assert.InDelta(t, 6.0, applyModifiers(5.0, hub), 1e-9)
	assert.InDelta(t, 6.0, applyModifiers(5.0, isolate), 1e-9)
	assert.Equal(t, 5.0, applyModifiers(5.0, mid))
}

func TestModifiersCompoundInOrder(t *testing.T) {
	features := benignFeatures()
	features[FeatPhishingDensity] = 0.5
	features[FeatSentimentPolarity] = -0.8

	// 5.0 * 1.8 * 1.3
	assert.InDelta(t, 11.7, applyModifiers(5.0, features), 1e-9)
}

func TestWeightsShiftVotes(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())

	features := benignFeatures()
	features[FeatPhishingDensity] = 0.35
	features[FeatFinancialDensity] = 0.15
	features[FeatURLCount] = 2

	before, err := scorer.Score(features)
	assert.NoError(t, err)

	// Trusting the content member more should raise this content-heavy score
	scorer.SetWeight(MemberContent, 2.0)
	scorer.SetWeight(MemberAnomaly, 0.1)

	after, err := scorer.Score(features)
	assert.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestSetWeightIgnoresUnknownMember(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())
	scorer.SetWeight("oracle", 5.0)

	_, ok := scorer.Weights()["oracle"]
	assert.False(t, ok)
}

func TestMemberVotesBounded(t *testing.T) {
	scorer := NewAdvancedScorer(zap.NewNop())

	votes := scorer.MemberVotes(core.FeatureVector{
		FeatPhishingDensity:  1,
		FeatFrequencyAnomaly: 1,
		FeatSenderCentrality: 0.95,
		FeatSecurityScore:    10,
	})

	assert.Len(t, votes, 4)
	for member, vote := range votes {
		assert.GreaterOrEqual(t, vote, 0.0, member)
		assert.LessOrEqual(t, vote, 1.0, member)
	}
}
