package ml

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
)

// Ensemble member names. These are also the keys the feedback loop uses
// when adjusting reliability weights.
const (
	MemberContent  = "content"
	MemberBehavior = "behavior"
	MemberNetwork  = "network"
	MemberAnomaly  = "anomaly"
)

// memberFunc maps a feature vector to a probability-like vote in [0, 1]
type memberFunc func(core.FeatureVector) (float64, error)

const neutralVote = 0.5

// AdvancedScorer combines several specialist classifiers into one weighted
// vote, then applies contextual risk modifiers on top. Reliability weights
// start uniform and drift as the feedback loop learns which members earn
// their votes.
type AdvancedScorer struct {
	mu      sync.RWMutex
	weights map[string]float64
	members map[string]memberFunc
	logger  *zap.Logger
}

// NewAdvancedScorer builds the ensemble with uniform reliability weights
func NewAdvancedScorer(logger *zap.Logger) *AdvancedScorer {
	s := &AdvancedScorer{
		weights: map[string]float64{
			MemberContent:  1.0,
			MemberBehavior: 1.0,
			MemberNetwork:  1.0,
			MemberAnomaly:  1.0,
		},
		logger: logger,
	}
	s.members = map[string]memberFunc{
		MemberContent:  contentVote,
		MemberBehavior: behaviorVote,
		MemberNetwork:  networkVote,
		MemberAnomaly:  anomalyVote,
	}
	return s
}

// Weights returns a copy of the current reliability weights
func (s *AdvancedScorer) Weights() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.weights))
	for name, w := range s.weights {
		out[name] = w
	}
	return out
}

// SetWeight replaces one member's reliability weight. Unknown members are
// ignored.
func (s *AdvancedScorer) SetWeight(member string, weight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.weights[member]; ok {
		s.weights[member] = weight
	}
}

// MemberVotes runs every member on the feature vector and returns the raw
// votes. Failures contribute the neutral vote, same as Score. The feedback
// loop uses this to grade members individually.
func (s *AdvancedScorer) MemberVotes(features core.FeatureVector) map[string]float64 {
	votes := make(map[string]float64, len(s.members))
	for name, member := range s.members {
		vote, err := member(features)
		if err != nil {
			vote = neutralVote
		}
		votes[name] = vote
	}
	return votes
}

// Score runs every ensemble member, combines their votes by normalized
// reliability weight, scales to [0, 10] and applies the contextual
// modifiers. A member that fails contributes a neutral vote instead of
// failing the stage.
func (s *AdvancedScorer) Score(features core.FeatureVector) (float64, error) {
	s.mu.RLock()
	weights := make(map[string]float64, len(s.weights))
	totalWeight := 0.0
	for name, w := range s.weights {
		weights[name] = w
		totalWeight += w
	}
	s.mu.RUnlock()

	if totalWeight == 0 {
		totalWeight = 1
	}

	combined := 0.0
	for name, member := range s.members {
		vote, err := member(features)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("Ensemble member failed, using neutral vote",
					zap.String("member", name),
					zap.Error(err))
			}
			vote = neutralVote
		}
		combined += vote * weights[name] / totalWeight
	}

	score := applyModifiers(combined*10, features)

	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}

// applyModifiers multiplies the base score by each contextual risk
// modifier whose trigger condition holds. Order is fixed; the final clamp
// happens in Score.
func applyModifiers(score float64, features core.FeatureVector) float64 {
	if features[FeatPhishingDensity] > 0.4 {
		score *= 1.8
	}
	if features[FeatFinancialDensity] > 0.2 && features[FeatIsExternal] > 0 {
		score *= 1.6
	}

	behavioral := (features[FeatFrequencyAnomaly] +
		features[FeatTimingAnomaly] +
		features[FeatPatternDeviation]) / 3
	if behavioral > 0.7 {
		score *= 1.4
	}

	centrality := features[FeatSenderCentrality]
	if centrality > 0.8 || centrality < 0.1 {
		score *= 1.2
	}

	if features[FeatSentimentPolarity] < -0.5 {
		score *= 1.3
	}

	return score
}

// contentVote scores textual phishing and pressure signals
func contentVote(features core.FeatureVector) (float64, error) {
	vote := 0.0
	vote += clamp01(features[FeatPhishingDensity]*2) * 0.35
	vote += clamp01(features[FeatFinancialDensity]*2) * 0.25
	vote += clamp01(features[FeatCapsRatio]*2) * 0.1
	vote += clamp01(features[FeatExclamationCount]/3) * 0.1
	vote += clamp01(features[FeatURLCount]/2) * 0.1
	vote += clamp01(-features[FeatSentimentPolarity]) * 0.1
	return clamp01(vote), nil
}

// behaviorVote scores how far the sender has drifted from their own history
func behaviorVote(features core.FeatureVector) (float64, error) {
	vote := (features[FeatFrequencyAnomaly] +
		features[FeatTimingAnomaly] +
		features[FeatPatternDeviation]) / 3

	// Blasting many distinct recipients is itself a signal
	vote = 0.8*vote + 0.2*features[FeatRecipientDiversity]

	return clamp01(vote), nil
}

// networkVote scores the sender's position in the communication graph.
// Both hubs and isolates are riskier than mid-graph senders.
func networkVote(features core.FeatureVector) (float64, error) {
	centrality := features[FeatSenderCentrality]

	positional := 0.0
	switch {
	case centrality > 0.8:
		positional = centrality
	case centrality < 0.1:
		positional = 1 - centrality*5
	}

	isolation := 1 - clamp01(features[FeatSenderClustering])

	return clamp01(0.6*positional + 0.4*isolation), nil
}

// anomalyVote scores overall deviation across the mixed feature set
func anomalyVote(features core.FeatureVector) (float64, error) {
	signals := []float64{
		clamp01(math.Abs(features[FeatSubjectLength]-40) / 120),
		features[FeatIsLeaver],
		features[FeatHasTermination],
		clamp01(features[FeatSecurityScore] / 10),
		clamp01(features[FeatRiskScore] / 10),
		oddHours(features[FeatHourOfDay]),
	}

	sum := 0.0
	for _, v := range signals {
		sum += v
	}
	return clamp01(sum / float64(len(signals))), nil
}

// oddHours flags sends outside ordinary working hours
func oddHours(hour float64) float64 {
	if hour < 6 || hour > 22 {
		return 1
	}
	return 0
}
