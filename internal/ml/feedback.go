package ml

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
)

// Reliability weights stay inside this band so no member is ever fully
// silenced or allowed to dominate.
const (
	minWeight = 0.1
	maxWeight = 2.0
)

// FeedbackSample is one graded prediction: the member votes observed at
// scoring time, the analyst's target outcome in [0, 1], and how confident
// the grader was.
type FeedbackSample struct {
	Votes      map[string]float64
	Target     float64
	Confidence float64
}

// FeedbackLoop adapts the ensemble's reliability weights from analyst
// verdicts. High-confidence samples update weights online immediately;
// everything is buffered, and once enough samples accumulate the loop
// retrains all weights from the buffer and discards its older half.
type FeedbackLoop struct {
	mu     sync.Mutex
	scorer *AdvancedScorer
	buffer []FeedbackSample
	cfg    config.FeedbackConfig
	logger *zap.Logger
}

// NewFeedbackLoop creates a feedback loop bound to an ensemble scorer
func NewFeedbackLoop(scorer *AdvancedScorer, cfg config.FeedbackConfig, logger *zap.Logger) *FeedbackLoop {
	return &FeedbackLoop{
		scorer: scorer,
		buffer: make([]FeedbackSample, 0, cfg.BufferSize),
		cfg:    cfg,
		logger: logger,
	}
}

// BufferLen reports how many samples are currently buffered
func (f *FeedbackLoop) BufferLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffer)
}

// Submit records one graded outcome. Callers capture the member votes at
// scoring time via MemberVotes so the grade lands on what each member
// actually said.
func (f *FeedbackLoop) Submit(sample FeedbackSample) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buffer = append(f.buffer, sample)
	if f.cfg.BufferSize > 0 && len(f.buffer) > f.cfg.BufferSize {
		f.buffer = append(f.buffer[:0], f.buffer[len(f.buffer)-f.cfg.BufferSize:]...)
	}

	if sample.Confidence >= f.cfg.ConfidenceThreshold {
		f.updateOnline(sample)
	}

	if f.cfg.RetrainThreshold > 0 && len(f.buffer) >= f.cfg.RetrainThreshold {
		f.retrain()
	}
}

// SubmitVerdict grades the ensemble's current votes on a feature vector
// against an external verdict, such as a case reviewer's second opinion.
// The target is the verdict's risk estimate scaled to [0, 1].
func (f *FeedbackLoop) SubmitVerdict(features core.FeatureVector, target, confidence float64) {
	f.Submit(FeedbackSample{
		Votes:      f.scorer.MemberVotes(features),
		Target:     target,
		Confidence: confidence,
	})
}

// updateOnline nudges each member's weight toward its accuracy on this
// sample, forgetting a little of the old weight each time.
func (f *FeedbackLoop) updateOnline(sample FeedbackSample) {
	for member, vote := range sample.Votes {
		old := f.scorer.Weights()[member]
		accuracy := 1 - math.Abs(vote-sample.Target)

		updated := f.cfg.ForgettingFactor*old +
			f.cfg.LearningRate*accuracy*sample.Confidence

		f.scorer.SetWeight(member, clampWeight(updated))
	}
}

// retrain recomputes every weight from the whole buffer as the
// confidence-weighted mean accuracy of that member, then keeps only the
// most recent half of the buffer.
func (f *FeedbackLoop) retrain() {
	accuracySums := make(map[string]float64)
	confidenceSums := make(map[string]float64)

	for _, sample := range f.buffer {
		for member, vote := range sample.Votes {
			accuracy := 1 - math.Abs(vote-sample.Target)
			accuracySums[member] += accuracy * sample.Confidence
			confidenceSums[member] += sample.Confidence
		}
	}

	for member, sum := range accuracySums {
		if confidenceSums[member] == 0 {
			continue
		}
		// Mean accuracy in [0, 1] maps onto the weight band
		weight := 2 * sum / confidenceSums[member]
		f.scorer.SetWeight(member, clampWeight(weight))
	}

	kept := len(f.buffer) / 2
	f.buffer = append(f.buffer[:0], f.buffer[len(f.buffer)-kept:]...)

	if f.logger != nil {
		f.logger.Info("Retrained ensemble weights from feedback buffer",
			zap.Int("samples_kept", kept),
			zap.Any("weights", f.scorer.Weights()))
	}
}

func clampWeight(w float64) float64 {
	if w < minWeight {
		return minWeight
	}
	if w > maxWeight {
		return maxWeight
	}
	return w
}
