package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/ml"
)

// ScorerFactory creates the scoring components and their shared state
type ScorerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewScorerFactory creates a new scorer factory
func NewScorerFactory(cfg *config.Config, logger *zap.Logger) *ScorerFactory {
	return &ScorerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateBasicScorer creates the baseline anomaly scorer
func (f *ScorerFactory) CreateBasicScorer() *ml.BasicScorer {
	return ml.NewBasicScorer(f.logger)
}

// CreateAdvancedScorer creates the ensemble scorer
func (f *ScorerFactory) CreateAdvancedScorer() *ml.AdvancedScorer {
	return ml.NewAdvancedScorer(f.logger)
}

// CreateProfileStore creates the per-sender behavioral history
func (f *ScorerFactory) CreateProfileStore() *ml.ProfileStore {
	behaviorCfg := f.cfg.GetBehavior()
	return ml.NewProfileStore(behaviorCfg.WindowDays, behaviorCfg.MaxEventsPerSender)
}

// CreateCommGraph creates the bounded communication graph
func (f *ScorerFactory) CreateCommGraph() *ml.CommGraph {
	networkCfg := f.cfg.GetNetwork()
	return ml.NewCommGraph(networkCfg.MaxNodes, networkCfg.EvictEdges)
}

// CreateFeedbackLoop creates the adaptive feedback loop bound to a scorer
func (f *ScorerFactory) CreateFeedbackLoop(scorer *ml.AdvancedScorer) *ml.FeedbackLoop {
	return ml.NewFeedbackLoop(scorer, f.cfg.GetFeedback(), f.logger)
}
