package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/adapters/bedrock"
	"github.com/mikey/email-guardian/internal/adapters/gemini"
	"github.com/mikey/email-guardian/internal/adapters/openai"
	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/utils"
)

// ReviewerFactory creates the optional LLM case reviewer
type ReviewerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewReviewerFactory creates a new reviewer factory
func NewReviewerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ReviewerFactory {
	return &ReviewerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateReviewer creates a case reviewer based on the configuration. A
// provider of "none" (or empty) returns nil; cases are then generated
// without a second opinion.
func (f *ReviewerFactory) CreateReviewer() (core.CaseReviewer, error) {
	reviewerConfig := f.cfg.GetReviewer()

	switch reviewerConfig.Provider {
	case "", "none":
		return nil, nil
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateReviewer()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateReviewer()
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateReviewer()
	default:
		return nil, fmt.Errorf("unsupported reviewer provider: %s", reviewerConfig.Provider)
	}
}
