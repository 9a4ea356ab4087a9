package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/adapters/ingest"
	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/factory"
	"github.com/mikey/email-guardian/internal/logging"
	"github.com/mikey/email-guardian/internal/ml"
	"github.com/mikey/email-guardian/internal/pipeline"
	"github.com/mikey/email-guardian/internal/utils"
	"github.com/mikey/email-guardian/internal/workflow"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStorageFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewScorerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewReviewerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register storage
	if err := container.Provide(func(f *factory.StorageFactory) (core.Storage, error) {
		return f.CreateStorage()
	}); err != nil {
		return nil, err
	}

	// Register scoring components
	if err := container.Provide(func(f *factory.ScorerFactory) *ml.BasicScorer {
		return f.CreateBasicScorer()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ScorerFactory) *ml.AdvancedScorer {
		return f.CreateAdvancedScorer()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ScorerFactory) *ml.ProfileStore {
		return f.CreateProfileStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ScorerFactory) *ml.CommGraph {
		return f.CreateCommGraph()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ScorerFactory, scorer *ml.AdvancedScorer) *ml.FeedbackLoop {
		return f.CreateFeedbackLoop(scorer)
	}); err != nil {
		return nil, err
	}

	// Register case reviewer
	if err := container.Provide(func(f *factory.ReviewerFactory) (core.CaseReviewer, error) {
		return f.CreateReviewer()
	}); err != nil {
		return nil, err
	}

	// Register pipeline
	if err := container.Provide(func(
		cfg *config.Config,
		storage core.Storage,
		basic *ml.BasicScorer,
		advanced *ml.AdvancedScorer,
		profiles *ml.ProfileStore,
		graph *ml.CommGraph,
		reviewer core.CaseReviewer,
		feedback *ml.FeedbackLoop,
		logger *zap.Logger,
	) *pipeline.Pipeline {
		return pipeline.New(
			storage,
			basic,
			advanced,
			profiles,
			graph,
			reviewer,
			feedback,
			cfg.GetScoring(),
			cfg.GetInt("pipeline.batch_size"),
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register workflow manager
	if err := container.Provide(workflow.NewManager); err != nil {
		return nil, err
	}

	// Register CSV source
	if err := container.Provide(ingest.NewCSVSource); err != nil {
		return nil, err
	}

	// Register ingest service
	if err := container.Provide(func(
		cfg *config.Config,
		source *ingest.CSVSource,
		pipe *pipeline.Pipeline,
		logger *zap.Logger,
	) (core.IngestService, error) {
		pollFreq, err := cfg.GetDuration("ingest.poll_frequency")
		if err != nil {
			return nil, err
		}
		return ingest.NewSpoolService(
			cfg.GetString("ingest.spool_dir"),
			pollFreq,
			source,
			pipe,
			logger,
		), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
