package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/adapters/ingest"
	"github.com/mikey/email-guardian/internal/adapters/storage"
	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/factory"
	"github.com/mikey/email-guardian/internal/logging"
	"github.com/mikey/email-guardian/internal/ml"
	"github.com/mikey/email-guardian/internal/pipeline"
	"github.com/mikey/email-guardian/internal/utils"
	"github.com/mikey/email-guardian/internal/workflow"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Email fields for single-email scoring
	Sender      string
	Recipients  string
	Subject     string
	Attachments string
	Timestamp   string
	Leaver      bool
	Department  string
	BUnit       string

	// Reviewer provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Workflow flags
	MarkEmail string
	MarkState string
	Actor     string
	Reason    string
	Notes     string

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Email fields
	flag.StringVar(&flags.Sender, "sender", "", "Sender email address")
	flag.StringVar(&flags.Recipients, "recipients", "", "Comma-separated recipient addresses")
	flag.StringVar(&flags.Subject, "subject", "", "Email subject")
	flag.StringVar(&flags.Attachments, "attachments", "", "Comma-separated attachment names")
	flag.StringVar(&flags.Timestamp, "timestamp", "", "Email timestamp (RFC3339, defaults to now)")
	flag.BoolVar(&flags.Leaver, "leaver", false, "Mark the sender as a leaver")
	flag.StringVar(&flags.Department, "department", "", "Sender department")
	flag.StringVar(&flags.BUnit, "bunit", "", "Sender business unit")

	// Reviewer provider flags
	flag.StringVar(&flags.Provider, "reviewer", "none", "Case reviewer provider (none, bedrock, gemini, openai)")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for reviewer response")
	flag.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for reviewer generation")
	flag.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for reviewer generation")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum case description size to send to the reviewer")

	// Bedrock flags
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	flag.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4", "OpenAI model name")

	// Workflow flags
	flag.StringVar(&flags.MarkEmail, "mark", "", "Email ID to move through the review workflow instead of scoring (requires -config)")
	flag.StringVar(&flags.MarkState, "to", "flagged", "Target workflow state for -mark (processed, flagged, escalated, cleared)")
	flag.StringVar(&flags.Actor, "actor", "cli", "Actor recorded on workflow moves")
	flag.StringVar(&flags.Reason, "reason", "", "Reason recorded on workflow moves")
	flag.StringVar(&flags.Notes, "notes", "", "Notes recorded on workflow moves")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input CSV export file (overrides single-email flags)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
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

	// Register storage. One-shot scoring keeps nothing on disk; with a
	// config file the CLI works against the configured store, which is what
	// lets -mark move emails the daemon persisted.
	if err := container.Provide(func(flags *CLIFlags, f *factory.StorageFactory) (core.Storage, error) {
		if flags.ConfigFile != "" {
			return f.CreateStorage()
		}
		return storage.NewMemoryStorage(), nil
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

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// One-shot runs keep everything in memory
	v.Set("storage.type", "memory")
	v.Set("cli.verbose", flags.Verbose)

	// Set reviewer provider
	v.Set("reviewer.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	}

	return config.NewFromViper(v)
}
