package config

// ScoringConfig carries the weights, thresholds and bands used by the
// scoring stages and case generation
type ScoringConfig struct {
	SeverityWeights       map[string]float64
	SecurityWeight        float64
	KeywordWeight         float64
	MLWeight              float64
	AdvancedMLWeight      float64
	FlagThreshold         float64
	SecurityFlagThreshold float64
	CaseThreshold         float64
	CriticalBand          float64
	HighBand              float64
	MediumBand            float64
	NeutralScore          float64
	DampenerFactor        float64
	DampenerKeywords      []string
}

// BehaviorConfig bounds the per-sender behavioral history
type BehaviorConfig struct {
	WindowDays         int
	MaxEventsPerSender int
}

// NetworkConfig bounds the communication graph
type NetworkConfig struct {
	MaxNodes   int
	EvictEdges int
}

// FeedbackConfig tunes the adaptive feedback loop
type FeedbackConfig struct {
	BufferSize          int
	RetrainThreshold    int
	ConfidenceThreshold float64
	LearningRate        float64
	ForgettingFactor    float64
}

// ReviewerConfig selects the optional LLM case reviewer
type ReviewerConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetScoring returns the scoring configuration
func (c *Config) GetScoring() ScoringConfig {
	return ScoringConfig{
		SeverityWeights: map[string]float64{
			"low":      c.GetFloat64("scoring.severity_weights.low"),
			"medium":   c.GetFloat64("scoring.severity_weights.medium"),
			"high":     c.GetFloat64("scoring.severity_weights.high"),
			"critical": c.GetFloat64("scoring.severity_weights.critical"),
		},
		SecurityWeight:        c.GetFloat64("scoring.combined_weights.security"),
		KeywordWeight:         c.GetFloat64("scoring.combined_weights.keyword"),
		MLWeight:              c.GetFloat64("scoring.combined_weights.ml"),
		AdvancedMLWeight:      c.GetFloat64("scoring.combined_weights.advanced_ml"),
		FlagThreshold:         c.GetFloat64("scoring.flag_threshold"),
		SecurityFlagThreshold: c.GetFloat64("scoring.security_flag_threshold"),
		CaseThreshold:         c.GetFloat64("scoring.case_threshold"),
		CriticalBand:          c.GetFloat64("scoring.severity_bands.critical"),
		HighBand:              c.GetFloat64("scoring.severity_bands.high"),
		MediumBand:            c.GetFloat64("scoring.severity_bands.medium"),
		NeutralScore:          c.GetFloat64("scoring.neutral_score"),
		DampenerFactor:        c.GetFloat64("scoring.dampener_factor"),
		DampenerKeywords:      c.GetStringSlice("scoring.dampener_keywords"),
	}
}

// GetBehavior returns the behavioral analysis configuration
func (c *Config) GetBehavior() BehaviorConfig {
	return BehaviorConfig{
		WindowDays:         c.GetInt("behavior.window_days"),
		MaxEventsPerSender: c.GetInt("behavior.max_events_per_sender"),
	}
}

// GetNetwork returns the communication graph configuration
func (c *Config) GetNetwork() NetworkConfig {
	return NetworkConfig{
		MaxNodes:   c.GetInt("network.max_nodes"),
		EvictEdges: c.GetInt("network.evict_edges"),
	}
}

// GetFeedback returns the adaptive feedback configuration
func (c *Config) GetFeedback() FeedbackConfig {
	return FeedbackConfig{
		BufferSize:          c.GetInt("feedback.buffer_size"),
		RetrainThreshold:    c.GetInt("feedback.retrain_threshold"),
		ConfidenceThreshold: c.GetFloat64("feedback.confidence_threshold"),
		LearningRate:        c.GetFloat64("feedback.learning_rate"),
		ForgettingFactor:    c.GetFloat64("feedback.forgetting_factor"),
	}
}

// GetReviewer returns the reviewer configuration
func (c *Config) GetReviewer() ReviewerConfig {
	return ReviewerConfig{
		Provider: c.GetString("reviewer.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
