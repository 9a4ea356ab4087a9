package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/utils"
)

// Reviewer is a CaseReviewer implementation using Google Gemini
type Reviewer struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	promptFormat  string
	textProcessor *utils.TextProcessor
}

// reviewResponse is the structured verdict expected back from the model
type reviewResponse struct {
	Assessment string  `json:"assessment"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// NewReviewer creates a new Gemini case reviewer
func NewReviewer(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Reviewer, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Reviewer{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are assisting a security-operations team. An automated pipeline
flagged the email below as high risk and opened a case. Give a second opinion.
Respond with a JSON object containing:
- assessment: string (one or two sentences on whether the risk looks real)
- score: number between 0 and 10 (your own risk estimate)
- confidence: number between 0 and 1 (how confident you are)

Email:
From: %s
To: %s
Subject: %s
Matched detail:
%s

Respond only with the JSON object and nothing else.`,
	}, nil
}

// Close closes the Gemini client
func (r *Reviewer) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ReviewCase asks the model for an advisory second opinion on a case
func (r *Reviewer) ReviewCase(ctx context.Context, email *core.EmailRecord, recipient *core.RecipientRecord, c *core.Case) (*core.ReviewVerdict, error) {
	prompt := fmt.Sprintf(r.promptFormat,
		email.Sender,
		recipient.Recipient,
		email.Subject,
		r.textProcessor.ProcessText(c.Description, r.maxBodySize))

	resp, err := r.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	parsed, err := parseReviewResponse(responseText)
	if err != nil {
		return nil, err
	}

	return &core.ReviewVerdict{
		Assessment: parsed.Assessment,
		Score:      parsed.Score,
		Confidence: parsed.Confidence,
		ModelUsed:  r.modelName,
	}, nil
}

// parseReviewResponse decodes the model output, tolerating prose around the
// JSON object
func parseReviewResponse(text string) (*reviewResponse, error) {
	var parsed reviewResponse
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return &parsed, nil
	}

	jsonStart := -1
	jsonEnd := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			jsonStart = i
			break
		}
	}
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '}' {
			jsonEnd = i + 1
			break
		}
	}

	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("failed to extract JSON from model response")
	}
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return &parsed, nil
}
