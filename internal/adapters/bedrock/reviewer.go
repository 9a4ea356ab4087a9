package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/utils"
)

// Reviewer is a CaseReviewer implementation using Amazon Bedrock
type Reviewer struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
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

// NewReviewer creates a new Bedrock case reviewer
func NewReviewer(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Reviewer {
	return &Reviewer{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
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
	}
}

// ReviewCase asks the model for an advisory second opinion on a case
func (r *Reviewer) ReviewCase(ctx context.Context, email *core.EmailRecord, recipient *core.RecipientRecord, c *core.Case) (*core.ReviewVerdict, error) {
	prompt := fmt.Sprintf(r.promptFormat,
		email.Sender,
		recipient.Recipient,
		email.Subject,
		r.textProcessor.ProcessText(c.Description, r.maxBodySize))

	var payload []byte
	var err error

	if r.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": r.maxTokens,
			"temperature":          r.temperature,
			"top_p":                r.topP,
		})
	} else if r.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": r.maxTokens,
				"temperature":   r.temperature,
				"topP":          r.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  r.maxTokens,
			"temperature": r.temperature,
			"top_p":       r.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := r.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &r.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := r.extractText(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed, err := parseReviewResponse(responseText)
	if err != nil {
		return nil, err
	}

	return &core.ReviewVerdict{
		Assessment: parsed.Assessment,
		Score:      parsed.Score,
		Confidence: parsed.Confidence,
		ModelUsed:  r.modelID,
	}, nil
}

// extractText pulls the completion text out of the model-specific response
// envelope
func (r *Reviewer) extractText(body []byte) (string, error) {
	if r.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if r.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	}
	return string(body), nil
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

// isAnthropicModel checks if the model is an Anthropic Claude model
func (r *Reviewer) isAnthropicModel() bool {
	return strings.HasPrefix(r.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (r *Reviewer) isAmazonTitanModel() bool {
	return strings.HasPrefix(r.modelID, "amazon.titan")
}
