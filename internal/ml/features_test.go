package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mikey/email-guardian/internal/core"
)

func TestBasicFeatures(t *testing.T) {
	email := &core.EmailRecord{
		Sender:      "mallory@evil-corp.com",
		Subject:     "Final payment",
		Attachments: "invoice.exe",
	}
	recipient := &core.RecipientRecord{
		Recipient:       "victim@gmail.com",
		RecipientDomain: "gmail.com",
		Leaver:          "YES",
		TerminationDate: "2026-09-01",
		SecurityScore:   3,
		RiskScore:       2,
	}

	fv := BasicFeatures(email, recipient)

	assert.Equal(t, 13.0, fv[FeatSubjectLength])
	assert.Equal(t, 1.0, fv[FeatHasAttachments])
	assert.Equal(t, float64(len("evil-corp.com")), fv[FeatSenderDomainLength])
	assert.Equal(t, 1.0, fv[FeatIsExternal])
	assert.Equal(t, 1.0, fv[FeatIsLeaver])
	assert.Equal(t, 1.0, fv[FeatHasTermination])
	assert.Equal(t, 3.0, fv[FeatSecurityScore])
	assert.Equal(t, 2.0, fv[FeatRiskScore])
}

func TestAdvancedFeaturesDefaultsOnZeroTime(t *testing.T) {
	email := &core.EmailRecord{Sender: "alice@corp.com", Subject: "hello"}
	recipient := &core.RecipientRecord{Recipient: "bob@corp.com"}

	fv := AdvancedFeatures(email, recipient, nil, nil)

	assert.Equal(t, 12.0, fv[FeatHourOfDay])
	assert.Equal(t, 1.0, fv[FeatDayOfWeek])
}

func TestAdvancedFeaturesNilStoresAreSafe(t *testing.T) {
	email := &core.EmailRecord{
		Timestamp: time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC),
		Sender:    "alice@corp.com",
		Subject:   "URGENT: verify your account now!",
	}
	recipient := &core.RecipientRecord{Recipient: "bob@corp.com"}

	fv := AdvancedFeatures(email, recipient, nil, nil)

	assert.Equal(t, 15.0, fv[FeatHourOfDay])
	assert.Greater(t, fv[FeatPhishingDensity], 0.0)
	assert.Zero(t, fv[FeatSenderCentrality])
	assert.Zero(t, fv[FeatFrequencyAnomaly])
}

func TestTextFeaturesCountsAndDensities(t *testing.T) {
	fv := TextFeatures("URGENT! Verify your account at http://evil.example.com or pay the invoice")

	assert.Equal(t, 10.0, fv[FeatWordCount])
	assert.Equal(t, 1.0, fv[FeatExclamationCount])
	assert.Equal(t, 1.0, fv[FeatURLCount])
	assert.Greater(t, fv[FeatPhishingDensity], 0.0)
	assert.Greater(t, fv[FeatFinancialDensity], 0.0)
}

func TestTextFeaturesSentiment(t *testing.T) {
	negative := TextFeatures("URGENT warning: account suspended, act immediately")
	positive := TextFeatures("Thanks, great work, much appreciated")
	neutral := TextFeatures("meeting room change")

	assert.Less(t, negative[FeatSentimentPolarity], 0.0)
	assert.Greater(t, positive[FeatSentimentPolarity], 0.0)
	assert.Zero(t, neutral[FeatSentimentPolarity])
	assert.Zero(t, neutral[FeatSentimentSubjectivity])
}

func TestTextFeaturesEmptyText(t *testing.T) {
	fv := TextFeatures("")

	assert.Zero(t, fv[FeatWordCount])
	assert.Zero(t, fv[FeatPhishingDensity])
	assert.Zero(t, fv[FeatCapsRatio])
}
