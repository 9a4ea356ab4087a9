package ml

import (
	"strings"

	"github.com/mikey/email-guardian/internal/core"
)

// Feature names shared by the scorers. The basic vector order is fixed;
// scorers index features by name but normalize over this order.
const (
	FeatSubjectLength      = "subject_length"
	FeatHasAttachments     = "has_attachments"
	FeatSenderDomainLength = "sender_domain_length"
	FeatIsExternal         = "is_external"
	FeatIsLeaver           = "is_leaver"
	FeatHasTermination     = "has_termination"
	FeatSecurityScore      = "security_score"
	FeatRiskScore          = "risk_score"

	FeatHourOfDay        = "hour_of_day"
	FeatDayOfWeek        = "day_of_week"
	FeatExclamationCount = "exclamation_count"
	FeatQuestionCount    = "question_count"
	FeatCapsRatio        = "caps_ratio"

	FeatSentimentPolarity     = "sentiment_polarity"
	FeatSentimentSubjectivity = "sentiment_subjectivity"
	FeatPhishingDensity       = "phishing_density"
	FeatFinancialDensity      = "financial_density"
	FeatNumberCount           = "number_count"
	FeatURLCount              = "url_count"
	FeatEmailCount            = "email_count"
	FeatWordCount             = "word_count"
	FeatCharCount             = "char_count"

	FeatFrequencyAnomaly   = "frequency_anomaly"
	FeatTimingAnomaly      = "timing_anomaly"
	FeatPatternDeviation   = "pattern_deviation"
	FeatRecipientDiversity = "recipient_diversity"
	FeatCommFrequency      = "communication_frequency"

	FeatSenderCentrality    = "sender_centrality"
	FeatRecipientCentrality = "recipient_centrality"
	FeatSenderClustering    = "sender_clustering"
)

// basicFeatureOrder fixes the order the basic scorer normalizes features in
var basicFeatureOrder = []string{
	FeatSubjectLength,
	FeatHasAttachments,
	FeatSenderDomainLength,
	FeatIsExternal,
	FeatIsLeaver,
	FeatHasTermination,
	FeatSecurityScore,
	FeatRiskScore,
}

// BasicFeatures extracts the fixed small feature vector used by the basic
// risk scorer. Scores accumulated by earlier stages ride along as features.
func BasicFeatures(email *core.EmailRecord, recipient *core.RecipientRecord) core.FeatureVector {
	fv := core.FeatureVector{}

	fv[FeatSubjectLength] = float64(len(email.Subject))
	fv[FeatHasAttachments] = boolFeature(email.Attachments != "")
	fv[FeatSenderDomainLength] = float64(len(senderDomain(email.Sender)))

	fv[FeatIsExternal] = boolFeature(recipient.RecipientDomain != "")
	fv[FeatIsLeaver] = boolFeature(strings.EqualFold(recipient.Leaver, "yes"))
	fv[FeatHasTermination] = boolFeature(recipient.TerminationDate != "")

	fv[FeatSecurityScore] = recipient.SecurityScore
	fv[FeatRiskScore] = recipient.RiskScore

	return fv
}

// AdvancedFeatures extends the basic vector with time-of-day, NLP,
// behavioral and network features. The profile store and graph may be nil;
// the corresponding features then stay at zero.
func AdvancedFeatures(
	email *core.EmailRecord,
	recipient *core.RecipientRecord,
	profiles *ProfileStore,
	graph *CommGraph,
) core.FeatureVector {
	fv := BasicFeatures(email, recipient)

	if !email.Timestamp.IsZero() {
		fv[FeatHourOfDay] = float64(email.Timestamp.Hour())
		fv[FeatDayOfWeek] = float64(email.Timestamp.Weekday())
	} else {
		fv[FeatHourOfDay] = 12
		fv[FeatDayOfWeek] = 1
	}

	for name, value := range TextFeatures(email.Subject) {
		fv[name] = value
	}

	if profiles != nil {
		for name, value := range profiles.Features(email.Sender, email.Timestamp) {
			fv[name] = value
		}
	}

	if graph != nil {
		fv[FeatSenderCentrality] = graph.DegreeCentrality(email.Sender)
		fv[FeatRecipientCentrality] = graph.DegreeCentrality(recipient.Recipient)
		fv[FeatSenderClustering] = graph.ClusteringCoefficient(email.Sender)
		if profiles != nil {
			fv[FeatCommFrequency] = graph.TrafficShare(email.Sender)
		}
	}

	return fv
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func senderDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
