package ml

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mikey/email-guardian/internal/core"
)

// Keyword lexicons for the text features. Densities are keyword hits over
// word count, so short urgent subjects score high.
var (
	phishingLexicon = []string{
		"verify", "suspend", "urgent", "click", "confirm", "expire",
		"account", "password", "login", "update", "security alert",
		"act now", "limited time",
	}

	financialLexicon = []string{
		"wire", "transfer", "payment", "invoice", "bank", "routing",
		"swift", "bitcoin", "crypto", "gift card", "refund", "payroll",
	}

	positiveLexicon = []string{
		"thanks", "great", "good", "appreciate", "welcome", "happy",
		"congratulations", "excellent", "pleased",
	}

	negativeLexicon = []string{
		"urgent", "warning", "suspended", "terminated", "failure",
		"problem", "risk", "threat", "penalty", "overdue", "immediately",
	}
)

var (
	reURL    = regexp.MustCompile(`https?://\S+|www\.\S+`)
	reEmail  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	reNumber = regexp.MustCompile(`\d+`)
)

// TextFeatures computes the NLP feature set from free text, normally the
// subject plus any available body preview.
func TextFeatures(text string) core.FeatureVector {
	fv := core.FeatureVector{}

	lower := strings.ToLower(text)
	words := strings.Fields(lower)
	wordCount := float64(len(words))

	fv[FeatWordCount] = wordCount
	fv[FeatCharCount] = float64(len(text))
	fv[FeatExclamationCount] = float64(strings.Count(text, "!"))
	fv[FeatQuestionCount] = float64(strings.Count(text, "?"))
	fv[FeatCapsRatio] = capsRatio(text)
	fv[FeatURLCount] = float64(len(reURL.FindAllString(lower, -1)))
	fv[FeatEmailCount] = float64(len(reEmail.FindAllString(text, -1)))
	fv[FeatNumberCount] = float64(len(reNumber.FindAllString(text, -1)))

	denominator := wordCount
	if denominator == 0 {
		denominator = 1
	}
	fv[FeatPhishingDensity] = float64(countLexiconHits(lower, phishingLexicon)) / denominator
	fv[FeatFinancialDensity] = float64(countLexiconHits(lower, financialLexicon)) / denominator

	polarity, subjectivity := sentiment(lower, denominator)
	fv[FeatSentimentPolarity] = polarity
	fv[FeatSentimentSubjectivity] = subjectivity

	return fv
}

// countLexiconHits counts how many lexicon entries appear in the text.
// Each entry counts once regardless of repetition.
func countLexiconHits(lower string, lexicon []string) int {
	hits := 0
	for _, term := range lexicon {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return hits
}

// sentiment is a small lexicon-based approximation: polarity in [-1, 1]
// from the balance of positive and negative terms, subjectivity in [0, 1]
// as the share of opinionated terms.
func sentiment(lower string, wordCount float64) (float64, float64) {
	pos := float64(countLexiconHits(lower, positiveLexicon))
	neg := float64(countLexiconHits(lower, negativeLexicon))

	total := pos + neg
	if total == 0 {
		return 0, 0
	}

	polarity := (pos - neg) / total
	subjectivity := total / wordCount
	if subjectivity > 1 {
		subjectivity = 1
	}

	return polarity, subjectivity
}

func capsRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}

	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(text))
}
