package keywords

import (
	"strings"

	"github.com/mikey/email-guardian/internal/core"
	"go.uber.org/zap"
)

// Scorer performs weighted substring matching against the active risk
// keyword list. Matching is case-insensitive over the subject, attachment
// names and the free-text wordlist fields carried on the recipient.
type Scorer struct {
	keywords         []core.RiskKeyword
	dampenerKeywords []string
	dampenerFactor   float64
	logger           *zap.Logger
}

// NewScorer creates a keyword scorer from the active keywords in a
// snapshot. Inactive keywords are dropped up front.
func NewScorer(snap *core.RuleSetSnapshot, dampenerKeywords []string, dampenerFactor float64, logger *zap.Logger) *Scorer {
	active := make([]core.RiskKeyword, 0, len(snap.RiskKeywords))
	for _, kw := range snap.RiskKeywords {
		if kw.Active {
			active = append(active, kw)
		}
	}

	normalized := make([]string, len(dampenerKeywords))
	for i, kw := range dampenerKeywords {
		normalized[i] = strings.ToLower(strings.TrimSpace(kw))
	}

	return &Scorer{
		keywords:         active,
		dampenerKeywords: normalized,
		dampenerFactor:   dampenerFactor,
		logger:           logger,
	}
}

// Score returns the accumulated keyword weight for one recipient's email
// text along with the matched keyword records, in keyword-list order.
func (s *Scorer) Score(email *core.EmailRecord, recipient *core.RecipientRecord) (float64, []core.MatchedKeyword) {
	text := strings.ToLower(strings.Join([]string{
		email.Subject,
		email.Attachments,
		recipient.WordlistSubject,
		recipient.WordlistAttachment,
	}, " "))

	score := 0.0
	var matched []core.MatchedKeyword

	for _, kw := range s.keywords {
		if strings.Contains(text, strings.ToLower(kw.Keyword)) {
			score += kw.Weight
			matched = append(matched, core.MatchedKeyword{
				Keyword:  kw.Keyword,
				Category: kw.Category,
				Weight:   kw.Weight,
			})
		}
	}

	return score, matched
}

// Dampen halves the risk score once when the sender or subject looks like
// an automated system notification. The reduction applies at most once no
// matter how many dampener keywords are present.
func (s *Scorer) Dampen(email *core.EmailRecord, score float64) float64 {
	text := strings.ToLower(email.Subject + " " + email.Sender)

	for _, kw := range s.dampenerKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, kw) {
			s.logger.Debug("Automated sender dampener applied",
				zap.String("sender", email.Sender),
				zap.String("keyword", kw))
			return score * s.dampenerFactor
		}
	}

	return score
}
