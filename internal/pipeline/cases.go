package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
)

const caseTitleSubjectLimit = 100

// caseGenerator turns a high-risk recipient assessment into an open
// investigation case
type caseGenerator struct {
	scoring config.ScoringConfig
}

// generate builds the case record. Severity is banded on the same combined
// score that crossed the case threshold.
func (g *caseGenerator) generate(email *core.EmailRecord, record *core.RecipientRecord) *core.Case {
	now := time.Now().UTC()
	return &core.Case{
		EmailID:     email.ID,
		CaseType:    "high_risk_email",
		Severity:    g.severityFor(record.CombinedScore),
		Status:      core.CaseStatusOpen,
		Title:       caseTitle(email.Subject),
		Description: g.describe(email, record),
		RiskFactors: core.RiskFactors{
			SecurityScore:   record.SecurityScore,
			RiskScore:       record.RiskScore,
			MLScore:         record.MLScore,
			AdvancedMLScore: record.AdvancedMLScore,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (g *caseGenerator) severityFor(combined float64) string {
	switch {
	case combined >= g.scoring.CriticalBand:
		return core.SeverityCritical
	case combined >= g.scoring.HighBand:
		return core.SeverityHigh
	case combined >= g.scoring.MediumBand:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

func caseTitle(subject string) string {
	if len(subject) > caseTitleSubjectLimit {
		subject = subject[:caseTitleSubjectLimit]
	}
	return fmt.Sprintf("High-risk email detected: %s", subject)
}

func (g *caseGenerator) describe(email *core.EmailRecord, record *core.RecipientRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Email from %s to %s scored %.2f (threshold %.2f).\n",
		email.Sender, record.Recipient, record.CombinedScore, g.scoring.CaseThreshold)
	fmt.Fprintf(&b, "Scores: security %.2f, keyword %.2f, ml %.2f, advanced ml %.2f.",
		record.SecurityScore, record.RiskScore, record.MLScore, record.AdvancedMLScore)

	if len(record.MatchedSecurityRules) > 0 {
		names := make([]string, len(record.MatchedSecurityRules))
		for i, r := range record.MatchedSecurityRules {
			names[i] = r.Name
		}
		fmt.Fprintf(&b, "\nMatched rules: %s.", strings.Join(names, ", "))
	}

	if len(record.MatchedRiskKeywords) > 0 {
		kws := make([]string, len(record.MatchedRiskKeywords))
		for i, kw := range record.MatchedRiskKeywords {
			kws[i] = kw.Keyword
		}
		fmt.Fprintf(&b, "\nMatched keywords: %s.", strings.Join(kws, ", "))
	}

	if record.Whitelisted {
		fmt.Fprintf(&b, "\nNote: %s.", record.WhitelistReason)
	}

	return b.String()
}
