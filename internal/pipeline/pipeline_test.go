package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/adapters/storage"
	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/ml"
)

// stubScorer returns a fixed score or error
type stubScorer struct {
	score float64
	err   error
}

func (s *stubScorer) Score(core.FeatureVector) (float64, error) {
	return s.score, s.err
}

func testScoring() config.ScoringConfig {
	return config.ScoringConfig{
		SeverityWeights: map[string]float64{
			core.SeverityLow:      1,
			core.SeverityMedium:   2,
			core.SeverityHigh:     3,
			core.SeverityCritical: 5,
		},
		SecurityWeight:        0.3,
		KeywordWeight:         0.2,
		MLWeight:              0.25,
		AdvancedMLWeight:      0.25,
		FlagThreshold:         5.0,
		SecurityFlagThreshold: 3.0,
		CaseThreshold:         8.0,
		CriticalBand:          15,
		HighBand:              10,
		MediumBand:            5,
		NeutralScore:          2.5,
		DampenerFactor:        0.5,
		DampenerKeywords:      []string{"no-reply", "unsubscribe", "automated", "system notification"},
	}
}

func testPipeline(store *storage.MemoryStorage, basic, advanced core.Scorer) *Pipeline {
	return New(
		store,
		basic,
		advanced,
		ml.NewProfileStore(30, 2000),
		ml.NewCommGraph(1000, 100),
		nil,
		nil,
		testScoring(),
		10,
		zap.NewNop(),
	)
}

// stubReviewer returns a fixed verdict
type stubReviewer struct {
	verdict *core.ReviewVerdict
	err     error
}

func (s *stubReviewer) ReviewCase(context.Context, *core.EmailRecord, *core.RecipientRecord, *core.Case) (*core.ReviewVerdict, error) {
	return s.verdict, s.err
}

func inboundEmail(sender, subject string, recipients ...string) *core.InboundEmail {
	in := &core.InboundEmail{
		Email: &core.EmailRecord{
			Timestamp:  time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
			Sender:     sender,
			Subject:    subject,
			Recipients: recipients,
		},
	}
	for _, r := range recipients {
		in.Recipients = append(in.Recipients, &core.RecipientRecord{Recipient: r})
	}
	return in
}

func TestProcessRejectsMalformedBatch(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := testPipeline(store, &stubScorer{score: 1}, &stubScorer{score: 1})

	bad := inboundEmail("", "no sender", "bob@corp.com")

	_, err := p.Process(context.Background(), []*core.InboundEmail{bad})

	var malformed *core.MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Missing[0], "sender")
	assert.Zero(t, store.EmailCount())
}

func TestProcessOrdinaryEmail(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := testPipeline(store, &stubScorer{score: 1}, &stubScorer{score: 1})

	in := inboundEmail("alice@corp.com", "lunch plans", "bob@corp.com")

	summary, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalEmails)
	assert.Equal(t, 1, summary.TotalRecipients)
	assert.Zero(t, summary.Flagged)
	assert.Zero(t, summary.CasesGenerated)

	require.Equal(t, 1, store.EmailCount())
	assert.NotEqual(t, uuid.Nil, in.Email.ID)
	assert.Equal(t, "processed", in.Email.PipelineStatus)
	assert.NotNil(t, in.Email.ProcessedAt)

	records := store.RecipientsFor(in.Email.ID)
	require.Len(t, records, 1)
	assert.Equal(t, 1.0, records[0].MLScore)
	assert.InDelta(t, 0.5, records[0].CombinedScore, 1e-9)
}

func TestExclusionSkipsAllScoring(t *testing.T) {
	store := storage.NewMemoryStorage()
	store.SeedRuleSet(&core.RuleSetSnapshot{
		ExclusionRules: []core.ExclusionRule{
			{Name: "internal newsletters", RuleType: "sender", Pattern: "newsletter@", Active: true},
		},
		RiskKeywords: []core.RiskKeyword{
			{Keyword: "bitcoin", Category: "financial", Weight: 2.0, Active: true},
		},
		// The sender's domain is whitelisted, but exclusion stops the
		// pipeline before the whitelist stage runs
		WhitelistDomains: []core.WhitelistDomain{{Domain: "corp.com", Active: true}},
	})
	p := testPipeline(store, &stubScorer{score: 9}, &stubScorer{score: 9})

	in := inboundEmail("newsletter@corp.com", "bitcoin weekly digest", "bob@corp.com")

	summary, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Excluded)
	assert.Zero(t, summary.Flagged)

	record := store.RecipientsFor(in.Email.ID)[0]
	assert.True(t, record.Excluded)
	assert.False(t, record.Whitelisted)
	assert.Empty(t, record.WhitelistReason)
	assert.Zero(t, record.SecurityScore)
	assert.Zero(t, record.RiskScore)
	assert.Zero(t, record.MLScore)
	assert.Zero(t, record.CombinedScore)
}

func TestWhitelistIsAdvisoryOnly(t *testing.T) {
	store := storage.NewMemoryStorage()
	store.SeedRuleSet(&core.RuleSetSnapshot{
		WhitelistDomains: []core.WhitelistDomain{{Domain: "corp.com", Active: true}},
		RiskKeywords: []core.RiskKeyword{
			{Keyword: "bitcoin", Category: "financial", Weight: 2.0, Active: true},
		},
	})
	p := testPipeline(store, &stubScorer{score: 1}, &stubScorer{score: 1})

	in := inboundEmail("alice@corp.com", "bitcoin transfer", "bob@external.com")

	_, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	record := store.RecipientsFor(in.Email.ID)[0]
	assert.True(t, record.Whitelisted)
	assert.Contains(t, record.WhitelistReason, "corp.com")
	// Scoring still ran
	assert.Equal(t, 2.0, record.RiskScore)
}

func TestSecurityRuleScoringAndFlagging(t *testing.T) {
	store := storage.NewMemoryStorage()
	store.SeedRuleSet(&core.RuleSetSnapshot{
		SecurityRules: []core.SecurityRule{
			{Name: "executable attachment", RuleType: "attachment", Pattern: ".exe", Severity: core.SeverityHigh, Active: true},
			{Name: "leaver traffic", RuleType: "leaver", Pattern: "yes", Severity: core.SeverityMedium, Active: true},
		},
	})
	p := testPipeline(store, &stubScorer{score: 1}, &stubScorer{score: 1})

	in := inboundEmail("mallory@corp.com", "files as discussed", "victim@external.com")
	in.Email.Attachments = "setup.exe"
	in.Recipients[0].Leaver = "yes"

	summary, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	record := store.RecipientsFor(in.Email.ID)[0]
	assert.Equal(t, 5.0, record.SecurityScore)
	require.Len(t, record.MatchedSecurityRules, 2)
	assert.Equal(t, "executable attachment", record.MatchedSecurityRules[0].Name)
	assert.Equal(t, 3.0, record.MatchedSecurityRules[0].ScoreAdded)

	// security 5.0 > 3.0 flags even though combined stays low
	assert.True(t, record.Flagged)
	assert.Equal(t, 1, summary.Flagged)
}

func TestDampenerHalvesKeywordScore(t *testing.T) {
	store := storage.NewMemoryStorage()
	store.SeedRuleSet(&core.RuleSetSnapshot{
		RiskKeywords: []core.RiskKeyword{
			{Keyword: "password", Category: "credential", Weight: 3.0, Active: true},
		},
	})
	p := testPipeline(store, &stubScorer{score: 1}, &stubScorer{score: 1})

	in := inboundEmail("no-reply@corp.com", "password expiry notice", "bob@corp.com")

	_, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	record := store.RecipientsFor(in.Email.ID)[0]
	assert.Equal(t, 1.5, record.RiskScore)
}

func TestScorerFailureUsesNeutralScore(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := testPipeline(store,
		&stubScorer{err: errors.New("model unavailable")},
		&stubScorer{score: 4})

	in := inboundEmail("alice@corp.com", "status update", "bob@corp.com")

	_, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	record := store.RecipientsFor(in.Email.ID)[0]
	assert.Equal(t, 2.5, record.MLScore)
	assert.Equal(t, 4.0, record.AdvancedMLScore)
}

func TestHighCombinedScoreGeneratesCase(t *testing.T) {
	store := storage.NewMemoryStorage()
	store.SeedRuleSet(&core.RuleSetSnapshot{
		SecurityRules: []core.SecurityRule{
			{Name: "critical exfil", RuleType: "attachment", Pattern: ".db", Severity: core.SeverityCritical, Active: true},
		},
		RiskKeywords: []core.RiskKeyword{
			{Keyword: "confidential", Category: "data", Weight: 10.0, Active: true},
		},
	})
	p := testPipeline(store, &stubScorer{score: 10}, &stubScorer{score: 10})

	subject := "confidential customer database export"
	in := inboundEmail("mallory@corp.com", subject, "drop@external.com")
	in.Email.Attachments = "customers.db"

	summary, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CasesGenerated)

	record := store.RecipientsFor(in.Email.ID)[0]
	// 0.3*5 + 0.2*10 + 0.25*10 + 0.25*10 = 8.5
	assert.InDelta(t, 8.5, record.CombinedScore, 1e-9)
	assert.True(t, record.CaseGenerated)

	cases := store.CasesFor(in.Email.ID)
	require.Len(t, cases, 1)
	assert.Equal(t, "High-risk email detected: "+subject, cases[0].Title)
	assert.Equal(t, "high_risk_email", cases[0].CaseType)
	assert.Equal(t, core.CaseStatusOpen, cases[0].Status)
	// combined 8.5 sits in the medium band (below 10)
	assert.Equal(t, core.SeverityMedium, cases[0].Severity)
	assert.Equal(t, 10.0, cases[0].RiskFactors.MLScore)
}

func TestCaseSeverityBandsOnCombinedScore(t *testing.T) {
	g := &caseGenerator{scoring: testScoring()}
	email := &core.EmailRecord{Sender: "mallory@corp.com", Subject: "database export"}

	record := &core.RecipientRecord{
		Recipient:       "drop@external.com",
		SecurityScore:   5,
		RiskScore:       10,
		MLScore:         10,
		AdvancedMLScore: 10,
		CombinedScore:   8.5,
	}

	// Severity follows the combined score, not the stage-score sum
	assert.Equal(t, core.SeverityMedium, g.generate(email, record).Severity)

	record.CombinedScore = 12.0
	assert.Equal(t, core.SeverityHigh, g.generate(email, record).Severity)

	record.CombinedScore = 16.0
	assert.Equal(t, core.SeverityCritical, g.generate(email, record).Severity)

	record.CombinedScore = 4.0
	assert.Equal(t, core.SeverityLow, g.generate(email, record).Severity)
}

func TestUnknownRuleSeverityScoresLowWeight(t *testing.T) {
	store := storage.NewMemoryStorage()
	store.SeedRuleSet(&core.RuleSetSnapshot{
		SecurityRules: []core.SecurityRule{
			{Name: "legacy import", RuleType: "attachment", Pattern: ".exe", Severity: "urgent", Active: true},
		},
	})
	p := testPipeline(store, &stubScorer{score: 1}, &stubScorer{score: 1})

	in := inboundEmail("mallory@corp.com", "files", "victim@external.com")
	in.Email.Attachments = "setup.exe"

	_, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	record := store.RecipientsFor(in.Email.ID)[0]
	assert.Equal(t, 1.0, record.SecurityScore)
	require.Len(t, record.MatchedSecurityRules, 1)
	assert.Equal(t, 1.0, record.MatchedSecurityRules[0].ScoreAdded)
}

func TestReviewerVerdictFeedsFeedbackLoop(t *testing.T) {
	store := storage.NewMemoryStorage()
	store.SeedRuleSet(&core.RuleSetSnapshot{
		SecurityRules: []core.SecurityRule{
			{Name: "critical exfil", RuleType: "attachment", Pattern: ".db", Severity: core.SeverityCritical, Active: true},
		},
		RiskKeywords: []core.RiskKeyword{
			{Keyword: "confidential", Category: "data", Weight: 25.0, Active: true},
		},
	})

	scorer := ml.NewAdvancedScorer(zap.NewNop())
	loop := ml.NewFeedbackLoop(scorer, config.FeedbackConfig{
		BufferSize:          10,
		ConfidenceThreshold: 0.5,
		LearningRate:        0.1,
		ForgettingFactor:    0.95,
	}, zap.NewNop())

	reviewer := &stubReviewer{verdict: &core.ReviewVerdict{
		Assessment: "Exfiltration pattern, risk is real",
		Score:      9.0,
		Confidence: 0.9,
		ModelUsed:  "stub",
	}}

	p := New(
		store,
		&stubScorer{score: 10},
		scorer,
		ml.NewProfileStore(30, 2000),
		ml.NewCommGraph(1000, 100),
		reviewer,
		loop,
		testScoring(),
		10,
		zap.NewNop(),
	)

	in := inboundEmail("mallory@corp.com", "confidential database export", "drop@external.com")
	in.Email.Attachments = "customers.db"

	summary, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)
	require.Equal(t, 1, summary.CasesGenerated)

	cases := store.CasesFor(in.Email.ID)
	require.Len(t, cases, 1)
	assert.Contains(t, cases[0].Description, "Reviewer (stub)")

	// The verdict was graded into the loop
	assert.Equal(t, 1, loop.BufferLen())
}

func TestCaseTitleTruncatesLongSubject(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "confidential "
	}

	title := caseTitle(long)
	assert.Len(t, title, len("High-risk email detected: ")+100)
}

func TestMultiRecipientFanOut(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := testPipeline(store, &stubScorer{score: 1}, &stubScorer{score: 1})

	in := inboundEmail("alice@corp.com", "team update",
		"bob@corp.com", "carol@external.com")

	summary, err := p.Process(context.Background(), []*core.InboundEmail{in})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalEmails)
	assert.Equal(t, 2, summary.TotalRecipients)

	records := store.RecipientsFor(in.Email.ID)
	require.Len(t, records, 2)
	assert.Equal(t, "corp.com", records[0].RecipientDomain)
	assert.Equal(t, "external.com", records[1].RecipientDomain)
}

func TestSenderCountersUpdated(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := testPipeline(store, &stubScorer{score: 1}, &stubScorer{score: 1})

	batch := []*core.InboundEmail{
		inboundEmail("alice@corp.com", "one", "bob@corp.com"),
		inboundEmail("alice@corp.com", "two", "bob@corp.com"),
	}

	_, err := p.Process(context.Background(), batch)
	require.NoError(t, err)

	meta, err := store.GetSenderMetadata(context.Background(), "alice@corp.com")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.TotalEmailsSent)
}
