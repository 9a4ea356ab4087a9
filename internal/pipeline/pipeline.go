package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/keywords"
	"github.com/mikey/email-guardian/internal/ml"
	"github.com/mikey/email-guardian/internal/rules"
	"github.com/mikey/email-guardian/internal/whitelist"
)

// Pipeline runs the staged risk assessment over batches of normalized
// emails. Rule and whitelist state is loaded once per run; administrative
// changes take effect on the next run.
type Pipeline struct {
	storage  core.Storage
	basic    core.Scorer
	advanced core.Scorer
	profiles *ml.ProfileStore
	graph    *ml.CommGraph
	reviewer core.CaseReviewer
	feedback *ml.FeedbackLoop

	scoring   config.ScoringConfig
	batchSize int
	logger    *zap.Logger
}

// New creates a pipeline. The reviewer may be nil; case generation then
// proceeds without the advisory second opinion. The feedback loop may be
// nil; reviewer verdicts then leave the ensemble weights alone.
func New(
	storage core.Storage,
	basic core.Scorer,
	advanced core.Scorer,
	profiles *ml.ProfileStore,
	graph *ml.CommGraph,
	reviewer core.CaseReviewer,
	feedback *ml.FeedbackLoop,
	scoring config.ScoringConfig,
	batchSize int,
	logger *zap.Logger,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Pipeline{
		storage:   storage,
		basic:     basic,
		advanced:  advanced,
		profiles:  profiles,
		graph:     graph,
		reviewer:  reviewer,
		feedback:  feedback,
		scoring:   scoring,
		batchSize: batchSize,
		logger:    logger,
	}
}

// run bundles the per-run collaborators built from one rule snapshot
type run struct {
	compiled  *rules.CompiledRuleSet
	matcher   *rules.Matcher
	checker   *whitelist.Checker
	keywords  *keywords.Scorer
	generator *caseGenerator
}

// Process validates and scores a set of emails, persists them in batches
// and returns the run summary. Malformed input fails the whole submission
// before any stage runs; a failed batch write aborts the run with the
// already-persisted batches intact.
func (p *Pipeline) Process(ctx context.Context, inbound []*core.InboundEmail) (*core.ProcessSummary, error) {
	if err := validate(inbound); err != nil {
		return nil, err
	}

	snap, err := p.storage.LoadRuleSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rule set: %w", err)
	}

	r := &run{
		compiled:  rules.CompileSnapshot(snap),
		matcher:   rules.NewMatcher(p.logger),
		checker:   whitelist.NewChecker(snap, p.logger),
		keywords:  keywords.NewScorer(snap, p.scoring.DampenerKeywords, p.scoring.DampenerFactor, p.logger),
		generator: &caseGenerator{scoring: p.scoring},
	}

	p.logger.Info("Starting pipeline run",
		zap.Int("emails", len(inbound)),
		zap.Int("security_rules", len(r.compiled.Security)),
		zap.Int("exclusion_rules", len(r.compiled.Exclusion)))

	summary := &core.ProcessSummary{}
	batch := make([]*core.ProcessedEmail, 0, p.batchSize)

	for _, in := range inbound {
		processed := p.processEmail(ctx, r, in)

		summary.TotalEmails++
		summary.TotalRecipients += len(processed.Recipients)
		for _, rcpt := range processed.Recipients {
			if rcpt.Excluded {
				summary.Excluded++
			}
			if rcpt.Flagged {
				summary.Flagged++
			}
		}
		summary.CasesGenerated += len(processed.Cases)

		batch = append(batch, processed)
		if len(batch) >= p.batchSize {
			if err := p.storage.SaveBatch(ctx, batch); err != nil {
				return summary, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := p.storage.SaveBatch(ctx, batch); err != nil {
			return summary, err
		}
	}

	p.logger.Info("Pipeline run complete",
		zap.Int("emails", summary.TotalEmails),
		zap.Int("recipients", summary.TotalRecipients),
		zap.Int("excluded", summary.Excluded),
		zap.Int("flagged", summary.Flagged),
		zap.Int("cases", summary.CasesGenerated))

	return summary, nil
}

// validate checks the whole submission for required fields before anything
// is scored or written
func validate(inbound []*core.InboundEmail) error {
	var missing []string
	for i, in := range inbound {
		if in.Email.Sender == "" {
			missing = append(missing, fmt.Sprintf("emails[%d].sender", i))
		}
		if in.Email.Timestamp.IsZero() {
			missing = append(missing, fmt.Sprintf("emails[%d].timestamp", i))
		}
		if len(in.Recipients) == 0 {
			missing = append(missing, fmt.Sprintf("emails[%d].recipients", i))
		}
		for j, rcpt := range in.Recipients {
			if rcpt.Recipient == "" {
				missing = append(missing, fmt.Sprintf("emails[%d].recipients[%d]", i, j))
			}
		}
	}
	if len(missing) > 0 {
		return &core.MalformedInputError{Missing: missing}
	}
	return nil
}

// processEmail runs every stage for one email and its recipients
func (p *Pipeline) processEmail(ctx context.Context, r *run, in *core.InboundEmail) *core.ProcessedEmail {
	email := in.Email

	sender, err := p.storage.GetSenderMetadata(ctx, email.Sender)
	if err != nil {
		p.logger.Warn("Sender metadata lookup failed, matching on recipient values only",
			zap.String("sender", email.Sender),
			zap.Error(err))
		sender = nil
	}

	// The current email becomes part of the sender's history before
	// scoring, so a first burst already registers as a burst.
	for _, record := range in.Recipients {
		p.profiles.Record(email.Sender, email.Timestamp, record.Recipient, len(email.Subject))
		p.graph.AddEdge(email.Sender, record.Recipient)
	}

	processed := &core.ProcessedEmail{Email: email}
	for _, record := range in.Recipients {
		record.EmailID = email.ID
		if record.RecipientDomain == "" {
			record.RecipientDomain = addressDomain(record.Recipient)
		}

		p.assessRecipient(r, email, record, sender)
		processed.Recipients = append(processed.Recipients, record)

		if record.CaseGenerated {
			c := r.generator.generate(email, record)
			p.review(ctx, email, record, c)
			processed.Cases = append(processed.Cases, c)
		}
	}

	now := time.Now().UTC()
	email.PipelineStatus = "processed"
	email.ProcessedAt = &now

	return processed
}

// assessRecipient runs the scoring stages in order for one recipient. An
// exclusion match stops the pipeline for that recipient with all scores at
// zero; every later stage failure degrades to its neutral default instead
// of dropping the recipient.
func (p *Pipeline) assessRecipient(r *run, email *core.EmailRecord, record *core.RecipientRecord, sender *core.SenderMetadata) {
	mctx := rules.MatchContext{Email: email, Recipient: record, Sender: sender}

	for i := range r.compiled.Exclusion {
		if r.matcher.Matches(&r.compiled.Exclusion[i], mctx) {
			record.Excluded = true
			p.logger.Debug("Recipient excluded",
				zap.String("recipient", record.Recipient),
				zap.String("rule", r.compiled.Exclusion[i].Name))
			return
		}
	}

	record.Whitelisted, record.WhitelistReason = r.checker.Check(email.Sender)

	for i := range r.compiled.Security {
		rule := &r.compiled.Security[i]
		if r.matcher.Matches(rule, mctx) {
			weight, ok := p.scoring.SeverityWeights[rule.Severity]
			if !ok {
				// Unknown severities still count, at the lowest weight
				weight = 1.0
			}
			record.SecurityScore += weight
			record.MatchedSecurityRules = append(record.MatchedSecurityRules, core.MatchedRule{
				Name:       rule.Name,
				Severity:   rule.Severity,
				ScoreAdded: weight,
			})
		}
	}

	keywordScore, matched := r.keywords.Score(email, record)
	record.RiskScore = r.keywords.Dampen(email, keywordScore)
	record.MatchedRiskKeywords = matched

	record.MLScore = p.scoreStage("ml", p.basic, ml.BasicFeatures(email, record))
	record.AdvancedMLScore = p.scoreStage("advanced_ml", p.advanced,
		ml.AdvancedFeatures(email, record, p.profiles, p.graph))

	record.CombinedScore = p.scoring.SecurityWeight*record.SecurityScore +
		p.scoring.KeywordWeight*record.RiskScore +
		p.scoring.MLWeight*record.MLScore +
		p.scoring.AdvancedMLWeight*record.AdvancedMLScore

	record.Flagged = record.CombinedScore > p.scoring.FlagThreshold ||
		record.SecurityScore > p.scoring.SecurityFlagThreshold
	record.CaseGenerated = record.CombinedScore > p.scoring.CaseThreshold
}

// scoreStage runs one scorer, substituting the neutral score on failure
func (p *Pipeline) scoreStage(stage string, scorer core.Scorer, features core.FeatureVector) float64 {
	score, err := scorer.Score(features)
	if err != nil {
		p.logger.Warn("Scoring stage failed, using neutral score",
			zap.String("stage", stage),
			zap.Error(err))
		return p.scoring.NeutralScore
	}
	return score
}

// review asks the optional reviewer for a second opinion on a fresh case.
// The verdict is advisory: it is attached to the case description and never
// changes scores or thresholds.
func (p *Pipeline) review(ctx context.Context, email *core.EmailRecord, record *core.RecipientRecord, c *core.Case) {
	if p.reviewer == nil {
		return
	}

	verdict, err := p.reviewer.ReviewCase(ctx, email, record, c)
	if err != nil {
		p.logger.Warn("Case review failed, continuing without verdict",
			zap.String("case", c.Title),
			zap.Error(err))
		return
	}

	c.Description += fmt.Sprintf("\n\nReviewer (%s): %s (score %.1f, confidence %.2f)",
		verdict.ModelUsed, verdict.Assessment, verdict.Score, verdict.Confidence)

	// The verdict also grades the ensemble: the reviewer's score becomes
	// the target outcome for the votes cast on this recipient.
	if p.feedback != nil {
		p.feedback.SubmitVerdict(
			ml.AdvancedFeatures(email, record, p.profiles, p.graph),
			verdict.Score/10,
			verdict.Confidence)
	}
}

func addressDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}
