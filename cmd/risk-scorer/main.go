package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/adapters/ingest"
	"github.com/mikey/email-guardian/internal/adapters/storage"
	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/di"
	"github.com/mikey/email-guardian/internal/pipeline"
	"github.com/mikey/email-guardian/internal/workflow"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run scores one email (or a CSV export) and prints the assessments, or
// applies a manual workflow move when -mark is given
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	source *ingest.CSVSource,
	pipe *pipeline.Pipeline,
	store core.Storage,
	wf *workflow.Manager,
) error {
	defer logger.Sync()
	defer store.Close()

	if flags.MarkEmail != "" {
		return markEmail(flags, wf)
	}

	inbound, err := buildInput(flags, source, logger)
	if err != nil {
		logger.Fatal("Failed to build input", zap.Error(err))
	}

	startTime := time.Now()
	summary, err := pipe.Process(context.Background(), inbound)
	if err != nil {
		logger.Fatal("Failed to score emails", zap.Error(err))
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Emails: %d\n", summary.TotalEmails)
	fmt.Printf("Recipients: %d\n", summary.TotalRecipients)
	fmt.Printf("Excluded: %d\n", summary.Excluded)
	fmt.Printf("Flagged: %d\n", summary.Flagged)
	fmt.Printf("Cases generated: %d\n", summary.CasesGenerated)
	fmt.Printf("Processing time: %v\n", duration)

	for _, in := range inbound {
		fmt.Printf("\n=== %s -> %d recipient(s) ===\n", in.Email.Sender, len(in.Recipients))
		for _, r := range in.Recipients {
			fmt.Printf("Recipient: %s\n", r.Recipient)
			if r.Excluded {
				fmt.Printf("  Excluded by rule, not scored\n")
				continue
			}
			if r.Whitelisted {
				fmt.Printf("  Whitelisted: %s\n", r.WhitelistReason)
			}
			fmt.Printf("  Security score: %.2f\n", r.SecurityScore)
			fmt.Printf("  Keyword score: %.2f\n", r.RiskScore)
			fmt.Printf("  ML score: %.2f\n", r.MLScore)
			fmt.Printf("  Advanced ML score: %.2f\n", r.AdvancedMLScore)
			fmt.Printf("  Combined score: %.2f\n", r.CombinedScore)
			fmt.Printf("  Flagged: %t\n", r.Flagged)
			for _, rule := range r.MatchedSecurityRules {
				fmt.Printf("  Matched rule: %s (%s)\n", rule.Name, rule.Severity)
			}
			for _, kw := range r.MatchedRiskKeywords {
				fmt.Printf("  Matched keyword: %s (%s)\n", kw.Keyword, kw.Category)
			}
		}
		printCases(store, in.Email.ID)
	}

	return nil
}

// markEmail applies one manual workflow transition against the configured
// store
func markEmail(flags *di.CLIFlags, wf *workflow.Manager) error {
	if flags.ConfigFile == "" {
		return fmt.Errorf("-mark needs -config so the move lands on the persistent store")
	}

	id, err := uuid.Parse(flags.MarkEmail)
	if err != nil {
		return fmt.Errorf("invalid email id %q: %w", flags.MarkEmail, err)
	}

	state, err := wf.Apply(context.Background(), workflow.Move{
		EmailID: id,
		To:      flags.MarkState,
		Actor:   flags.Actor,
		Reason:  flags.Reason,
		Notes:   flags.Notes,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Email %s moved to %s", id, state.CurrentState)
	if state.PreviousState != "" {
		fmt.Printf(" (from %s)", state.PreviousState)
	}
	fmt.Printf("\n")
	return nil
}

// printCases reads back any generated cases from the scoring store
func printCases(store core.Storage, emailID uuid.UUID) {
	var cases []*core.Case
	switch s := store.(type) {
	case *storage.MemoryStorage:
		cases = s.CasesFor(emailID)
	case *storage.SQLStore:
		cases, _ = s.GetCases(context.Background(), emailID)
	}
	for _, c := range cases {
		fmt.Printf("Case: [%s] %s\n", c.Severity, c.Title)
		fmt.Printf("%s\n", c.Description)
	}
}

// buildInput assembles the inbound emails either from a CSV export file or
// from the single-email flags
func buildInput(flags *di.CLIFlags, source *ingest.CSVSource, logger *zap.Logger) ([]*core.InboundEmail, error) {
	if flags.InputFile != "" {
		logger.Info("Reading emails from file", zap.String("file", flags.InputFile))
		return source.ParseFile(flags.InputFile)
	}

	timestamp := time.Now().UTC()
	if flags.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, flags.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", flags.Timestamp, err)
		}
		timestamp = parsed
	}

	recipients := splitFlagList(flags.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required (use -recipients or -file)")
	}
	attachments := strings.Join(splitFlagList(flags.Attachments), ", ")

	leaver := ""
	if flags.Leaver {
		leaver = "yes"
	}

	email := &core.EmailRecord{
		Timestamp:          timestamp,
		Sender:             flags.Sender,
		Subject:            flags.Subject,
		Attachments:        attachments,
		Recipients:         recipients,
		OriginalRecipients: flags.Recipients,
		TimeMonth:          timestamp.Format("2006-01"),
	}

	seeds := make([]*core.RecipientRecord, 0, len(recipients))
	for _, recipient := range recipients {
		seeds = append(seeds, &core.RecipientRecord{
			Recipient:    recipient,
			Leaver:       leaver,
			BusinessUnit: flags.BUnit,
			Department:   flags.Department,
		})
	}

	return []*core.InboundEmail{{Email: email, Recipients: seeds}}, nil
}

// splitFlagList splits a comma-separated flag value, trimming whitespace and
// dropping empty entries
func splitFlagList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
