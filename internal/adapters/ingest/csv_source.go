package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
)

// requiredColumns is the contract with the external normalizer. A file
// missing any of these is rejected whole.
var requiredColumns = []string{
	"_time", "sender", "subject", "attachments", "recipients",
	"time_month", "leaver", "termination_date", "bunit", "department",
	"user_response", "final_outcome", "policy_name", "justifications",
}

// Optional columns carried through when present
const (
	colAccountType        = "account_type"
	colWordlistAttachment = "wordlist_attachment"
	colWordlistSubject    = "wordlist_subject"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVSource parses normalized CSV event exports into inbound emails. Rows
// sharing (_time, sender, subject) are one email; each row is one of its
// recipients.
type CSVSource struct {
	logger *zap.Logger
}

// NewCSVSource creates a CSV parser
func NewCSVSource(logger *zap.Logger) *CSVSource {
	return &CSVSource{logger: logger}
}

// ParseFile reads one export file
func (s *CSVSource) ParseFile(path string) ([]*core.InboundEmail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export file: %w", err)
	}
	defer f.Close()

	return s.Parse(f)
}

// Parse reads a normalized export. The header is validated against the
// required column set; "-" values are nulls; recipient, attachment and
// policy lists are comma-separated within their cells.
func (s *CSVSource) Parse(r io.Reader) ([]*core.InboundEmail, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &core.MalformedInputError{Missing: missing}
	}

	type emailKey struct {
		ts      string
		sender  string
		subject string
	}

	var order []emailKey
	groups := make(map[emailKey]*core.InboundEmail)
	rowCount := 0

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		rowCount++

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return cleanValue(row[i])
		}

		rawTime := field("_time")
		sender := field("sender")
		subject := field("subject")

		key := emailKey{ts: rawTime, sender: sender, subject: subject}
		in, ok := groups[key]
		if !ok {
			in = &core.InboundEmail{
				Email: &core.EmailRecord{
					Timestamp:   parseTimestamp(rawTime),
					Sender:      sender,
					Subject:     subject,
					Attachments: strings.Join(splitList(field("attachments")), ", "),
					TimeMonth:   field("time_month"),
					// The fan-out below rewrites Recipients; keep the
					// original cell for audit.
					OriginalRecipients: field("recipients"),
				},
			}
			groups[key] = in
			order = append(order, key)
		}

		recipients := splitList(field("recipients"))
		if len(recipients) == 0 {
			recipients = []string{""}
		}

		policyNames := strings.Join(splitList(field("policy_name")), ", ")

		for _, rcpt := range recipients {
			in.Email.Recipients = append(in.Email.Recipients, rcpt)
			in.Recipients = append(in.Recipients, &core.RecipientRecord{
				Recipient:          rcpt,
				RecipientDomain:    recipientDomain(rcpt),
				Leaver:             field("leaver"),
				TerminationDate:    field("termination_date"),
				AccountType:        field(colAccountType),
				BusinessUnit:       field("bunit"),
				Department:         field("department"),
				WordlistAttachment: field(colWordlistAttachment),
				WordlistSubject:    field(colWordlistSubject),
				UserResponse:       field("user_response"),
				FinalOutcome:       field("final_outcome"),
				PolicyName:         policyNames,
				Justifications:     field("justifications"),
			})
		}
	}

	inbound := make([]*core.InboundEmail, 0, len(order))
	for _, key := range order {
		inbound = append(inbound, groups[key])
	}

	s.logger.Info("Parsed export",
		zap.Int("rows", rowCount),
		zap.Int("emails", len(inbound)))

	return inbound, nil
}

// cleanValue trims a cell and maps the normalizer's "-" null marker to an
// empty string
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "-" {
		return ""
	}
	return v
}

// splitList splits a comma-separated cell, dropping empties and nulls
func splitList(v string) []string {
	if v == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if cleaned := cleanValue(part); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// parseTimestamp tries the layouts the normalizer is known to emit. An
// unparseable value yields the zero time, which input validation rejects
// downstream.
func parseTimestamp(v string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func recipientDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}
