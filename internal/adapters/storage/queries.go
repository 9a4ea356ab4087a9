package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/mikey/email-guardian/internal/core"
)

// Read-back queries used by review tooling and tests. These sit outside the
// core.Storage interface; the pipeline itself only writes.

// GetEmail loads one stored email by id, or nil when absent
func (s *SQLStore) GetEmail(ctx context.Context, id uuid.UUID) (*core.EmailRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, timestamp, sender, subject, attachments, recipients,
		        original_recipients, time_month, pipeline_status, created_at, processed_at
		   FROM emails WHERE id = ?`), id.String())

	var email core.EmailRecord
	var rawID, recipientsJSON string
	var ts, createdAt, processedAt sql.NullString
	err := row.Scan(&rawID, &ts, &email.Sender, &email.Subject, &email.Attachments,
		&recipientsJSON, &email.OriginalRecipients, &email.TimeMonth,
		&email.PipelineStatus, &createdAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "load email", Err: err}
	}

	email.ID, _ = uuid.Parse(rawID)
	email.Timestamp = parseTime(ts)
	email.CreatedAt = parseTime(createdAt)
	email.ProcessedAt = parseNullTime(processedAt)
	if recipientsJSON != "" {
		if err := json.Unmarshal([]byte(recipientsJSON), &email.Recipients); err != nil {
			return nil, &core.PersistenceError{Op: "decode recipients", Err: err}
		}
	}
	return &email, nil
}

// GetRecipients loads the assessments stored for one email
func (s *SQLStore) GetRecipients(ctx context.Context, emailID uuid.UUID) ([]*core.RecipientRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, email_id, recipient, recipient_email_domain,
		        leaver, termination_date, account_type, bunit, department,
		        wordlist_attachment, wordlist_subject, user_response, final_outcome,
		        policy_name, justifications,
		        excluded, whitelisted, whitelist_reason,
		        security_score, risk_score, ml_score, advanced_ml_score, combined_score,
		        flagged, case_generated, matched_security_rules, matched_risk_keywords, created_at
		   FROM recipients WHERE email_id = ? ORDER BY created_at, recipient`), emailID.String())
	if err != nil {
		return nil, &core.PersistenceError{Op: "load recipients", Err: err}
	}
	defer rows.Close()

	var records []*core.RecipientRecord
	for rows.Next() {
		var r core.RecipientRecord
		var id, eid, rulesJSON, keywordsJSON string
		var createdAt sql.NullString

		err := rows.Scan(&id, &eid, &r.Recipient, &r.RecipientDomain,
			&r.Leaver, &r.TerminationDate, &r.AccountType, &r.BusinessUnit, &r.Department,
			&r.WordlistAttachment, &r.WordlistSubject, &r.UserResponse, &r.FinalOutcome,
			&r.PolicyName, &r.Justifications,
			&r.Excluded, &r.Whitelisted, &r.WhitelistReason,
			&r.SecurityScore, &r.RiskScore, &r.MLScore, &r.AdvancedMLScore, &r.CombinedScore,
			&r.Flagged, &r.CaseGenerated, &rulesJSON, &keywordsJSON, &createdAt)
		if err != nil {
			return nil, &core.PersistenceError{Op: "scan recipient", Err: err}
		}

		r.ID, _ = uuid.Parse(id)
		r.EmailID, _ = uuid.Parse(eid)
		r.CreatedAt = parseTime(createdAt)
		if rulesJSON != "" {
			if err := json.Unmarshal([]byte(rulesJSON), &r.MatchedSecurityRules); err != nil {
				return nil, &core.PersistenceError{Op: "decode matched rules", Err: err}
			}
		}
		if keywordsJSON != "" {
			if err := json.Unmarshal([]byte(keywordsJSON), &r.MatchedRiskKeywords); err != nil {
				return nil, &core.PersistenceError{Op: "decode matched keywords", Err: err}
			}
		}

		records = append(records, &r)
	}
	return records, rows.Err()
}

// GetCases loads the cases generated for one email
func (s *SQLStore) GetCases(ctx context.Context, emailID uuid.UUID) ([]*core.Case, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, email_id, case_type, severity, status, title, description,
		        risk_factors, assigned_to, escalated, escalated_at, created_at, updated_at, resolved_at
		   FROM cases WHERE email_id = ? ORDER BY created_at`), emailID.String())
	if err != nil {
		return nil, &core.PersistenceError{Op: "load cases", Err: err}
	}
	defer rows.Close()

	var cases []*core.Case
	for rows.Next() {
		var c core.Case
		var id, eid, factorsJSON string
		var escalatedAt, createdAt, updatedAt, resolvedAt sql.NullString

		err := rows.Scan(&id, &eid, &c.CaseType, &c.Severity, &c.Status, &c.Title,
			&c.Description, &factorsJSON, &c.AssignedTo, &c.Escalated,
			&escalatedAt, &createdAt, &updatedAt, &resolvedAt)
		if err != nil {
			return nil, &core.PersistenceError{Op: "scan case", Err: err}
		}

		c.ID, _ = uuid.Parse(id)
		c.EmailID, _ = uuid.Parse(eid)
		c.EscalatedAt = parseNullTime(escalatedAt)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		c.ResolvedAt = parseNullTime(resolvedAt)
		if factorsJSON != "" {
			if err := json.Unmarshal([]byte(factorsJSON), &c.RiskFactors); err != nil {
				return nil, &core.PersistenceError{Op: "decode risk factors", Err: err}
			}
		}

		cases = append(cases, &c)
	}
	return cases, rows.Err()
}

// SeedRuleSet inserts rule rows, used by provisioning tooling and tests
func (s *SQLStore) SeedRuleSet(ctx context.Context, snap *core.RuleSetSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.PersistenceError{Op: "begin rule seed", Err: err}
	}
	defer tx.Rollback()

	for _, r := range snap.SecurityRules {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO security_rules (name, description, rule_type, pattern, action, severity, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			r.Name, r.Description, r.RuleType, r.Pattern, r.Action, r.Severity, r.Active)
		if err != nil {
			return &core.PersistenceError{Op: "seed security rule", Err: err}
		}
	}
	for _, r := range snap.ExclusionRules {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO exclusion_rules (name, rule_type, pattern, active) VALUES (?, ?, ?, ?)`),
			r.Name, r.RuleType, r.Pattern, r.Active)
		if err != nil {
			return &core.PersistenceError{Op: "seed exclusion rule", Err: err}
		}
	}
	for _, k := range snap.RiskKeywords {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO risk_keywords (keyword, category, weight, active) VALUES (?, ?, ?, ?)`),
			k.Keyword, k.Category, k.Weight, k.Active)
		if err != nil {
			return &core.PersistenceError{Op: "seed risk keyword", Err: err}
		}
	}
	for _, w := range snap.WhitelistSenders {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO whitelist_senders (email, active) VALUES (?, ?)`), w.Email, w.Active)
		if err != nil {
			return &core.PersistenceError{Op: "seed whitelist sender", Err: err}
		}
	}
	for _, w := range snap.WhitelistDomains {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO whitelist_domains (domain, active) VALUES (?, ?)`), w.Domain, w.Active)
		if err != nil {
			return &core.PersistenceError{Op: "seed whitelist domain", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &core.PersistenceError{Op: "commit rule seed", Err: err}
	}
	return nil
}
