package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
)

// Dialect selects driver-specific SQL: placeholder style and upsert form
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectMySQL
	DialectPostgres
)

// SQLStore implements core.Storage on any database/sql driver. Queries are
// written with ? placeholders and rebound per dialect; list-valued columns
// are stored JSON-encoded, preserving element order.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewSQLStore wraps an open connection and ensures the schema exists
func NewSQLStore(db *sql.DB, dialect Dialect, logger *zap.Logger) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect, logger: logger}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// rebind rewrites ? placeholders into the dialect's form
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) ensureSchema() error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadRuleSet reads every rule table in one shot. Inactive rows are
// included; compilation filters them, and administrative tooling wants to
// see them.
func (s *SQLStore) LoadRuleSet(ctx context.Context) (*core.RuleSetSnapshot, error) {
	snap := &core.RuleSetSnapshot{LoadedAt: time.Now().UTC()}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, name, description, rule_type, pattern, action, severity, active FROM security_rules`))
	if err != nil {
		return nil, &core.PersistenceError{Op: "load security rules", Err: err}
	}
	for rows.Next() {
		var r core.SecurityRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.RuleType, &r.Pattern, &r.Action, &r.Severity, &r.Active); err != nil {
			rows.Close()
			return nil, &core.PersistenceError{Op: "scan security rule", Err: err}
		}
		snap.SecurityRules = append(snap.SecurityRules, r)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, s.rebind(
		`SELECT id, name, rule_type, pattern, active FROM exclusion_rules`))
	if err != nil {
		return nil, &core.PersistenceError{Op: "load exclusion rules", Err: err}
	}
	for rows.Next() {
		var r core.ExclusionRule
		if err := rows.Scan(&r.ID, &r.Name, &r.RuleType, &r.Pattern, &r.Active); err != nil {
			rows.Close()
			return nil, &core.PersistenceError{Op: "scan exclusion rule", Err: err}
		}
		snap.ExclusionRules = append(snap.ExclusionRules, r)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, s.rebind(
		`SELECT id, keyword, category, weight, active FROM risk_keywords`))
	if err != nil {
		return nil, &core.PersistenceError{Op: "load risk keywords", Err: err}
	}
	for rows.Next() {
		var k core.RiskKeyword
		if err := rows.Scan(&k.ID, &k.Keyword, &k.Category, &k.Weight, &k.Active); err != nil {
			rows.Close()
			return nil, &core.PersistenceError{Op: "scan risk keyword", Err: err}
		}
		snap.RiskKeywords = append(snap.RiskKeywords, k)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, s.rebind(
		`SELECT email, active FROM whitelist_senders`))
	if err != nil {
		return nil, &core.PersistenceError{Op: "load whitelist senders", Err: err}
	}
	for rows.Next() {
		var w core.WhitelistSender
		if err := rows.Scan(&w.Email, &w.Active); err != nil {
			rows.Close()
			return nil, &core.PersistenceError{Op: "scan whitelist sender", Err: err}
		}
		snap.WhitelistSenders = append(snap.WhitelistSenders, w)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, s.rebind(
		`SELECT domain, active FROM whitelist_domains`))
	if err != nil {
		return nil, &core.PersistenceError{Op: "load whitelist domains", Err: err}
	}
	for rows.Next() {
		var w core.WhitelistDomain
		if err := rows.Scan(&w.Domain, &w.Active); err != nil {
			rows.Close()
			return nil, &core.PersistenceError{Op: "scan whitelist domain", Err: err}
		}
		snap.WhitelistDomains = append(snap.WhitelistDomains, w)
	}
	rows.Close()

	s.logger.Debug("Loaded rule set",
		zap.Int("security_rules", len(snap.SecurityRules)),
		zap.Int("exclusion_rules", len(snap.ExclusionRules)),
		zap.Int("risk_keywords", len(snap.RiskKeywords)))

	return snap, nil
}

// GetSenderMetadata returns the stored profile or nil when none exists
func (s *SQLStore) GetSenderMetadata(ctx context.Context, email string) (*core.SenderMetadata, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT email, email_domain, leaver, termination, account_type, bunit, department,
		        active, last_email_sent, total_emails_sent, created_at, updated_at
		   FROM sender_metadata WHERE email = ?`), strings.ToLower(email))

	var meta core.SenderMetadata
	var lastSent, createdAt, updatedAt sql.NullString
	err := row.Scan(&meta.Email, &meta.EmailDomain, &meta.Leaver, &meta.Termination,
		&meta.AccountType, &meta.BusinessUnit, &meta.Department, &meta.Active,
		&lastSent, &meta.TotalEmailsSent, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "load sender metadata", Err: err}
	}

	meta.LastEmailSent = parseNullTime(lastSent)
	meta.CreatedAt = parseTime(createdAt)
	meta.UpdatedAt = parseTime(updatedAt)
	return &meta, nil
}

// SaveBatch writes one batch in a single transaction. Any failure rolls
// back everything, including the sender counter updates.
func (s *SQLStore) SaveBatch(ctx context.Context, batch []*core.ProcessedEmail) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.PersistenceError{Op: "begin batch", Err: err}
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, pe := range batch {
		if err := s.saveEmail(ctx, tx, pe, now); err != nil {
			return err
		}
		if err := s.touchSender(ctx, tx, pe.Email, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return &core.PersistenceError{Op: "commit batch", Err: err}
	}
	return nil
}

func (s *SQLStore) saveEmail(ctx context.Context, tx *sql.Tx, pe *core.ProcessedEmail, now time.Time) error {
	email := pe.Email
	if email.ID == uuid.Nil {
		email.ID = uuid.New()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = now
	}

	recipientsJSON, err := json.Marshal(email.Recipients)
	if err != nil {
		return &core.PersistenceError{Op: "encode recipients", Err: err}
	}

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO emails (id, timestamp, sender, subject, attachments, recipients,
		                     original_recipients, time_month, pipeline_status, created_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		email.ID.String(), formatTime(email.Timestamp), email.Sender, email.Subject,
		email.Attachments, string(recipientsJSON), email.OriginalRecipients,
		email.TimeMonth, email.PipelineStatus, formatTime(email.CreatedAt),
		formatTimePtr(email.ProcessedAt))
	if err != nil {
		return &core.PersistenceError{Op: "insert email", Err: err}
	}

	for _, rcpt := range pe.Recipients {
		if rcpt.ID == uuid.Nil {
			rcpt.ID = uuid.New()
		}
		rcpt.EmailID = email.ID
		if rcpt.CreatedAt.IsZero() {
			rcpt.CreatedAt = now
		}

		rulesJSON, err := json.Marshal(rcpt.MatchedSecurityRules)
		if err != nil {
			return &core.PersistenceError{Op: "encode matched rules", Err: err}
		}
		keywordsJSON, err := json.Marshal(rcpt.MatchedRiskKeywords)
		if err != nil {
			return &core.PersistenceError{Op: "encode matched keywords", Err: err}
		}

		_, err = tx.ExecContext(ctx, s.rebind(
			`INSERT INTO recipients (id, email_id, recipient, recipient_email_domain,
			        leaver, termination_date, account_type, bunit, department,
			        wordlist_attachment, wordlist_subject, user_response, final_outcome,
			        policy_name, justifications,
			        excluded, whitelisted, whitelist_reason,
			        security_score, risk_score, ml_score, advanced_ml_score, combined_score,
			        flagged, case_generated, matched_security_rules, matched_risk_keywords, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			rcpt.ID.String(), email.ID.String(), rcpt.Recipient, rcpt.RecipientDomain,
			rcpt.Leaver, rcpt.TerminationDate, rcpt.AccountType, rcpt.BusinessUnit, rcpt.Department,
			rcpt.WordlistAttachment, rcpt.WordlistSubject, rcpt.UserResponse, rcpt.FinalOutcome,
			rcpt.PolicyName, rcpt.Justifications,
			rcpt.Excluded, rcpt.Whitelisted, rcpt.WhitelistReason,
			rcpt.SecurityScore, rcpt.RiskScore, rcpt.MLScore, rcpt.AdvancedMLScore, rcpt.CombinedScore,
			rcpt.Flagged, rcpt.CaseGenerated, string(rulesJSON), string(keywordsJSON),
			formatTime(rcpt.CreatedAt))
		if err != nil {
			return &core.PersistenceError{Op: "insert recipient", Err: err}
		}
	}

	for _, c := range pe.Cases {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.EmailID = email.ID

		factorsJSON, err := json.Marshal(c.RiskFactors)
		if err != nil {
			return &core.PersistenceError{Op: "encode risk factors", Err: err}
		}

		_, err = tx.ExecContext(ctx, s.rebind(
			`INSERT INTO cases (id, email_id, case_type, severity, status, title, description,
			        risk_factors, assigned_to, escalated, escalated_at, created_at, updated_at, resolved_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			c.ID.String(), email.ID.String(), c.CaseType, c.Severity, c.Status,
			c.Title, c.Description, string(factorsJSON), c.AssignedTo, c.Escalated,
			formatTimePtr(c.EscalatedAt), formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
			formatTimePtr(c.ResolvedAt))
		if err != nil {
			return &core.PersistenceError{Op: "insert case", Err: err}
		}
	}

	return nil
}

// touchSender upserts sender activity counters inside the batch transaction
func (s *SQLStore) touchSender(ctx context.Context, tx *sql.Tx, email *core.EmailRecord, now time.Time) error {
	key := strings.ToLower(email.Sender)
	domain := addressDomain(email.Sender)
	sent := formatTime(email.Timestamp)
	stamp := formatTime(now)

	var query string
	switch s.dialect {
	case DialectMySQL:
		query = `INSERT INTO sender_metadata
		           (email, email_domain, leaver, termination, account_type, bunit, department,
		            active, last_email_sent, total_emails_sent, created_at, updated_at)
		         VALUES (?, ?, '', '', '', '', '', TRUE, ?, 1, ?, ?)
		         ON DUPLICATE KEY UPDATE
		           last_email_sent = VALUES(last_email_sent),
		           total_emails_sent = total_emails_sent + 1,
		           updated_at = VALUES(updated_at)`
	default:
		query = `INSERT INTO sender_metadata
		           (email, email_domain, leaver, termination, account_type, bunit, department,
		            active, last_email_sent, total_emails_sent, created_at, updated_at)
		         VALUES (?, ?, '', '', '', '', '', TRUE, ?, 1, ?, ?)
		         ON CONFLICT (email) DO UPDATE SET
		           last_email_sent = excluded.last_email_sent,
		           total_emails_sent = sender_metadata.total_emails_sent + 1,
		           updated_at = excluded.updated_at`
	}

	if _, err := tx.ExecContext(ctx, s.rebind(query), key, domain, sent, stamp, stamp); err != nil {
		return &core.PersistenceError{Op: "upsert sender metadata", Err: err}
	}
	return nil
}

// GetEmailState returns the workflow state or nil when the email has never
// been moved
func (s *SQLStore) GetEmailState(ctx context.Context, emailID uuid.UUID) (*core.EmailState, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, email_id, current_state, previous_state, notes, moved_by, moved_at, created_at, updated_at
		   FROM email_states WHERE email_id = ?`), emailID.String())

	var state core.EmailState
	var id, eid string
	var movedAt, createdAt, updatedAt sql.NullString
	err := row.Scan(&id, &eid, &state.CurrentState, &state.PreviousState,
		&state.Notes, &state.MovedBy, &movedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "load email state", Err: err}
	}

	state.ID, _ = uuid.Parse(id)
	state.EmailID, _ = uuid.Parse(eid)
	state.MovedAt = parseTime(movedAt)
	state.CreatedAt = parseTime(createdAt)
	state.UpdatedAt = parseTime(updatedAt)
	return &state, nil
}

// SaveEmailState upserts the single workflow row per email
func (s *SQLStore) SaveEmailState(ctx context.Context, state *core.EmailState) error {
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}

	var query string
	switch s.dialect {
	case DialectMySQL:
		query = `INSERT INTO email_states
		           (id, email_id, current_state, previous_state, notes, moved_by, moved_at, created_at, updated_at)
		         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		         ON DUPLICATE KEY UPDATE
		           current_state = VALUES(current_state),
		           previous_state = VALUES(previous_state),
		           notes = VALUES(notes),
		           moved_by = VALUES(moved_by),
		           moved_at = VALUES(moved_at),
		           updated_at = VALUES(updated_at)`
	default:
		query = `INSERT INTO email_states
		           (id, email_id, current_state, previous_state, notes, moved_by, moved_at, created_at, updated_at)
		         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		         ON CONFLICT (email_id) DO UPDATE SET
		           current_state = excluded.current_state,
		           previous_state = excluded.previous_state,
		           notes = excluded.notes,
		           moved_by = excluded.moved_by,
		           moved_at = excluded.moved_at,
		           updated_at = excluded.updated_at`
	}

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		state.ID.String(), state.EmailID.String(), state.CurrentState, state.PreviousState,
		state.Notes, state.MovedBy, formatTime(state.MovedAt),
		formatTime(state.CreatedAt), formatTime(state.UpdatedAt))
	if err != nil {
		return &core.PersistenceError{Op: "save email state", Err: err}
	}
	return nil
}

// SaveStateEvent appends one audit event
func (s *SQLStore) SaveStateEvent(ctx context.Context, event *core.StateEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO state_events
		   (id, email_id, kind, reason, severity, actor, resolved, resolved_at, resolved_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		event.ID.String(), event.EmailID.String(), string(event.Kind), event.Reason,
		event.Severity, event.Actor, event.Resolved, formatTimePtr(event.ResolvedAt),
		event.ResolvedBy, formatTime(event.CreatedAt))
	if err != nil {
		return &core.PersistenceError{Op: "save state event", Err: err}
	}
	return nil
}

// OpenStateEvent returns the oldest unresolved event of a kind for an
// email, or nil
func (s *SQLStore) OpenStateEvent(ctx context.Context, emailID uuid.UUID, kind core.StateEventKind) (*core.StateEvent, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, email_id, kind, reason, severity, actor, resolved, resolved_at, resolved_by, created_at
		   FROM state_events
		  WHERE email_id = ? AND kind = ? AND resolved = FALSE
		  ORDER BY created_at LIMIT 1`), emailID.String(), string(kind))

	var event core.StateEvent
	var id, eid, k string
	var resolvedAt, createdAt sql.NullString
	err := row.Scan(&id, &eid, &k, &event.Reason, &event.Severity, &event.Actor,
		&event.Resolved, &resolvedAt, &event.ResolvedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "load state event", Err: err}
	}

	event.ID, _ = uuid.Parse(id)
	event.EmailID, _ = uuid.Parse(eid)
	event.Kind = core.StateEventKind(k)
	event.ResolvedAt = parseNullTime(resolvedAt)
	event.CreatedAt = parseTime(createdAt)
	return &event, nil
}

// ResolveStateEvent marks one event resolved
func (s *SQLStore) ResolveStateEvent(ctx context.Context, eventID uuid.UUID, resolvedBy string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE state_events SET resolved = TRUE, resolved_at = ?, resolved_by = ? WHERE id = ?`),
		formatTime(time.Now().UTC()), resolvedBy, eventID.String())
	if err != nil {
		return &core.PersistenceError{Op: "resolve state event", Err: err}
	}
	return nil
}

// Close closes the underlying connection pool
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Timestamps are stored as RFC3339 strings so scanning behaves identically
// across the three drivers.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(v sql.NullString) *time.Time {
	t := parseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
