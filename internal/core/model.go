package core

import (
	"time"

	"github.com/google/uuid"
)

// Severity levels shared by security rules and cases
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Case lifecycle states, driven by human review only
const (
	CaseStatusOpen          = "open"
	CaseStatusInvestigating = "investigating"
	CaseStatusResolved      = "resolved"
	CaseStatusClosed        = "closed"
)

// EmailRecord represents one inbound email as produced by the external
// normalizer: recipients are already split out, attachments and policy
// names are re-joined into comma-separated strings.
type EmailRecord struct {
	ID                 uuid.UUID  `json:"id"`
	Timestamp          time.Time  `json:"timestamp"`
	Sender             string     `json:"sender"`
	Subject            string     `json:"subject"`
	Attachments        string     `json:"attachments"`
	Recipients         []string   `json:"recipients"`
	OriginalRecipients string     `json:"original_recipients"`
	TimeMonth          string     `json:"time_month"`
	PipelineStatus     string     `json:"pipeline_status"`
	CreatedAt          time.Time  `json:"created_at"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
}

// MatchedRule records one security rule that fired for a recipient
type MatchedRule struct {
	Name       string  `json:"name"`
	Severity   string  `json:"severity"`
	ScoreAdded float64 `json:"score_added"`
}

// MatchedKeyword records one risk keyword found in a recipient's email text
type MatchedKeyword struct {
	Keyword  string  `json:"keyword"`
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
}

// RecipientRecord is the per-recipient assessment. It is created once per
// recipient, mutated in place as the pipeline stages run, and treated as
// immutable once the run finishes.
type RecipientRecord struct {
	ID              uuid.UUID `json:"id"`
	EmailID         uuid.UUID `json:"email_id"`
	Recipient       string    `json:"recipient"`
	RecipientDomain string    `json:"recipient_email_domain"`

	// User attributes from the normalized input
	Leaver          string `json:"leaver"`
	TerminationDate string `json:"termination_date"`
	AccountType     string `json:"account_type"`
	BusinessUnit    string `json:"bunit"`
	Department      string `json:"department"`

	// Free-text analysis fields carried through from the source system
	WordlistAttachment string `json:"wordlist_attachment"`
	WordlistSubject    string `json:"wordlist_subject"`
	UserResponse       string `json:"user_response"`
	FinalOutcome       string `json:"final_outcome"`
	PolicyName         string `json:"policy_name"`
	Justifications     string `json:"justifications"`

	// Pipeline results. All score fields stay at zero when Excluded is set.
	Excluded        bool    `json:"excluded"`
	Whitelisted     bool    `json:"whitelisted"`
	WhitelistReason string  `json:"whitelist_reason,omitempty"`
	SecurityScore   float64 `json:"security_score"`
	RiskScore       float64 `json:"risk_score"`
	MLScore         float64 `json:"ml_score"`
	AdvancedMLScore float64 `json:"advanced_ml_score"`
	CombinedScore   float64 `json:"combined_score"`
	Flagged         bool    `json:"flagged"`
	CaseGenerated   bool    `json:"case_generated"`

	MatchedSecurityRules []MatchedRule    `json:"matched_security_rules"`
	MatchedRiskKeywords  []MatchedKeyword `json:"matched_risk_keywords"`

	CreatedAt time.Time `json:"created_at"`
}

// RiskFactors is the snapshot of the four stage scores carried on a case
type RiskFactors struct {
	SecurityScore   float64 `json:"security_score"`
	RiskScore       float64 `json:"risk_score"`
	MLScore         float64 `json:"ml_score"`
	AdvancedMLScore float64 `json:"advanced_ml_score"`
}

// Case is an investigation record created for high-risk recipients. After
// creation its lifecycle belongs to human review, not the pipeline.
type Case struct {
	ID          uuid.UUID   `json:"id"`
	EmailID     uuid.UUID   `json:"email_id"`
	CaseType    string      `json:"case_type"`
	Severity    string      `json:"severity"`
	Status      string      `json:"status"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	RiskFactors RiskFactors `json:"risk_factors"`
	AssignedTo  string      `json:"assigned_to,omitempty"`
	Escalated   bool        `json:"escalated"`
	EscalatedAt *time.Time  `json:"escalated_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}

// SenderMetadata tracks per-sender attributes and activity. Rule matching
// prefers these sender-level values for leaver/termination checks when a
// profile exists for the sender.
type SenderMetadata struct {
	Email           string     `json:"email"`
	EmailDomain     string     `json:"email_domain"`
	Leaver          string     `json:"leaver"`
	Termination     string     `json:"termination"`
	AccountType     string     `json:"account_type"`
	BusinessUnit    string     `json:"bunit"`
	Department      string     `json:"department"`
	Active          bool       `json:"active"`
	LastEmailSent   *time.Time `json:"last_email_sent,omitempty"`
	TotalEmailsSent int        `json:"total_emails_sent"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SecurityRule is the stored form of a scoring rule. Pattern is either a
// legacy substring pattern or a JSON multi-condition document; it is parsed
// into its tagged form once at snapshot load, not on every evaluation.
type SecurityRule struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RuleType    string `json:"rule_type"`
	Pattern     string `json:"pattern"`
	Action      string `json:"action"`
	Severity    string `json:"severity"`
	Active      bool   `json:"active"`
}

// ExclusionRule is the stored form of an exclusion rule. A match drops the
// recipient from all further stages.
type ExclusionRule struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	RuleType string `json:"rule_type"`
	Pattern  string `json:"pattern"`
	Active   bool   `json:"active"`
}

// RiskKeyword is a weighted keyword with a category such as "financial",
// "malware" or "phishing"
type RiskKeyword struct {
	ID       int     `json:"id"`
	Keyword  string  `json:"keyword"`
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
	Active   bool    `json:"active"`
}

// WhitelistSender marks a trusted sender address
type WhitelistSender struct {
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

// WhitelistDomain marks a trusted sender domain
type WhitelistDomain struct {
	Domain string `json:"domain"`
	Active bool   `json:"active"`
}

// RuleSetSnapshot is the full set of active rules, keywords and whitelist
// entries as of the start of a pipeline run. It is loaded once and treated
// as read-only for the run's duration; administrative changes take effect
// on the next run.
type RuleSetSnapshot struct {
	SecurityRules    []SecurityRule
	ExclusionRules   []ExclusionRule
	RiskKeywords     []RiskKeyword
	WhitelistSenders []WhitelistSender
	WhitelistDomains []WhitelistDomain
	LoadedAt         time.Time
}

// FeatureVector is a named feature map passed to risk scorers
type FeatureVector map[string]float64

// InboundEmail is one normalized email together with the per-recipient
// attributes ingestion extracted for it. The recipient records are seeds:
// the pipeline fills in the assessment fields.
type InboundEmail struct {
	Email      *EmailRecord
	Recipients []*RecipientRecord
}

// ProcessedEmail bundles one email with its assessments and any generated
// cases for the transactional batch write
type ProcessedEmail struct {
	Email      *EmailRecord
	Recipients []*RecipientRecord
	Cases      []*Case
}

// ProcessSummary is returned after a pipeline run
type ProcessSummary struct {
	TotalEmails     int `json:"total_emails"`
	TotalRecipients int `json:"total_recipients"`
	Excluded        int `json:"excluded"`
	Flagged         int `json:"flagged"`
	CasesGenerated  int `json:"cases_generated"`
}

// ReviewVerdict is the advisory second opinion an LLM reviewer attaches to
// a freshly generated case
type ReviewVerdict struct {
	Assessment string  `json:"assessment"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	ModelUsed  string  `json:"model_used"`
}
