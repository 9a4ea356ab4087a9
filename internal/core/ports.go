package core

import (
	"context"

	"github.com/google/uuid"
)

// Storage is the persistence collaborator. Implementations must assign
// identity to new email/recipient/case records inside SaveBatch and commit
// the whole batch as one transaction.
type Storage interface {
	// LoadRuleSet reads the active rules, keywords and whitelist entries.
	// Called once at the start of a pipeline run.
	LoadRuleSet(ctx context.Context) (*RuleSetSnapshot, error)

	// GetSenderMetadata returns the stored profile for a sender address,
	// or nil when none exists.
	GetSenderMetadata(ctx context.Context, email string) (*SenderMetadata, error)

	// SaveBatch persists a batch of processed emails, their recipient
	// assessments and any generated cases in a single transaction, and
	// updates sender activity counters. A failure rolls back the entire
	// batch.
	SaveBatch(ctx context.Context, batch []*ProcessedEmail) error

	// Workflow state persistence
	GetEmailState(ctx context.Context, emailID uuid.UUID) (*EmailState, error)
	SaveEmailState(ctx context.Context, state *EmailState) error
	SaveStateEvent(ctx context.Context, event *StateEvent) error
	OpenStateEvent(ctx context.Context, emailID uuid.UUID, kind StateEventKind) (*StateEvent, error)
	ResolveStateEvent(ctx context.Context, eventID uuid.UUID, resolvedBy string) error

	Close() error
}

// Scorer maps a feature vector to a risk score in [0, 10]. The pipeline
// only depends on this interface, so a trained model, a rule-based
// fallback or a test stub can be substituted without touching stage logic.
type Scorer interface {
	Score(features FeatureVector) (float64, error)
}

// IngestService is a long-running input source feeding the pipeline
type IngestService interface {
	// Start starts the ingest service
	Start() error

	// Stop stops the ingest service
	Stop() error
}

// CaseReviewer produces an advisory second opinion for a freshly generated
// case. Reviewers are optional; the pipeline works without one.
type CaseReviewer interface {
	ReviewCase(ctx context.Context, email *EmailRecord, recipient *RecipientRecord, c *Case) (*ReviewVerdict, error)
}
