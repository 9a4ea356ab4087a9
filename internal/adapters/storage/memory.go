package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikey/email-guardian/internal/core"
)

// MemoryStorage is a map-backed Storage implementation for tests and
// single-run tooling. Batches are applied atomically under the lock, so it
// honors the same all-or-nothing contract as the SQL stores.
type MemoryStorage struct {
	mu sync.RWMutex

	ruleSet *core.RuleSetSnapshot
	senders map[string]*core.SenderMetadata

	emails     map[uuid.UUID]*core.EmailRecord
	recipients map[uuid.UUID][]*core.RecipientRecord
	cases      map[uuid.UUID][]*core.Case

	states map[uuid.UUID]*core.EmailState
	events map[uuid.UUID]*core.StateEvent
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		ruleSet:    &core.RuleSetSnapshot{},
		senders:    make(map[string]*core.SenderMetadata),
		emails:     make(map[uuid.UUID]*core.EmailRecord),
		recipients: make(map[uuid.UUID][]*core.RecipientRecord),
		cases:      make(map[uuid.UUID][]*core.Case),
		states:     make(map[uuid.UUID]*core.EmailState),
		events:     make(map[uuid.UUID]*core.StateEvent),
	}
}

// SeedRuleSet replaces the stored rule set
func (s *MemoryStorage) SeedRuleSet(snap *core.RuleSetSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ruleSet = snap
}

// SeedSender stores a sender profile
func (s *MemoryStorage) SeedSender(meta *core.SenderMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senders[strings.ToLower(meta.Email)] = meta
}

// LoadRuleSet returns a copy of the seeded rule set stamped with the load
// time
func (s *MemoryStorage) LoadRuleSet(ctx context.Context) (*core.RuleSetSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := *s.ruleSet
	snap.LoadedAt = time.Now().UTC()
	return &snap, nil
}

// GetSenderMetadata returns the stored profile or nil when none exists
func (s *MemoryStorage) GetSenderMetadata(ctx context.Context, email string) (*core.SenderMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.senders[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	copied := *meta
	return &copied, nil
}

// SaveBatch stores the batch and updates sender activity counters. IDs are
// assigned here, mirroring the SQL stores.
func (s *MemoryStorage) SaveBatch(ctx context.Context, batch []*core.ProcessedEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, pe := range batch {
		if pe.Email.ID == uuid.Nil {
			pe.Email.ID = uuid.New()
		}
		if pe.Email.CreatedAt.IsZero() {
			pe.Email.CreatedAt = now
		}
		s.emails[pe.Email.ID] = pe.Email

		for _, rcpt := range pe.Recipients {
			if rcpt.ID == uuid.Nil {
				rcpt.ID = uuid.New()
			}
			rcpt.EmailID = pe.Email.ID
			if rcpt.CreatedAt.IsZero() {
				rcpt.CreatedAt = now
			}
		}
		s.recipients[pe.Email.ID] = pe.Recipients

		for _, c := range pe.Cases {
			if c.ID == uuid.Nil {
				c.ID = uuid.New()
			}
			c.EmailID = pe.Email.ID
		}
		s.cases[pe.Email.ID] = pe.Cases

		s.touchSender(pe.Email, now)
	}

	return nil
}

// touchSender upserts the sender profile's activity counters
func (s *MemoryStorage) touchSender(email *core.EmailRecord, now time.Time) {
	key := strings.ToLower(email.Sender)
	meta, ok := s.senders[key]
	if !ok {
		meta = &core.SenderMetadata{
			Email:       email.Sender,
			EmailDomain: addressDomain(email.Sender),
			Active:      true,
			CreatedAt:   now,
		}
		s.senders[key] = meta
	}

	sent := email.Timestamp
	meta.LastEmailSent = &sent
	meta.TotalEmailsSent++
	meta.UpdatedAt = now
}

// EmailCount reports how many emails have been persisted
func (s *MemoryStorage) EmailCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.emails)
}

// RecipientsFor returns the stored assessments for an email
func (s *MemoryStorage) RecipientsFor(emailID uuid.UUID) []*core.RecipientRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recipients[emailID]
}

// CasesFor returns the stored cases for an email
func (s *MemoryStorage) CasesFor(emailID uuid.UUID) []*core.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cases[emailID]
}

// GetEmailState returns the workflow state for an email, or nil when the
// email has never left the processed state
func (s *MemoryStorage) GetEmailState(ctx context.Context, emailID uuid.UUID) (*core.EmailState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[emailID]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

// SaveEmailState upserts a workflow state record
func (s *MemoryStorage) SaveEmailState(ctx context.Context, state *core.EmailState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	copied := *state
	s.states[state.EmailID] = &copied
	return nil
}

// SaveStateEvent stores an audit event
func (s *MemoryStorage) SaveStateEvent(ctx context.Context, event *core.StateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	copied := *event
	s.events[event.ID] = &copied
	return nil
}

// OpenStateEvent returns the unresolved event of the given kind for an
// email, or nil when none is open
func (s *MemoryStorage) OpenStateEvent(ctx context.Context, emailID uuid.UUID, kind core.StateEventKind) (*core.StateEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, event := range s.events {
		if event.EmailID == emailID && event.Kind == kind && !event.Resolved {
			copied := *event
			return &copied, nil
		}
	}
	return nil, nil
}

// ResolveStateEvent marks an event resolved
func (s *MemoryStorage) ResolveStateEvent(ctx context.Context, eventID uuid.UUID, resolvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return errors.New("state event not found")
	}

	now := time.Now().UTC()
	event.Resolved = true
	event.ResolvedAt = &now
	event.ResolvedBy = resolvedBy
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStorage) Close() error { return nil }

func addressDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}
