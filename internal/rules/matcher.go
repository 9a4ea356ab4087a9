package rules

import (
	"strconv"
	"strings"
	"time"

	"github.com/mikey/email-guardian/internal/core"
	"go.uber.org/zap"
)

// MatchContext is everything a rule can be resolved against: the email, the
// recipient under assessment and, when known, the sender's stored profile.
// Leaver and termination checks prefer the sender profile over the
// recipient-level values when the profile exists.
type MatchContext struct {
	Email     *core.EmailRecord
	Recipient *core.RecipientRecord
	Sender    *core.SenderMetadata
}

// Matcher evaluates compiled rules against a match context
type Matcher struct {
	logger *zap.Logger
}

// NewMatcher creates a new rule matcher
func NewMatcher(logger *zap.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// Matches reports whether a rule fires for the given context. Field
// resolution never fails; unresolvable fields read as empty strings, so a
// broken rule degrades to non-matching instead of aborting the recipient.
func (m *Matcher) Matches(rule *Rule, ctx MatchContext) bool {
	switch rule.Kind {
	case KindStructured:
		return m.matchStructured(rule, ctx)
	default:
		return m.matchLegacy(rule, ctx)
	}
}

func (m *Matcher) matchStructured(rule *Rule, ctx MatchContext) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	for _, cond := range rule.Conditions {
		fieldValue := m.resolveField(cond.Field, ctx)
		matched := EvaluateCondition(fieldValue, cond.Operator, cond.Value)

		if rule.Operator == OperatorOr {
			if matched {
				return true
			}
		} else if !matched {
			return false
		}
	}

	return rule.Operator != OperatorOr
}

func (m *Matcher) matchLegacy(rule *Rule, ctx MatchContext) bool {
	pattern := rule.LegacyPattern

	switch rule.LegacyField {
	case "sender":
		return matchPattern(pattern, ctx.Email.Sender)
	case "subject":
		return matchPattern(pattern, ctx.Email.Subject)
	case "attachment":
		return matchPattern(pattern, ctx.Email.Attachments)
	case "recipient":
		return matchPattern(pattern, ctx.Recipient.Recipient)
	case "domain":
		return matchPattern(pattern, ctx.Recipient.RecipientDomain)
	case "leaver":
		return matchLeaver(pattern, m.leaverValue(ctx))
	case "termination":
		termination := m.terminationValue(ctx)
		patternValue := strings.ToLower(strings.TrimSpace(pattern))
		return strings.Contains(strings.ToLower(strings.TrimSpace(termination)), patternValue) || termination != ""
	case "recipients":
		return len(ctx.Email.Recipients) > 1
	}

	if m.logger != nil {
		m.logger.Warn("Unknown legacy rule field",
			zap.String("rule", rule.Name),
			zap.String("field", rule.LegacyField))
	}
	return false
}

// resolveField returns the string value of a structured-rule field. Unknown
// fields resolve to the empty string.
func (m *Matcher) resolveField(field string, ctx MatchContext) string {
	switch field {
	case "sender":
		return ctx.Email.Sender
	case "subject":
		return ctx.Email.Subject
	case "attachments":
		return ctx.Email.Attachments
	case "recipients":
		return strconv.Itoa(len(ctx.Email.Recipients))
	case "leaver":
		return m.leaverValue(ctx)
	case "termination":
		return m.terminationValue(ctx)
	case "account_type":
		return ctx.Recipient.AccountType
	case "bunit":
		return ctx.Recipient.BusinessUnit
	case "department":
		return ctx.Recipient.Department
	case "timestamp":
		if ctx.Email.Timestamp.IsZero() {
			return ""
		}
		return ctx.Email.Timestamp.Format(time.RFC3339)
	}

	return ""
}

func (m *Matcher) leaverValue(ctx MatchContext) string {
	if ctx.Sender != nil && ctx.Sender.Leaver != "" {
		return ctx.Sender.Leaver
	}
	return ctx.Recipient.Leaver
}

func (m *Matcher) terminationValue(ctx MatchContext) string {
	if ctx.Sender != nil && ctx.Sender.Termination != "" {
		return ctx.Sender.Termination
	}
	return ctx.Recipient.TerminationDate
}

// matchLeaver interprets the pattern as a yes/no filter: "yes" requires an
// explicit leaver mark, "no" requires an explicit non-leaver mark, anything
// else falls back to substring matching.
func matchLeaver(pattern, leaver string) bool {
	leaverValue := strings.ToLower(strings.TrimSpace(leaver))
	patternValue := strings.ToLower(strings.TrimSpace(pattern))

	switch patternValue {
	case "yes":
		return leaverValue == "yes"
	case "no":
		return leaverValue != "yes" && leaverValue != ""
	default:
		return strings.Contains(leaverValue, patternValue)
	}
}

// matchPattern is the legacy case-insensitive substring test. Empty
// patterns and empty targets never match.
func matchPattern(pattern, text string) bool {
	if pattern == "" || text == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(pattern))
}
