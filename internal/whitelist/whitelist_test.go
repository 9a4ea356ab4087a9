package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
)

func testChecker() *Checker {
	snap := &core.RuleSetSnapshot{
		WhitelistSenders: []core.WhitelistSender{
			{Email: "Trusted@Partner.com", Active: true},
			{Email: "retired@partner.com", Active: false},
		},
		WhitelistDomains: []core.WhitelistDomain{
			{Domain: "corp.com", Active: true},
		},
	}
	return NewChecker(snap, zap.NewNop())
}

func TestCheckSenderMatch(t *testing.T) {
	checker := testChecker()

	ok, reason := checker.Check("trusted@partner.com")
	assert.True(t, ok)
	assert.Contains(t, reason, "Sender")
}

func TestCheckDomainMatch(t *testing.T) {
	checker := testChecker()

	ok, reason := checker.Check("anyone@CORP.com")
	assert.True(t, ok)
	assert.Contains(t, reason, "Domain 'corp.com'")
}

func TestCheckMisses(t *testing.T) {
	checker := testChecker()

	tests := []struct {
		name   string
		sender string
	}{
		{"unknown sender", "stranger@elsewhere.com"},
		{"inactive entry", "retired@partner.com"},
		{"malformed address", "not-an-email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := checker.Check(tt.sender)
			assert.False(t, ok)
			assert.Empty(t, reason)
		})
	}
}
