package whitelist

import (
	"fmt"
	"strings"

	"github.com/mikey/email-guardian/internal/core"
	"go.uber.org/zap"
)

// Checker tests sender addresses against the whitelisted sender and domain
// sets. A whitelist hit is advisory metadata only; it never stops the
// scoring stages from running.
type Checker struct {
	senders map[string]struct{}
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker builds a checker from the active whitelist entries in a
// snapshot. Entries are normalized to lowercase.
func NewChecker(snap *core.RuleSetSnapshot, logger *zap.Logger) *Checker {
	senders := make(map[string]struct{}, len(snap.WhitelistSenders))
	for _, s := range snap.WhitelistSenders {
		if s.Active {
			senders[strings.ToLower(strings.TrimSpace(s.Email))] = struct{}{}
		}
	}

	domains := make(map[string]struct{}, len(snap.WhitelistDomains))
	for _, d := range snap.WhitelistDomains {
		if d.Active {
			domains[strings.ToLower(strings.TrimSpace(d.Domain))] = struct{}{}
		}
	}

	if logger != nil && (len(senders) > 0 || len(domains) > 0) {
		logger.Info("Initialized whitelist checker",
			zap.Int("senders", len(senders)),
			zap.Int("domains", len(domains)))
	}

	return &Checker{
		senders: senders,
		domains: domains,
		logger:  logger,
	}
}

// Check returns whether the sender is whitelisted and a human-readable
// reason naming which list matched. The sender address is checked first,
// then the sender's domain.
func (c *Checker) Check(sender string) (bool, string) {
	normalized := strings.ToLower(strings.TrimSpace(sender))

	if _, ok := c.senders[normalized]; ok {
		return true, fmt.Sprintf("Sender '%s' is in whitelist", sender)
	}

	if domain := senderDomain(normalized); domain != "" {
		if _, ok := c.domains[domain]; ok {
			return true, fmt.Sprintf("Domain '%s' is in whitelist", domain)
		}
	}

	return false, ""
}

func senderDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
