package rules

import (
	"encoding/json"
	"strings"

	"github.com/mikey/email-guardian/internal/core"
)

// Kind distinguishes the two rule pattern forms
type Kind int

const (
	// KindLegacy is a single substring pattern applied to one fixed field
	KindLegacy Kind = iota
	// KindStructured is a list of conditions combined with AND/OR
	KindStructured
)

// Logical operators for structured rules
const (
	OperatorAnd = "AND"
	OperatorOr  = "OR"
)

// Rule is the compiled form of a stored rule. The stored pattern string is
// parsed exactly once, at snapshot load; evaluation never re-parses it.
type Rule struct {
	Name     string
	Severity string

	Kind          Kind
	LegacyField   string
	LegacyPattern string
	Conditions    []Condition
	Operator      string
}

// patternDoc is the JSON document format for structured multi-condition
// patterns
type patternDoc struct {
	Conditions      []Condition `json:"conditions"`
	LogicalOperator string      `json:"logical_operator"`
}

// Compile parses a stored rule into its tagged form. A pattern that parses
// as a JSON object becomes a structured rule; anything else is a legacy
// single-field substring pattern. A structured pattern with no conditions
// compiles to a rule that never matches.
func Compile(name, ruleType, pattern, severity string) Rule {
	rule := Rule{
		Name:     name,
		Severity: severity,
	}

	if doc, ok := parsePatternDoc(pattern); ok {
		rule.Kind = KindStructured
		rule.Conditions = doc.Conditions
		rule.Operator = strings.ToUpper(doc.LogicalOperator)
		if rule.Operator != OperatorOr {
			rule.Operator = OperatorAnd
		}
		return rule
	}

	rule.Kind = KindLegacy
	rule.LegacyField = ruleType
	rule.LegacyPattern = pattern
	return rule
}

func parsePatternDoc(pattern string) (*patternDoc, bool) {
	trimmed := strings.TrimSpace(pattern)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var doc patternDoc
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

// CompiledRuleSet holds the per-run rule snapshot in compiled form
type CompiledRuleSet struct {
	Security  []Rule
	Exclusion []Rule
}

// CompileSnapshot compiles every active rule in a snapshot. Inactive rules
// are skipped so evaluation never has to check the flag.
func CompileSnapshot(snap *core.RuleSetSnapshot) *CompiledRuleSet {
	set := &CompiledRuleSet{}

	for _, r := range snap.SecurityRules {
		if !r.Active {
			continue
		}
		set.Security = append(set.Security, Compile(r.Name, r.RuleType, r.Pattern, r.Severity))
	}
	for _, r := range snap.ExclusionRules {
		if !r.Active {
			continue
		}
		set.Exclusion = append(set.Exclusion, Compile(r.Name, r.RuleType, r.Pattern, ""))
	}

	return set
}
