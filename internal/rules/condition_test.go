package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name       string
		fieldValue string
		operator   string
		value      string
		expected   bool
	}{
		{"contains case-insensitive", "ABC", OpContains, "bc", true},
		{"contains miss", "hello world", OpContains, "goodbye", false},
		{"equals folds case", "Finance", OpEquals, "finance", true},
		{"equals miss", "finance", OpEquals, "financ", false},
		{"starts_with", "invoice_2024.pdf", OpStartsWith, "INVOICE", true},
		{"ends_with", "payload.exe", OpEndsWith, ".exe", true},
		{"ends_with miss", "payload.exe.txt", OpEndsWith, ".exe", false},
		{"regex match", "wire transfer request", OpRegex, `wire\s+transfer`, true},
		{"regex case-insensitive", "URGENT PAYMENT", OpRegex, "urgent", true},
		{"regex invalid pattern is false", "anything", OpRegex, "([invalid", false},
		{"not_contains", "hello", OpNotContains, "bye", true},
		{"not_contains present", "hello", OpNotContains, "ell", false},
		{"not_equals", "a", OpNotEquals, "b", true},
		{"is_empty on blank", "   ", OpIsEmpty, "", true},
		{"is_empty on text", "x", OpIsEmpty, "", false},
		{"is_not_empty", "x", OpIsNotEmpty, "", true},
		{"is_not_empty on blank", " ", OpIsNotEmpty, "", false},
		{"unknown operator is false", "x", "between", "y", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EvaluateCondition(tt.fieldValue, tt.operator, tt.value))
		})
	}
}
