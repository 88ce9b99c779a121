package variables_test

import (
	"testing"

	"github.com/convflow/convflow/pkg/variables"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	bag := variables.NewBag(map[string]any{
		"user": map[string]any{
			"name": "Ada",
			"age":  float64(36),
		},
		"vip": true,
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "nested path",
			template: "Hello {{user.name}}!",
			expected: "Hello Ada!",
		},
		{
			name:     "unresolved token left verbatim",
			template: "Hello {{user.missing}}!",
			expected: "Hello {{user.missing}}!",
		},
		{
			name:     "integral float renders without fraction",
			template: "Age: {{user.age}}",
			expected: "Age: 36",
		},
		{
			name:     "bool renders as true/false",
			template: "VIP: {{vip}}",
			expected: "VIP: true",
		},
		{
			name:     "whitespace inside braces",
			template: "Hello {{ user.name }}!",
			expected: "Hello Ada!",
		},
		{
			name:     "multiple tokens, one bad",
			template: "{{user.name}} is {{user.height}} tall",
			expected: "Ada is {{user.height}} tall",
		},
		{
			name:     "no tokens",
			template: "plain text",
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, variables.Resolve(tt.template, bag))
		})
	}
}

func TestEvaluate_NumericComparison(t *testing.T) {
	t.Parallel()

	bag := variables.NewBag(map[string]any{"age": int64(20)})

	assert.True(t, variables.Evaluate("age >= 18", bag))
	assert.False(t, variables.Evaluate("age < 18", bag))
	assert.True(t, variables.Evaluate("age == 20", bag))
	assert.True(t, variables.Evaluate("age != 21", bag))
}

func TestEvaluate_MixedTypesFailClosed(t *testing.T) {
	t.Parallel()

	// A string-typed "17" is not promoted to a number: ordering a string
	// against an int is incomparable and the whole condition is false.
	bag := variables.NewBag(map[string]any{"age": "17"})

	assert.False(t, variables.Evaluate("age >= 18", bag))
	assert.False(t, variables.Evaluate("age < 18", bag))
}

func TestEvaluate_EqualityAcrossKinds(t *testing.T) {
	t.Parallel()

	bag := variables.NewBag(map[string]any{
		"count":   int64(17),
		"label":   "17",
		"enabled": true,
	})

	assert.False(t, variables.Evaluate("label == 17", bag))
	assert.True(t, variables.Evaluate(`label == "17"`, bag))
	assert.True(t, variables.Evaluate("count == 17", bag))
	assert.False(t, variables.Evaluate(`enabled == "true"`, bag))
	assert.True(t, variables.Evaluate("enabled == true", bag))
}

func TestEvaluate_StringOrdering(t *testing.T) {
	t.Parallel()

	bag := variables.NewBag(map[string]any{"name": "alice"})

	assert.True(t, variables.Evaluate(`name < "bob"`, bag))
	assert.False(t, variables.Evaluate(`name > "bob"`, bag))
}

func TestEvaluate_Truthiness(t *testing.T) {
	t.Parallel()

	bag := variables.NewBag(map[string]any{
		"confirmed": "yes",
		"declined":  "false",
		"nothing":   "",
		"zero":      "0",
		"nullish":   "none",
	})

	tests := []struct {
		condition string
		expected  bool
	}{
		{"{{confirmed}}", true},
		{"{{declined}}", false},
		{"{{nothing}}", false},
		{"{{zero}}", false},
		{"{{nullish}}", false},
		{"anything", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, variables.Evaluate(tt.condition, bag))
		})
	}
}

func TestEvaluate_InterpolatedCondition(t *testing.T) {
	t.Parallel()

	bag := variables.NewBag(map[string]any{
		"order": map[string]any{"total": float64(120)},
	})

	assert.True(t, variables.Evaluate("{{order.total}} > 100", bag))
	assert.False(t, variables.Evaluate("{{order.total}} > 200", bag))
}
