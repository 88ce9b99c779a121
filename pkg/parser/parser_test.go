package parser_test

import (
	"testing"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string {
	return &s
}

func TestParse_ValidDocument(t *testing.T) {
	t.Parallel()

	document := map[string]any{
		"id":        "wf-onboarding",
		"tenant_id": "acme",
		"name":      "Onboarding",
		"active":    true,
		"trigger": map[string]any{
			"type":    "keyword",
			"keywords": []any{"start", "onboarding"},
		},
		"variables": map[string]any{"team": "support"},
		"steps": []any{
			map[string]any{
				"id":        "welcome",
				"type":      "message",
				"content":   "Welcome {{user.name}}!",
				"next_step": "ask",
			},
			map[string]any{
				"id":       "ask",
				"type":     "input",
				"content":  "What is your email?",
				"variable": "user.email",
			},
		},
	}

	definition, err := parser.Parse(document)
	require.NoError(t, err)

	assert.Equal(t, "wf-onboarding", definition.ID)
	assert.Equal(t, "acme", definition.TenantID)
	assert.Equal(t, models.TriggerTypeKeyword, definition.Trigger.Type)
	require.Len(t, definition.Steps, 2)
	assert.Equal(t, models.StepTypeMessage, definition.Steps[0].Type)
	require.NotNil(t, definition.Steps[0].NextStep)
	assert.Equal(t, "ask", *definition.Steps[0].NextStep)
	assert.Equal(t, "user.email", definition.Steps[1].Variable)
}

func TestParse_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		document map[string]any
	}{
		{
			name:     "missing name",
			document: map[string]any{"steps": []any{}},
		},
		{
			name: "missing steps",
			document: map[string]any{"name": "No Steps"},
		},
		{
			name: "unknown step type",
			document: map[string]any{
				"name": "Bad Type",
				"steps": []any{
					map[string]any{"id": "s1", "type": "teleport"},
				},
			},
		},
		{
			name: "step without id",
			document: map[string]any{
				"name": "No ID",
				"steps": []any{
					map[string]any{"type": "message"},
				},
			},
		},
		{
			name: "option without value",
			document: map[string]any{
				"name": "Bad Option",
				"steps": []any{
					map[string]any{
						"id":   "s1",
						"type": "choice",
						"options": []any{
							map[string]any{"text": "Yes"},
						},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := parser.Parse(tt.document)
			require.Error(t, err)

			var parseErr *parser.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.NotEmpty(t, parseErr.Issues)
		})
	}
}

func TestValidate_ReportsAllIssues(t *testing.T) {
	t.Parallel()

	definition := &models.WorkflowDefinition{
		ID:       "wf-broken",
		TenantID: "acme",
		Name:     "Broken",
		Steps: []*models.Step{
			{ID: "start", Type: models.StepTypeMessage, NextStep: strptr("branch")},
			{ID: "branch", Type: models.StepTypeCondition, NextStep: strptr("gone")},
			{ID: "branch", Type: models.StepTypeAction},
			{ID: "orphan", Type: models.StepTypeAction, Action: "log"},
		},
	}

	issues := parser.Validate(definition)

	codes := make(map[parser.IssueCode]int)
	for _, issue := range issues {
		codes[issue.Code]++
	}

	assert.Equal(t, 1, codes[parser.IssueDuplicateStepID])
	assert.Equal(t, 1, codes[parser.IssueDanglingNext])
	assert.Equal(t, 1, codes[parser.IssueEmptyCondition])
	assert.Equal(t, 1, codes[parser.IssueMissingAction])
	assert.Equal(t, 1, codes[parser.IssueUnreachableStep])
}

func TestValidate_ChoiceWithoutOptions(t *testing.T) {
	t.Parallel()

	definition := &models.WorkflowDefinition{
		ID:       "wf-choice",
		TenantID: "acme",
		Name:     "Choice",
		Steps: []*models.Step{
			{ID: "pick", Type: models.StepTypeChoice},
		},
	}

	issues := parser.Validate(definition)
	require.Len(t, issues, 1)
	assert.Equal(t, parser.IssueNoOptions, issues[0].Code)
	assert.Equal(t, "pick", issues[0].StepID)
}

func TestValidate_OptionRouteCounts(t *testing.T) {
	t.Parallel()

	definition := &models.WorkflowDefinition{
		ID:       "wf-routes",
		TenantID: "acme",
		Name:     "Routes",
		Steps: []*models.Step{
			{
				ID:   "pick",
				Type: models.StepTypeChoice,
				Options: []models.ChoiceOption{
					{Text: "A", Value: "a", NextStep: strptr("followup")},
					{Text: "B", Value: "b", NextStep: strptr("missing")},
				},
			},
			{ID: "followup", Type: models.StepTypeMessage},
		},
	}

	issues := parser.Validate(definition)
	require.Len(t, issues, 1)
	assert.Equal(t, parser.IssueDanglingNext, issues[0].Code)
	assert.Equal(t, "pick", issues[0].StepID)
}

func TestValidate_CleanDefinition(t *testing.T) {
	t.Parallel()

	definition := &models.WorkflowDefinition{
		ID:       "wf-clean",
		TenantID: "acme",
		Name:     "Clean",
		Steps: []*models.Step{
			{ID: "hello", Type: models.StepTypeMessage, NextStep: strptr("done")},
			{ID: "done", Type: models.StepTypeMessage},
		},
	}

	assert.Empty(t, parser.Validate(definition))
}
