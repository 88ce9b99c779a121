package trigger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence/memory"
	"github.com/convflow/convflow/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDetector(t *testing.T, definitions ...*models.WorkflowDefinition) *trigger.Detector {
	t.Helper()

	p := memory.NewPersistence()
	for _, definition := range definitions {
		require.NoError(t, p.WorkflowRepository().Save(context.Background(), definition))
	}

	return trigger.NewDetector(p.WorkflowRepository(), slog.Default())
}

func triggered(id string, config models.TriggerConfig) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:       id,
		TenantID: "acme",
		Name:     "Workflow " + id,
		Active:   true,
		Trigger:  config,
		Steps:    []*models.Step{{ID: "s", Type: models.StepTypeMessage, Content: "hi"}},
	}
}

func TestCheck_PhraseMatching(t *testing.T) {
	t.Parallel()

	detector := setupDetector(t, triggered("wf-refund", models.TriggerConfig{
		Type:    models.TriggerTypePhrase,
		Phrases: []string{"I want a refund"},
	}))
	ctx := context.Background()

	t.Run("exact match scores full confidence", func(t *testing.T) {
		result, err := detector.Check(ctx, "acme", "i want a refund", "sess-1")
		require.NoError(t, err)

		assert.True(t, result.Triggered)
		assert.Equal(t, "wf-refund", result.WorkflowID)
		assert.InDelta(t, 1.0, result.Confidence, 0.001)
	})

	t.Run("contained phrase scores slightly less", func(t *testing.T) {
		result, err := detector.Check(ctx, "acme", "hello, I want a refund please", "sess-2")
		require.NoError(t, err)

		assert.True(t, result.Triggered)
		assert.InDelta(t, 0.9, result.Confidence, 0.001)
	})

	t.Run("unrelated message does not trigger", func(t *testing.T) {
		result, err := detector.Check(ctx, "acme", "what is the weather", "sess-3")
		require.NoError(t, err)

		assert.False(t, result.Triggered)
		assert.Empty(t, result.WorkflowID)
	})
}

func TestCheck_KeywordFraction(t *testing.T) {
	t.Parallel()

	detector := setupDetector(t, triggered("wf-order", models.TriggerConfig{
		Type:     models.TriggerTypeKeyword,
		Keywords: []string{"order", "status", "track", "shipping"},
	}))
	ctx := context.Background()

	t.Run("three of four keywords triggers", func(t *testing.T) {
		result, err := detector.Check(ctx, "acme", "track my order status", "sess-1")
		require.NoError(t, err)

		assert.True(t, result.Triggered)
		assert.InDelta(t, 0.75, result.Confidence, 0.001)
	})

	t.Run("exactly half does not clear the strict threshold", func(t *testing.T) {
		result, err := detector.Check(ctx, "acme", "order status", "sess-2")
		require.NoError(t, err)

		assert.False(t, result.Triggered)
		assert.Empty(t, result.WorkflowID)
		assert.InDelta(t, 0.5, result.Confidence, 0.001)
	})
}

func TestCheck_IntentOverlap(t *testing.T) {
	t.Parallel()

	detector := setupDetector(t, triggered("wf-cancel", models.TriggerConfig{
		Type:    models.TriggerTypeIntent,
		Phrases: []string{"cancel my subscription", "stop my plan"},
	}))
	ctx := context.Background()

	t.Run("best example wins", func(t *testing.T) {
		result, err := detector.Check(ctx, "acme", "please cancel my subscription now", "sess-1")
		require.NoError(t, err)

		assert.True(t, result.Triggered)
		assert.InDelta(t, 1.0, result.Confidence, 0.001)
	})

	t.Run("partial overlap below threshold", func(t *testing.T) {
		result, err := detector.Check(ctx, "acme", "my dog", "sess-2")
		require.NoError(t, err)

		assert.False(t, result.Triggered)
	})
}

func TestCheck_CaseSensitivity(t *testing.T) {
	t.Parallel()

	detector := setupDetector(t, triggered("wf-exact", models.TriggerConfig{
		Type:          models.TriggerTypePhrase,
		Phrases:       []string{"RESET"},
		CaseSensitive: true,
	}))
	ctx := context.Background()

	result, err := detector.Check(ctx, "acme", "reset", "sess-1")
	require.NoError(t, err)
	assert.False(t, result.Triggered)

	result, err = detector.Check(ctx, "acme", "RESET", "sess-2")
	require.NoError(t, err)
	assert.True(t, result.Triggered)
}

func TestCheck_BestOfManyWins(t *testing.T) {
	t.Parallel()

	detector := setupDetector(t,
		triggered("wf-a", models.TriggerConfig{
			Type:     models.TriggerTypeKeyword,
			Keywords: []string{"refund", "money", "back"},
		}),
		triggered("wf-b", models.TriggerConfig{
			Type:    models.TriggerTypePhrase,
			Phrases: []string{"I want my money back"},
		}),
	)

	result, err := detector.Check(context.Background(), "acme", "I want my money back", "sess-1")
	require.NoError(t, err)

	assert.True(t, result.Triggered)
	assert.Equal(t, "wf-b", result.WorkflowID)
	assert.InDelta(t, 1.0, result.Confidence, 0.001)
}

func TestCheck_TieResolvesToFirstWorkflowByID(t *testing.T) {
	t.Parallel()

	config := models.TriggerConfig{
		Type:    models.TriggerTypePhrase,
		Phrases: []string{"help me"},
	}
	detector := setupDetector(t, triggered("wf-b", config), triggered("wf-a", config))

	result, err := detector.Check(context.Background(), "acme", "help me", "sess-1")
	require.NoError(t, err)

	assert.True(t, result.Triggered)
	assert.Equal(t, "wf-a", result.WorkflowID)
}

func TestCheck_IgnoresInactiveAndOtherTenants(t *testing.T) {
	t.Parallel()

	inactive := triggered("wf-off", models.TriggerConfig{
		Type:    models.TriggerTypePhrase,
		Phrases: []string{"help me"},
	})
	inactive.Active = false

	other := triggered("wf-other", models.TriggerConfig{
		Type:    models.TriggerTypePhrase,
		Phrases: []string{"help me"},
	})
	other.TenantID = "someone-else"

	detector := setupDetector(t, inactive, other)

	result, err := detector.Check(context.Background(), "acme", "help me", "sess-1")
	require.NoError(t, err)

	assert.False(t, result.Triggered)
	assert.Empty(t, result.WorkflowID)
	assert.Zero(t, result.Confidence)
}
