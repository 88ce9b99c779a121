// Package models defines the core domain models for conversational workflow execution.
package models

import "time"

// TriggerType identifies how a workflow is started from an inbound message.
type TriggerType string

const (
	TriggerTypePhrase  TriggerType = "phrase"  // Exact or near-exact phrase match
	TriggerTypeKeyword TriggerType = "keyword" // Fraction of configured keywords present
	TriggerTypeIntent  TriggerType = "intent"  // Keyword heuristic over intent examples
)

// TriggerConfig describes the matching configuration that causes a workflow
// to be started automatically from an inbound message.
type TriggerConfig struct {
	Type          TriggerType `json:"type"                     validate:"required,oneof=phrase keyword intent"`
	Phrases       []string    `json:"phrases,omitempty"`
	Keywords      []string    `json:"keywords,omitempty"`
	CaseSensitive bool        `json:"case_sensitive,omitempty"`
}

// WorkflowDefinition is a tenant-scoped, immutable-per-version conversation
// graph. Versions are append-only history: a definition is never mutated
// after creation, a save produces the next version.
type WorkflowDefinition struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"  validate:"required"`
	Name      string         `json:"name"       validate:"required,min=3"`
	Version   int            `json:"version"`
	Active    bool           `json:"active"`
	Trigger   TriggerConfig  `json:"trigger"`
	Steps     []*Step        `json:"steps"`
	Variables map[string]any `json:"variables,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// StepByID returns the step with the given id, or nil when no such step
// exists in the definition.
func (w *WorkflowDefinition) StepByID(id string) *Step {
	for _, step := range w.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// FirstStep returns the entry step of the definition, or nil for an empty
// definition.
func (w *WorkflowDefinition) FirstStep() *Step {
	if len(w.Steps) == 0 {
		return nil
	}

	return w.Steps[0]
}

// HasStep reports whether the given id names a step in the definition. A
// next_step pointing outside the definition is treated as "workflow end" by
// the engine, so callers use this to distinguish an edge from a terminator.
func (w *WorkflowDefinition) HasStep(id string) bool {
	return w.StepByID(id) != nil
}
