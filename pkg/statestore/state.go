// Package statestore persists the mutable "current execution position" per
// conversation session behind one repository interface with an explicit
// two-tier backing: a fast cache (Redis) in front of a durable store.
package statestore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStateNotFound indicates no live state exists for the session.
	ErrStateNotFound = errors.New("session state not found")
)

// WaitingKind marks what kind of user reply the session is paused for.
type WaitingKind string

const (
	WaitingNone   WaitingKind = ""
	WaitingChoice WaitingKind = "choice"
	WaitingText   WaitingKind = "text"
)

// StepContext carries engine-internal re-entrancy state for interactive
// steps. It lives beside the variable bag, never inside it, so
// user-supplied variables cannot collide with engine bookkeeping.
type StepContext struct {
	// CompletedChoices records choice steps already answered, keyed by
	// step id, so a re-entrant call does not re-prompt.
	CompletedChoices map[string]bool `json:"completed_choices,omitempty"`

	// ChoiceRoutes records the option-level next_step chosen for an
	// answered choice step, keyed by step id. Empty value means the
	// option had no override and the step-level next_step applies.
	ChoiceRoutes map[string]string `json:"choice_routes,omitempty"`
}

// Clone returns a deep copy.
func (c *StepContext) Clone() *StepContext {
	if c == nil {
		return nil
	}

	copied := &StepContext{}

	if c.CompletedChoices != nil {
		copied.CompletedChoices = make(map[string]bool, len(c.CompletedChoices))
		for k, v := range c.CompletedChoices {
			copied.CompletedChoices[k] = v
		}
	}

	if c.ChoiceRoutes != nil {
		copied.ChoiceRoutes = make(map[string]string, len(c.ChoiceRoutes))
		for k, v := range c.ChoiceRoutes {
			copied.ChoiceRoutes[k] = v
		}
	}

	return copied
}

// MarkChoiceCompleted records an answered choice step and its routing hint.
func (c *StepContext) MarkChoiceCompleted(stepID, route string) {
	if c.CompletedChoices == nil {
		c.CompletedChoices = make(map[string]bool)
	}

	if c.ChoiceRoutes == nil {
		c.ChoiceRoutes = make(map[string]string)
	}

	c.CompletedChoices[stepID] = true
	c.ChoiceRoutes[stepID] = route
}

// SessionState is the working-memory row, one per session id.
type SessionState struct {
	SessionID       string         `json:"session_id"`
	ExecutionID     string         `json:"execution_id"`
	WorkflowID      string         `json:"workflow_id"`
	TenantID        string         `json:"tenant_id"`
	CurrentStepID   string         `json:"current_step_id"`
	Variables       map[string]any `json:"variables"`
	StepContext     *StepContext   `json:"step_context,omitempty"`
	WaitingForInput WaitingKind    `json:"waiting_for_input,omitempty"`
	LastUserMessage string         `json:"last_user_message,omitempty"`
	LastBotMessage  string         `json:"last_bot_message,omitempty"`
	Completed       bool           `json:"completed"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

// Expired reports whether the state is past its TTL at the given instant.
func (s *SessionState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// FastStore is the cache tier. All operations are best-effort from the
// repository's point of view: the durable tier is the source of truth.
type FastStore interface {
	Put(ctx context.Context, state *SessionState, ttl time.Duration) error
	Fetch(ctx context.Context, sessionID string) (*SessionState, error)
	Delete(ctx context.Context, sessionID string) error
	SessionIDs(ctx context.Context) ([]string, error)
}

// DurableStore is the slow tier and the correctness fallback on cache
// misses.
type DurableStore interface {
	Upsert(ctx context.Context, state *SessionState) error
	Fetch(ctx context.Context, sessionID string) (*SessionState, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
