package models

// StepType discriminates the step union. Interactive types produce a
// user-visible turn; the remaining types are chained silently by the engine.
type StepType string

const (
	StepTypeMessage   StepType = "message"
	StepTypeChoice    StepType = "choice"
	StepTypeInput     StepType = "input"
	StepTypeCondition StepType = "condition"
	StepTypeAction    StepType = "action"
	StepTypeDelay     StepType = "delay"
)

// Interactive reports whether the step requires a user-visible turn.
func (t StepType) Interactive() bool {
	return t == StepTypeMessage || t == StepTypeChoice || t == StepTypeInput
}

// AwaitsReply reports whether the step pauses the conversation until the
// user answers. Message steps are displayed but never block.
func (t StepType) AwaitsReply() bool {
	return t == StepTypeChoice || t == StepTypeInput
}

// ChoiceOption is one selectable option of a choice step. NextStep, when
// set, overrides the step-level next_step for that branch.
type ChoiceOption struct {
	Text     string  `json:"text"            validate:"required"`
	Value    string  `json:"value"           validate:"required"`
	NextStep *string `json:"next_step,omitempty"`
}

// Step is one node of a workflow's directed graph, tagged by Type. A nil or
// dangling NextStep means the workflow terminates at this step.
type Step struct {
	ID        string         `json:"id"        validate:"required"`
	Type      StepType       `json:"type"      validate:"required,oneof=message choice input condition action delay"`
	Content   string         `json:"content,omitempty"`
	Options   []ChoiceOption `json:"options,omitempty"`
	Variable  string         `json:"variable,omitempty"`
	Condition string         `json:"condition,omitempty"`
	Action    string         `json:"action,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	NextStep  *string        `json:"next_step,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
