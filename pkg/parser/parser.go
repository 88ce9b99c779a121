// Package parser validates and normalizes workflow definition documents
// into the in-memory typed graph executed by the engine.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/convflow/convflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ParseError indicates a document that does not match the step-union
// schema. Parsing is strict; Validate is advisory.
type ParseError struct {
	Issues []string
	Err    error
}

func (e *ParseError) Error() string {
	if len(e.Issues) > 0 {
		return "invalid workflow definition: " + strings.Join(e.Issues, "; ")
	}

	return fmt.Sprintf("invalid workflow definition: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse checks the document against the definition schema and decodes it
// into a typed graph. Parse succeeds even when Validate would report
// issues: validation findings are advisory, schema violations are not.
func Parse(document map[string]any) (*models.WorkflowDefinition, error) {
	raw, err := json.Marshal(document)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}

		return nil, &ParseError{Issues: issues}
	}

	var definition models.WorkflowDefinition
	if err := json.Unmarshal(raw, &definition); err != nil {
		return nil, &ParseError{Err: err}
	}

	return &definition, nil
}

// IssueCode classifies a validation finding.
type IssueCode string

const (
	IssueDuplicateStepID IssueCode = "duplicate_step_id"
	IssueDanglingNext    IssueCode = "dangling_next_step"
	IssueEmptyCondition  IssueCode = "empty_condition"
	IssueNoOptions       IssueCode = "no_options"
	IssueMissingAction   IssueCode = "missing_action"
	IssueUnreachableStep IssueCode = "unreachable_step"
)

// ValidationIssue is one advisory finding about a definition. The engine
// still executes definitions with issues; dangling references degrade to
// "workflow end" at run time.
type ValidationIssue struct {
	Code    IssueCode `json:"code"`
	StepID  string    `json:"step_id,omitempty"`
	Message string    `json:"message"`
}

// Validate reports every issue found in the definition graph. It is not
// fail-fast: all findings are returned together.
func Validate(definition *models.WorkflowDefinition) []ValidationIssue {
	var issues []ValidationIssue

	seen := make(map[string]bool, len(definition.Steps))
	for _, step := range definition.Steps {
		if seen[step.ID] {
			issues = append(issues, ValidationIssue{
				Code:    IssueDuplicateStepID,
				StepID:  step.ID,
				Message: fmt.Sprintf("step id %q is used more than once", step.ID),
			})
		}

		seen[step.ID] = true
	}

	referenced := make(map[string]bool)

	for _, step := range definition.Steps {
		if step.NextStep != nil && *step.NextStep != "" {
			referenced[*step.NextStep] = true

			if !definition.HasStep(*step.NextStep) {
				issues = append(issues, ValidationIssue{
					Code:    IssueDanglingNext,
					StepID:  step.ID,
					Message: fmt.Sprintf("next_step %q does not exist", *step.NextStep),
				})
			}
		}

		for _, option := range step.Options {
			if option.NextStep == nil || *option.NextStep == "" {
				continue
			}

			referenced[*option.NextStep] = true

			if !definition.HasStep(*option.NextStep) {
				issues = append(issues, ValidationIssue{
					Code:    IssueDanglingNext,
					StepID:  step.ID,
					Message: fmt.Sprintf("option next_step %q does not exist", *option.NextStep),
				})
			}
		}

		switch step.Type {
		case models.StepTypeCondition:
			if strings.TrimSpace(step.Condition) == "" {
				issues = append(issues, ValidationIssue{
					Code:    IssueEmptyCondition,
					StepID:  step.ID,
					Message: "condition step has an empty condition",
				})
			}
		case models.StepTypeChoice:
			if len(step.Options) == 0 {
				issues = append(issues, ValidationIssue{
					Code:    IssueNoOptions,
					StepID:  step.ID,
					Message: "choice step has no options",
				})
			}
		case models.StepTypeAction:
			if strings.TrimSpace(step.Action) == "" {
				issues = append(issues, ValidationIssue{
					Code:    IssueMissingAction,
					StepID:  step.ID,
					Message: "action step has no action name",
				})
			}
		}
	}

	// Every step except the first must be referenced from somewhere.
	for i, step := range definition.Steps {
		if i == 0 || referenced[step.ID] {
			continue
		}

		issues = append(issues, ValidationIssue{
			Code:    IssueUnreachableStep,
			StepID:  step.ID,
			Message: fmt.Sprintf("step %q is not referenced by any next_step", step.ID),
		})
	}

	return issues
}
