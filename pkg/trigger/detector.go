// Package trigger decides whether an inbound chat message should start a
// workflow, by scoring the message against every active workflow's trigger
// configuration.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

// Threshold is the fixed confidence bar a workflow must clear to trigger.
const Threshold = 0.5

// CheckResult is the detector's verdict for one message.
type CheckResult struct {
	Triggered  bool    `json:"triggered"`
	WorkflowID string  `json:"workflow_id,omitempty"`
	Confidence float64 `json:"confidence"`
}

type Detector struct {
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
}

func NewDetector(workflows persistence.WorkflowRepository, logger *slog.Logger) *Detector {
	return &Detector{
		workflows: workflows,
		logger:    logger.With("module", "trigger_detector"),
	}
}

// Check scores the message against the tenant's active workflows and
// returns the best match when it clears the threshold. The repository
// returns workflows in a stable order, so ties resolve deterministically to
// the first candidate.
func (d *Detector) Check(ctx context.Context, tenantID, message, sessionID string) (*CheckResult, error) {
	active, err := d.workflows.Active(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}

	best := &CheckResult{}

	for _, wf := range active {
		confidence := score(wf.Trigger, message)

		if confidence > best.Confidence {
			best = &CheckResult{WorkflowID: wf.ID, Confidence: confidence}
		}
	}

	if best.Confidence > Threshold {
		best.Triggered = true
	} else {
		best.WorkflowID = ""
	}

	d.logger.DebugContext(ctx, "Completed trigger check",
		"tenant_id", tenantID,
		"session_id", sessionID,
		"triggered", best.Triggered,
		"workflow_id", best.WorkflowID,
		"confidence", best.Confidence)

	return best, nil
}

// score returns a confidence in [0,1] for one trigger configuration. It is
// a pure function of its inputs.
func score(config models.TriggerConfig, message string) float64 {
	switch config.Type {
	case models.TriggerTypePhrase:
		return scorePhrases(config, message)
	case models.TriggerTypeKeyword:
		return scoreKeywords(config, message)
	case models.TriggerTypeIntent:
		return scoreIntent(config, message)
	default:
		return 0
	}
}

// scorePhrases gives full confidence on an exact phrase match and slightly
// less when the phrase appears inside a longer message.
func scorePhrases(config models.TriggerConfig, message string) float64 {
	normalizedMessage := normalize(message, config.CaseSensitive)

	best := 0.0

	for _, phrase := range config.Phrases {
		normalizedPhrase := normalize(phrase, config.CaseSensitive)
		if normalizedPhrase == "" {
			continue
		}

		switch {
		case normalizedMessage == normalizedPhrase:
			return 1.0
		case strings.Contains(normalizedMessage, normalizedPhrase) && best < 0.9:
			best = 0.9
		}
	}

	return best
}

// scoreKeywords scores the fraction of configured keywords present in the
// message.
func scoreKeywords(config models.TriggerConfig, message string) float64 {
	if len(config.Keywords) == 0 {
		return 0
	}

	normalizedMessage := normalize(message, config.CaseSensitive)

	matched := 0

	for _, keyword := range config.Keywords {
		if strings.Contains(normalizedMessage, normalize(keyword, config.CaseSensitive)) {
			matched++
		}
	}

	return float64(matched) / float64(len(config.Keywords))
}

// scoreIntent treats each configured phrase as an example utterance and
// scores word overlap against the best example.
func scoreIntent(config models.TriggerConfig, message string) float64 {
	messageWords := wordSet(normalize(message, config.CaseSensitive))
	if len(messageWords) == 0 {
		return 0
	}

	best := 0.0

	for _, example := range config.Phrases {
		exampleWords := strings.Fields(normalize(example, config.CaseSensitive))
		if len(exampleWords) == 0 {
			continue
		}

		shared := 0

		for _, word := range exampleWords {
			if messageWords[word] {
				shared++
			}
		}

		overlap := float64(shared) / float64(len(exampleWords))
		if overlap > best {
			best = overlap
		}
	}

	return best
}

func normalize(text string, caseSensitive bool) string {
	text = strings.TrimSpace(text)
	if !caseSensitive {
		text = strings.ToLower(text)
	}

	return text
}

func wordSet(text string) map[string]bool {
	words := make(map[string]bool)
	for _, word := range strings.Fields(text) {
		words[word] = true
	}

	return words
}
