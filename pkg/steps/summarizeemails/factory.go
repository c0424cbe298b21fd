package summarizeemails

import (
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/protocol"
)

// Factory creates SUMMARIZE_EMAILS steps.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config), nil
}

func (f *Factory) ID() string {
	return string(models.StepSummarizeEmails)
}

func (f *Factory) Name() string {
	return "Summarize Emails"
}

func (f *Factory) Description() string {
	return "Condenses fetched emails into short summaries using the configured AI model."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"enabled": map[string]any{
				"type":        "boolean",
				"description": "When false the step succeeds without calling the model.",
				"default":     true,
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Model identifier passed to the summarization service.",
			},
		},
		"additionalProperties": true,
	}
}
